package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const defaultPurgeRetention = time.Hour

type SecretPurger interface {
	PurgeExpired(ctx context.Context, retention time.Duration) (int64, error)
}

// SecretPurgeJob deletes verification secrets that expired more than
// retention ago. Expired rows are never honored, so this only bounds table
// growth.
type SecretPurgeJob struct {
	purger    SecretPurger
	retention time.Duration
}

func NewSecretPurgeJob(purger SecretPurger, retention time.Duration) *SecretPurgeJob {
	return &SecretPurgeJob{purger: purger, retention: retention}
}

func (j *SecretPurgeJob) Name() string {
	return "secret_purge"
}

func (j *SecretPurgeJob) Run(ctx context.Context) error {
	if j.purger == nil {
		return nil
	}
	retention := j.retention
	if retention <= 0 {
		retention = defaultPurgeRetention
	}
	n, err := j.purger.PurgeExpired(ctx, retention)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("expired secrets purged", zap.Int64("count", n))
	return nil
}
