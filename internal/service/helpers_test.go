package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xxxsen/tripauth/internal/alert"
	"github.com/xxxsen/tripauth/internal/mailer"
	"github.com/xxxsen/tripauth/internal/model"
	"github.com/xxxsen/tripauth/internal/pkg/password"
	"github.com/xxxsen/tripauth/internal/repo"
)

const (
	testEmail       = "user@example.com"
	initialPassword = "Init1al!Pass"
)

var errCountRollback = errors.New("rollback after count")

var otpPattern = regexp.MustCompile(`(?m)^## (\d{6})$`)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type captureMailer struct {
	mu   sync.Mutex
	msgs []mailer.Message
	err  error
}

func (m *captureMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return m.err
}

func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.msgs)
	match := otpPattern.FindStringSubmatch(m.msgs[len(m.msgs)-1].TextBody)
	require.Len(t, match, 2)
	return match[1]
}

type recordingAlerts struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (r *recordingAlerts) Notify(ctx context.Context, a alert.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

func (r *recordingAlerts) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.alerts))
	for _, a := range r.alerts {
		out = append(out, a.Action)
	}
	return out
}

type fixture struct {
	db      *repo.MemoryDB
	clock   *fakeClock
	store   *SecretStore
	mail    *captureMailer
	alerts  *recordingAlerts
	auth    *AuthService
	svc     *RecoveryService
	user    *model.User
	options RecoveryOptions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:     repo.NewMemoryDB(),
		clock:  &fakeClock{now: time.Unix(1_700_000_000, 0)},
		mail:   &captureMailer{},
		alerts: &recordingAlerts{},
		options: RecoveryOptions{
			OTPExpireMinutes:        10,
			ResetTokenExpireMinutes: 15,
			HashCost:                bcrypt.MinCost,
			PasswordPolicy:          password.DefaultPolicy(),
			ProductName:             "KBT Trip Builder",
		},
	}
	f.store = NewSecretStore(f.db.Secrets(), f.db, bcrypt.MinCost)
	f.store.SetClock(f.clock.Now)
	f.auth = NewAuthService(f.db.Users(), password.DefaultPolicy(), bcrypt.MinCost)
	f.auth.now = f.clock.Now
	f.svc = NewRecoveryService(f.db.Users(), f.store, f.db, f.mail, f.alerts, f.options)

	user, err := f.auth.Register(context.Background(), RegisterInput{
		FirstName: "Trip",
		LastName:  "User",
		Email:     testEmail,
		Password:  initialPassword,
	})
	require.NoError(t, err)
	f.user = user
	return f
}

func (f *fixture) count(t *testing.T, purpose model.SecretPurpose) int {
	t.Helper()
	var n int64
	err := f.db.InTx(context.Background(), func(ctx context.Context) error {
		var err error
		n, err = f.db.Secrets().DeleteByOwner(ctx, f.user.ID, purpose)
		if err != nil {
			return err
		}
		return errCountRollback
	})
	require.ErrorIs(t, err, errCountRollback)
	return int(n)
}

// requestAndVerify runs the first two steps and returns the reset token.
func (f *fixture) requestAndVerify(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	f.svc.RequestCode(ctx, testEmail)
	token, err := f.svc.VerifyCode(ctx, testEmail, f.mail.lastCode(t))
	require.NoError(t, err)
	return token
}
