package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xxxsen/tripauth/internal/model"
	appErr "github.com/xxxsen/tripauth/internal/pkg/errors"
	"github.com/xxxsen/tripauth/internal/pkg/password"
)

// SecretStore keeps at most one live hashed secret per owner and purpose.
type SecretStore struct {
	repo     SecretRepo
	tx       TxManager
	hashCost int
	now      func() time.Time
}

func NewSecretStore(repo SecretRepo, tx TxManager, hashCost int) *SecretStore {
	return &SecretStore{repo: repo, tx: tx, hashCost: hashCost, now: time.Now}
}

// SetClock replaces the time source used for creation and expiry checks.
func (s *SecretStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *SecretStore) Now() time.Time {
	return s.now()
}

// Issue hashes plaintext and replaces every prior record of the owner for
// purpose with the new one.
func (s *SecretStore) Issue(ctx context.Context, ownerID, destination string, purpose model.SecretPurpose, plaintext string, expiresAt time.Time) (*model.VerificationSecret, error) {
	item, err := s.Prepare(ownerID, destination, purpose, plaintext, expiresAt)
	if err != nil {
		return nil, err
	}
	if err := s.Store(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Prepare builds a hashed record without touching storage, so callers that
// already hold a transaction can hash before opening it.
func (s *SecretStore) Prepare(ownerID, destination string, purpose model.SecretPurpose, plaintext string, expiresAt time.Time) (*model.VerificationSecret, error) {
	if !purpose.Valid() {
		return nil, fmt.Errorf("issue secret: invalid purpose %q", purpose)
	}
	hash, err := password.HashWithCost(plaintext, s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash secret: %w", err)
	}
	return &model.VerificationSecret{
		ID:          newID(),
		OwnerID:     ownerID,
		Purpose:     purpose,
		SecretHash:  hash,
		Destination: destination,
		ExpiresAt:   expiresAt.Unix(),
		CreatedAt:   s.now().Unix(),
	}, nil
}

// Store replaces every prior record of item's owner for its purpose with
// item, serialized per owner and purpose.
func (s *SecretStore) Store(ctx context.Context, item *model.VerificationSecret) error {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockOwner(ctx, item.OwnerID, item.Purpose); err != nil {
			return err
		}
		superseded, err := s.repo.DeleteByOwner(ctx, item.OwnerID, item.Purpose)
		if err != nil {
			return err
		}
		if superseded > 0 {
			logutil.GetLogger(ctx).Debug("superseded previous secrets",
				zap.String("owner_id", item.OwnerID),
				zap.String("purpose", string(item.Purpose)),
				zap.Int64("count", superseded),
			)
		}
		return s.repo.Create(ctx, item)
	})
	if err != nil {
		return fmt.Errorf("issue secret: %w", err)
	}
	return nil
}

func (s *SecretStore) FindLatest(ctx context.Context, destination string, purpose model.SecretPurpose) (*model.VerificationSecret, error) {
	return s.repo.LatestByDestination(ctx, destination, purpose)
}

// Verify compares plaintext against the latest record only. Expiry is left
// to the caller.
func (s *SecretStore) Verify(ctx context.Context, destination string, purpose model.SecretPurpose, plaintext string) (*model.VerificationSecret, error) {
	item, err := s.FindLatest(ctx, destination, purpose)
	if err != nil {
		return nil, err
	}
	if err := password.Compare(item.SecretHash, plaintext); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, appErr.ErrMismatch
		}
		return nil, fmt.Errorf("compare secret: %w", err)
	}
	return item, nil
}

// VerifyActive is Verify for consumption: a matching record past its expiry
// is returned together with appErr.ErrExpired.
func (s *SecretStore) VerifyActive(ctx context.Context, destination string, purpose model.SecretPurpose, plaintext string) (*model.VerificationSecret, error) {
	item, err := s.Verify(ctx, destination, purpose, plaintext)
	if err != nil {
		return nil, err
	}
	if s.IsExpired(item) {
		return item, appErr.ErrExpired
	}
	return item, nil
}

func (s *SecretStore) IsExpired(item *model.VerificationSecret) bool {
	return item.ExpiresAt < s.now().Unix()
}

// DeleteByID reports appErr.ErrNotFound when the record was already gone,
// which is how concurrent consumers learn they lost.
func (s *SecretStore) DeleteByID(ctx context.Context, id string) error {
	return s.repo.DeleteByID(ctx, id)
}

func (s *SecretStore) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteExpiredBefore(ctx, s.now().Add(-retention).Unix())
}
