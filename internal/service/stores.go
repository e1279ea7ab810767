package service

import (
	"context"

	"github.com/xxxsen/tripauth/internal/alert"
	"github.com/xxxsen/tripauth/internal/model"
)

// TxManager runs fn in one transaction bound to ctx. Nested calls join the
// outer transaction.
type TxManager interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type SecretRepo interface {
	Create(ctx context.Context, item *model.VerificationSecret) error
	LatestByDestination(ctx context.Context, destination string, purpose model.SecretPurpose) (*model.VerificationSecret, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByOwner(ctx context.Context, ownerID string, purpose model.SecretPurpose) (int64, error)
	DeleteExpiredBefore(ctx context.Context, cutoff int64) (int64, error)
	LockOwner(ctx context.Context, ownerID string, purpose model.SecretPurpose) error
}

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePasswordByEmail(ctx context.Context, email, passwordHash string, mtime int64) error
}

type UserRepo interface {
	UserStore
	Create(ctx context.Context, user *model.User) error
}

type AlertSink interface {
	Notify(ctx context.Context, a alert.Alert)
}
