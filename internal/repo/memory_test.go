package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/tripauth/internal/model"
	appErr "github.com/xxxsen/tripauth/internal/pkg/errors"
)

func newSecret(id, owner string, purpose model.SecretPurpose, createdAt int64) *model.VerificationSecret {
	return &model.VerificationSecret{
		ID:          id,
		OwnerID:     owner,
		Purpose:     purpose,
		SecretHash:  "hash-" + id,
		Destination: owner + "@example.com",
		ExpiresAt:   createdAt + 600,
		CreatedAt:   createdAt,
	}
}

func (r *MemorySecretRepo) countByOwner(ownerID string, purpose model.SecretPurpose) int {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, s := range r.db.secrets {
		if s.item.OwnerID == ownerID && s.item.Purpose == purpose {
			n++
		}
	}
	return n
}

func TestMemorySecretRepo_LatestByDestination(t *testing.T) {
	ctx := context.Background()
	secrets := NewMemoryDB().Secrets()

	_, err := secrets.LatestByDestination(ctx, "u1@example.com", model.PurposePasswordResetOTP)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	require.NoError(t, secrets.Create(ctx, newSecret("a", "u1", model.PurposePasswordResetOTP, 100)))
	require.NoError(t, secrets.Create(ctx, newSecret("b", "u1", model.PurposePasswordResetOTP, 200)))
	require.NoError(t, secrets.Create(ctx, newSecret("c", "u1", model.PurposePasswordResetOTP, 200)))
	require.NoError(t, secrets.Create(ctx, newSecret("d", "u1", model.PurposePasswordResetToken, 300)))

	latest, err := secrets.LatestByDestination(ctx, "u1@example.com", model.PurposePasswordResetOTP)
	require.NoError(t, err)
	require.Equal(t, "c", latest.ID)
}

func TestMemorySecretRepo_DeleteByIDOnce(t *testing.T) {
	ctx := context.Background()
	secrets := NewMemoryDB().Secrets()
	require.NoError(t, secrets.Create(ctx, newSecret("a", "u1", model.PurposePasswordResetOTP, 100)))

	require.NoError(t, secrets.DeleteByID(ctx, "a"))
	require.ErrorIs(t, secrets.DeleteByID(ctx, "a"), appErr.ErrNotFound)
}

func TestMemorySecretRepo_DeleteByOwnerAndExpired(t *testing.T) {
	ctx := context.Background()
	secrets := NewMemoryDB().Secrets()
	require.NoError(t, secrets.Create(ctx, newSecret("a", "u1", model.PurposePasswordResetOTP, 100)))
	require.NoError(t, secrets.Create(ctx, newSecret("b", "u1", model.PurposePasswordResetToken, 100)))
	require.NoError(t, secrets.Create(ctx, newSecret("c", "u2", model.PurposePasswordResetOTP, 5000)))

	n, err := secrets.DeleteByOwner(ctx, "u1", model.PurposePasswordResetOTP)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = secrets.DeleteExpiredBefore(ctx, 1000)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	require.Equal(t, 1, secrets.countByOwner("u2", model.PurposePasswordResetOTP))
}

func TestMemoryDB_InTxRollsBack(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	secrets := db.Secrets()
	require.NoError(t, secrets.Create(ctx, newSecret("a", "u1", model.PurposePasswordResetOTP, 100)))

	boom := errors.New("boom")
	err := db.InTx(ctx, func(ctx context.Context) error {
		require.NoError(t, secrets.DeleteByID(ctx, "a"))
		require.NoError(t, secrets.Create(ctx, newSecret("b", "u1", model.PurposePasswordResetToken, 100)))
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.Equal(t, 1, secrets.countByOwner("u1", model.PurposePasswordResetOTP))
	require.Equal(t, 0, secrets.countByOwner("u1", model.PurposePasswordResetToken))
}

func TestMemoryDB_InTxNestedJoinsOuter(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	secrets := db.Secrets()

	err := db.InTx(ctx, func(ctx context.Context) error {
		require.NoError(t, secrets.LockOwner(ctx, "u1", model.PurposePasswordResetOTP))
		return db.InTx(ctx, func(ctx context.Context) error {
			return secrets.Create(ctx, newSecret("a", "u1", model.PurposePasswordResetOTP, 100))
		})
	})
	require.NoError(t, err)

	require.Equal(t, 1, secrets.countByOwner("u1", model.PurposePasswordResetOTP))
	require.Error(t, secrets.LockOwner(ctx, "u1", model.PurposePasswordResetOTP))
}

func TestMemoryUserRepo(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryDB().Users()
	user := &model.User{ID: "u1", Email: "user@example.com", PasswordHash: "old"}
	require.NoError(t, users.Create(ctx, user))
	require.ErrorIs(t, users.Create(ctx, &model.User{ID: "u2", Email: "user@example.com"}), appErr.ErrConflict)

	require.NoError(t, users.UpdatePasswordByEmail(ctx, "user@example.com", "new", 10))
	got, err := users.GetByEmail(ctx, "user@example.com")
	require.NoError(t, err)
	require.Equal(t, "new", got.PasswordHash)
	require.Equal(t, int64(10), got.Mtime)

	_, err = users.GetByID(ctx, "missing")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	require.ErrorIs(t, users.UpdatePasswordByEmail(ctx, "nobody@example.com", "x", 1), appErr.ErrNotFound)
}
