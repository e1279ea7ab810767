package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/tripauth/internal/model"
	"github.com/xxxsen/tripauth/internal/pkg/dbutil"
	appErr "github.com/xxxsen/tripauth/internal/pkg/errors"
)

const secretTable = "verification_secrets"

var secretColumns = []string{"id", "owner_id", "purpose", "secret_hash", "destination", "expires_at", "created_at"}

type VerificationSecretRepo struct {
	db *sql.DB
}

func NewVerificationSecretRepo(db *sql.DB) *VerificationSecretRepo {
	return &VerificationSecretRepo{db: db}
}

func (r *VerificationSecretRepo) Create(ctx context.Context, item *model.VerificationSecret) error {
	data := map[string]interface{}{
		"id":          item.ID,
		"owner_id":    item.OwnerID,
		"purpose":     string(item.Purpose),
		"secret_hash": item.SecretHash,
		"destination": item.Destination,
		"expires_at":  item.ExpiresAt,
		"created_at":  item.CreatedAt,
	}
	sqlStr, args, err := builder.BuildInsert(secretTable, []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := dbutil.Conn(ctx, r.db).ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *VerificationSecretRepo) LatestByDestination(ctx context.Context, destination string, purpose model.SecretPurpose) (*model.VerificationSecret, error) {
	where := map[string]interface{}{
		"destination": destination,
		"purpose":     string(purpose),
		"_orderby":    "created_at desc",
		"_limit":      []uint{0, 1},
	}
	sqlStr, args, err := builder.BuildSelect(secretTable, where, secretColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := dbutil.Conn(ctx, r.db).QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, appErr.ErrNotFound
	}
	var item model.VerificationSecret
	var purposeStr string
	if err := rows.Scan(&item.ID, &item.OwnerID, &purposeStr, &item.SecretHash, &item.Destination, &item.ExpiresAt, &item.CreatedAt); err != nil {
		return nil, err
	}
	item.Purpose = model.SecretPurpose(purposeStr)
	return &item, nil
}

// DeleteByID reports ErrNotFound when no row was removed, which is how a
// concurrent consumer of the same secret loses the race.
func (r *VerificationSecretRepo) DeleteByID(ctx context.Context, id string) error {
	sqlStr, args, err := builder.BuildDelete(secretTable, map[string]interface{}{"id": id})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := dbutil.Conn(ctx, r.db).ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *VerificationSecretRepo) DeleteByOwner(ctx context.Context, ownerID string, purpose model.SecretPurpose) (int64, error) {
	where := map[string]interface{}{"owner_id": ownerID, "purpose": string(purpose)}
	sqlStr, args, err := builder.BuildDelete(secretTable, where)
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := dbutil.Conn(ctx, r.db).ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *VerificationSecretRepo) DeleteExpiredBefore(ctx context.Context, cutoff int64) (int64, error) {
	const query = `DELETE FROM verification_secrets WHERE expires_at < $1`
	res, err := dbutil.Conn(ctx, r.db).ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// LockOwner serializes issuance for one (owner, purpose) pair until the
// surrounding transaction ends. It must be called inside a transaction.
func (r *VerificationSecretRepo) LockOwner(ctx context.Context, ownerID string, purpose model.SecretPurpose) error {
	if !dbutil.InTx(ctx) {
		return fmt.Errorf("lock owner %s: no transaction bound", ownerID)
	}
	const query = `SELECT pg_advisory_xact_lock(hashtext($1))`
	_, err := dbutil.Conn(ctx, r.db).ExecContext(ctx, query, ownerID+"|"+string(purpose))
	return err
}
