package repo

import (
	"context"
	"database/sql"

	"github.com/xxxsen/tripauth/internal/pkg/dbutil"
)

// TxManager binds a postgres transaction to the context handed to fn.
// Every repo built on the same *sql.DB picks it up through dbutil.Conn.
type TxManager struct {
	db *sql.DB
}

func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

func (m *TxManager) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return dbutil.WithTx(ctx, m.db, fn)
}
