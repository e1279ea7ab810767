package repo

import (
	"context"
	"fmt"
	"sync"

	"github.com/xxxsen/tripauth/internal/model"
	appErr "github.com/xxxsen/tripauth/internal/pkg/errors"
)

// MemoryDB is a process local backend for development and tests. A
// transaction holds the single lock for its whole duration and restores a
// snapshot when fn fails, so transactions are serializable.
type MemoryDB struct {
	mu      sync.Mutex
	seq     uint64
	users   map[string]model.User
	secrets map[string]memSecret
}

type memSecret struct {
	item model.VerificationSecret
	seq  uint64
}

type memTxKey struct{}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		users:   make(map[string]model.User),
		secrets: make(map[string]memSecret),
	}
}

func (m *MemoryDB) Users() *MemoryUserRepo {
	return &MemoryUserRepo{db: m}
}

func (m *MemoryDB) Secrets() *MemorySecretRepo {
	return &MemorySecretRepo{db: m}
}

func (m *MemoryDB) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if m.inTx(ctx) {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make(map[string]model.User, len(m.users))
	for k, v := range m.users {
		users[k] = v
	}
	secrets := make(map[string]memSecret, len(m.secrets))
	for k, v := range m.secrets {
		secrets[k] = v
	}
	seq := m.seq
	defer func() {
		if p := recover(); p != nil {
			m.users, m.secrets, m.seq = users, secrets, seq
			panic(p)
		}
		if err != nil {
			m.users, m.secrets, m.seq = users, secrets, seq
		}
	}()
	return fn(context.WithValue(ctx, memTxKey{}, m))
}

func (m *MemoryDB) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(memTxKey{}).(*MemoryDB)
	return ok && owner == m
}

func (m *MemoryDB) lock(ctx context.Context) func() {
	if m.inTx(ctx) {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

type MemoryUserRepo struct {
	db *MemoryDB
}

func (r *MemoryUserRepo) Create(ctx context.Context, user *model.User) error {
	defer r.db.lock(ctx)()
	for _, existing := range r.db.users {
		if existing.Email == user.Email {
			return appErr.ErrConflict
		}
	}
	if _, ok := r.db.users[user.ID]; ok {
		return appErr.ErrConflict
	}
	r.db.users[user.ID] = *user
	return nil
}

func (r *MemoryUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	defer r.db.lock(ctx)()
	for _, user := range r.db.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (r *MemoryUserRepo) GetByID(ctx context.Context, userID string) (*model.User, error) {
	defer r.db.lock(ctx)()
	user, ok := r.db.users[userID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &user, nil
}

func (r *MemoryUserRepo) UpdatePasswordByEmail(ctx context.Context, email, passwordHash string, mtime int64) error {
	defer r.db.lock(ctx)()
	for id, user := range r.db.users {
		if user.Email == email {
			user.PasswordHash = passwordHash
			user.Mtime = mtime
			r.db.users[id] = user
			return nil
		}
	}
	return appErr.ErrNotFound
}

type MemorySecretRepo struct {
	db *MemoryDB
}

func (r *MemorySecretRepo) Create(ctx context.Context, item *model.VerificationSecret) error {
	defer r.db.lock(ctx)()
	if _, ok := r.db.secrets[item.ID]; ok {
		return appErr.ErrConflict
	}
	r.db.seq++
	r.db.secrets[item.ID] = memSecret{item: *item, seq: r.db.seq}
	return nil
}

func (r *MemorySecretRepo) LatestByDestination(ctx context.Context, destination string, purpose model.SecretPurpose) (*model.VerificationSecret, error) {
	defer r.db.lock(ctx)()
	var latest *memSecret
	for _, s := range r.db.secrets {
		if s.item.Destination != destination || s.item.Purpose != purpose {
			continue
		}
		if latest == nil || s.item.CreatedAt > latest.item.CreatedAt ||
			(s.item.CreatedAt == latest.item.CreatedAt && s.seq > latest.seq) {
			cur := s
			latest = &cur
		}
	}
	if latest == nil {
		return nil, appErr.ErrNotFound
	}
	item := latest.item
	return &item, nil
}

func (r *MemorySecretRepo) DeleteByID(ctx context.Context, id string) error {
	defer r.db.lock(ctx)()
	if _, ok := r.db.secrets[id]; !ok {
		return appErr.ErrNotFound
	}
	delete(r.db.secrets, id)
	return nil
}

func (r *MemorySecretRepo) DeleteByOwner(ctx context.Context, ownerID string, purpose model.SecretPurpose) (int64, error) {
	defer r.db.lock(ctx)()
	var n int64
	for id, s := range r.db.secrets {
		if s.item.OwnerID == ownerID && s.item.Purpose == purpose {
			delete(r.db.secrets, id)
			n++
		}
	}
	return n, nil
}

func (r *MemorySecretRepo) DeleteExpiredBefore(ctx context.Context, cutoff int64) (int64, error) {
	defer r.db.lock(ctx)()
	var n int64
	for id, s := range r.db.secrets {
		if s.item.ExpiresAt < cutoff {
			delete(r.db.secrets, id)
			n++
		}
	}
	return n, nil
}

// LockOwner is satisfied by the transaction lock itself.
func (r *MemorySecretRepo) LockOwner(ctx context.Context, ownerID string, purpose model.SecretPurpose) error {
	if !r.db.inTx(ctx) {
		return fmt.Errorf("lock owner %s: no transaction bound", ownerID)
	}
	return nil
}
