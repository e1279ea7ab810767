package service

import (
	"context"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tripauth/internal/model"
	appErr "github.com/xxxsen/tripauth/internal/pkg/errors"
	"github.com/xxxsen/tripauth/internal/pkg/password"
)

type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

type AuthService struct {
	users    UserRepo
	policy   password.Policy
	hashCost int
	now      func() time.Time
}

func NewAuthService(users UserRepo, policy password.Policy, hashCost int) *AuthService {
	return &AuthService{users: users, policy: policy, hashCost: hashCost, now: time.Now}
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, appErr.ErrInvalid
	}
	if err := s.policy.Check(input.Password); err != nil {
		return nil, appErr.NewWeakPassword(err.Error())
	}
	hash, err := password.HashWithCost(input.Password, s.hashCost)
	if err != nil {
		return nil, err
	}
	now := s.now().Unix()
	user := &model.User{
		ID:           newID(),
		Email:        email,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		PasswordHash: hash,
		Ctime:        now,
		Mtime:        now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

// Login reports appErr.ErrUnauthorized for an unknown email and a wrong
// password alike.
func (s *AuthService) Login(ctx context.Context, email, plainPassword string) (*model.User, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.ErrUnauthorized
		}
		return nil, err
	}
	if err := password.Compare(user.PasswordHash, plainPassword); err != nil {
		return nil, appErr.ErrUnauthorized
	}
	return user, nil
}
