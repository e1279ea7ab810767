package service

import (
	"context"
	"errors"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tripauth/internal/alert"
	"github.com/xxxsen/tripauth/internal/mailer"
	"github.com/xxxsen/tripauth/internal/model"
	appErr "github.com/xxxsen/tripauth/internal/pkg/errors"
	"github.com/xxxsen/tripauth/internal/pkg/password"
	"github.com/xxxsen/tripauth/internal/pkg/secret"
)

const genericAckMessage = "If an account exists for this email, a verification code has been sent."

var errAlreadyConsumed = errors.New("secret already consumed")

// Ack is the only answer a code request ever gets.
type Ack struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type RecoveryOptions struct {
	OTPExpireMinutes        int
	ResetTokenExpireMinutes int
	HashCost                int
	PasswordPolicy          password.Policy
	ProductName             string
}

type RecoveryService struct {
	users   UserStore
	secrets *SecretStore
	tx      TxManager
	mail    mailer.Sender
	alerts  AlertSink
	opts    RecoveryOptions
}

func NewRecoveryService(users UserStore, secrets *SecretStore, tx TxManager, mail mailer.Sender, alerts AlertSink, opts RecoveryOptions) *RecoveryService {
	if alerts == nil {
		alerts = (*alert.Notifier)(nil)
	}
	return &RecoveryService{users: users, secrets: secrets, tx: tx, mail: mail, alerts: alerts, opts: opts}
}

// RequestCode issues a fresh OTP for a known email and mails it. The caller
// gets the same Ack whether or not the account exists or anything failed.
func (s *RecoveryService) RequestCode(ctx context.Context, email string) Ack {
	ack := Ack{OK: true, Message: genericAckMessage}
	email = normalizeEmail(email)
	if email == "" {
		return ack
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if appErr.IsNotFound(err) {
			logutil.GetLogger(ctx).Info("recovery code requested for unknown email")
			return ack
		}
		s.fail(ctx, "request_code", email, err)
		return ack
	}
	code, err := secret.GenerateOTP()
	if err != nil {
		s.fail(ctx, "request_code", email, err)
		return ack
	}
	expiresAt := secret.ExpiryAfter(s.secrets.Now(), s.opts.OTPExpireMinutes)
	if _, err := s.secrets.Issue(ctx, user.ID, email, model.PurposePasswordResetOTP, code, expiresAt); err != nil {
		s.fail(ctx, "request_code", email, err)
		return ack
	}
	msg, err := mailer.RenderOTP(email, s.opts.ProductName, code, s.opts.OTPExpireMinutes)
	if err != nil {
		s.fail(ctx, "send_otp", email, err)
		return ack
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		s.fail(ctx, "send_otp", email, err)
		return ack
	}
	logutil.GetLogger(ctx).Info("recovery code issued", zap.String("user_id", user.ID))
	return ack
}

// VerifyCode exchanges a valid OTP for a reset token. The OTP is consumed
// and the token issued in the same transaction.
func (s *RecoveryService) VerifyCode(ctx context.Context, email, code string) (string, error) {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return "", appErr.ErrInvalidCode
	}
	item, err := s.secrets.VerifyActive(ctx, email, model.PurposePasswordResetOTP, code)
	if err != nil {
		return "", s.verifyFailure(ctx, "verify_code", email, err, appErr.ErrInvalidCode, appErr.ErrCodeExpired)
	}
	token, err := secret.GenerateResetToken()
	if err != nil {
		s.fail(ctx, "verify_code", email, err)
		return "", appErr.ErrInternal
	}
	expiresAt := secret.ExpiryAfter(s.secrets.Now(), s.opts.ResetTokenExpireMinutes)
	next, err := s.secrets.Prepare(item.OwnerID, email, model.PurposePasswordResetToken, token, expiresAt)
	if err != nil {
		s.fail(ctx, "verify_code", email, err)
		return "", appErr.ErrInternal
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.consume(ctx, item.ID); err != nil {
			return err
		}
		return s.secrets.Store(ctx, next)
	})
	if err != nil {
		if errors.Is(err, errAlreadyConsumed) {
			return "", appErr.ErrInvalidCode
		}
		s.fail(ctx, "verify_code", email, err)
		return "", appErr.ErrInternal
	}
	logutil.GetLogger(ctx).Info("recovery code verified", zap.String("user_id", item.OwnerID))
	return token, nil
}

// CompleteReset sets a new password with a valid reset token. When the
// password update fails the token survives for a retry.
func (s *RecoveryService) CompleteReset(ctx context.Context, email, token, newPassword string) error {
	email = normalizeEmail(email)
	token = strings.TrimSpace(token)
	if email == "" || token == "" {
		return appErr.ErrInvalidToken
	}
	item, err := s.secrets.VerifyActive(ctx, email, model.PurposePasswordResetToken, token)
	if err != nil {
		return s.verifyFailure(ctx, "complete_reset", email, err, appErr.ErrInvalidToken, appErr.ErrTokenExpired)
	}
	if err := s.opts.PasswordPolicy.Check(newPassword); err != nil {
		return appErr.NewWeakPassword(err.Error())
	}
	hash, err := password.HashWithCost(newPassword, s.opts.HashCost)
	if err != nil {
		s.fail(ctx, "complete_reset", email, err)
		return appErr.ErrInternal
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.consume(ctx, item.ID); err != nil {
			return err
		}
		return s.users.UpdatePasswordByEmail(ctx, email, hash, s.secrets.Now().Unix())
	})
	if err != nil {
		if errors.Is(err, errAlreadyConsumed) {
			return appErr.ErrInvalidToken
		}
		s.fail(ctx, "complete_reset", email, err)
		return appErr.ErrInternal
	}
	logutil.GetLogger(ctx).Info("password reset completed", zap.String("user_id", item.OwnerID))
	return nil
}

func (s *RecoveryService) consume(ctx context.Context, id string) error {
	if err := s.secrets.DeleteByID(ctx, id); err != nil {
		if appErr.IsNotFound(err) {
			return errAlreadyConsumed
		}
		return err
	}
	return nil
}

// verifyFailure folds not found and mismatch into invalid, keeps expiry
// distinct and reports anything else as a server error.
func (s *RecoveryService) verifyFailure(ctx context.Context, action, email string, err, invalid, expired error) error {
	switch {
	case appErr.IsNotFound(err), errors.Is(err, appErr.ErrMismatch):
		return invalid
	case errors.Is(err, appErr.ErrExpired):
		return expired
	}
	s.fail(ctx, action, email, err)
	return appErr.ErrInternal
}

func (s *RecoveryService) fail(ctx context.Context, action, email string, err error) {
	logutil.GetLogger(ctx).Error("recovery step failed",
		zap.String("action", action),
		zap.String("email", email),
		zap.Error(err),
	)
	s.alerts.Notify(ctx, alert.Alert{Err: err, User: email, Action: action})
}
