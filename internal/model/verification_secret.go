package model

type SecretPurpose string

const (
	PurposePasswordResetOTP   SecretPurpose = "password_reset_otp"
	PurposePasswordResetToken SecretPurpose = "password_reset_token"
)

func (p SecretPurpose) Valid() bool {
	return p == PurposePasswordResetOTP || p == PurposePasswordResetToken
}

// VerificationSecret is one issued code or token. Only the hash of the
// plaintext is ever stored. Times are unix seconds.
type VerificationSecret struct {
	ID          string        `json:"id"`
	OwnerID     string        `json:"owner_id"`
	Purpose     SecretPurpose `json:"purpose"`
	SecretHash  string        `json:"-"`
	Destination string        `json:"destination"`
	ExpiresAt   int64         `json:"expires_at"`
	CreatedAt   int64         `json:"created_at"`
}
