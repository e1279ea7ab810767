package errcode

// Codes returned in the "error.code" field of failed API responses.
const (
	Unauthorized = "unauthorized"
	NotFound     = "not_found"
	Invalid      = "invalid"
	Conflict     = "conflict"
	Internal     = "internal"

	InvalidCode  = "invalid_code"
	CodeExpired  = "code_expired"
	InvalidToken = "invalid_token"
	TokenExpired = "token_expired"
	WeakPassword = "weak_password"
)
