package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/tripauth/internal/pkg/response"
	"github.com/xxxsen/tripauth/internal/service"
)

type RecoveryHandler struct {
	recovery *service.RecoveryService
}

func NewRecoveryHandler(recovery *service.RecoveryService) *RecoveryHandler {
	return &RecoveryHandler{recovery: recovery}
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type verifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required"`
}

type resetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	ResetToken  string `json:"reset_token" binding:"required"`
	NewPassword string `json:"new_password"`
}

// ForgotPassword answers identically for known and unknown emails.
func (h *RecoveryHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "a valid email is required")
		return
	}
	response.Success(c, h.recovery.RequestCode(c.Request.Context(), req.Email))
}

func (h *RecoveryHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "email and otp are required")
		return
	}
	token, err := h.recovery.VerifyCode(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"reset_token": token})
}

func (h *RecoveryHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "email and reset_token are required")
		return
	}
	if err := h.recovery.CompleteReset(c.Request.Context(), req.Email, req.ResetToken, req.NewPassword); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true, "message": "password has been reset"})
}
