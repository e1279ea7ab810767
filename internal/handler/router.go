package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Auth     *AuthHandler
	Recovery *RecoveryHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	auth := api.Group("/auth")
	auth.POST("/register", deps.Auth.Register)
	auth.POST("/login", deps.Auth.Login)

	auth.POST("/forgot-password", deps.Recovery.ForgotPassword)
	auth.POST("/verify-otp", deps.Recovery.VerifyOTP)
	auth.POST("/reset-password", deps.Recovery.ResetPassword)
}
