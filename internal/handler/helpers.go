package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tripauth/internal/middleware"
	"github.com/xxxsen/tripauth/internal/pkg/errcode"
	appErr "github.com/xxxsen/tripauth/internal/pkg/errors"
	"github.com/xxxsen/tripauth/internal/pkg/response"
)

func invalidRequest(c *gin.Context, message string) {
	response.Error(c, http.StatusBadRequest, errcode.Invalid, message)
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logger := logutil.GetLogger(c.Request.Context()).With(
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
	)
	var weak *appErr.WeakPasswordError
	switch {
	case errors.As(err, &weak):
		response.Error(c, http.StatusBadRequest, errcode.WeakPassword, weak.Reason)
	case errors.Is(err, appErr.ErrInvalidCode):
		response.Error(c, http.StatusBadRequest, errcode.InvalidCode, "invalid verification code")
	case errors.Is(err, appErr.ErrCodeExpired):
		response.Error(c, http.StatusBadRequest, errcode.CodeExpired, "verification code has expired, please request a new one")
	case errors.Is(err, appErr.ErrInvalidToken):
		response.Error(c, http.StatusBadRequest, errcode.InvalidToken, "invalid reset token")
	case errors.Is(err, appErr.ErrTokenExpired):
		response.Error(c, http.StatusBadRequest, errcode.TokenExpired, "reset token has expired, please start over")
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, http.StatusUnauthorized, errcode.Unauthorized, "invalid email or password")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, http.StatusNotFound, errcode.NotFound, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, http.StatusBadRequest, errcode.Invalid, "invalid request")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, http.StatusConflict, errcode.Conflict, "an account with this email already exists")
	default:
		logger.Error("request failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, errcode.Internal, "server error")
		return
	}
	logger.Info("request rejected", zap.Error(err))
}
