package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/middleware"
)

// requestLogger scopes l to the caller identity when the request is authenticated.
func requestLogger(c *gin.Context, l *zap.Logger) *zap.Logger {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return l
	}
	return l.With(zap.String("user_id", claims.UserID), zap.String("role", string(claims.Role)))
}
