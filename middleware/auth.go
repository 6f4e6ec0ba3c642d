package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tiltlabs/tilt-backend/models"
	"github.com/tiltlabs/tilt-backend/utils"
)

const (
	// ContextUserID is the gin context key holding the authenticated user id.
	ContextUserID = "user_id"
	// ContextUserEmail is the gin context key holding the authenticated email.
	ContextUserEmail = "user_email"
	// ContextUserRole is the gin context key holding the authenticated role.
	ContextUserRole = "user_role"
)

// AuthRequired validates the Bearer token, rejects blacklisted tokens and
// stores the caller identity on the context.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "missing bearer token")
			ctx.Abort()
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		if utils.IsTokenBlacklisted(tokenString) {
			utils.Error(ctx, http.StatusUnauthorized, 40102, "token revoked")
			ctx.Abort()
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40103, "invalid or expired token")
			ctx.Abort()
			return
		}

		ctx.Set(ContextUserID, claims.UserID)
		ctx.Set(ContextUserEmail, claims.Email)
		ctx.Set(ContextUserRole, claims.Role)
		ctx.Set("token", tokenString)
		ctx.Next()
	}
}

// AdminRequired re-checks the role against the database so a demoted admin
// loses access before the token expires. Must run after AuthRequired. Every
// rejection carries the same body as a missing token so admin routes are not
// discoverable by probing.
func AdminRequired(db *gorm.DB) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := ctx.GetString(ContextUserID)
		if userID == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "missing bearer token")
			ctx.Abort()
			return
		}

		var profile models.Profile
		if err := db.First(&profile, "id = ?", userID).Error; err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "missing bearer token")
			ctx.Abort()
			return
		}
		if !profile.IsAdmin() {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "missing bearer token")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
