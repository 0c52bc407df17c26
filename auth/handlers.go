package auth

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/boekhouden_backend/config"
	"bitbucket.org/mmdatafocus/boekhouden_backend/models"
	"bitbucket.org/mmdatafocus/boekhouden_backend/utils"
	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func tokenLifespan() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// LoginHandler verifies the credentials, issues a JWT, and registers it as a
// redis-backed session so the session middleware can resolve it per request.
func LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		user, err := models.GetUserByUsername(c.Request.Context(), req.Username)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if user.IsActive != nil && !*user.IsActive {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if err := utils.ComparePassword(user.Password, req.Password); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		token, err := utils.JwtGenerate(user.ID, user.Username, string(user.Role))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err := config.SetRedisValue("Token:"+token, user.Username, tokenLifespan()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":      token,
			"username":   user.Username,
			"name":       user.Name,
			"role":       user.Role,
			"company_id": user.CompanyId,
		})
	}
}

// LogoutHandler drops the session behind the request token.
func LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := utils.GetTokenFromContext(c.Request.Context())
		if ok && token != "" {
			_ = config.RemoveRedisKey("Token:" + token)
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
