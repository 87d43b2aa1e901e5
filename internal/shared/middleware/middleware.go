package middleware

import (
	"net/http"
	"strings"

	"upsell/internal/shared/config"
	"upsell/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const (
	// AgentContextKey holds the selling agent resolved for the request
	AgentContextKey = "agent"
	// DefaultAgent is used for unauthenticated self-service sales
	DefaultAgent = "Online"
)

// AgentIdentity resolves the selling agent from an optional bearer token.
// Requests without a token sell as DefaultAgent; a malformed or invalid
// token is rejected.
func AgentIdentity(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Set(AgentContextKey, DefaultAgent)
			c.Next()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "authorization header format must be Bearer {token}", nil, nil)
			c.Abort()
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.JWT.Secret), nil
		})
		if err != nil || !token.Valid {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "invalid or expired token", nil, nil)
			c.Abort()
			return
		}

		agent := DefaultAgent
		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			if name, ok := claims[cfg.JWT.AgentClaim].(string); ok && strings.TrimSpace(name) != "" {
				agent = strings.TrimSpace(name)
			}
		}
		c.Set(AgentContextKey, agent)
		c.Next()
	}
}

// Agent returns the agent resolved by AgentIdentity
func Agent(c *gin.Context) string {
	if v, ok := c.Get(AgentContextKey); ok {
		if agent, ok := v.(string); ok && agent != "" {
			return agent
		}
	}
	return DefaultAgent
}
