package middleware

import (
	"strings"

	"github.com/elearnhq/elearn-api/model"
	"github.com/elearnhq/elearn-api/utils/auth"
	"github.com/elearnhq/elearn-api/utils/response"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	jwtManager *auth.JWTManager
	db         *gorm.DB
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtManager *auth.JWTManager, db *gorm.DB) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		db:         db,
	}
}

// tokenFromRequest pulls the bearer token from the Authorization
// header, falling back to the token query parameter. Browsers cannot
// set headers on websocket upgrades, so WS routes pass the token in the
// query string.
func tokenFromRequest(c *fiber.Ctx) string {
	authHeader := c.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}

// authenticate validates the token and loads the user, or returns nil
func (m *AuthMiddleware) authenticate(c *fiber.Ctx) (*auth.Claims, *model.User) {
	tokenString := tokenFromRequest(c)
	if tokenString == "" {
		return nil, nil
	}

	claims, err := m.jwtManager.ValidateToken(tokenString)
	if err != nil || claims.TokenType != "access" {
		return nil, nil
	}

	var user model.User
	if err := m.db.First(&user, claims.UserID).Error; err != nil {
		return nil, nil
	}
	return claims, &user
}

// Required is middleware that requires a valid JWT token
func (m *AuthMiddleware) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, user := m.authenticate(c)
		if user == nil {
			return response.Unauthorized(c, "Missing or invalid authorization token")
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("user_email", claims.Email)
		c.Locals("user_role", claims.Role)
		c.Locals("claims", claims)
		c.Locals("user", user)

		return c.Next()
	}
}

// Optional is middleware that allows requests with or without a token
func (m *AuthMiddleware) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, user := m.authenticate(c)
		if user != nil {
			c.Locals("user_id", claims.UserID)
			c.Locals("user_email", claims.Email)
			c.Locals("user_role", claims.Role)
			c.Locals("claims", claims)
			c.Locals("user", user)
		}
		return c.Next()
	}
}

// RequireRole restricts the route to users with one of the given roles.
// Must run after Required.
func (m *AuthMiddleware) RequireRole(roles ...model.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return response.Unauthorized(c, "")
		}
		for _, role := range roles {
			if user.Role == role {
				return c.Next()
			}
		}
		return response.Forbidden(c, "role_not_allowed")
	}
}

// CurrentUser returns the authenticated user stored by Required or
// Optional, or nil
func CurrentUser(c *fiber.Ctx) *model.User {
	user, _ := c.Locals("user").(*model.User)
	return user
}

// CurrentUserID returns the authenticated user id, 0 when anonymous
func CurrentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("user_id").(uint)
	return id
}
