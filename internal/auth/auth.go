// Package auth guards operator endpoints with HS256 bearer tokens.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/golang-jwt/jwt/v4"
)

// RoleOperator is the only role the admin routes accept.
const RoleOperator = "operator"

var ErrNoSecret = errors.New("jwt secret is not configured")

// IssueToken signs an operator token for subject, valid for ttl.
func IssueToken(secret, subject string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": RoleOperator,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Middleware rejects requests without a valid operator token. An empty
// secret rejects everything, so the admin group is closed until configured.
func Middleware(secret string) fiber.Handler {
	if secret == "" {
		return func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": ErrNoSecret.Error()})
		}
	}
	return jwtware.New(jwtware.Config{
		SigningKey: []byte(secret),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "invalid or expired token"})
		},
	})
}

// RequireOperator runs after Middleware and checks the role claim.
func RequireOperator(c *fiber.Ctx) error {
	if _, err := SubjectFromCtx(c); err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "operator role required"})
	}
	return c.Next()
}

// SubjectFromCtx returns the sub claim of the verified operator token in
// c.Locals("user").
func SubjectFromCtx(c *fiber.Ctx) (string, error) {
	tok, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return "", fiber.ErrUnauthorized
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", fiber.ErrUnauthorized
	}
	if role, _ := claims["role"].(string); role != RoleOperator {
		return "", fiber.ErrForbidden
	}
	sub, _ := claims["sub"].(string)
	if strings.TrimSpace(sub) == "" {
		return "", fiber.ErrUnauthorized
	}
	return sub, nil
}
