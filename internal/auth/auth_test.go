package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

const secret = "test-secret"

func makeAppWithAdminGroup(secret string) *fiber.App {
	app := fiber.New()
	admin := app.Group("/api/admin", Middleware(secret), RequireOperator)
	admin.Get("/whoami", func(c *fiber.Ctx) error {
		sub, _ := SubjectFromCtx(c)
		return c.SendString(sub)
	})
	return app
}

func get(t *testing.T, app *fiber.App, token string) int {
	t.Helper()
	req := httptest.NewRequest("GET", "/api/admin/whoami", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return res.StatusCode
}

func TestAdminGroup(t *testing.T) {
	app := makeAppWithAdminGroup(secret)
	now := time.Now()

	valid, err := IssueToken(secret, "ops@example.com", time.Hour, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if code := get(t, app, valid); code != fiber.StatusOK {
		t.Fatalf("valid token: expected 200, got %d", code)
	}

	if code := get(t, app, ""); code != fiber.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", code)
	}

	expired, _ := IssueToken(secret, "ops@example.com", -time.Minute, now)
	if code := get(t, app, expired); code != fiber.StatusUnauthorized {
		t.Fatalf("expired token: expected 401, got %d", code)
	}

	forged, _ := IssueToken("other-secret", "ops@example.com", time.Hour, now)
	if code := get(t, app, forged); code != fiber.StatusUnauthorized {
		t.Fatalf("wrong key: expected 401, got %d", code)
	}

	shopper, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "someone", "exp": now.Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	if code := get(t, app, shopper); code != fiber.StatusForbidden {
		t.Fatalf("token without role: expected 403, got %d", code)
	}
}

func TestAdminGroupClosedWithoutSecret(t *testing.T) {
	app := makeAppWithAdminGroup("")
	token, _ := IssueToken(secret, "ops", time.Hour, time.Now())
	if code := get(t, app, token); code != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
	if _, err := IssueToken("", "ops", time.Hour, time.Now()); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
}
