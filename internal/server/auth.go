package server

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"

	"colorbet/internal/game"
)

var errUnauthorized = errors.New("unauthorized")

// TokenVerifier is the access-gateway boundary: it turns an opaque caller
// credential into a verified external user identity. Phone/OTP delivery and
// token issuance live outside this service.
type TokenVerifier interface {
	VerifiedUserID(ctx context.Context, token string) (uid, phoneNumber string, err error)
}

// EnvVerifier is the development gateway: AUTH_TOKENS holds
// "token:uid:phone" triples separated by commas. Production deployments
// inject a real verifier instead.
type EnvVerifier struct {
	identities map[string][2]string
}

func NewEnvVerifier() *EnvVerifier {
	v := &EnvVerifier{identities: make(map[string][2]string)}
	for _, entry := range strings.Split(os.Getenv("AUTH_TOKENS"), ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 3)
		if len(parts) < 2 {
			continue
		}
		phone := ""
		if len(parts) == 3 {
			phone = parts[2]
		}
		v.identities[parts[0]] = [2]string{parts[1], phone}
	}
	return v
}

func (v *EnvVerifier) VerifiedUserID(ctx context.Context, token string) (string, string, error) {
	identity, ok := v.identities[token]
	if !ok {
		return "", "", errUnauthorized
	}
	return identity[0], identity[1], nil
}

func bearerToken(c *fiber.Ctx) string {
	auth := c.Get("Authorization")
	if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return after
	}
	return ""
}

// requireUser verifies the bearer token and loads the ledger account into
// the request context.
func (s *FiberServer) requireUser(c *fiber.Ctx) error {
	token := bearerToken(c)
	if token == "" {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}

	uid, _, err := s.verifier.VerifiedUserID(c.Context(), token)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}

	user, err := s.store.UserByUID(c.Context(), uid)
	if errors.Is(err, game.ErrUserNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "User not found, login first"})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to load user"})
	}

	c.Locals("user", user)
	return c.Next()
}

func currentUser(c *fiber.Ctx) game.User {
	user, _ := c.Locals("user").(game.User)
	return user
}

// requireAdmin gates the administrative surface behind a separate token,
// loaded once at startup. An unset token disables the surface.
func (s *FiberServer) requireAdmin(c *fiber.Ctx) error {
	if s.adminToken == "" {
		return c.Status(403).JSON(fiber.Map{"error": "Forbidden"})
	}

	token := bearerToken(c)
	if token == "" {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}
	if token != s.adminToken {
		return c.Status(403).JSON(fiber.Map{"error": "Forbidden"})
	}
	return c.Next()
}
