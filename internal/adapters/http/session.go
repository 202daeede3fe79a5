package http

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/murmur/internal/core/domain"
	"github.com/samirrijal/murmur/internal/pkg/logging"
)

const (
	HeaderUser     = "X-Murmur-User"
	HeaderNickname = "X-Murmur-Nickname"

	maxUserIDLen = 128
)

type sessionKey struct{}

// WithSession stores the caller's session in ctx.
func WithSession(ctx context.Context, s domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromCtx returns the caller's session, if the request carried one.
func SessionFromCtx(ctx context.Context) (domain.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(domain.Session)
	return s, ok
}

// SessionMiddleware reads the session headers into the user context.
// Requests without a user header pass through anonymously; handlers that
// need a user reject them.
func SessionMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get(HeaderUser))
		if userID == "" {
			return c.Next()
		}
		if len(userID) > maxUserIDLen {
			return errBadRequest(c, "user id too long")
		}

		s := domain.Session{
			UserID:   userID,
			Nickname: strings.TrimSpace(c.Get(HeaderNickname)),
		}
		ctx := WithSession(c.UserContext(), s)
		ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With(slog.String("user_id", userID)))
		c.SetUserContext(ctx)
		c.Locals("user_id", userID)

		return c.Next()
	}
}
