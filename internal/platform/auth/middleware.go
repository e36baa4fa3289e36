package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/ehrapp/internal/platform/apperr"
)

// UserResolver looks up the stored role of an account. It returns an error
// wrapping apperr.ErrNotFound when the account no longer exists.
type UserResolver interface {
	ResolveRole(ctx context.Context, userID uuid.UUID) (Role, error)
}

// Authenticate verifies the bearer credential, confirms the account still
// exists and attaches its Identity to the request context. Browsers cannot set
// headers on WebSocket handshakes, so upgrade requests may pass the credential
// as the access_token query parameter instead.
func Authenticate(tokens *TokenIssuer, users UserResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr, err := bearerToken(c)
			if err != nil {
				return err
			}

			userID, err := tokens.Parse(tokenStr)
			if err != nil {
				return apperr.Wrap(apperr.ErrUnauthenticated, "invalid token")
			}

			ctx := c.Request().Context()
			role, err := users.ResolveRole(ctx, userID)
			if err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					return apperr.Wrap(apperr.ErrUnauthenticated, "user no longer exists")
				}
				return err
			}

			id := Identity{UserID: userID, Role: role}
			c.SetRequest(c.Request().WithContext(WithIdentity(ctx, id)))
			c.Set("user_id", userID.String())
			c.Set("user_role", string(role))
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		if strings.EqualFold(c.Request().Header.Get(echo.HeaderUpgrade), "websocket") {
			if tok := c.QueryParam("access_token"); tok != "" {
				return tok, nil
			}
		}
		return "", apperr.Wrap(apperr.ErrUnauthenticated, "missing authorization header")
	}

	scheme, tok, ok := strings.Cut(header, " ")
	tok = strings.TrimSpace(tok)
	if !ok || !strings.EqualFold(scheme, "bearer") || tok == "" {
		return "", apperr.Wrap(apperr.ErrUnauthenticated, "invalid authorization format")
	}
	return tok, nil
}
