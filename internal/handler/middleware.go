package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/savefuksd/forgeci/internal"
	"github.com/savefuksd/forgeci/internal/store"
)

type APIKeyServicer interface {
	CreateAPIKey(ctx context.Context, description string) (*store.APIKey, error)
	GetAPIKeyByValue(ctx context.Context, value string) (*store.APIKey, error)
	DeleteAPIKey(ctx context.Context, id int64) error
	ListAPIKeys(ctx context.Context) ([]*store.APIKey, error)
}

// APIKeyAuth rejects requests that do not carry a known API key in the
// trigger key header.
func APIKeyAuth(apiKeyService APIKeyServicer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			value := c.Request().Header.Get(internal.WebhookTriggerKeyHeader)
			if value == "" {
				return newError(nil, http.StatusUnauthorized, "missing api key")
			}
			if _, err := apiKeyService.GetAPIKeyByValue(
				c.Request().Context(), value,
			); err != nil {
				return newError(err, http.StatusUnauthorized, "invalid api key")
			}
			return next(c)
		}
	}
}
