package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

func SetupAPIKeyRoutes(g *echo.Group, apiKeyService APIKeyServicer) {
	h := NewAPIKeyHandler(apiKeyService)
	g.POST("/api-keys", h.PostAPIKey)
	g.GET("/api-keys", h.GetAPIKeys)
	g.DELETE("/api-keys/:id", h.DeleteAPIKey)
}

type APIKeyHandler struct {
	apiKeyService APIKeyServicer
}

func NewAPIKeyHandler(apiKeyService APIKeyServicer) *APIKeyHandler {
	return &APIKeyHandler{apiKeyService: apiKeyService}
}

func (h *APIKeyHandler) PostAPIKey(c echo.Context) error {
	ap := new(APIKeyParams)
	if err := c.Bind(ap); err != nil {
		return newError(err, http.StatusBadRequest, "invalid api key data")
	}

	ak, err := h.apiKeyService.CreateAPIKey(c.Request().Context(), ap.Description)
	if err != nil {
		return newError(err, http.StatusInternalServerError, "unable to create api key")
	}

	return c.JSON(http.StatusCreated, toAPIKeyResponse(ak))
}

func (h *APIKeyHandler) GetAPIKeys(c echo.Context) error {
	aks, err := h.apiKeyService.ListAPIKeys(c.Request().Context())
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return newError(err, http.StatusInternalServerError, "unable to list api keys")
	}

	out := make([]APIKeyResponse, len(aks))
	for i, ak := range aks {
		out[i] = toAPIKeyResponse(ak)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *APIKeyHandler) DeleteAPIKey(c echo.Context) error {
	ap := new(APIKeyParams)
	if err := c.Bind(ap); err != nil {
		return newError(err, http.StatusBadRequest, "invalid api key ID")
	}

	if err := h.apiKeyService.DeleteAPIKey(c.Request().Context(), ap.ID); err != nil {
		return newError(err, http.StatusInternalServerError, "unable to delete api key")
	}

	return c.NoContent(http.StatusNoContent)
}
