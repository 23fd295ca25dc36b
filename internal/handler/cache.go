package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/savefuksd/forgeci/internal/service"
)

func SetupCacheRoutes(g *echo.Group, cacheService service.CacheServicer) {
	h := NewCacheHandler(cacheService)
	g.GET("/runners/:runner_id/cache", h.GetRunnerCacheEntries)
	g.DELETE("/cache/:cache_entry_id", h.DeleteCacheEntry)
}

type CacheHandler struct {
	cacheService service.CacheServicer
}

func NewCacheHandler(cacheService service.CacheServicer) *CacheHandler {
	return &CacheHandler{cacheService: cacheService}
}

func (h *CacheHandler) GetRunnerCacheEntries(c echo.Context) error {
	cp := new(CacheEntryParams)
	if err := c.Bind(cp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid runner ID")
	}

	entries, err := h.cacheService.ListEntries(c.Request().Context(), cp.RunnerID)
	if err != nil {
		return newError(err, http.StatusInternalServerError, "unable to list cache entries")
	}

	out := make([]CacheEntryResponse, len(entries))
	for i := range entries {
		out[i] = toCacheEntryResponse(&entries[i])
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CacheHandler) DeleteCacheEntry(c echo.Context) error {
	cp := new(CacheEntryParams)
	if err := c.Bind(cp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid cache entry ID")
	}

	if err := h.cacheService.DeleteEntry(c.Request().Context(), cp.CacheEntryID); err != nil {
		return newError(err, http.StatusInternalServerError, "unable to delete cache entry")
	}

	return c.NoContent(http.StatusNoContent)
}
