package handler

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/savefuksd/forgeci/internal"
	"github.com/savefuksd/forgeci/internal/store"
	"github.com/savefuksd/forgeci/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestAPIKeyAuth(t *testing.T) {
	next := func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}

	t.Run("success - valid key passes through", func(t *testing.T) {
		// arrange
		ak := &store.APIKey{ID: 1, Value: "secret"}
		mockService := new(testutil.MockAPIKeyService)
		mockService.On("GetAPIKeyByValue", mock.Anything, ak.Value).Return(ak, nil)

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/pipelines", nil)
		req.Header.Set(internal.WebhookTriggerKeyHeader, ak.Value)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		// act
		err := APIKeyAuth(mockService)(next)(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("fail - missing header", func(t *testing.T) {
		// arrange
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/pipelines", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		// act
		err := APIKeyAuth(new(testutil.MockAPIKeyService))(next)(c)

		// assert
		assert.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusUnauthorized, he.Code)
	})

	t.Run("fail - unknown key", func(t *testing.T) {
		// arrange
		mockService := new(testutil.MockAPIKeyService)
		mockService.On("GetAPIKeyByValue", mock.Anything, "wrong").Return(nil, sql.ErrNoRows)

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/pipelines", nil)
		req.Header.Set(internal.WebhookTriggerKeyHeader, "wrong")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		// act
		err := APIKeyAuth(mockService)(next)(c)

		// assert
		assert.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusUnauthorized, he.Code)
	})
}
