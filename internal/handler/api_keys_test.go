package handler

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/savefuksd/forgeci/internal/store"
	"github.com/savefuksd/forgeci/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestAPIKeyHandler_PostAPIKey(t *testing.T) {
	t.Run("success - api key is created", func(t *testing.T) {
		// arrange
		ak := generateTestAPIKey()
		mockService := new(testutil.MockAPIKeyService)
		mockService.On("CreateAPIKey", mock.Anything, ak.Description).Return(ak, nil)

		e := echo.New()
		c, rec := newJSONContext(e, http.MethodPost, "/api/api-keys", map[string]any{
			"description": ak.Description,
		})
		h := NewAPIKeyHandler(mockService)

		// act
		err := h.PostAPIKey(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp APIKeyResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, ak.Value, resp.Value)
	})
}

func TestAPIKeyHandler_GetAPIKeys(t *testing.T) {
	t.Run("success - api keys are listed", func(t *testing.T) {
		// arrange
		ak := generateTestAPIKey()
		mockService := new(testutil.MockAPIKeyService)
		mockService.On("ListAPIKeys", mock.Anything).Return([]*store.APIKey{ak}, nil)

		e := echo.New()
		c, rec := newJSONContext(e, http.MethodGet, "/api/api-keys", nil)
		h := NewAPIKeyHandler(mockService)

		// act
		err := h.GetAPIKeys(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		var resp []APIKeyResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp, 1)
		assert.Equal(t, ak.ID, resp[0].ID)
	})
}

func TestAPIKeyHandler_DeleteAPIKey(t *testing.T) {
	t.Run("success - api key is deleted", func(t *testing.T) {
		// arrange
		ak := generateTestAPIKey()
		mockService := new(testutil.MockAPIKeyService)
		mockService.On("DeleteAPIKey", mock.Anything, ak.ID).Return(nil)

		e := echo.New()
		c, rec := newJSONContext(
			e, http.MethodDelete, fmt.Sprintf("/api/api-keys/%d", ak.ID), nil,
		)
		c.SetParamNames("id")
		c.SetParamValues(fmt.Sprint(ak.ID))
		h := NewAPIKeyHandler(mockService)

		// act
		err := h.DeleteAPIKey(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func generateTestAPIKey() *store.APIKey {
	return &store.APIKey{
		ID:          rand.Int63(),
		Value:       uuid.NewString(),
		Description: "forge webhook",
		CreatedOn:   time.Now().UTC(),
	}
}
