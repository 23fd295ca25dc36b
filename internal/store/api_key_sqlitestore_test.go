package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func generateTestAPIKey(t *testing.T) *APIKey {
	t.Helper()
	key, err := apiKeyStore.CreateAPIKey(context.Background(), uuid.NewString(), "test key")
	assert.NoError(t, err)
	return key
}

func TestAPIKeySQLiteStore_CreateAPIKey(t *testing.T) {
	t.Run("success - key created", func(t *testing.T) {
		// arrange
		value := uuid.NewString()

		// act
		key, err := apiKeyStore.CreateAPIKey(context.Background(), value, "webhook key")

		// assert
		assert.NoError(t, err)
		assert.NotEqual(t, 0, key.ID)
		assert.Equal(t, value, key.Value)
		assert.Equal(t, "webhook key", key.Description)
		assert.False(t, key.CreatedOn.IsZero())
	})

	t.Run("failure - duplicate value", func(t *testing.T) {
		// arrange
		existing := generateTestAPIKey(t)

		// act
		_, err := apiKeyStore.CreateAPIKey(context.Background(), existing.Value, "dup")

		// assert
		assert.Error(t, err)
	})
}

func TestAPIKeySQLiteStore_ReadAPIKeyByValue(t *testing.T) {
	t.Run("success - key found", func(t *testing.T) {
		// arrange
		expected := generateTestAPIKey(t)

		// act
		key, err := apiKeyStore.ReadAPIKeyByValue(context.Background(), expected.Value)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, expected.ID, key.ID)
		assert.Equal(t, expected.Description, key.Description)
	})

	t.Run("failure - key not found", func(t *testing.T) {
		// act
		key, err := apiKeyStore.ReadAPIKeyByValue(context.Background(), uuid.NewString())

		// assert
		assert.True(t, errors.Is(err, sql.ErrNoRows))
		assert.Nil(t, key)
	})
}

func TestAPIKeySQLiteStore_ReadAPIKeyByID(t *testing.T) {
	t.Run("success - key found", func(t *testing.T) {
		// arrange
		expected := generateTestAPIKey(t)

		// act
		key, err := apiKeyStore.ReadAPIKeyByID(context.Background(), expected.ID)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, expected.Value, key.Value)
	})
}

func TestAPIKeySQLiteStore_ListAPIKeys(t *testing.T) {
	t.Run("success - created key listed", func(t *testing.T) {
		// arrange
		key := generateTestAPIKey(t)

		// act
		keys, err := apiKeyStore.ListAPIKeys(context.Background())

		// assert
		assert.NoError(t, err)
		values := make([]string, 0, len(keys))
		for _, k := range keys {
			values = append(values, k.Value)
		}
		assert.Contains(t, values, key.Value)
	})
}

func TestAPIKeySQLiteStore_DeleteAPIKey(t *testing.T) {
	t.Run("success - key deleted", func(t *testing.T) {
		// arrange
		key := generateTestAPIKey(t)

		// act
		deleteErr := apiKeyStore.DeleteAPIKey(context.Background(), key.ID)
		_, readErr := apiKeyStore.ReadAPIKeyByValue(context.Background(), key.Value)

		// assert
		assert.NoError(t, deleteErr)
		assert.True(t, errors.Is(readErr, sql.ErrNoRows))
	})
}
