package internal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_UnmarshalJSON(t *testing.T) {
	t.Run("success - unmarshal json works as expected", func(t *testing.T) {
		// arrange
		jsonInput := []byte(`{"queue_size": 4, "artifact_root": "out", "cache_retention_days": 14}`)
		var config Configuration

		// act
		err := json.Unmarshal(jsonInput, &config)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, int64(4), config.QueueSize)
		assert.Equal(t, "out", config.ArtifactRoot)
		assert.Equal(t, time.Duration(14*24*time.Hour), time.Duration(config.CacheRetentionDays))
	})
}

func TestConfig_MarshalJSON(t *testing.T) {
	t.Run("success - marshal json works as expected", func(t *testing.T) {
		// arrange
		config := Configuration{
			QueueSize:          5,
			ArtifactRoot:       "artifacts",
			CacheRetentionDays: NewDaysDuration(7),
		}

		// act
		b, err := json.Marshal(config)

		// assert
		assert.NoError(t, err)
		assert.Contains(t, string(b), `"queue_size":5`)
		assert.Contains(t, string(b), `"cache_retention_days":7`)
	})
}
