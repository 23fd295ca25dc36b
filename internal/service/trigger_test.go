package service

import (
	"testing"

	"github.com/savefuksd/forgeci/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestTriggerMatches(t *testing.T) {
	p := &store.Pipeline{
		TriggerBranch: "master",
		OnPush:        true,
		OnPullRequest: false,
	}

	t.Run("success - push on the trigger branch matches", func(t *testing.T) {
		assert.True(t, TriggerMatches(p, store.EventPush, "master"))
	})

	t.Run("success - push on another branch does not match", func(t *testing.T) {
		assert.False(t, TriggerMatches(p, store.EventPush, "dev"))
	})

	t.Run("success - pull request does not match when disabled", func(t *testing.T) {
		assert.False(t, TriggerMatches(p, store.EventPullRequest, "master"))
	})

	t.Run("success - pull request matches when enabled", func(t *testing.T) {
		pr := &store.Pipeline{TriggerBranch: "master", OnPullRequest: true}
		assert.True(t, TriggerMatches(pr, store.EventPullRequest, "master"))
	})

	t.Run("success - schedule events never match the webhook filter", func(t *testing.T) {
		assert.False(t, TriggerMatches(p, store.EventSchedule, "master"))
	})
}
