package service

import (
	"github.com/savefuksd/forgeci/internal/store"
)

// TriggerMatches reports whether a webhook event should start a run for the
// pipeline. Non-matching events are acknowledged without creating a run.
func TriggerMatches(p *store.Pipeline, event store.RunEvent, branch string) bool {
	if branch != p.TriggerBranch {
		return false
	}
	switch event {
	case store.EventPush:
		return p.OnPush
	case store.EventPullRequest:
		return p.OnPullRequest
	default:
		return false
	}
}
