package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyDecayWithinGracePeriod(t *testing.T) {
	now := time.Now()
	lastUsed := now.Add(-3 * 24 * time.Hour)
	got := ApplyDecay(0.9, lastUsed, now)
	assert.Equal(t, 0.9, got, "no decay inside the 7-day grace period")
}

func TestApplyDecayAfterGracePeriod(t *testing.T) {
	now := time.Now()
	lastUsed := now.Add(-(decayGracePeriod + 14*24*time.Hour))
	got := ApplyDecay(0.9, lastUsed, now)
	assert.InDelta(t, 0.88, got, 0.001, "two weeks past grace: two decay steps of 0.01")
}

func TestApplyDecayFloor(t *testing.T) {
	now := time.Now()
	lastUsed := now.Add(-365 * 24 * time.Hour)
	got := ApplyDecay(0.15, lastUsed, now)
	assert.Equal(t, decayFloor, got)
}

func TestReinforceCapsAtOne(t *testing.T) {
	now := time.Now()
	got := Reinforce(0.98, now, now)
	assert.Equal(t, 1.0, got)
}

func TestReinforceAppliesDecayThenBump(t *testing.T) {
	now := time.Now()
	lastUsed := now.Add(-(decayGracePeriod + 7*24*time.Hour))
	got := Reinforce(0.9, lastUsed, now)
	assert.InDelta(t, 0.94, got, 0.001)
}
