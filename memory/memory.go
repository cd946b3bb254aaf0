// Package memory implements the Memory Subsystem of spec §4.9: trigger ->
// summarize session -> embed -> store in a vector/keyword index -> recall
// via a search contract shared by the built-in memory tools.
package memory

import (
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	decayGracePeriod = 7 * 24 * time.Hour // no decay for 7 days after last use
	decayRate        = 0.01               // per week after grace period
	decayFloor       = 0.1                // never below 0.1
	reinforceStep    = 0.05
)

// ApplyDecay reduces confidence based on idle time since lastUsedAt: no
// decay inside the grace period, then a fixed weekly rate down to a floor.
func ApplyDecay(confidence float64, lastUsedAt, now time.Time) float64 {
	idle := now.Sub(lastUsedAt)
	if idle <= decayGracePeriod {
		return confidence
	}
	weeksIdle := (idle - decayGracePeriod).Hours() / (7 * 24)
	decayed := confidence - decayRate*weeksIdle
	return math.Max(decayed, decayFloor)
}

// Reinforce bumps confidence after a successful retrieval, applying decay
// first so memories that were stale right before being recalled don't jump
// straight back to full trust.
func Reinforce(confidence float64, lastUsedAt, now time.Time) float64 {
	decayed := ApplyDecay(confidence, lastUsedAt, now)
	return math.Min(decayed+reinforceStep, 1.0)
}

// Category discriminates the shape of a MemoryRecord's content, mirroring
// the teacher's MemoryType.
type Category string

const (
	CategoryPreference Category = "preference"
	CategoryFact       Category = "fact"
	CategoryProcedure  Category = "procedure"
	CategoryContext    Category = "context"
)

// MemoryRecord is the persisted unit spec §4.9's StorageProvider stores and
// searches: a summarized, embeddable slice of a session scoped to one app
// and user.
type MemoryRecord struct {
	ID         string
	AppName    string
	UserID     string
	SessionID  string
	Content    string
	KeyFacts   []string
	Category   Category
	Embedding  []float32
	CreatedAt  time.Time
	UpdatedAt  time.Time
	LastUsedAt time.Time
	Confidence float64
}

// newRecordID mints a memory record id, matching the teacher's mem_ prefix
// convention.
func newRecordID() string {
	return "mem_" + uuid.NewString()[:8]
}
