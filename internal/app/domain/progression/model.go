// Package progression holds experience and level bookkeeping for player
// profiles.
package progression

import "time"

// Snapshot is a player's current progression state.
type Snapshot struct {
	UserID     string    `json:"user_id"`
	Experience int64     `json:"experience"`
	Level      int       `json:"level"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Experience required to go from level n to n+1 grows linearly.
const (
	baseLevelCost    = 100
	perLevelIncrease = 50
)

// LevelForExperience maps accumulated experience to a level, starting at 1.
func LevelForExperience(exp int64) int {
	level := 1
	cost := int64(baseLevelCost)
	for exp >= cost {
		exp -= cost
		level++
		cost += perLevelIncrease
	}
	return level
}
