package preferences

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a preference id does not exist.
var ErrNotFound = errors.New("preference not found")

// DefaultTopK is the number of matches Retrieve returns when TopK is unset.
const DefaultTopK = 5

// Preference is a user setting the agents consult, such as preferred
// working hours or meeting lengths. Key is unique per user.
type Preference struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Key         string    `json:"preference_key"`
	Description string    `json:"description"`
	Value       string    `json:"preference_value"`
	Weight      float64   `json:"weight"`
	Embedding   []float32 `json:"-"`
	Similarity  float64   `json:"similarity,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Query selects preferences. Text ranks by similarity, Key matches exactly,
// neither returns everything.
type Query struct {
	Text string
	Key  string
	TopK int
}

// KeyCount pairs a preference key with its number of entries.
type KeyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Summary describes a user's stored preferences.
type Summary struct {
	Total              int            `json:"total_preferences"`
	AverageWeight      float64        `json:"average_weight"`
	WeightDistribution map[string]int `json:"weight_distribution"`
	TopKeys            []KeyCount     `json:"top_preference_keys"`
}
