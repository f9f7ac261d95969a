package domain

import "time"

// Action is the direction of a trading signal.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Signal is one per-symbol trading decision, time-aligned with the symbol's
// price series. Strength and Confidence are both in [0, 1].
type Signal struct {
	Symbol     string         `json:"symbol"`
	Action     Action         `json:"action"`
	Strength   float64        `json:"strength"`
	Confidence float64        `json:"confidence"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Magnitude is the signed position size implied by the signal: positive for
// buy, zero for hold/sell. The simulator trades only when this changes
// between consecutive steps.
func (s Signal) Magnitude() float64 {
	if s.Action == ActionBuy {
		return s.Strength
	}
	return 0
}
