package amqp

import (
	"encoding/json"
	"time"

	"superstore/internal/analytics"
)

// ViewComputedMessage announces that a dashboard view was computed from the
// dataset (cache misses only).
type ViewComputedMessage struct {
	Filters        analytics.Filters `json:"filters"`
	FilterKey      string            `json:"filter_key"`
	MatchedRows    int               `json:"matched_rows"`
	DurationMicros int64             `json:"duration_us"`
	Timestamp      time.Time         `json:"timestamp"`
}

// NewViewComputedMessage builds a message stamped with the current time.
func NewViewComputedMessage(f analytics.Filters, matched int, took time.Duration) *ViewComputedMessage {
	n := f.Normalize()
	return &ViewComputedMessage{
		Filters:        n,
		FilterKey:      n.String(),
		MatchedRows:    matched,
		DurationMicros: took.Microseconds(),
		Timestamp:      time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *ViewComputedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ViewComputedMessageFromJSON decodes a message body.
func ViewComputedMessageFromJSON(data []byte) (*ViewComputedMessage, error) {
	var msg ViewComputedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
