package amqp

import (
	"encoding/json"
	"time"
)

// MonthCreatedMessage announces a freshly created month. Consumers fetch
// whatever else they need from the database; the payload stays small.
type MonthCreatedMessage struct {
	UserID    string    `json:"user_id"`
	MonthID   int64     `json:"month_id"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMonthCreatedMessage creates a month-created message
func NewMonthCreatedMessage(userID string, monthID int64, year, month int) *MonthCreatedMessage {
	return &MonthCreatedMessage{
		UserID:    userID,
		MonthID:   monthID,
		Year:      year,
		Month:     month,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *MonthCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func MonthCreatedMessageFromJSON(data []byte) (*MonthCreatedMessage, error) {
	var msg MonthCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
