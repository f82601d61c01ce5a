// Package notifications fans domain events out to websocket clients, locally
// or across instances through Redis pub/sub.
package notifications

import (
	"encoding/json"
	"time"
)

// Event types pushed to clients.
const (
	EventConnected      = "connected"
	EventNewTweet       = "new-tweet"
	EventTweetLiked     = "tweet-liked"
	EventTweetCommented = "tweet-commented"
	EventUserFollowed   = "user-followed"
	EventUserUnfollowed = "user-unfollowed"
)

// Event is the envelope written to every websocket.
type Event struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps an event with the current UTC time.
func NewEvent(eventType string, payload any) Event {
	return Event{Type: eventType, Payload: payload, Timestamp: time.Now().UTC()}
}

// Encode serializes the envelope.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
