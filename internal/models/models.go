package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
)

// User represents a chat user as returned by the backend.
type User struct {
	ID       string `json:"id" validate:"required"`
	Username string `json:"username" validate:"required"`
}

// Profile holds optional personal details attached to a user.
type Profile struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Image     string `json:"image,omitempty"`
}

// UserProfile is the canonical user record kept by the user store.
// Profile is nil for users that never set one up.
type UserProfile struct {
	User    User     `json:"user"`
	Profile *Profile `json:"profile,omitempty"`
}

// UnmarshalJSON accepts both the record form
//
//	{"id": "u1", "username": "amy", "profile": {...}}
//
// and the tuple form [user, profile|null] used by older backends.
func (up *UserProfile) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var tuple []json.RawMessage
		if err := json.Unmarshal(data, &tuple); err != nil {
			return err
		}
		if len(tuple) == 0 || len(tuple) > 2 {
			return fmt.Errorf("user tuple must have 1 or 2 elements, got %d", len(tuple))
		}
		var user User
		if err := json.Unmarshal(tuple[0], &user); err != nil {
			return err
		}
		var profile *Profile
		if len(tuple) == 2 {
			if err := json.Unmarshal(tuple[1], &profile); err != nil {
				return err
			}
		}
		*up = UserProfile{User: user, Profile: profile}
		return nil
	}

	var record struct {
		User
		Profile *Profile `json:"profile"`
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return err
	}
	*up = UserProfile{User: record.User, Profile: record.Profile}
	return nil
}

func (up UserProfile) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		User
		Profile *Profile `json:"profile,omitempty"`
	}{up.User, up.Profile})
}

// Message represents a chat message.
type Message struct {
	ID        string    `json:"id" validate:"required"`
	ChannelID string    `json:"channelId" validate:"required"`
	SenderID  string    `json:"senderId" validate:"required"`
	Text      string    `json:"text"`
	Image     string    `json:"image,omitempty"`
	SentAt    time.Time `json:"sentAt" validate:"required"`
}

// Status is the derived online status of a user.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// EventType names the kinds of events the server pushes to the client.
type EventType string

const (
	EventTypeOnline  EventType = "online"
	EventTypeOffline EventType = "offline"
	EventTypeUser    EventType = "user"
	EventTypeProfile EventType = "profile"
	EventTypeMessage EventType = "message"
)

// Event is a server-pushed update, delivered by whatever transport the
// application uses.
type Event struct {
	Type    EventType `json:"type" validate:"required,oneof=online offline user profile message"`
	UserIDs []string  `json:"userIds,omitempty"`
	UserID  string    `json:"userId,omitempty"`
	User    *User     `json:"user,omitempty"`
	Profile *Profile  `json:"profile,omitempty"`
	Message *Message  `json:"message,omitempty"`
}

// SendMessageRequest is the body of POST /channels/{id}/messages.
type SendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// InviteRequest is the body of POST /channels/{id}/notifications.
type InviteRequest struct {
	UserID string `json:"userId"`
}
