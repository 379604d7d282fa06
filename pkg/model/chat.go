package model

import "github.com/google/uuid"

type MessageID string

// NewMessageID generates a new unique MessageID
func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one message of a conversation
type Turn struct {
	ID      MessageID `json:"id"`
	Role    Role      `json:"role"`
	Text    string    `json:"text"`
	IsError bool      `json:"is_error,omitempty"`
}
