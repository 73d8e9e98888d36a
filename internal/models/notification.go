package models

import (
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	ID        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	Message   string     `json:"message,omitempty"`
	Recipient *uuid.UUID `json:"recipient,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (Notification) TableName() string { return "notifications" }

func (Notification) HiddenFields() []string { return nil }

func (Notification) ReadonlyFields() []string { return nil }

func (Notification) References() map[string]Resource {
	return map[string]Resource{"recipient": User{}}
}
