package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Event is one notifiable occurrence, fanned out to interested recipients.
type Event struct {
	ProjectID   snowflake.ID
	ProjectName string
	Type        NotificationType
	Subject     string
	Body        string
	Metadata    map[string]any
}

// Dispatcher fans events out to recipients. Dispatch is best-effort and
// asynchronous: it never blocks or fails the transition that produced the
// event.
type Dispatcher interface {
	Dispatch(event Event)
	SetPreference(ctx context.Context, pref Preference) error
	ListDeliveries(ctx context.Context, projectID snowflake.ID, limit int) ([]Delivery, error)
}

var (
	ErrInvalidUser    = errors.New("invalid_user")
	ErrInvalidType    = errors.New("invalid_notification_type")
	ErrInvalidChannel = errors.New("invalid_channel")
)
