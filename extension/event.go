package extension

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrBusClosed is returned when publishing to a closed EventBus.
	ErrBusClosed = errors.New("event bus is closed")

	// ErrPublishTimeout is returned when the publish buffer is full and context expires.
	ErrPublishTimeout = errors.New("event publish timeout: buffer full")
)

// Well-known event names published by platform adapters.
const (
	EventMessage = "message"
	EventReady   = "ready"
	EventError   = "error"
	EventWarn    = "warn"
	EventDebug   = "debug"

	// EventTenantJoin fires when the bot is added to a tenant after startup.
	EventTenantJoin = "tenantJoin"

	// EventReactionAdd fires when someone reacts to a message.
	EventReactionAdd = "reactionAdd"
)

// Reaction is the payload of EventReactionAdd.
type Reaction struct {
	ChannelID string
	MessageID string
	UserID    string
	Emoji     string // unicode emoji, or name:id for custom emoji
	BySelf    bool   // the bot added the reaction
	OnOwn     bool   // the message was written by the bot
}

// Ready is the payload of EventReady.
type Ready struct {
	User      string   // display tag of the bot account
	AvatarURL string   // may be empty
	Tenants   []string // tenants the bot belongs to at login
}

// Event represents a platform or host event.
type Event struct {
	Name      string    // e.g. "message"
	TenantID  string    // guild the event belongs to, empty for global events
	Data      any       // payload
	Source    string    // originating adapter or module
	Timestamp time.Time // when the event was created
}

// EventHandler is the typed handler for events.
type EventHandler func(ctx context.Context, event Event) error

// Subscription represents an active event subscription.
type Subscription interface {
	Unsubscribe()
}

// EventSource is the subscribe side of the platform event stream.
type EventSource interface {
	Subscribe(topic string, handler EventHandler) Subscription
}

// EventBus is the in-process event mechanism between adapters and modules.
type EventBus interface {
	EventSource

	// Publish sends an event. Blocks if buffer is full until ctx expires.
	Publish(ctx context.Context, event Event) error

	// Close drains pending events and waits for in-flight handlers to complete.
	Close() error
}

// EventBinding ties a module-provided handler to a named event.
type EventBinding struct {
	ModuleID string
	Event    string
	Handler  EventHandler
}
