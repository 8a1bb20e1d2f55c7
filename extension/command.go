package extension

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/pflag"
)

// ErrNoReplier is returned by Invocation.Reply when no transport is attached.
var ErrNoReplier = errors.New("invocation has no reply transport")

// Message is the platform-neutral view of an inbound chat message.
type Message struct {
	ID        string
	TenantID  string // empty for direct messages
	ChannelID string
	AuthorID  string
	AuthorTag string
	Content   string
	Roles     []string // permission or role names held by the author in the tenant
}

// Direct reports whether the message was sent outside any tenant.
func (m *Message) Direct() bool {
	return m.TenantID == ""
}

// Replier sends text back to where a message came from.
type Replier interface {
	Reply(ctx context.Context, to *Message, text string) error
}

// Invocation is a single execution of a command.
type Invocation struct {
	ID      string
	Message *Message
	Command *Command
	Prefix  string
	Args    []string       // positional arguments left after flag parsing
	Flags   *pflag.FlagSet // parsed flags, never nil when Run is called
	Replier Replier
}

// Reply answers the message that triggered the invocation.
func (inv *Invocation) Reply(ctx context.Context, text string) error {
	if inv.Replier == nil {
		return ErrNoReplier
	}
	return inv.Replier.Reply(ctx, inv.Message, text)
}

// CommandHandler executes a command.
type CommandHandler func(ctx context.Context, inv *Invocation) error

// PermissionFunc decides whether the invocation may run.
type PermissionFunc func(ctx context.Context, inv *Invocation) (bool, error)

// Command is a chat command contributed by a module.
type Command struct {
	ModuleID     string
	Name         string // unique per module, compared case-insensitively
	FriendlyName string
	Syntax       []string
	Description  string
	Flags        func(fs *pflag.FlagSet) // declares argument-parsing options
	Run          CommandHandler
	Permission   PermissionFunc // nil allows everyone
}

// QualifiedName returns "module:name".
func (c *Command) QualifiedName() string {
	return c.ModuleID + ":" + c.Name
}

// FlagSet builds a fresh flag set for one invocation.
func (c *Command) FlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(c.Name, pflag.ContinueOnError)
	fs.SetInterspersed(true)
	fs.SetOutput(io.Discard)
	if c.Flags != nil {
		c.Flags(fs)
	}
	return fs
}

// Allowed evaluates the permission predicate.
func (c *Command) Allowed(ctx context.Context, inv *Invocation) (bool, error) {
	if c.Permission == nil {
		return true, nil
	}
	return c.Permission(ctx, inv)
}
