package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leeforge/bot/errors"
	"github.com/leeforge/bot/extension"
	"github.com/leeforge/bot/logging"
	"go.uber.org/zap"
)

const (
	helpCommand = "help"

	failureReply = "My apologies, I couldn't execute that command for some reason!"
	deniedReply  = "You don't have permission to use that command."
)

// Outcomes reported to a Recorder.
const (
	OutcomeOK      = "ok"
	OutcomeDenied  = "denied"
	OutcomeBadArgs = "bad_args"
	OutcomeFailed  = "failed"
	OutcomeError   = "error"
)

// Recorder observes every command that was found and dispatched.
type Recorder interface {
	RecordCommand(moduleID, command, outcome string, took time.Duration)
}

// Dispatcher turns inbound messages into command invocations.
type Dispatcher struct {
	registry *Registry
	policy   TenantPolicy
	replier  extension.Replier
	recorder Recorder
	logger   *zap.Logger
}

func NewDispatcher(registry *Registry, policy TenantPolicy, replier extension.Replier, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{registry: registry, policy: policy, replier: replier, logger: logger}
}

// SetReplier swaps the reply transport, for adapters created after the dispatcher.
func (d *Dispatcher) SetReplier(r extension.Replier) {
	d.replier = r
}

// SetRecorder installs r to observe dispatch outcomes.
func (d *Dispatcher) SetRecorder(r Recorder) {
	d.recorder = r
}

// HandleEvent is an extension.EventHandler for message events.
func (d *Dispatcher) HandleEvent(ctx context.Context, event extension.Event) error {
	msg, ok := event.Data.(*extension.Message)
	if !ok || msg == nil {
		return nil
	}
	_, err := d.Dispatch(ctx, msg)
	return err
}

// Dispatch runs the command in msg, if any. It reports whether a command
// was found and run; the command's own failure is answered in chat and not
// returned.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *extension.Message) (bool, error) {
	p, ok := d.resolvePrefix(ctx, msg)
	if !ok {
		return false, nil
	}

	moduleID, name := qualify(p.Command)
	cmd, err := d.lookup(ctx, msg.TenantID, moduleID, name)
	if err != nil {
		return false, err
	}
	logger := d.logger.With(
		zap.String("author", msg.AuthorTag),
		zap.String("command", p.Command),
		zap.String("args", strings.Join(p.Args, " ")),
	)
	if cmd == nil {
		logger.Debug("could not execute command: invalid command")
		return false, nil
	}

	start := time.Now()
	inv := &extension.Invocation{
		ID:      uuid.NewString(),
		Message: msg,
		Command: cmd,
		Prefix:  p.Prefix,
		Replier: d.replier,
	}
	logger = logger.With(zap.String("module", cmd.ModuleID), zap.String("invocation", inv.ID))
	ctx = logging.ToContext(logging.WithInvocation(ctx, inv.ID), logger)

	allowed, err := cmd.Allowed(ctx, inv)
	if err != nil {
		logger.Error("permission check failed", zap.Error(err))
		d.record(cmd, OutcomeError, start)
		return true, nil
	}
	if !allowed {
		logger.Debug("could not execute command: not permitted")
		d.reply(ctx, inv, deniedReply)
		d.record(cmd, OutcomeDenied, start)
		return true, nil
	}

	fs := cmd.FlagSet()
	if err := fs.Parse(p.Args); err != nil {
		logger.Debug("could not execute command: bad arguments", zap.Error(err))
		d.reply(ctx, inv, usage(p.Prefix, cmd, err))
		d.record(cmd, OutcomeBadArgs, start)
		return true, nil
	}
	inv.Flags = fs
	inv.Args = fs.Args()

	logger.Debug("executing command")
	if err := run(ctx, cmd, inv); err != nil {
		logger.Error("command failed", zap.Error(err))
		d.reply(ctx, inv, failureReply)
		d.record(cmd, OutcomeFailed, start)
		return true, nil
	}
	d.record(cmd, OutcomeOK, start)
	return true, nil
}

func (d *Dispatcher) record(cmd *extension.Command, outcome string, start time.Time) {
	if d.recorder != nil {
		d.recorder.RecordCommand(cmd.ModuleID, cmd.Name, outcome, time.Since(start))
	}
}

// resolvePrefix parses msg with the tenant prefix. The default prefix is
// accepted too, but only for the help command.
func (d *Dispatcher) resolvePrefix(ctx context.Context, msg *extension.Message) (parsed, bool) {
	prefix, err := d.policy.Prefix(ctx, msg.TenantID)
	if err != nil {
		d.logger.Warn("failed to resolve tenant prefix", zap.String("tenant", msg.TenantID), zap.Error(err))
		prefix = d.policy.DefaultPrefix()
	}
	if p, ok := parse(msg.Content, prefix); ok {
		return p, true
	}

	p, ok := parse(msg.Content, d.policy.DefaultPrefix())
	if !ok || fold(p.Command) != helpCommand {
		return parsed{}, false
	}
	return p, true
}

// lookup finds the command, preferring the core module for unqualified names.
func (d *Dispatcher) lookup(ctx context.Context, tenantID, moduleID, name string) (*extension.Command, error) {
	if moduleID != "" {
		return first(d.registry.Get(ctx, name, Filter{TenantID: tenantID, ModuleID: moduleID}))
	}
	cmd, err := first(d.registry.Get(ctx, name, Filter{TenantID: tenantID, ModuleID: CoreModuleID}))
	if err != nil || cmd != nil {
		return cmd, err
	}
	return first(d.registry.Get(ctx, name, Filter{TenantID: tenantID}))
}

func first(cmds []*extension.Command, err error) (*extension.Command, error) {
	if err != nil || len(cmds) == 0 {
		return nil, err
	}
	return cmds[0], nil
}

func run(ctx context.Context, cmd *extension.Command, inv *extension.Invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.FromPanic(r)
		}
	}()
	if cmd.Run == nil {
		return fmt.Errorf("command %s has no handler", cmd.QualifiedName())
	}
	return cmd.Run(ctx, inv)
}

func (d *Dispatcher) reply(ctx context.Context, inv *extension.Invocation, text string) {
	if err := inv.Reply(ctx, text); err != nil {
		d.logger.Warn("failed to reply", zap.String("invocation", inv.ID), zap.Error(err))
	}
}

func usage(prefix string, cmd *extension.Command, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v\nUsage: %s%s", err, prefix, cmd.Name)
	for _, s := range cmd.Syntax {
		b.WriteString(" " + s)
	}
	if flags := cmd.FlagSet().FlagUsages(); flags != "" {
		b.WriteString("\n" + flags)
	}
	return b.String()
}
