package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/leeforge/bot/command"
	"github.com/leeforge/bot/config"
	"github.com/leeforge/bot/extension"
	"github.com/leeforge/bot/utils"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// defaultKeyword resets a tenant prefix to the host default.
const defaultKeyword = "default"

func (m *Module) setPrefixCommand() *extension.Command {
	return &extension.Command{
		Name:         "setPrefix",
		FriendlyName: "Set Prefix",
		Description:  "Allows an administrator to set the command prefix for the server. Valid prefixes are fifteen characters or less, and should be easy to type.",
		Syntax:       []string{"setPrefix [-p|--prefix] {prefix|'default'}"},
		Flags: func(fs *pflag.FlagSet) {
			fs.StringP("prefix", "p", "", "the new prefix, or 'default'")
		},
		Permission: m.adminOnly(),
		Run:        m.setPrefix,
	}
}

func (m *Module) setPrefix(ctx context.Context, inv *extension.Invocation) error {
	defaultPrefix := m.opts.Tenants.DefaultPrefix()
	if inv.Message.Direct() {
		return inv.Reply(ctx, fmt.Sprintf(tenantOnlyReply, defaultPrefix))
	}

	prefix, _ := inv.Flags.GetString("prefix")
	if prefix == "" && len(inv.Args) > 0 {
		prefix = inv.Args[0]
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), `"'`)

	stored := prefix
	if strings.EqualFold(prefix, defaultKeyword) {
		prefix, stored = defaultPrefix, ""
	} else if !config.ValidPrefix(prefix) {
		return inv.Reply(ctx, invalidPrefixReply)
	}

	if err := m.opts.Tenants.SetPrefix(ctx, inv.Message.TenantID, stored); err != nil {
		return err
	}
	m.Logger().Info("tenant prefix changed",
		zap.String("tenant", inv.Message.TenantID),
		zap.String("prefix", prefix),
		zap.String("author", inv.Message.AuthorTag))
	return inv.Reply(ctx, fmt.Sprintf(prefixChangedReply, prefix, defaultPrefix))
}

func (m *Module) toggleCommand(enable bool) *extension.Command {
	name, verb, state := "disable", "switch off", "disabled"
	if enable {
		name, verb, state = "enable", "switch on", "enabled"
	}
	return &extension.Command{
		Name:         name,
		FriendlyName: utils.Title(name),
		Description:  fmt.Sprintf("Lets an administrator %s a module, or a single module command, for this server.", verb),
		Syntax:       []string{name + " module", name + " module:command"},
		Permission:   m.adminOnly(),
		Run: func(ctx context.Context, inv *extension.Invocation) error {
			return m.toggle(ctx, inv, name, state, enable)
		},
	}
}

func (m *Module) toggle(ctx context.Context, inv *extension.Invocation, name, state string, enable bool) error {
	tenantID := inv.Message.TenantID
	if inv.Message.Direct() {
		return inv.Reply(ctx, fmt.Sprintf(tenantOnlyReply, m.opts.Tenants.DefaultPrefix()))
	}
	prefix := m.prefix(ctx, tenantID)
	if len(inv.Args) == 0 {
		return inv.Reply(ctx, fmt.Sprintf(toggleUsageReply, name, prefix, name, prefix, name))
	}

	moduleRef, cmdName, qualified := strings.Cut(inv.Args[0], ":")
	mod, ok := m.opts.Modules.Find(moduleRef)
	if !ok {
		return inv.Reply(ctx, fmt.Sprintf(unknownModuleReply, moduleRef, prefix))
	}
	moduleID := mod.Descriptor().ID
	if moduleID == ModuleID {
		return inv.Reply(ctx, coreLockedReply)
	}

	if !qualified {
		if err := m.opts.Tenants.SetModuleEnabled(ctx, tenantID, moduleID, enable); err != nil {
			return err
		}
		m.logToggle(inv, moduleID, state)
		return inv.Reply(ctx, fmt.Sprintf(toggledReply, moduleID, state))
	}

	cmds, err := m.opts.Commands.Get(ctx, cmdName, command.Filter{ModuleID: moduleID})
	if err != nil {
		return err
	}
	if len(cmds) == 0 {
		return inv.Reply(ctx, fmt.Sprintf(unknownCmdReply, moduleID, cmdName))
	}
	target := cmds[0]
	if err := m.opts.Tenants.SetCommandEnabled(ctx, tenantID, moduleID, target.Name, enable); err != nil {
		return err
	}
	m.logToggle(inv, target.QualifiedName(), state)
	return inv.Reply(ctx, fmt.Sprintf(toggledReply, target.QualifiedName(), state))
}

func (m *Module) logToggle(inv *extension.Invocation, target, state string) {
	m.Logger().Info("tenant override changed",
		zap.String("tenant", inv.Message.TenantID),
		zap.String("target", target),
		zap.String("state", state),
		zap.String("author", inv.Message.AuthorTag))
}

func (m *Module) inviteCommand() *extension.Command {
	return &extension.Command{
		Name:         "invite",
		FriendlyName: "Invite",
		Description:  "Generate a link to invite the bot to your server.",
		Syntax:       []string{"invite"},
		Run: func(ctx context.Context, inv *extension.Invocation) error {
			link, ok := m.opts.Invite()
			if !ok {
				return inv.Reply(ctx, inviteUnknownReply)
			}
			m.Logger().Debug("invite link requested")
			return inv.Reply(ctx, fmt.Sprintf(inviteReply, link))
		},
	}
}
