package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/leeforge/bot/command"
	"github.com/leeforge/bot/extension"
	"github.com/leeforge/bot/utils"
	"github.com/spf13/pflag"
)

func (m *Module) helpCommand() *extension.Command {
	return &extension.Command{
		Name:         "help",
		FriendlyName: "Help",
		Description:  "Provides a detailed overview of any command that the bot can perform.",
		Syntax: []string{
			"help",
			"help {-a|--all} [[-p|--page] page]",
			"help {-l|--module} module [[-p|--page] page]",
			"help [-c|--command] command [{-l|--module} module] [[-p|--page] page]",
		},
		Flags: func(fs *pflag.FlagSet) {
			fs.BoolP("all", "a", false, "list every module and command")
			fs.StringP("module", "l", "", "show one module")
			fs.StringP("command", "c", "", "show one command")
			fs.IntP("page", "p", 0, "page to show")
		},
		Run: m.help,
	}
}

func (m *Module) help(ctx context.Context, inv *extension.Invocation) error {
	all, _ := inv.Flags.GetBool("all")
	moduleID, _ := inv.Flags.GetString("module")
	name, _ := inv.Flags.GetString("command")
	page, _ := inv.Flags.GetInt("page")

	args := inv.Args
	if len(args) > 0 && strings.EqualFold(args[0], "all") {
		all, args = true, args[1:]
	}
	if page == 0 && len(args) > 0 {
		if n, err := strconv.Atoi(args[len(args)-1]); err == nil {
			page, args = n, args[:len(args)-1]
		}
	}
	if name == "" && len(args) > 0 {
		name = args[0]
	}

	tenantID := inv.Message.TenantID
	switch {
	case all:
		return m.sendListing(ctx, inv, "", "", page)
	case name != "" || moduleID != "":
		if moduleID == "" {
			if mod, cmd, ok := strings.Cut(name, ":"); ok {
				moduleID, name = mod, cmd
			}
		}
		return m.sendListing(ctx, inv, moduleID, name, page)
	}
	return inv.Reply(ctx, greeting(m.DisplayName(), m.prefix(ctx, tenantID), m.opts.Heart()))
}

// sendListing replies with module overviews, or with command details when
// name is set, narrowed to moduleID when given.
func (m *Module) sendListing(ctx context.Context, inv *extension.Invocation, moduleID, name string, page int) error {
	tenantID := inv.Message.TenantID
	prefix := m.prefix(ctx, tenantID)

	var entries []string
	for _, mod := range m.opts.Modules.All() {
		d := mod.Descriptor()
		if moduleID != "" && !strings.EqualFold(d.ID, moduleID) {
			continue
		}
		if tenantID != "" && m.opts.Tenants != nil {
			enabled, err := m.opts.Tenants.ModuleEnabled(ctx, tenantID, d.ID)
			if err != nil {
				return err
			}
			if !enabled {
				continue
			}
		}

		cmds, err := m.opts.Commands.GetAll(ctx, command.Filter{TenantID: tenantID, ModuleID: d.ID})
		if err != nil {
			return err
		}
		if name == "" {
			entries = append(entries, moduleEntry(d, cmds, prefix))
			continue
		}
		for _, c := range cmds {
			if strings.EqualFold(c.Name, name) {
				entries = append(entries, commandEntry(d, c, prefix))
			}
		}
	}

	if len(entries) == 0 {
		return inv.Reply(ctx, fmt.Sprintf(notFoundReply, prefix))
	}

	text, page, pages := paginate(entries, page, maxReplyLength)
	if pages > 1 {
		text += fmt.Sprintf("\n\n_Page %d of %d. Use `%shelp --page %d` for more._", page, pages, prefix, min(page+1, pages))
	}
	return inv.Reply(ctx, "Here's what I found:\n\n"+text)
}

func moduleEntry(d extension.Descriptor, cmds []*extension.Command, prefix string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** `%s` v%s", d.Name, d.ID, d.Version)
	if d.Description != "" {
		b.WriteString("\n" + d.Description)
	}
	if len(d.Authors) > 0 {
		b.WriteString("\nAuthor: " + strings.Join(d.Authors, ", "))
	}
	if len(cmds) == 0 {
		b.WriteString("\n*This module does not provide any commands.*")
	}
	for _, c := range cmds {
		fmt.Fprintf(&b, "\n`%s%s`: %s", prefix, c.Name, c.Description)
	}
	return b.String()
}

func commandEntry(d extension.Descriptor, c *extension.Command, prefix string) string {
	title := c.FriendlyName
	if title == "" {
		title = utils.Title(c.Name)
	}
	syntax := c.Syntax
	if len(syntax) == 0 {
		syntax = []string{c.Name}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s Command** from %s v%s", title, d.Name, d.Version)
	if c.Description != "" {
		b.WriteString("\n" + c.Description)
	}
	b.WriteString("\n```")
	for i, s := range syntax {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(prefix + s)
	}
	b.WriteString("```")
	if flags := c.FlagSet().FlagUsages(); flags != "" {
		b.WriteString("\nOptions:\n```" + strings.TrimRight(flags, "\n") + "```")
	}
	if len(d.DonationLinks) > 0 {
		b.WriteString("\nDonate: " + strings.Join(d.DonationLinks, " "))
	}
	return b.String()
}
