package core

import (
	"fmt"
	"strings"
)

// maxReplyLength keeps replies under the platform's 2000 character cap.
const maxReplyLength = 1900

const (
	notFoundReply      = "I apologize, but I couldn't find anything that matched those options!\nYou can use the command `%shelp all` to list everything I know about!"
	tenantOnlyReply    = "Hey there! I'm sorry, but you can't change that within a direct message.\nYou can change it for a specific server if you're an admin, owner, or have the \"Manage Server\" permission.\nAs always, feel free to ask for help with the command `%shelp`!"
	invalidPrefixReply = "Unfortunately, I can't set the prefix to that! Please choose a different prefix.\nValid prefixes are fifteen characters or less in length, and must not be empty or contain spaces."
	prefixChangedReply = "The server's custom prefix has been updated to `%s`!\nFrom now on, I'll respond to commands which start with that.\nI'll still keep listening to `%shelp`, so feel free to use that if you forget!"
	coreLockedReply    = "The core module can't be switched off or on, it keeps me running!"
	unknownModuleReply = "I don't know a module called `%s`. Try `%shelp all` to see what's loaded."
	unknownCmdReply    = "Module `%s` has no command called `%s`."
	toggledReply       = "`%s` is now %s on this server."
	toggleUsageReply   = "Tell me what to %s, like `%s%s weather` or `%s%s weather:forecast`."
	inviteReply        = "Here's a link to invite me to your server: <%s>"
	inviteUnknownReply = "I don't have an invite link yet, try again once I'm fully logged in."
)

func greeting(name, prefix, heart string) string {
	return fmt.Sprintf("Hi! I'm %s, your modular robot friend!\n", name) +
		fmt.Sprintf("To list all the commands that I can understand, just send the command `%shelp --all` somewhere I can see it!\n", prefix) +
		fmt.Sprintf("You can also ask about one command with `%shelp <command>`, or one module with `%shelp --module <id>`.\n", prefix, prefix) +
		"Thanks! " + heart
}

func welcome(name, prefix string) string {
	return fmt.Sprintf("Hello everyone! %s here.\n", name) +
		"I'm a modular bot framework, with a potential variety of functions!\n" +
		fmt.Sprintf("Feel free to ask for `%shelp` if you're interested in learning more!", prefix)
}

// paginate packs entries into pages of at most limit characters and returns
// the requested page, clamped to the valid range, with the page count.
// An entry longer than limit occupies a page of its own.
func paginate(entries []string, page, limit int) (string, int, int) {
	var (
		pages   []string
		current strings.Builder
	)
	for _, e := range entries {
		if current.Len() > 0 && current.Len()+2+len(e) > limit {
			pages = append(pages, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(e)
	}
	if current.Len() > 0 {
		pages = append(pages, current.String())
	}
	if len(pages) == 0 {
		return "", 1, 0
	}

	page = min(max(page, 1), len(pages))
	return pages[page-1], page, len(pages)
}
