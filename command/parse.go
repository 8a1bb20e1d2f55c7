package command

import (
	"strings"

	"mvdan.cc/sh/v3/shell"
)

// parsed is a prefixed message split into a command and its arguments.
type parsed struct {
	Prefix  string
	Command string
	Args    []string
}

// parse splits content when it starts with prefix directly followed by a
// command name. Arguments follow shell quoting rules; dollar signs are
// kept literally.
func parse(content, prefix string) (parsed, bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return parsed{}, false
	}
	rest := content[len(prefix):]
	if rest == "" || strings.TrimLeft(rest, " \t\n") != rest {
		return parsed{}, false
	}

	fields := splitArgs(rest)
	if len(fields) == 0 || fields[0] == "" {
		return parsed{}, false
	}
	return parsed{Prefix: prefix, Command: fields[0], Args: fields[1:]}, true
}

func splitArgs(s string) []string {
	fields, err := shell.Fields(s, func(name string) string { return "$" + name })
	if err != nil {
		// Unbalanced quotes and the like fall back to plain whitespace splitting.
		return strings.Fields(s)
	}
	return fields
}

// qualify splits "module:command"; unqualified names return an empty module.
func qualify(command string) (moduleID, name string) {
	if i := strings.Index(command, ":"); i >= 0 {
		return command[:i], command[i+1:]
	}
	return "", command
}
