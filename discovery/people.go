package discovery

import (
	"fmt"
	"strings"

	"github.com/leeforge/bot/json"
)

// person is the object form of author, contributor and funding entries.
type person struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	URL   string `json:"url"`
	Type  string `json:"type"`
}

// display renders "Name <email> (url)", omitting absent parts.
func (p person) display() string {
	var parts []string
	if name := strings.TrimSpace(p.Name); name != "" {
		parts = append(parts, name)
	}
	if email := strings.TrimSpace(p.Email); email != "" {
		parts = append(parts, "<"+email+">")
	}
	if url := strings.TrimSpace(p.URL); url != "" {
		if len(parts) == 0 {
			parts = append(parts, url)
		} else {
			parts = append(parts, "("+url+")")
		}
	}
	return strings.Join(parts, " ")
}

// normalizePeople flattens a string, an object, or an array of either
// into ordered display strings.
func normalizePeople(raw json.RawMessage) ([]string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		var out []string
		for _, item := range items {
			names, err := normalizePeople(item)
			if err != nil {
				return nil, err
			}
			out = append(out, names...)
		}
		return out, nil
	case '{':
		var p person
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		if s := p.display(); s != "" {
			return []string{s}, nil
		}
		return nil, nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s = strings.TrimSpace(s); s != "" {
			return []string{s}, nil
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported value %s", trimmed)
	}
}
