package extension

import "github.com/leeforge/bot/json"

// ConfigProvider gives modules typed access to their scoped settings
// (the "modules.<id>" section of the host configuration).
type ConfigProvider interface {
	Get(key string) (any, bool)
	GetString(key string, defaultVal string) string
	GetInt(key string, defaultVal int) int
	GetBool(key string, defaultVal bool) bool
	Bind(target any) error
}

// ModuleConfig is a ConfigProvider backed by a settings map.
type ModuleConfig struct {
	settings map[string]any
}

// NewModuleConfig creates a ConfigProvider from a settings map.
func NewModuleConfig(settings map[string]any) *ModuleConfig {
	if settings == nil {
		settings = make(map[string]any)
	}
	return &ModuleConfig{settings: settings}
}

func (c *ModuleConfig) Get(key string) (any, bool) {
	v, ok := c.settings[key]
	return v, ok
}

func (c *ModuleConfig) GetString(key string, defaultVal string) string {
	s, ok := c.settings[key].(string)
	if !ok {
		return defaultVal
	}
	return s
}

func (c *ModuleConfig) GetInt(key string, defaultVal int) int {
	switch n := c.settings[key].(type) {
	case int:
		return n
	case float64:
		return int(n)
	case int64:
		return int(n)
	default:
		return defaultVal
	}
}

func (c *ModuleConfig) GetBool(key string, defaultVal bool) bool {
	b, ok := c.settings[key].(bool)
	if !ok {
		return defaultVal
	}
	return b
}

func (c *ModuleConfig) Bind(target any) error {
	data, err := json.Marshal(c.settings)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// EmptyConfig returns a ConfigProvider that always returns defaults.
func EmptyConfig() ConfigProvider { return NewModuleConfig(nil) }
