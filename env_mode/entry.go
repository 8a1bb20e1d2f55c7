package env_mode

import (
	"os"
	"strings"
	"sync"
)

// ENV_MODE_KEY selects which layered config files are read and how chatty
// infrastructure clients are at startup.
const ENV_MODE_KEY = "BOT_ENV"

type ENV_MODE string

const (
	DevMode  ENV_MODE = "development"
	ProMode  ENV_MODE = "production"
	TestMode ENV_MODE = "test"
)

var (
	mu         sync.RWMutex
	currentEnv ENV_MODE
)

func ParseEnv(env string) ENV_MODE {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "pro":
		return ProMode
	case "test", "testing":
		return TestMode
	default:
		return DevMode
	}
}

// Mode returns the current mode, read from BOT_ENV on first use.
func Mode() ENV_MODE {
	mu.RLock()
	env := currentEnv
	mu.RUnlock()
	if env != "" {
		return env
	}

	mu.Lock()
	defer mu.Unlock()
	if currentEnv == "" {
		currentEnv = ParseEnv(os.Getenv(ENV_MODE_KEY))
	}
	return currentEnv
}

// SetMode overrides the mode for this process.
func SetMode(mode ENV_MODE) {
	mu.Lock()
	defer mu.Unlock()
	currentEnv = mode
	os.Setenv(ENV_MODE_KEY, string(mode))
}
