package config

import (
	"sync"

	"github.com/spf13/viper"
)

// Validator is implemented by configuration structs that check themselves after binding.
type Validator interface {
	Validate() error
}

// Config is a layered view over the config files of one base path plus the
// process environment.
type Config struct {
	instance *viper.Viper
	opts     Options
	files    []string
	mu       sync.RWMutex
}

type Options struct {
	BasePath  string
	FileName  string
	FileType  string
	EnvPrefix string
}
