package config

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/leeforge/bot/logging"
	"github.com/leeforge/bot/redis_client"
)

// MaxPrefixLength bounds command prefixes, both the default and per tenant.
const MaxPrefixLength = 15

// AppConfig is the bot's configuration.
type AppConfig struct {
	// Token authenticates against the chat platform.
	Token string `mapstructure:"token" json:"-" yaml:"token"`

	DefaultPrefix      string `mapstructure:"default-prefix" json:"defaultPrefix" yaml:"default-prefix" default:"!" validate:"prefix"`
	DefaultNickname    string `mapstructure:"default-nickname" json:"defaultNickname" yaml:"default-nickname"`
	ShowWelcomeMessage bool   `mapstructure:"show-welcome-message" json:"showWelcomeMessage" yaml:"show-welcome-message"`
	DeveloperMode      bool   `mapstructure:"developer-mode" json:"developerMode" yaml:"developer-mode"`
	EmbedColor         string `mapstructure:"embed-color" json:"embedColor" yaml:"embed-color" default:"#7289da" validate:"omitempty,hexcolor"`

	// Hearts are emoji names sprinkled into friendly replies.
	Hearts []string `mapstructure:"hearts" json:"hearts" yaml:"hearts" default:"[\"heart\"]"`

	// ModuleDirectories are scanned for module candidates, in order.
	ModuleDirectories []string `mapstructure:"module-directories" json:"moduleDirectories" yaml:"module-directories" default:"[\"modules\"]" validate:"min=1,dive,required"`

	// StartupMessages are logged while the host boots.
	StartupMessages []string `mapstructure:"startup-messages" json:"startupMessages" yaml:"startup-messages"`

	// Modules holds per-module settings, keyed by module id.
	Modules map[string]map[string]any `mapstructure:"modules" json:"modules" yaml:"modules"`

	Discovery  DiscoveryConfig  `mapstructure:"discovery" json:"discovery" yaml:"discovery"`
	Installer  InstallerConfig  `mapstructure:"installer" json:"installer" yaml:"installer"`
	Tenant     TenantConfig     `mapstructure:"tenant" json:"tenant" yaml:"tenant"`
	Permission PermissionConfig `mapstructure:"permission" json:"permission" yaml:"permission"`
	Admin      AdminConfig      `mapstructure:"admin" json:"admin" yaml:"admin"`
	Log        logging.Config   `mapstructure:"log" json:"log" yaml:"log"`
}

type DiscoveryConfig struct {
	// Concurrency bounds how many candidates are validated at once.
	Concurrency int `mapstructure:"concurrency" json:"concurrency" yaml:"concurrency" default:"8" validate:"min=1,max=256"`
}

type InstallerConfig struct {
	// Script runs in each module directory before construction. Empty disables installation.
	Script string   `mapstructure:"script" json:"script" yaml:"script"`
	Env    []string `mapstructure:"env" json:"env" yaml:"env"`
}

type TenantConfig struct {
	Driver   string              `mapstructure:"driver" json:"driver" yaml:"driver" default:"memory" validate:"oneof=memory redis sqlite"`
	DSN      string              `mapstructure:"dsn" json:"dsn" yaml:"dsn" default:"file:bot.db"`
	CacheTTL time.Duration       `mapstructure:"cache-ttl" json:"cacheTTL" yaml:"cache-ttl" default:"30s"`
	Redis    redis_client.Config `mapstructure:"redis" json:"redis" yaml:"redis"`
}

type PermissionConfig struct {
	// PolicyPath is an optional casbin CSV policy file.
	PolicyPath string `mapstructure:"policy-path" json:"policyPath" yaml:"policy-path"`
}

type AdminConfig struct {
	// Addr is the listen address of the read-only admin API. Empty disables it.
	Addr string `mapstructure:"addr" json:"addr" yaml:"addr" validate:"omitempty,hostname_port"`
}

// Load reads the layered configuration at opts into a validated AppConfig.
func Load(opts Options) (*AppConfig, *Config, error) {
	c, err := NewConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	app := &AppConfig{}
	if err := c.BindWithDefaults(app); err != nil {
		return nil, nil, err
	}
	return app, c, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("prefix", func(fl validator.FieldLevel) bool {
		return ValidPrefix(fl.Field().String())
	})
	return v
}

// Validate checks field constraints.
func (a *AppConfig) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ModuleSettings returns the settings section of one module, never nil.
func (a *AppConfig) ModuleSettings(moduleID string) map[string]any {
	if s, ok := a.Modules[strings.ToLower(moduleID)]; ok && s != nil {
		return s
	}
	return map[string]any{}
}

// RandomHeart picks one of the configured hearts as an emoji shortcode.
func (a *AppConfig) RandomHeart() string {
	if len(a.Hearts) == 0 {
		return ":heart:"
	}
	return ":" + a.Hearts[rand.IntN(len(a.Hearts))] + ":"
}

// ValidPrefix reports whether p can serve as a command prefix.
func ValidPrefix(p string) bool {
	n := utf8.RuneCountInString(p)
	if n == 0 || n > MaxPrefixLength {
		return false
	}
	return strings.IndexFunc(p, unicode.IsSpace) < 0
}
