package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/fsnotify/fsnotify"
	"github.com/leeforge/bot/env_mode"
	"github.com/leeforge/bot/utils"
	"github.com/spf13/viper"
)

// reloadDebounce groups the burst of events editors produce for one save.
const reloadDebounce = 250 * time.Millisecond

func DefaultOptions() Options {
	basePath := os.Getenv("CONFIG_PATH")
	if basePath == "" {
		basePath = "config"
	}

	return Options{
		BasePath:  basePath,
		FileName:  "config",
		FileType:  "yaml",
		EnvPrefix: "BOT",
	}
}

// NewConfig reads every layered file that exists for opts. No file at all
// is not an error: the bot can run from environment variables alone.
func NewConfig(opts Options) (*Config, error) {
	c := &Config{opts: opts}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Files returns the config files read by the last load, lowest priority first.
func (c *Config) Files() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.files...)
}

// Reload rereads the config files and environment.
func (c *Config) Reload() error {
	files := getConfigFilePaths(c.opts)
	instance, err := createConfig(c.opts, files)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.instance = instance
	c.files = files
	c.mu.Unlock()
	return nil
}

// Bind decodes the current configuration into target. Every mapstructure key
// of target can also be set from the environment, e.g. BOT_TENANT_DRIVER for
// tenant.driver.
func (c *Config) Bind(target any) error {
	if c == nil || c.instance == nil {
		return fmt.Errorf("config instance is nil")
	}
	if target == nil {
		return fmt.Errorf("target instance is nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	bindEnvKeys(c.instance, reflect.TypeOf(target), "")
	if err := c.instance.Unmarshal(target); err != nil {
		return fmt.Errorf("failed to unmarshal config (path: %s, file: %s.%s): %w",
			c.opts.BasePath, c.opts.FileName, c.opts.FileType, err)
	}
	return nil
}

// BindWithDefaults applies `default` tags before decoding, so values present
// in files or the environment win, including explicit zero values.
func (c *Config) BindWithDefaults(target any) error {
	if err := defaults.Set(target); err != nil {
		return fmt.Errorf("failed to set defaults: %w", err)
	}
	if err := c.Bind(target); err != nil {
		return err
	}
	if v, ok := target.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

// Get returns the raw value stored under key.
func (c *Config) Get(key string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.instance.Get(key)
}

// Watch reloads the configuration whenever a file in the base path changes
// and calls onChange afterwards. It blocks until ctx is done.
func (c *Config) Watch(ctx context.Context, onChange func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(c.opts.BasePath); err != nil {
		return fmt.Errorf("failed to watch %s: %w", c.opts.BasePath, err)
	}

	suffix := "." + c.opts.FileType
	timer := time.NewTimer(reloadDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, suffix) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(reloadDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if onChange != nil {
				onChange(err)
			}
		case <-timer.C:
			err := c.Reload()
			if onChange != nil {
				onChange(err)
			}
		}
	}
}

func createConfig(opts Options, configPaths []string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType(opts.FileType)

	for _, configPath := range configPaths {
		tempV := viper.New()
		tempV.SetConfigFile(configPath)
		if err := tempV.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
		}
		if err := v.MergeConfigMap(tempV.AllSettings()); err != nil {
			return nil, fmt.Errorf("error merging config file %s: %w", configPath, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	if opts.EnvPrefix != "" {
		v.SetEnvPrefix(opts.EnvPrefix)
	}
	v.AutomaticEnv()
	return v, nil
}

// bindEnvKeys registers every mapstructure key of t with viper so that
// environment variables are seen even when no file mentions the key.
func bindEnvKeys(v *viper.Viper, t reflect.Type, prefix string) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}

		ft := field.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && ft != reflect.TypeOf(time.Time{}) {
			bindEnvKeys(v, ft, key)
			continue
		}
		_ = v.BindEnv(key)
	}
}

func getConfigFilePaths(opts Options) (configFiles []string) {
	env := env_mode.Mode()
	fileNames := []string{
		opts.FileName,
		fmt.Sprintf("%s.local", opts.FileName),
		fmt.Sprintf("%s.%s", opts.FileName, env),
		fmt.Sprintf("%s.%s.local", opts.FileName, env),
	}

	switch env {
	case env_mode.DevMode:
		fileNames = append(fileNames, opts.FileName+".dev", opts.FileName+".dev.local")
	case env_mode.ProMode:
		fileNames = append(fileNames, opts.FileName+".prod", opts.FileName+".prod.local")
	}

	for _, fileName := range fileNames {
		file := filepath.Join(opts.BasePath, fmt.Sprintf("%s.%s", fileName, opts.FileType))
		if isDir, exists, _ := utils.Exists(file); exists && !isDir {
			configFiles = append(configFiles, file)
		}
	}

	return configFiles
}
