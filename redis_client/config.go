package redis_client

import "net"

type Config struct {
	Host      string `mapstructure:"host" json:"host" yaml:"host" default:"127.0.0.1"`
	Port      string `mapstructure:"port" json:"port" yaml:"port" default:"6379"`
	Password  string `mapstructure:"password" json:"password" yaml:"password"`
	DB        int    `mapstructure:"db" json:"db" yaml:"db"`
	KeyPrefix string `mapstructure:"key_prefix" json:"key_prefix" yaml:"key_prefix" default:"bot:"`
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}
