package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Platform  PlatformConfig
	Watch     WatchConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PlatformConfig points at the remote render platform.
type PlatformConfig struct {
	BaseURL string
	WSURL   string
	Token   string
	Timeout time.Duration
}

// WatchConfig tunes job-status watching: the fallback poll interval, the
// hard wall-clock cap on polling, and how long to wait for the push channel
// to confirm before polling kicks in.
type WatchConfig struct {
	PollInterval time.Duration
	PollCap      time.Duration
	ChannelGrace time.Duration
}

type RateLimitConfig struct {
	RenderPerHour int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("platform.base_url", "")
	viper.SetDefault("platform.ws_url", "")
	viper.SetDefault("platform.token", "")
	viper.SetDefault("platform.timeout", "30s")
	viper.SetDefault("watch.poll_interval", "2s")
	viper.SetDefault("watch.poll_cap", "5m")
	viper.SetDefault("watch.channel_grace", "5s")
	viper.SetDefault("ratelimit.render_per_hour", 20)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Platform: PlatformConfig{
			BaseURL: viper.GetString("platform.base_url"),
			WSURL:   viper.GetString("platform.ws_url"),
			Token:   viper.GetString("platform.token"),
			Timeout: viper.GetDuration("platform.timeout"),
		},
		Watch: WatchConfig{
			PollInterval: viper.GetDuration("watch.poll_interval"),
			PollCap:      viper.GetDuration("watch.poll_cap"),
			ChannelGrace: viper.GetDuration("watch.channel_grace"),
		},
		RateLimit: RateLimitConfig{
			RenderPerHour: viper.GetInt("ratelimit.render_per_hour"),
		},
	}

	return cfg, nil
}
