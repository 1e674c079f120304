package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type LiveKit struct {
	URL       string        `mapstructure:"url"`
	APIKey    string        `mapstructure:"api_key"`
	APISecret string        `mapstructure:"api_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	LiveKit LiveKit `mapstructure:"livekit"`

	// IssuerURL is where sessions fetch credentials; empty means this server.
	IssuerURL          string        `mapstructure:"issuer_url"`
	IssuerTimeout      time.Duration `mapstructure:"issuer_timeout"`
	SpeakingQuiescence time.Duration `mapstructure:"speaking_quiescence"`

	StartRate    float64 `mapstructure:"start_rate"`
	StartBurst   int     `mapstructure:"start_burst"`
	MessageRate  float64 `mapstructure:"message_rate"`
	MessageBurst int     `mapstructure:"message_burst"`
}

func fileName() string {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	dir := os.Getenv("CONFIG_DIR")
	if dir == "" {
		dir = "config"
	}
	return filepath.Join(dir, fmt.Sprintf("config.%s.yaml", env))
}

func newViper(file string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(file)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "")
	v.SetDefault("log_level", "info")

	v.SetDefault("livekit.url", "")
	v.SetDefault("livekit.api_key", "")
	v.SetDefault("livekit.api_secret", "")
	v.SetDefault("livekit.token_ttl", "1h")

	v.SetDefault("issuer_url", "")
	v.SetDefault("issuer_timeout", "10s")
	v.SetDefault("speaking_quiescence", "300ms")

	v.SetDefault("start_rate", 0.2)
	v.SetDefault("start_burst", 3)
	v.SetDefault("message_rate", 20)
	v.SetDefault("message_burst", 40)

	v.SetEnvPrefix("NORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The token endpoint has always read the bare LiveKit variables.
	_ = v.BindEnv("livekit.url", "NORA_LIVEKIT_URL", "LIVEKIT_URL")
	_ = v.BindEnv("livekit.api_key", "NORA_LIVEKIT_API_KEY", "LIVEKIT_API_KEY")
	_ = v.BindEnv("livekit.api_secret", "NORA_LIVEKIT_API_SECRET", "LIVEKIT_API_SECRET")
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func Load() (*Config, error) {
	file := fileName()
	v := newViper(file)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", file).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", file).Msg("loaded config")
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return cfg, nil
}

// Watch calls onChange with the re-read config whenever the file changes.
// Only settings read at use time, like the log level, take effect live.
func Watch(onChange func(*Config)) error {
	file := fileName()
	v := newViper(file)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("watch %s: %w", file, err)
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			log.Error().Err(err).Str("module", "config").Str("file", e.Name).Msg("reload failed")
			return
		}
		log.Info().Str("module", "config").Str("file", e.Name).Msg("config reloaded")
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}
