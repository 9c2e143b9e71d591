package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Samarth-1003/MockMate-AI/pkg/scoring"
	"github.com/Samarth-1003/MockMate-AI/pkg/session"
)

type Config struct {
	Server      ServerConfig    `mapstructure:"server"`
	Evaluator   EvaluatorConfig `mapstructure:"evaluator"`
	Vendors     VendorsConfig   `mapstructure:"vendors"`
	Pacing      PacingConfig    `mapstructure:"pacing"`
	Scoring     ScoringConfig   `mapstructure:"scoring"`
	Notify      NotifyConfig    `mapstructure:"notify"`
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	LogFormat   string          `mapstructure:"log_format"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type EvaluatorConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutMS      int    `mapstructure:"timeout_ms"`
	Retries        int    `mapstructure:"retries"`
	RetryBackoffMS int    `mapstructure:"retry_backoff_ms"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	STT VendorConfig `mapstructure:"stt"`
	TTS VendorConfig `mapstructure:"tts"`
}

type PacingConfig struct {
	FirstQuestionMS int `mapstructure:"first_question_ms"`
	NextQuestionMS  int `mapstructure:"next_question_ms"`
	AbortMS         int `mapstructure:"abort_ms"`
	FinishMS        int `mapstructure:"finish_ms"`
}

type ScoringConfig struct {
	PaceMS int `mapstructure:"pace_ms"`
}

type NotifyConfig struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	From       string `mapstructure:"from"`
	To         string `mapstructure:"to"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("evaluator.base_url", "http://localhost:5000")
	v.SetDefault("evaluator.timeout_ms", 60000)
	v.SetDefault("evaluator.retries", 2)
	v.SetDefault("evaluator.retry_backoff_ms", 500)
	v.SetDefault("vendors.stt.provider", "mock")
	v.SetDefault("vendors.tts.provider", "mock")
	v.SetDefault("pacing.first_question_ms", 1000)
	v.SetDefault("pacing.next_question_ms", 1500)
	v.SetDefault("pacing.abort_ms", 2000)
	v.SetDefault("pacing.finish_ms", 1000)
	v.SetDefault("scoring.pace_ms", 800)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Evaluator.BaseURL) == "" {
		return fmt.Errorf("evaluator.base_url is required")
	}
	if strings.TrimSpace(c.Vendors.STT.Provider) == "" {
		return fmt.Errorf("vendors.stt.provider is required")
	}
	if strings.TrimSpace(c.Vendors.TTS.Provider) == "" {
		return fmt.Errorf("vendors.tts.provider is required")
	}
	return nil
}

// SessionPacing converts the millisecond knobs into runner delays.
func (c *Config) SessionPacing() session.Pacing {
	return session.Pacing{
		FirstQuestion: time.Duration(c.Pacing.FirstQuestionMS) * time.Millisecond,
		NextQuestion:  time.Duration(c.Pacing.NextQuestionMS) * time.Millisecond,
		Abort:         time.Duration(c.Pacing.AbortMS) * time.Millisecond,
		Finish:        time.Duration(c.Pacing.FinishMS) * time.Millisecond,
	}
}

// ScoringConfig converts the scoring knobs into pipeline options.
func (c *Config) ScoringOptions() scoring.Config {
	return scoring.Config{
		Pace: time.Duration(c.Scoring.PaceMS) * time.Millisecond,
	}
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.STT.Settings = expandSettings(cfg.Vendors.STT.Settings)
	cfg.Vendors.TTS.Settings = expandSettings(cfg.Vendors.TTS.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String && v.Type().Elem().Kind() == reflect.String {
			for _, key := range v.MapKeys() {
				val := v.MapIndex(key)
				expanded := os.ExpandEnv(val.String())
				v.SetMapIndex(key, reflect.ValueOf(expanded))
			}
		}
	}
}
