package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port     string
		LogLevel string
	}
	LLM struct {
		APIKey          string
		Model           string
		Temperature     float64
		TopK            float64
		TopP            float64
		MaxOutputTokens int
	}
	TTS struct {
		Provider string // "elevenlabs" | "off"
		APIKey   string
		VoiceID  string
	}
	History struct {
		Driver string // "sqlite" | "memory"
		DSN    string
	}
	Client struct {
		TokenSecret   string
		TokenExpMin   int
		TokenSkewSecs int
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("llm.model", "gemini-2.0-flash")
	v.SetDefault("llm.temperature", 0.9)
	v.SetDefault("llm.top_k", 40)
	v.SetDefault("llm.top_p", 0.95)
	v.SetDefault("llm.max_output_tokens", 256)

	v.SetDefault("tts.provider", "elevenlabs")

	v.SetDefault("history.driver", "sqlite")
	v.SetDefault("history.dsn", "icebreak.db")

	v.SetDefault("client.token_exp_min", 720)
	v.SetDefault("client.token_skew_secs", 60)

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")

	v.BindEnv("llm.api_key", "GEMINI_API_KEY")
	v.BindEnv("llm.model", "GEMINI_MODEL")
	v.BindEnv("llm.temperature", "LLM_TEMPERATURE")
	v.BindEnv("llm.top_k", "LLM_TOP_K")
	v.BindEnv("llm.top_p", "LLM_TOP_P")
	v.BindEnv("llm.max_output_tokens", "LLM_MAX_OUTPUT_TOKENS")

	v.BindEnv("tts.provider", "TTS_PROVIDER")
	v.BindEnv("tts.api_key", "ELEVENLABS_API_KEY")
	v.BindEnv("tts.voice_id", "ELEVENLABS_VOICE_ID")

	v.BindEnv("history.driver", "HISTORY_DRIVER")
	v.BindEnv("history.dsn", "HISTORY_DSN")

	v.BindEnv("client.token_secret", "CLIENT_TOKEN_SECRET")
	v.BindEnv("client.token_exp_min", "CLIENT_TOKEN_EXP_MIN")
	v.BindEnv("client.token_skew_secs", "CLIENT_TOKEN_SKEW_SECS")

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.LogLevel = v.GetString("server.log_level")

	c.LLM.APIKey = v.GetString("llm.api_key")
	c.LLM.Model = v.GetString("llm.model")
	c.LLM.Temperature = v.GetFloat64("llm.temperature")
	c.LLM.TopK = v.GetFloat64("llm.top_k")
	c.LLM.TopP = v.GetFloat64("llm.top_p")
	c.LLM.MaxOutputTokens = v.GetInt("llm.max_output_tokens")

	c.TTS.Provider = v.GetString("tts.provider")
	c.TTS.APIKey = v.GetString("tts.api_key")
	c.TTS.VoiceID = v.GetString("tts.voice_id")

	c.History.Driver = v.GetString("history.driver")
	c.History.DSN = v.GetString("history.dsn")

	c.Client.TokenSecret = v.GetString("client.token_secret")
	c.Client.TokenExpMin = v.GetInt("client.token_exp_min")
	c.Client.TokenSkewSecs = v.GetInt("client.token_skew_secs")

	log.Printf("config loaded: port=%s llm_model=%s tts=%s history=%s", c.Server.Port, c.LLM.Model, c.TTS.Provider, c.History.Driver)
	return c
}

func toString(v any) string { return fmt.Sprint(v) }
