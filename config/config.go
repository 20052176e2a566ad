package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type OpenAI struct {
	OpenAIAPIKey     string  `env:"OPENAI_API_KEY" env-required:"true"`
	OpenAIModel      string  `yaml:"openai_model" env:"OPENAI_MODEL" env-default:"gpt-4o-mini"`
	OpenAIBaseURL    string  `yaml:"openai_base_url" env:"OPENAI_BASE_URL"`
	ModelTemperature float32 `yaml:"model_temperature" env:"MODEL_TEMPERATURE" env-default:"1"`
}

type Redis struct {
	Endpoint string `yaml:"endpoint" env:"REDIS_ENDPOINT" env-default:"localhost:6379"`
}

type Chat struct {
	// MaxContext bounds the trailing history window sent upstream, in
	// messages. Older messages stay in the store.
	MaxContext    int           `yaml:"max_context" env:"MAX_CONTEXT" env-default:"20"`
	MaxMessageLen int           `yaml:"max_message_len" env:"MAX_MESSAGE_LEN" env-default:"4000"`
	TokenBudget   int           `yaml:"token_budget" env:"TOKEN_BUDGET" env-default:"3500"`
	StreamTimeout time.Duration `yaml:"stream_timeout" env:"STREAM_TIMEOUT" env-default:"30s"`
}

type Server struct {
	Port string `yaml:"port" env:"PORT" env-default:"8080"`
}

type Config struct {
	OpenAI OpenAI `yaml:"openai"`
	Redis  Redis  `yaml:"redis"`
	Chat   Chat   `yaml:"chat"`
	Server Server `yaml:"server"`
}

func LoadConfig(cfgPath string) (*Config, error) {
	var cfg Config
	if cfgPath != "" {
		if err := cleanenv.ReadConfig(cfgPath, &cfg); err != nil {
			return nil, err
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
