package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	MaxWorkers     int    `yaml:"maxWorkers"`
	JobCount       int    `yaml:"jobCount"`
	Ratelimit      int    `yaml:"ratelimit"`
	RatelimitBurst int    `yaml:"ratelimitBurst"`
	Port           string `yaml:"port"`
	NatsURL        string `yaml:"natsURL"`

	Environment string `yaml:"environment"`

	BetterStackUploadURL   string `yaml:"betterStackUploadURL"`
	BetterStackSourceToken string `yaml:"betterStackSourceToken"`

	ExecutionTimeout time.Duration `yaml:"executionTimeout"`
	TimerWindow      time.Duration `yaml:"timerWindow"`
	MaxCodeLength    int           `yaml:"maxCodeLength"`
	SelfModulePaths  []string      `yaml:"selfModulePaths"`
	// BindingMode is "source" or "live".
	BindingMode string `yaml:"bindingMode"`

	// LLMProvider is "openai" or "gemini"; empty disables generation.
	LLMProvider string `yaml:"llmProvider"`
	LLMAPIKey   string `yaml:"llmAPIKey"`
	LLMModel    string `yaml:"llmModel"`
	LLMBaseURL  string `yaml:"llmBaseURL"`
}

func defaults() Config {
	return Config{
		MaxWorkers:       4,
		JobCount:         64,
		Ratelimit:        2,
		RatelimitBurst:   5,
		Port:             "8080",
		NatsURL:          "nats://localhost:4222",
		Environment:      "production",
		ExecutionTimeout: 5 * time.Second,
		TimerWindow:      100 * time.Millisecond,
		MaxCodeLength:    10000,
		SelfModulePaths:  []string{"./calculator"},
		BindingMode:      "source",
		LLMModel:         "gpt-4o",
		LLMBaseURL:       "https://api.openai.com/v1",
	}
}

// LoadConfig reads .env, then the YAML file named by CONFIGFILE if set, then
// lets the environment override every field.
func LoadConfig() Config {
	err := godotenv.Load(".env")
	if err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := defaults()
	if path := os.Getenv("CONFIGFILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			log.Printf("Warning: Error loading config file %s: %v", path, err)
		}
	}

	return Config{
		MaxWorkers:     getEnvInt("MAXWORKERS", cfg.MaxWorkers),
		JobCount:       getEnvInt("JOBCOUNT", cfg.JobCount),
		Ratelimit:      getEnvInt("RATELIMIT", cfg.Ratelimit),
		RatelimitBurst: getEnvInt("RATELIMITBURST", cfg.RatelimitBurst),
		Port:           getEnv("PORT", cfg.Port),
		NatsURL:        getEnv("NATSURL", cfg.NatsURL),
		Environment:    getEnv("ENVIRONMENT", cfg.Environment),

		BetterStackUploadURL:   getEnv("BETTERSTACKUPLOADURL", cfg.BetterStackUploadURL),
		BetterStackSourceToken: getEnv("BETTERSTACKSOURCETOKEN", cfg.BetterStackSourceToken),

		ExecutionTimeout: getEnvDuration("EXECUTIONTIMEOUT", cfg.ExecutionTimeout),
		TimerWindow:      getEnvDuration("TIMERWINDOW", cfg.TimerWindow),
		MaxCodeLength:    getEnvInt("MAXCODELENGTH", cfg.MaxCodeLength),
		SelfModulePaths:  getEnvList("SELFMODULEPATHS", cfg.SelfModulePaths),
		BindingMode:      getEnv("BINDINGMODE", cfg.BindingMode),

		LLMProvider: getEnv("LLMPROVIDER", cfg.LLMProvider),
		LLMAPIKey:   getEnv("LLMAPIKEY", cfg.LLMAPIKey),
		LLMModel:    getEnv("LLMMODEL", cfg.LLMModel),
		LLMBaseURL:  getEnv("LLMBASEURL", cfg.LLMBaseURL),
	}
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
