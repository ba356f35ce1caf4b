package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "resume-tuner"
)

const (
	BackendRemote = "remote"
	BackendGemini = "gemini"

	PolicyLastResponse = "last-response"
	PolicyLastRequest  = "last-request"
)

type Config struct {
	Service  *ServiceConfig  `mapstructure:"service" validate:"required"`
	Gemini   *GeminiConfig   `mapstructure:"gemini"`
	Workflow *WorkflowConfig `mapstructure:"workflow" validate:"required"`
}

type ServiceConfig struct {
	Backend   string        `mapstructure:"backend" validate:"oneof=remote gemini"`
	URL       string        `mapstructure:"url" validate:"omitempty,url"`
	TokenFile string        `mapstructure:"token-file"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gte=0"`
	UserAgent string        `mapstructure:"user-agent"`
	// RateLimit caps requests per minute, 0 disables it.
	RateLimit int `mapstructure:"rate-limit" validate:"gte=0"`
	Burst     int `mapstructure:"burst" validate:"gte=0"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	CacheSize    int    `mapstructure:"cache-size" validate:"gte=0"`
	MaxLogLength int    `mapstructure:"max-log-length" validate:"gte=0"`
}

type WorkflowConfig struct {
	OutputFormat  string `mapstructure:"output-format" validate:"oneof=pdf docx"`
	TemplateStyle string `mapstructure:"template-style" validate:"oneof=professional classic modern minimal"`
	OutputDir     string `mapstructure:"output-dir"`
	Policy        string `mapstructure:"policy" validate:"oneof=last-response last-request"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "resume-tuner extracts job skills, scores a resume against them and tailors it",
	}

	validate = validator.New()
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"service.url":         "RESUME_TUNER_URL",
		"service.token-file":  "RESUME_TUNER_TOKEN_FILE",
		"gemini.api-key-file": "GEMINI_API_KEY_FILE",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is resume-tuner.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	viper.SetDefault("service.backend", BackendRemote)
	viper.SetDefault("service.timeout", 2*time.Minute)
	viper.SetDefault("service.user-agent", app)
	viper.SetDefault("service.burst", 1)
	viper.SetDefault("gemini.model", "gemini-2.5-flash")
	viper.SetDefault("gemini.cache-size", 64)
	viper.SetDefault("gemini.max-log-length", 200)
	viper.SetDefault("workflow.output-format", "pdf")
	viper.SetDefault("workflow.template-style", "professional")
	viper.SetDefault("workflow.output-dir", ".")
	viper.SetDefault("workflow.policy", PolicyLastResponse)
}

func initConfig() {
	// Config needed only for run and config commands.
	if runCmd.CalledAs() == "" && configCmd.CalledAs() == "" {
		return
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Without an explicit --config the defaults and environment are enough.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if config == nil {
		return nil, errors.New("config is empty")
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}
