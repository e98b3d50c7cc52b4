package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	LinkedIn LinkedInConfig `mapstructure:"linkedin"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Targets  TargetsConfig  `mapstructure:"targets"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	CRM      CRMConfig      `mapstructure:"crm"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
}

type LinkedInConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type LimitsConfig struct {
	MaxConnectionsPerDay int `mapstructure:"max_connections_per_day"`
	MaxMessagesPerDay    int `mapstructure:"max_messages_per_day"`
	MinActionDelaySec    int `mapstructure:"min_action_delay_sec"`
	MaxActionDelaySec    int `mapstructure:"max_action_delay_sec"`
}

type BrowserConfig struct {
	Headless bool `mapstructure:"headless"`
}

type TargetsConfig struct {
	Industries []string `mapstructure:"industries"`
	Titles     []string `mapstructure:"titles"`
	Locations  []string `mapstructure:"locations"`
}

type DatabaseConfig struct {
	// Path is the SQLite database location; ":memory:" keeps state in-process.
	Path        string `mapstructure:"path"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UsePostgres bool   `mapstructure:"use_postgres"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	File     string `mapstructure:"file"`
	ChatLog  string `mapstructure:"chat_log"`
	ErrorLog string `mapstructure:"error_log"`
}

type CRMConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Token    string `mapstructure:"token"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

var ErrMissingCredentials = errors.New("linkedin email and password are required")

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:        u.Hostname(),
		Port:        port,
		User:        u.User.Username(),
		Password:    password,
		DBName:      dbName,
		SSLMode:     "disable",
		UsePostgres: true,
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("limits.max_connections_per_day", 25)
	v.SetDefault("limits.max_messages_per_day", 15)
	v.SetDefault("limits.min_action_delay_sec", 5)
	v.SetDefault("limits.max_action_delay_sec", 15)
	v.SetDefault("browser.headless", true)
	v.SetDefault("targets.industries", []string{"Technology", "Marketing", "Sales"})
	v.SetDefault("targets.titles", []string{"CEO", "CTO", "Director", "Manager"})
	v.SetDefault("targets.locations", []string{})
	v.SetDefault("database.path", "linkedin_bot.sqlite3")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "linkedin_bot.log")
	v.SetDefault("logging.chat_log", "chat_logs.jsonl")
	v.SetDefault("logging.error_log", "error_logs.jsonl")
	v.SetDefault("openai.model", "gpt-3.5-turbo")
	v.SetDefault("openai.max_tokens", 150)
	v.SetDefault("openai.temperature", 0.7)

	// Enable environment variable support
	v.AutomaticEnv()

	// The config file is optional; environment variables alone are enough.
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		dbConfig.Path = config.Database.Path
		config.Database = dbConfig
	}

	// Get other environment variables
	if email := v.GetString("LINKEDIN_EMAIL"); email != "" {
		config.LinkedIn.Email = email
	}
	if password := v.GetString("LINKEDIN_PASSWORD"); password != "" {
		config.LinkedIn.Password = password
	}
	if n := v.GetInt("MAX_CONNECTIONS_PER_DAY"); n > 0 {
		config.Limits.MaxConnectionsPerDay = n
	}
	if n := v.GetInt("MAX_MESSAGES_PER_DAY"); n > 0 {
		config.Limits.MaxMessagesPerDay = n
	}
	if v.IsSet("HEADLESS_BROWSER") {
		config.Browser.Headless = v.GetBool("HEADLESS_BROWSER")
	}
	if industries := v.GetString("TARGET_INDUSTRIES"); industries != "" {
		config.Targets.Industries = splitList(industries)
	}
	if titles := v.GetString("TARGET_TITLES"); titles != "" {
		config.Targets.Titles = splitList(titles)
	}
	if locations := v.GetString("TARGET_LOCATIONS"); locations != "" {
		config.Targets.Locations = splitList(locations)
	}
	if path := v.GetString("DB_PATH"); path != "" {
		config.Database.Path = path
	}
	if level := v.GetString("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if file := v.GetString("LOG_FILE"); file != "" {
		config.Logging.File = file
	}
	if endpoint := v.GetString("CRM_API_ENDPOINT"); endpoint != "" {
		config.CRM.Endpoint = endpoint
	}
	if token := v.GetString("CRM_API_TOKEN"); token != "" {
		config.CRM.Token = token
	}
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	return &config, nil
}

// Validate fails fast on configuration the bot cannot run without.
func (c *Config) Validate() error {
	if c.LinkedIn.Email == "" || c.LinkedIn.Password == "" {
		return ErrMissingCredentials
	}
	if c.Limits.MinActionDelaySec > c.Limits.MaxActionDelaySec {
		return fmt.Errorf("min_action_delay_sec %d exceeds max_action_delay_sec %d",
			c.Limits.MinActionDelaySec, c.Limits.MaxActionDelaySec)
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
