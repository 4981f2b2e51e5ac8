package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v0.3.0"

// Current version of the config file.
const (
	CurrentCommonVersion = 1
	CurrentBotVersion    = 1
)

// Environment variables that override secrets from the config files.
const (
	EnvDiscordToken     = "SENTINEL_DISCORD_TOKEN"
	EnvClassifierAPIKey = "SENTINEL_CLASSIFIER_API_KEY"
	EnvPostgresPassword = "SENTINEL_POSTGRES_PASSWORD"
	EnvRedisPassword    = "SENTINEL_REDIS_PASSWORD"
)

// Config represents the entire application configuration.
type Config struct {
	Common CommonConfig
	Bot    BotConfig
}

// CommonConfig contains configuration shared between the bot and the tools.
type CommonConfig struct {
	// Version of the common config.
	Version    int        `koanf:"version"`
	Debug      Debug      `koanf:"debug"`
	Uptrace    Uptrace    `koanf:"uptrace"`
	Metrics    Metrics    `koanf:"metrics"`
	Storage    Storage    `koanf:"storage"`
	PostgreSQL PostgreSQL `koanf:"postgresql"`
	Redis      Redis      `koanf:"redis"`
	Classifier Classifier `koanf:"classifier"`
	Export     Export     `koanf:"export"`
}

// BotConfig contains Discord bot specific configuration.
type BotConfig struct {
	// Version of the bot config.
	Version int `koanf:"version"`
	// Request timeout in milliseconds.
	RequestTimeout int        `koanf:"request_timeout"`
	Discord        Discord    `koanf:"discord"`
	Moderation     Moderation `koanf:"moderation"`
	Window         Window     `koanf:"window"`
	RateLimit      RateLimit  `koanf:"rate_limit"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log sessions to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
	// Maximum lines per log file.
	MaxLogLines int `koanf:"max_log_lines"`
}

// Uptrace contains tracing exporter configuration.
type Uptrace struct {
	Enabled bool   `koanf:"enabled"`
	DSN     string `koanf:"dsn"`
}

// Metrics contains the prometheus endpoint configuration.
type Metrics struct {
	Enabled bool `koanf:"enabled"`
	// Listen address, e.g. ":9090".
	Addr string `koanf:"addr"`
}

// Storage selects the stats store.
type Storage struct {
	// Driver is "sqlite" or "postgres".
	Driver string `koanf:"driver"`
	// SQLite database path.
	SQLitePath string `koanf:"sqlite_path"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Disable TLS.
	Insecure bool `koanf:"insecure"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
	// Queries slower than this many milliseconds are logged as warnings.
	SlowQueryMillis int `koanf:"slow_query_ms"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// When disabled, the queue is not mirrored and report sessions stay in memory.
	Enabled bool `koanf:"enabled"`
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
}

// Classifier contains the inference service configuration.
type Classifier struct {
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
	// Per-call timeout in milliseconds.
	Timeout int `koanf:"timeout"`
	// Maximum concurrent inference calls.
	MaxConcurrent int64 `koanf:"max_concurrent"`
	// Open state duration of the breaker in milliseconds.
	BreakerTimeout int `koanf:"breaker_timeout"`
	// Minimum calls before the breaker may trip.
	BreakerMinCalls uint32 `koanf:"breaker_min_calls"`
	// Failure ratio that trips the breaker.
	BreakerFailRatio float64 `koanf:"breaker_fail_ratio"`
}

// Export contains file export configuration.
type Export struct {
	// Directory for CSV, JSON and SQLite exports.
	Dir string `koanf:"dir"`
	// Cron spec for periodic profile snapshots. Empty disables them.
	SnapshotSchedule string `koanf:"snapshot_schedule"`
	// Restore risk profiles from the newest snapshot at startup.
	RestoreOnStartup bool `koanf:"restore_on_startup"`
}

// Discord contains Discord bot configuration.
type Discord struct {
	// Discord bot token for authentication.
	Token string `koanf:"token"`
	// Channel that receives alerts and accepts moderator commands.
	ModeratorChannelID uint64 `koanf:"moderator_channel_id"`
	// Guilds to monitor. Empty monitors every guild the bot is in.
	GuildIDs []uint64 `koanf:"guild_ids"`
	// Prefix for moderator commands.
	CommandPrefix string `koanf:"command_prefix"`
}

// Moderation contains moderator workflow configuration.
type Moderation struct {
	// Post a per-message analysis to the moderator channel.
	PostAnalysis bool `koanf:"post_analysis"`
	// Ban on the platform when the stored score triggers an automatic ban.
	EnforceAutoActions bool `koanf:"enforce_auto_actions"`
	// Seconds to wait for a moderator confirmation.
	ConfirmTimeout int `koanf:"confirm_timeout"`
	// Minutes of inactivity before a report session is dropped.
	SessionIdle int `koanf:"session_idle"`
}

// Window contains conversation window configuration.
type Window struct {
	MaxMessages int `koanf:"max_messages"`
	// Hours a buffered message stays in context.
	TimeWindow int `koanf:"time_window"`
	// Hours of inactivity before a window is evicted.
	IdleEviction int `koanf:"idle_eviction"`
}

// RateLimit contains limiter configuration.
type RateLimit struct {
	// Milliseconds between report inputs from one user.
	UserCooldown int `koanf:"user_cooldown"`
	// Classifications per guild per reset period.
	GuildLimit int `koanf:"guild_limit"`
	// Guild reset period in seconds.
	GuildPeriod int `koanf:"guild_period"`
	// Classifications globally per reset period.
	GlobalLimit int `koanf:"global_limit"`
	// Global reset period in seconds.
	GlobalPeriod int `koanf:"global_period"`
}

// LoadConfig loads the configuration files and applies environment overrides.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return LoadFrom([]string{
		".sentinel",
		homeDir + "/.sentinel/config",
		"/etc/sentinel/config",
		"/app/config",
		"config",
		".",
	})
}

// LoadFrom loads the configuration from the first matching path for each file.
func LoadFrom(configPaths []string) (*Config, string, error) {
	k := koanf.New(".")

	var usedConfigPath string

	configFiles := []string{"common", "bot"}
	for _, configName := range configFiles {
		configLoaded := false

		for _, path := range configPaths {
			configPath := fmt.Sprintf("%s/%s.toml", path, configName)
			if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
				configLoaded = true

				if usedConfigPath == "" {
					usedConfigPath = path
				}

				break
			}
		}

		if !configLoaded {
			return nil, "", fmt.Errorf("%w: %s.toml", ErrConfigFileNotFound, configName)
		}
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := checkConfigVersion("common", config.Common.Version, CurrentCommonVersion); err != nil {
		return nil, "", err
	}

	if err := checkConfigVersion("bot", config.Bot.Version, CurrentBotVersion); err != nil {
		return nil, "", err
	}

	// A missing .env file is fine
	_ = godotenv.Load(usedConfigPath + "/.env")
	applyEnv(&config)

	return &config, usedConfigPath, nil
}

// applyEnv overrides secrets with environment values when set.
func applyEnv(config *Config) {
	overrides := map[string]*string{
		EnvDiscordToken:     &config.Bot.Discord.Token,
		EnvClassifierAPIKey: &config.Common.Classifier.APIKey,
		EnvPostgresPassword: &config.Common.PostgreSQL.Password,
		EnvRedisPassword:    &config.Common.Redis.Password,
	}

	for key, target := range overrides {
		if value, ok := os.LookupEnv(key); ok && value != "" {
			*target = value
		}
	}
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s.toml (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/robalyx/sentinel/tree/%s/config/%s.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
			name,
		)
	}

	return nil
}
