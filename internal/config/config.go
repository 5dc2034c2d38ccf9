package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	DatabasePath string // sqlite file, ":memory:" for tests

	// Liveness sweep
	SweepPeriod    time.Duration // how often stale hosts are checked
	StaleThreshold time.Duration // silence after which a host is offline

	AgentTimeout     time.Duration // full round-trip budget per agent command
	StatusEventQueue int           // status fan-out buffer size

	// Redis snapshot mirror (optional, empty addr = disabled)
	RedisAddr           string
	RedisUser           string
	RedisPassword       string
	RedisDB             int
	RedisDT             time.Duration // dial timeout
	RedisRT             time.Duration // read timeout
	RedisWT             time.Duration // write timeout
	RedisMaxWait        time.Duration // max wait between retries
	RedisPingTimeout    time.Duration
	RedisPoolSize       int
	RedisConnectTimeout time.Duration
	RedisRetryInterval  time.Duration
	SnapshotTTL         time.Duration // mirror key expiry

	// Discord OAuth (optional, empty client id = login disabled)
	DiscordClientID     string
	DiscordClientSecret string
	DiscordRedirectURI  string
}

// duration accepts Go duration strings ("90s", "2m") in YAML.
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

// fileConfig mirrors Config for the optional YAML overlay. Pointer fields
// so an absent key never clobbers an env-provided value.
type fileConfig struct {
	ListenPort      *string   `yaml:"listen_port"`
	ShutdownTimeout *duration `yaml:"shutdown_timeout"`
	LogLevel        *string   `yaml:"log_level"`
	PrettyLog       *bool     `yaml:"pretty_log"`
	DatabasePath    *string   `yaml:"database_path"`
	SweepPeriod     *duration `yaml:"sweep_period"`
	StaleThreshold  *duration `yaml:"stale_threshold"`
	AgentTimeout    *duration `yaml:"agent_timeout"`

	Redis struct {
		Addr        *string   `yaml:"addr"`
		User        *string   `yaml:"user"`
		Password    *string   `yaml:"password"`
		DB          *int      `yaml:"db"`
		SnapshotTTL *duration `yaml:"snapshot_ttl"`
	} `yaml:"redis"`

	Discord struct {
		ClientID     *string `yaml:"client_id"`
		ClientSecret *string `yaml:"client_secret"`
		RedirectURI  *string `yaml:"redirect_uri"`
	} `yaml:"discord"`
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("FLEET_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("FLEET_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("FLEET_LOG_LEVEL", "info"),
		PrettyLog: mustBool("FLEET_PRETTY_LOG", false),

		// Storage
		DatabasePath: getenv("FLEET_DB_PATH", "fleetportal.db"),

		// Liveness
		SweepPeriod:    mustDuration("FLEET_SWEEP_PERIOD", 60*time.Second),
		StaleThreshold: mustDuration("FLEET_STALE_THRESHOLD", 120*time.Second),

		// Agents
		AgentTimeout:     mustDuration("FLEET_AGENT_TIMEOUT", 30*time.Second),
		StatusEventQueue: getenvInt("FLEET_STATUS_EVENT_QUEUE", 256),

		// Redis settings
		RedisAddr:           getenv("FLEET_REDIS_ADDR", ""),
		RedisUser:           getenv("FLEET_REDIS_USERNAME", "default"),
		RedisPassword:       getenv("FLEET_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("FLEET_REDIS_DB", 0),
		RedisDT:             mustDuration("FLEET_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("FLEET_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("FLEET_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("FLEET_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("FLEET_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("FLEET_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("FLEET_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("FLEET_REDIS_RETRY_INTERVAL", 2*time.Second),
		SnapshotTTL:         mustDuration("FLEET_SNAPSHOT_TTL", 10*time.Minute),

		// Discord OAuth
		DiscordClientID:     getenv("FLEET_DISCORD_CLIENT_ID", ""),
		DiscordClientSecret: getenv("FLEET_DISCORD_CLIENT_SECRET", ""),
		DiscordRedirectURI:  getenv("FLEET_DISCORD_REDIRECT_URI", ""),
	}

	if path := os.Getenv("FLEET_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			panic(fmt.Sprintf("❌ FATAL: cannot load config file %s: %v", path, err))
		}
	}

	if cfg.DiscordClientID != "" && cfg.DiscordClientSecret == "" {
		panic("❌ FATAL: FLEET_DISCORD_CLIENT_SECRET is required when a client id is set")
	}

	return cfg
}

// applyFile overlays values from a YAML file. File values win over env so a
// mounted config file stays authoritative in container deployments.
func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return err
	}

	setString(&c.ListenPort, fc.ListenPort)
	setDuration(&c.ShutdownTimeout, fc.ShutdownTimeout)
	setString(&c.LogLevel, fc.LogLevel)
	setBool(&c.PrettyLog, fc.PrettyLog)
	setString(&c.DatabasePath, fc.DatabasePath)
	setDuration(&c.SweepPeriod, fc.SweepPeriod)
	setDuration(&c.StaleThreshold, fc.StaleThreshold)
	setDuration(&c.AgentTimeout, fc.AgentTimeout)

	setString(&c.RedisAddr, fc.Redis.Addr)
	setString(&c.RedisUser, fc.Redis.User)
	setString(&c.RedisPassword, fc.Redis.Password)
	setInt(&c.RedisDB, fc.Redis.DB)
	setDuration(&c.SnapshotTTL, fc.Redis.SnapshotTTL)

	setString(&c.DiscordClientID, fc.Discord.ClientID)
	setString(&c.DiscordClientSecret, fc.Discord.ClientSecret)
	setString(&c.DiscordRedirectURI, fc.Discord.RedirectURI)

	return nil
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *duration) {
	if v != nil {
		*dst = time.Duration(*v)
	}
}
