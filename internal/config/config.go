// Package config loads the service configuration from defaults, an optional config file, a .env
// file and environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the complete service configuration.
type Config struct {
	Port       int
	Migrate    bool
	GinLogging bool
	Database   Database
	Redis      Redis
	Lock       Lock
	Log        Log
}

// Database selects the contact store and how to reach it.
type Database struct {
	// Driver is one of "mysql", "postgres", "sqlite3" and "memory".
	Driver      string
	Host        string
	User        string
	Password    string
	Name        string
	DSN         string
	ReadRetries uint64
}

// Redis configures the shared identity lock. Without a URL the lock is kept in process.
type Redis struct {
	URL string
}

type Lock struct {
	TTL time.Duration
}

type Log struct {
	Level  string
	Format string
}

// env maps configuration keys onto the environment variables that override them.
var env = map[string]string{
	"port":            "PORT",
	"migrate":         "MIGRATE",
	"gin.logging":     "GIN_LOGGING",
	"db.driver":       "DBDRIVER",
	"db.host":         "DBHOST",
	"db.user":         "DBUSER",
	"db.password":     "DBPWD",
	"db.name":         "DBNAME",
	"db.dsn":          "DATABASE_URL",
	"db.read_retries": "DB_READ_RETRIES",
	"redis.url":       "REDIS_URL",
	"lock.ttl":        "LOCK_TTL",
	"log.level":       "LOG_LEVEL",
	"log.format":      "LOG_FORMAT",
}

var drivers = []string{"mysql", "postgres", "sqlite3", "memory"}

func defaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("migrate", false)
	v.SetDefault("gin.logging", "on")
	v.SetDefault("db.driver", "mysql")
	v.SetDefault("db.host", "localhost:3306")
	v.SetDefault("db.name", "test")
	v.SetDefault("db.read_retries", 2)
	v.SetDefault("lock.ttl", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads the configuration. A .env file in the working directory is loaded into the
// environment first if present. CONFIG_FILE names an optional config file in any format viper
// understands.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	defaults(v)
	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", name, err)
		}
	}
	if err := v.BindEnv("config_file", "CONFIG_FILE"); err != nil {
		return nil, fmt.Errorf("bind CONFIG_FILE: %w", err)
	}
	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		Port:       v.GetInt("port"),
		Migrate:    v.GetBool("migrate"),
		GinLogging: !strings.EqualFold(v.GetString("gin.logging"), "off"),
		Database: Database{
			Driver:      strings.ToLower(v.GetString("db.driver")),
			Host:        v.GetString("db.host"),
			User:        v.GetString("db.user"),
			Password:    v.GetString("db.password"),
			Name:        v.GetString("db.name"),
			DSN:         v.GetString("db.dsn"),
			ReadRetries: v.GetUint64("db.read_retries"),
		},
		Redis: Redis{URL: v.GetString("redis.url")},
		Lock:  Lock{TTL: v.GetDuration("lock.ttl")},
		Log: Log{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if !contains(drivers, c.Database.Driver) {
		return fmt.Errorf("unsupported database driver %q, expected one of %s",
			c.Database.Driver, strings.Join(drivers, ", "))
	}
	if c.Lock.TTL <= 0 {
		return fmt.Errorf("invalid lock TTL %s", c.Lock.TTL)
	}
	return nil
}

func contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}

// DataSourceName returns the connection string for the configured driver. An explicit DSN wins
// over the individual connection settings.
func (d Database) DataSourceName() string {
	if d.DSN != "" {
		return d.DSN
	}
	switch d.Driver {
	case "postgres":
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(d.User, d.Password),
			Host:     d.Host,
			Path:     "/" + d.Name,
			RawQuery: "sslmode=disable",
		}
		return u.String()
	case "sqlite3":
		return "file:" + d.Name + ".db?_busy_timeout=5000&_foreign_keys=on"
	default:
		mc := mysql.NewConfig()
		mc.User = d.User
		mc.Passwd = d.Password
		mc.Net = "tcp"
		mc.Addr = d.Host
		mc.DBName = d.Name
		mc.ParseTime = true
		return mc.FormatDSN()
	}
}
