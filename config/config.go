package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Security  SecurityConfig  `mapstructure:"security"`
	Challenge ChallengeConfig `mapstructure:"challenge"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
	// AdminIPs restricts admin endpoints to these addresses or CIDR ranges; empty allows all.
	AdminIPs []string `mapstructure:"admin_ips"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // memory | sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
	KeyPrefix       string        `mapstructure:"key_prefix"`
}

type SecurityConfig struct {
	// JWTSecret verifies bearer tokens minted by the identity provider.
	JWTSecret      string  `mapstructure:"jwt_secret"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

type ChallengeConfig struct {
	CatalogPath     string        `mapstructure:"catalog_path"`
	DefaultTimezone string        `mapstructure:"default_timezone"`
	BonusDelay      time.Duration `mapstructure:"bonus_delay"`
	BonusRate       float64       `mapstructure:"bonus_rate"`
	// LeaderboardRefresh is the interval of the read-side refresh ping; 0 disables it.
	LeaderboardRefresh time.Duration     `mapstructure:"leaderboard_refresh"`
	InboxSize          int               `mapstructure:"inbox_size"`
	PersonaAliases     map[string]string `mapstructure:"persona_aliases"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CHALLENGE")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/challenge.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("cache.key_prefix", "challenge:")
	v.SetDefault("security.rate_limit_rps", 50)
	v.SetDefault("security.rate_limit_burst", 100)
	v.SetDefault("challenge.catalog_path", "./data/catalog.yaml")
	v.SetDefault("challenge.default_timezone", "UTC")
	v.SetDefault("challenge.bonus_delay", "1500ms")
	v.SetDefault("challenge.bonus_rate", 0.05)
	v.SetDefault("challenge.leaderboard_refresh", "30s")
	v.SetDefault("challenge.inbox_size", 50)
}
