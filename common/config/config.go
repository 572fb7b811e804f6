package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var Conf *Config

// Config is the full configuration surface for the tonk server process.
// Every field can be overridden by an environment variable of the same
// name, upper-cased and dot-joined with underscores (TONK_HTTPPORT,
// TONK_DATABASE_MONGO_URL, ...).
type Config struct {
	AppName      string       `mapstructure:"appName"`
	Log          LogConf      `mapstructure:"log"`
	HttpPort     int          `mapstructure:"httpPort"`
	WsPort       int          `mapstructure:"wsPort"`
	MetricPort   int          `mapstructure:"metricPort"`
	EtcdConf     EtcdConf     `mapstructure:"etcd"`
	JwtConf      JwtConf      `mapstructure:"jwt"`
	DatabaseConf DatabaseConf `mapstructure:"database"`
	NatsConf     NatsConf     `mapstructure:"nats"`
	CorsOrigins  []string     `mapstructure:"corsOrigins"`
	Game         GameConf     `mapstructure:"game"`
}

type LogConf struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

type EtcdConf struct {
	Addrs       []string `mapstructure:"addrs"`
	DialTimeout int      `mapstructure:"dialTimeout"`
}

type JwtConf struct {
	Secret string `mapstructure:"secret"`
	Expire int    `mapstructure:"expire"`
}

type DatabaseConf struct {
	MongoConf MongoConf `mapstructure:"mongo"`
	RedisConf RedisConf `mapstructure:"redis"`
}

type MongoConf struct {
	Url         string `mapstructure:"url"`
	Db          string `mapstructure:"db"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	MinPoolSize int    `mapstructure:"minPoolSize"`
	MaxPoolSize int    `mapstructure:"maxPoolSize"`
}

type RedisConf struct {
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	PoolSize     int    `mapstructure:"poolSize"`
	MinIdleConns int    `mapstructure:"minIdleConns"`
	DB           int    `mapstructure:"db"`
}

type NatsConf struct {
	Url string `mapstructure:"url"`
}

// GameConf holds the game-level tunables. The server reads only
// StakeLadder and QueueCleanupPeriod (the sweep interval for abandoned
// queue entries); the other fields are parsed but not used, and the
// session and matchmaker packages use their own constants for ping
// cadence, grace periods, matchmaker tick, seats and countdowns.
type GameConf struct {
	PingInterval       time.Duration `mapstructure:"pingInterval"`
	ConnGracePeriod    time.Duration `mapstructure:"connGracePeriod"`
	QueueCleanupPeriod time.Duration `mapstructure:"queueCleanupPeriod"`
	MatchmakerInterval time.Duration `mapstructure:"matchmakerInterval"`
	StakeLadder        []int64       `mapstructure:"stakeLadder"`
	SeatsPerTable      int           `mapstructure:"seatsPerTable"`
	CountdownSeconds   int           `mapstructure:"countdownSeconds"`
	TurnTimeoutSeconds int           `mapstructure:"turnTimeoutSeconds"`
}

// DefaultStakeLadder is the preset set of stakes the matchmaker and
// queue manager operate over when the config file omits one.
var DefaultStakeLadder = []int64{100, 500, 1000, 5000, 10000}

func defaults() *Config {
	return &Config{
		AppName:    "tonkserver",
		HttpPort:   8080,
		WsPort:     8081,
		MetricPort: 8082,
		Log:        LogConf{Level: "info"},
		Game: GameConf{
			PingInterval:       15 * time.Second,
			ConnGracePeriod:    30 * time.Second,
			QueueCleanupPeriod: 10 * time.Minute,
			MatchmakerInterval: 10 * time.Second,
			StakeLadder:        DefaultStakeLadder,
			SeatsPerTable:      4,
			CountdownSeconds:   5,
			TurnTimeoutSeconds: 20,
		},
	}
}

// InitConfig loads configFile, binds TONK_-prefixed environment
// overrides, and keeps Conf live via fsnotify so operators can tune
// thresholds without a restart.
func InitConfig(configFile string) {
	Conf = defaults()
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetEnvPrefix("tonk")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.WatchConfig()
	v.OnConfigChange(func(in fsnotify.Event) {
		if err := v.Unmarshal(Conf); err != nil {
			panic(fmt.Errorf("reloading config: %w", err))
		}
	})

	if err := v.ReadInConfig(); err != nil {
		panic(fmt.Errorf("reading config file: %w", err))
	}
	if err := v.Unmarshal(Conf); err != nil {
		panic(fmt.Errorf("parsing config file: %w", err))
	}
}
