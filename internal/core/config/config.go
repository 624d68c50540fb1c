package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}

type App struct {
	Name string
	Env  string
	HTTP HTTP
}

type Log struct {
	Level string
	JSON  bool
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int
}

type Redis struct {
	Enable   bool   `mapstructure:"enable"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DB struct {
	Driver             string
	DSN                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

// FHE selects the CKKS context. AutoKeygen generates a throwaway context
// when KeyDir has no material; dev convenience only.
type FHE struct {
	KeyDir           string  `mapstructure:"key_dir"`
	AutoKeygen       bool    `mapstructure:"auto_keygen"`
	LogN             int     `mapstructure:"log_n"`
	Levels           int     `mapstructure:"levels"`
	LogScale         int     `mapstructure:"log_scale"`
	MagnitudeBound   float64 `mapstructure:"magnitude_bound"`
	GoldschmidtIters int     `mapstructure:"goldschmidt_iters"`
}

// Oracle configures the decryption side. Secret keys the callback proofs;
// CallbackToken authenticates the HTTP callback route when the oracle runs
// as a separate deployment.
type Oracle struct {
	Secret        string `mapstructure:"secret"`
	CallbackToken string `mapstructure:"callback_token"`
	QueueSize     int    `mapstructure:"queue_size"`
}

type Config struct {
	App    App
	Log    Log
	JWT    JWT
	DB     DB
	Redis  Redis  `mapstructure:"redis"`
	FHE    FHE    `mapstructure:"fhe"`
	Oracle Oracle `mapstructure:"oracle"`
}

func Load(path string) *Config {
	v := viper.New()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("read config: %v", err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		log.Fatalf("unmarshal config: %v", err)
	}
	return &c
}
