package core

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug           bool
		TestMode        bool
		Env             string
		Build           string
		AppName         string
		SecretKey       []byte
		WorkDir         string
		FrontendBaseURL string
		RollbarToken    string

		// TokenExpirationDelta is the lifetime of issued auth tokens.
		TokenExpirationDelta time.Duration
		// LastLoginRefreshDelta bounds how often an authenticated request
		// may write User.LastLogin back to the store.
		LastLoginRefreshDelta time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Bot      BotConfig
	}

	ServerConfig struct {
		Host            string
		Port            int
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          int
		DisableTLS    bool
	}

	BotConfig struct {
		APIURL  string
		APIKey  string
		Timeout time.Duration
	}
)

func (c ServerConfig) Address() string   { return fmt.Sprintf("%s:%d", c.Host, c.Port) }
func (c DatabaseConfig) Address() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "TrackWise")
	conf.SetDefault("secretKey", "x1u$+jm)1b!fwd0b5=p(r#t-e8u0^5o&yb#+4f&b+aq1^_g$2n")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("tokenExpirationDelta", 30*24*time.Hour)
	conf.SetDefault("lastLoginRefreshDelta", 6*time.Hour)

	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.port", 8000)
	conf.SetDefault("server.debugHost", "localhost:6060")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.name", "trackwise")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", 5432)
	conf.SetDefault("database.disableTLS", true)

	conf.SetDefault("bot.apiURL", "")
	conf.SetDefault("bot.timeout", 10*time.Second)

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	conf.AutomaticEnv()

	return &Config{
		Debug:                 conf.GetBool("debug"),
		TestMode:              env == "TEST",
		Env:                   env,
		Build:                 conf.GetString("build"),
		AppName:               conf.GetString("appName"),
		SecretKey:             []byte(conf.GetString("secretKey")),
		WorkDir:               wd,
		FrontendBaseURL:       conf.GetString("frontendBaseURL"),
		RollbarToken:          conf.GetString("rollbarToken"),
		TokenExpirationDelta:  conf.GetDuration("tokenExpirationDelta"),
		LastLoginRefreshDelta: conf.GetDuration("lastLoginRefreshDelta"),
		Server: ServerConfig{
			Host:            conf.GetString("server.host"),
			Port:            conf.GetInt("server.port"),
			DebugHost:       conf.GetString("server.debugHost"),
			ShutdownTimeout: conf.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetInt("database.port"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
		Bot: BotConfig{
			APIURL:  conf.GetString("bot.apiURL"),
			APIKey:  conf.GetString("bot.apiKey"),
			Timeout: conf.GetDuration("bot.timeout"),
		},
	}
}
