package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName          string
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string

		Server   ServerConfig
		Database DatabaseConfig
		SMS      SMSConfig
		Client   ClientConfig
	}

	ServerConfig struct {
		Host                      string
		Port                      int
		DebugHost                 string
		ShutdownTimeout           time.Duration
		CookieSecure              bool
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetTimeoutDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		InMemory      bool
	}

	SMSConfig struct {
		BaseURL      string
		ApiKey       string
		SenderID     string
		EntityID     string // DLT principal entity
		SyncSchedule string // cron spec for delivery status sync
	}

	ClientConfig struct {
		BaseURL        string
		PageSize       int
		SearchDebounce time.Duration
		CacheTTL       time.Duration
	}
)

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// NewConfig loads the configuration of the current ENV from the environment,
// optionally seeded from `config/.env.<env>`.
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	loadDotEnv(env)

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, env)

	conf := &Config{
		AppName:         v.GetString("app.name"),
		Env:             env,
		Build:           v.GetString("app.build"),
		Debug:           v.GetBool("app.debug"),
		TestMode:        v.GetBool("app.testmode"),
		SecretKey:       v.GetString("app.secretkey"),
		FrontendBaseURL: v.GetString("app.frontendbaseurl"),
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("app.name"),
			Address: v.GetString("app.defaultfromemail"),
		},
		SendgridApiKey: v.GetString("sendgrid.apikey"),
		RollbarToken:   v.GetString("rollbar.token"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Port:                      v.GetInt("server.port"),
			DebugHost:                 v.GetString("server.debughost"),
			ShutdownTimeout:           v.GetDuration("server.shutdowntimeout"),
			CookieSecure:              v.GetBool("server.cookiesecure"),
			JWTExpirationDelta:        v.GetDuration("server.jwtexpirationdelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtrefreshexpirationdelta"),
			PasswordResetTimeoutDelta: v.GetDuration("server.passwordresettimeoutdelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminuser"),
			AdminPassword: v.GetString("database.adminpassword"),
			DisableTLS:    v.GetBool("database.disabletls"),
			InMemory:      v.GetBool("database.inmemory"),
		},
		SMS: SMSConfig{
			BaseURL:      v.GetString("sms.baseurl"),
			ApiKey:       v.GetString("sms.apikey"),
			SenderID:     v.GetString("sms.senderid"),
			EntityID:     v.GetString("sms.entityid"),
			SyncSchedule: v.GetString("sms.syncschedule"),
		},
		Client: ClientConfig{
			BaseURL:        v.GetString("client.baseurl"),
			PageSize:       v.GetInt("client.pagesize"),
			SearchDebounce: v.GetDuration("client.searchdebounce"),
			CacheTTL:       v.GetDuration("client.cachettl"),
		},
	}
	return conf
}

func setDefaults(v *viper.Viper, env string) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("app.name", "Admitflow")
	v.SetDefault("app.build", "dev")
	v.SetDefault("app.debug", env == "DEV" || env == "TEST")
	v.SetDefault("app.testmode", env == "TEST")
	v.SetDefault("app.secretkey", "k3y-d3v-0nly(not=for)prod#5bd1$q+7v!ae0w9r@u2z")
	v.SetDefault("app.frontendbaseurl", "http://localhost:3000")
	v.SetDefault("app.defaultfromemail", "noreply@localhost")

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.debughost", "localhost:4000")
	v.SetDefault("server.shutdowntimeout", 5*time.Second)
	v.SetDefault("server.cookiesecure", env == "PROD")
	v.SetDefault("server.jwtexpirationdelta", 7*24*time.Hour)
	v.SetDefault("server.jwtrefreshexpirationdelta", 4*time.Hour)
	v.SetDefault("server.passwordresettimeoutdelta", 3*24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "admitflow")
	v.SetDefault("database.user", "admitflow")
	v.SetDefault("database.password", "admitflow")
	v.SetDefault("database.adminuser", "postgres")
	v.SetDefault("database.adminpassword", "postgres")
	v.SetDefault("database.disabletls", env == "DEV" || env == "TEST")
	v.SetDefault("database.inmemory", false)

	v.SetDefault("sms.baseurl", "")
	v.SetDefault("sms.apikey", "")
	v.SetDefault("sms.senderid", "ADMFLW")
	v.SetDefault("sms.entityid", "")
	v.SetDefault("sms.syncschedule", "@every 5m")

	v.SetDefault("client.baseurl", "http://localhost:8000")
	v.SetDefault("client.pagesize", 20)
	v.SetDefault("client.searchdebounce", 500*time.Millisecond)
	v.SetDefault("client.cachettl", 30*time.Second)
}

// loadDotEnv loads config/.env.<env> if it exists (ignored if it does not).
func loadDotEnv(env string) {
	dir := os.Getenv("CONFIG_DIR")
	if dir == "" {
		dir = "config"
	}
	dotEnvPath := filepath.Join(dir, ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
}

// NewTestConfig returns the configuration used by tests: in-memory storage, quiet loggers.
func NewTestConfig() *Config {
	_ = os.Setenv("ENV", "TEST")
	conf := NewConfig()
	conf.Database.InMemory = true
	conf.Server.JWTExpirationDelta = 10 * time.Minute
	return conf
}
