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

// Conf is the process-wide configuration, loaded once at init.
var Conf *Config

func init() {
	Conf = NewConfig()
}

type (
	Config struct {
		Env                       string // DEV (local; default), TEST, QA, PROD
		Debug                     bool
		TestMode                  bool
		Build                     string
		AppName                   string
		SecretKey                 string
		FrontendBaseURL           string
		WorkDir                   string
		MediaRoot                 string
		TimeZone                  string
		LogLevel                  string
		RollbarToken              string
		SendgridApiKey            string
		PasswordResetTimeoutDelta time.Duration

		defaultFromEmail string

		Server        ServerConfig
		Database      DatabaseConfig
		WhatsApp      WhatsAppConfig
		Notifications NotificationsConfig
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		DebugAddress              string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine          string // postgres | memory
		Host            string
		Port            int
		Name            string
		User            string
		Password        string
		AdminUser       string
		AdminPassword   string
		DisableTLS      bool
		MaxOpenConns    int
		MaxIdleConns    int
		ConnMaxLifetime time.Duration
	}

	WhatsAppConfig struct {
		Provider         string // console | twilio
		TwilioAccountSID string
		TwilioAuthToken  string
		TwilioNumber     string
		TwilioBaseURL    string
	}

	NotificationsConfig struct {
		ScanEnabled     bool
		ScanSchedule    string // cron spec
		ScanWindowDays  int
		ScanTimeout     time.Duration
		ScanDedupe      bool
		DispatchWorkers int
		DispatchBuffer  int
		EmailCopy       bool
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

// Location returns the configured time zone, UTC when unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NewConfig reads the configuration from the environment, after loading `config/.env.<env>` if it exists.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("app_name", "Miradi")
	v.SetDefault("secret_key", "7x!kq1$rw+e=u2mz@h9(0pa)c&j3b^d4f6t8y_n5s#lvoig*")
	v.SetDefault("frontend_base_url", "http://localhost:8080")
	v.SetDefault("default_from_email", "Miradi <noreply@localhost>")
	v.SetDefault("time_zone", "UTC")
	v.SetDefault("media_root", "media")
	v.SetDefault("log_level", "info")
	v.SetDefault("rollbar_token", "")
	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("password_reset_timeout_delta", 3*24*time.Hour)

	v.SetDefault("server_host", "localhost")
	v.SetDefault("server_address", ":8000")
	v.SetDefault("server_debug_address", ":4000")
	v.SetDefault("server_shutdown_timeout", 5*time.Second)
	v.SetDefault("jwt_expiration_delta", 7*24*time.Hour)
	v.SetDefault("jwt_refresh_expiration_delta", 4*time.Hour)

	v.SetDefault("db_engine", "postgres")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_name", "miradi")
	v.SetDefault("db_user", "miradi")
	v.SetDefault("db_password", "")
	v.SetDefault("db_admin_user", "")
	v.SetDefault("db_admin_password", "")
	v.SetDefault("db_disable_tls", false)
	v.SetDefault("db_max_open_conns", 25)
	v.SetDefault("db_max_idle_conns", 25)
	v.SetDefault("db_conn_max_lifetime", 5*time.Minute)

	v.SetDefault("whatsapp_provider", "console")
	v.SetDefault("twilio_account_sid", "")
	v.SetDefault("twilio_auth_token", "")
	v.SetDefault("twilio_whatsapp_number", "")
	v.SetDefault("twilio_base_url", "https://api.twilio.com")

	v.SetDefault("notify_scan_enabled", true)
	v.SetDefault("notify_scan_schedule", "0 8 * * *")
	v.SetDefault("notify_scan_window_days", 7)
	v.SetDefault("notify_scan_timeout", 5*time.Minute)
	v.SetDefault("notify_scan_dedupe", true)
	v.SetDefault("notify_dispatch_workers", 2)
	v.SetDefault("notify_dispatch_buffer", 100)
	v.SetDefault("notify_email_copy", false)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("test_mode", true)
	}

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:                       env,
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("test_mode"),
		Build:                     v.GetString("build"),
		AppName:                   v.GetString("app_name"),
		SecretKey:                 v.GetString("secret_key"),
		FrontendBaseURL:           v.GetString("frontend_base_url"),
		WorkDir:                   wd,
		MediaRoot:                 v.GetString("media_root"),
		TimeZone:                  v.GetString("time_zone"),
		LogLevel:                  v.GetString("log_level"),
		RollbarToken:              v.GetString("rollbar_token"),
		SendgridApiKey:            v.GetString("sendgrid_api_key"),
		PasswordResetTimeoutDelta: v.GetDuration("password_reset_timeout_delta"),
		defaultFromEmail:          v.GetString("default_from_email"),
		Server: ServerConfig{
			Host:                      v.GetString("server_host"),
			Address:                   v.GetString("server_address"),
			DebugAddress:              v.GetString("server_debug_address"),
			ShutdownTimeout:           v.GetDuration("server_shutdown_timeout"),
			JWTExpirationDelta:        v.GetDuration("jwt_expiration_delta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwt_refresh_expiration_delta"),
		},
		Database: DatabaseConfig{
			Engine:          v.GetString("db_engine"),
			Host:            v.GetString("db_host"),
			Port:            v.GetInt("db_port"),
			Name:            v.GetString("db_name"),
			User:            v.GetString("db_user"),
			Password:        v.GetString("db_password"),
			AdminUser:       v.GetString("db_admin_user"),
			AdminPassword:   v.GetString("db_admin_password"),
			DisableTLS:      v.GetBool("db_disable_tls"),
			MaxOpenConns:    v.GetInt("db_max_open_conns"),
			MaxIdleConns:    v.GetInt("db_max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("db_conn_max_lifetime"),
		},
		WhatsApp: WhatsAppConfig{
			Provider:         v.GetString("whatsapp_provider"),
			TwilioAccountSID: v.GetString("twilio_account_sid"),
			TwilioAuthToken:  v.GetString("twilio_auth_token"),
			TwilioNumber:     v.GetString("twilio_whatsapp_number"),
			TwilioBaseURL:    v.GetString("twilio_base_url"),
		},
		Notifications: NotificationsConfig{
			ScanEnabled:     v.GetBool("notify_scan_enabled"),
			ScanSchedule:    v.GetString("notify_scan_schedule"),
			ScanWindowDays:  v.GetInt("notify_scan_window_days"),
			ScanTimeout:     v.GetDuration("notify_scan_timeout"),
			ScanDedupe:      v.GetBool("notify_scan_dedupe"),
			DispatchWorkers: v.GetInt("notify_dispatch_workers"),
			DispatchBuffer:  v.GetInt("notify_dispatch_buffer"),
			EmailCopy:       v.GetBool("notify_email_copy"),
		},
	}
}
