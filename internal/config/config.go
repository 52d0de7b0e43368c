// Package config handles application configuration from environment variables
// and command-line flags.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

// ErrHelp is returned by Load when help output was requested.
var ErrHelp = errors.New("help requested")

// Renderer names accepted by RENDERER.
const (
	RendererHTTP   = "http"
	RendererChrome = "chrome"
)

type rawConfig struct {
	TelegramBotToken string `long:"token" env:"TELEGRAM_BOT_TOKEN" description:"Telegram bot token (required)"`
	DatabasePath     string `long:"db" env:"DATABASE_PATH" default:"./data/bot.db" description:"Path to the sqlite database"`
	LogLevel         string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"Log level: debug, info, warn, error"`
	AllowedUsers     string `long:"allowed-users" env:"ALLOWED_USERS" description:"Comma-separated Telegram user IDs allowed to use the bot"`

	MonitorSchedule string        `long:"monitor-schedule" env:"MONITOR_SCHEDULE" default:"*/5 * * * *" description:"Cron spec for workspace ticks"`
	CleanupSchedule string        `long:"cleanup-schedule" env:"CLEANUP_SCHEDULE" default:"0 2 * * *" description:"Cron spec for the notification retention sweep"`
	Retention       time.Duration `long:"retention" env:"RETENTION" default:"720h" description:"How long delivered-post records are kept"`
	DeliveryPause   time.Duration `long:"delivery-pause" env:"DELIVERY_PAUSE" default:"1s" description:"Pause after each delivered post"`

	Renderer      string        `long:"renderer" env:"RENDERER" default:"http" description:"Page renderer: http or chrome"`
	ChromePath    string        `long:"chrome-path" env:"CHROME_PATH" description:"Chrome executable (default: search PATH)"`
	FetchTimeout  time.Duration `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30s" description:"Timeout of one page fetch"`
	SettleDelay   time.Duration `long:"settle-delay" env:"SETTLE_DELAY" default:"3s" description:"Wait for scripts after page load (chrome only)"`
	MaxSessions   int64         `long:"max-sessions" env:"MAX_SESSIONS" default:"2" description:"Maximum concurrently open fetch sessions"`
	SearchProfile string        `long:"search-profile" env:"SEARCH_PROFILE" description:"YAML file overriding search sources and technique order"`

	SheetsEnabled   bool   `long:"sheets" env:"SHEETS_ENABLED" description:"Mirror delivered posts to Google Sheets"`
	SheetID         string `long:"sheet-id" env:"GOOGLE_SHEET_ID" description:"Google spreadsheet ID"`
	CredentialsFile string `long:"credentials" env:"GOOGLE_CREDENTIALS_FILE" default:"credentials.json" description:"Google service account credentials file"`

	HTTPAddr string `long:"http-addr" env:"HTTP_ADDR" description:"Listen address of the admin API (empty disables it)"`
}

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	LogLevel         string
	AllowedUsers     []int64

	MonitorSchedule string
	CleanupSchedule string
	Retention       time.Duration
	DeliveryPause   time.Duration

	Renderer      string
	ChromePath    string
	FetchTimeout  time.Duration
	SettleDelay   time.Duration
	MaxSessions   int64
	SearchProfile string

	SheetsEnabled   bool
	SheetID         string
	CredentialsFile string

	HTTPAddr string
}

// Load reads configuration from environment variables, overridden by args.
func Load(args []string) (*Config, error) {
	var raw rawConfig
	parser := flags.NewParser(&raw, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return nil, fmt.Errorf("%w\n%s", ErrHelp, ferr.Message)
		}
		return nil, fmt.Errorf("parse configuration: %w", err)
	}

	if raw.TelegramBotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	allowed, err := parseUserIDs(raw.AllowedUsers)
	if err != nil {
		return nil, err
	}

	renderer := strings.ToLower(strings.TrimSpace(raw.Renderer))
	if !slices.Contains([]string{RendererHTTP, RendererChrome}, renderer) {
		return nil, fmt.Errorf("invalid RENDERER %q, use: http, chrome", raw.Renderer)
	}
	if raw.MaxSessions < 1 {
		return nil, fmt.Errorf("MAX_SESSIONS must be at least 1, got %d", raw.MaxSessions)
	}
	if raw.SheetsEnabled && raw.SheetID == "" {
		return nil, fmt.Errorf("GOOGLE_SHEET_ID is required when SHEETS_ENABLED is set")
	}

	return &Config{
		TelegramBotToken: raw.TelegramBotToken,
		DatabasePath:     raw.DatabasePath,
		LogLevel:         raw.LogLevel,
		AllowedUsers:     allowed,
		MonitorSchedule:  raw.MonitorSchedule,
		CleanupSchedule:  raw.CleanupSchedule,
		Retention:        raw.Retention,
		DeliveryPause:    raw.DeliveryPause,
		Renderer:         renderer,
		ChromePath:       raw.ChromePath,
		FetchTimeout:     raw.FetchTimeout,
		SettleDelay:      raw.SettleDelay,
		MaxSessions:      raw.MaxSessions,
		SearchProfile:    raw.SearchProfile,
		SheetsEnabled:    raw.SheetsEnabled,
		SheetID:          raw.SheetID,
		CredentialsFile:  raw.CredentialsFile,
		HTTPAddr:         raw.HTTPAddr,
	}, nil
}

func parseUserIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		uid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
		}
		ids = append(ids, uid)
	}
	return ids, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	return slices.Contains(c.AllowedUsers, userID)
}
