package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

const (
	DefaultMaxTotal     = 200
	DefaultMaxPerConfig = 50
)

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath     string `long:"db-path" env:"DB_PATH" default:"./data/agenda-comb.db" description:"SQLite database file"`
	SourcesDir string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing agenda source definitions (*.yml)"`
	LockFile   string `long:"lock-file" env:"LOCK_FILE" description:"Optional lock file guarding against overlapping discovery runs across processes"`

	// HTTP server
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl      string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://agenda.example.com)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for admin read endpoints (optional)"`
	CronSecret   string `long:"cron-secret" env:"CRON_SECRET" description:"Shared secret the scheduler sends as a Bearer token"`

	// Scheduling
	WorkerCount       int `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background task workers"`
	SchedulerInterval int `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"0" description:"In-process discovery interval in seconds (0 disables)"`

	// Discovery limits
	MaxTotal     int `long:"max-total" env:"AGENDA_MAX_TOTAL" default:"200" description:"Maximum requests created per discovery run"`
	MaxPerConfig int `long:"max-per-config" env:"AGENDA_MAX_PER_CONFIG" default:"50" description:"Maximum requests created per source in one run"`

	// Outbound HTTP
	UserAgent         string  `long:"user-agent" env:"USER_AGENT" default:"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36" description:"User agent string for outbound requests"`
	AcceptLanguage    string  `long:"accept-language" env:"ACCEPT_LANGUAGE" default:"fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7" description:"Accept-Language header for outbound requests"`
	RequestTimeout    int     `long:"request-timeout" env:"REQUEST_TIMEOUT" default:"20" description:"Outbound request timeout in seconds"`
	RequestsPerSecond float64 `long:"requests-per-second" env:"REQUESTS_PER_SECOND" default:"1" description:"Per-host request rate (0 disables limiting)"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Europe/Paris)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

func Load() (*Cfg, error) {
	return LoadArgs(nil)
}

// LoadArgs parses the given arguments (nil means os.Args) together with the environment.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		SourcesDir:        raw.SourcesDir,
		LockFile:          raw.LockFile,
		Port:              raw.Port,
		BaseUrl:           raw.BaseUrl,
		APIAccessKey:      raw.APIAccessKey,
		CronSecret:        raw.CronSecret,
		WorkerCount:       max(raw.WorkerCount, 1),
		SchedulerInterval: raw.SchedulerInterval,
		MaxTotal:          positiveOr(raw.MaxTotal, DefaultMaxTotal),
		MaxPerConfig:      positiveOr(raw.MaxPerConfig, DefaultMaxPerConfig),
		UserAgent:         raw.UserAgent,
		AcceptLanguage:    raw.AcceptLanguage,
		RequestTimeout:    positiveOr(raw.RequestTimeout, 20),
		RequestsPerSecond: raw.RequestsPerSecond,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
