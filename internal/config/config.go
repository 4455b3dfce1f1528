package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"riskgate/internal/calendar"
	"riskgate/internal/risk"
	"riskgate/internal/session"
)

var (
	ErrMissingCredentials = errors.New("APCA_API_KEY_ID and APCA_API_SECRET_KEY are required when paper mode is off")
	ErrInvalidCaps        = errors.New("daily-stop must be below zero and daily-take above zero")
)

type Config struct {
	Addr       string
	Whitelist  []string
	HoursGated []string
	Aliases    map[string]string

	TZ           string
	RTHStart     string
	RTHEnd       string
	FlattenLead  time.Duration
	HeartbeatMax time.Duration

	DailyStop float64
	DailyTake float64
	PointMult float64

	Paper        bool
	AdminToken   string
	OrderType    string
	PaperBaseURL string
	VenueSymbols map[string]string

	CalendarURL     string
	CalendarFile    string
	CalendarRefresh time.Duration
	NewsPre         time.Duration
	NewsPost        time.Duration
	NewsLookahead   time.Duration
	NewsImpact      []string
	NewsCurrency    []string

	DecisionsPath     string
	JournalPath       string
	CheckpointPath    string
	DispatchTimeout   time.Duration
	ReconcileInterval time.Duration
	WebhookRPS        float64
	LogLevel          string

	APIKey    string
	APISecret string

	// Resolved by Resolve.
	Location *time.Location
	Start    session.TimeOfDay
	End      session.TimeOfDay
	Level    slog.Level
}

// envNames maps flags onto the environment variables that back them when
// the flag is not given on the command line.
var envNames = map[string]string{
	"addr":             "ADDR",
	"whitelist":        "WHITELIST",
	"hours-gated":      "HOURS_GATED",
	"aliases":          "SYMBOL_ALIASES",
	"tz":               "TRADING_TZ",
	"rth-start":        "RTH_START",
	"rth-end":          "RTH_END",
	"flatten-lead":     "FLATTEN_LEAD",
	"daily-stop":       "DAILY_STOP",
	"daily-take":       "DAILY_TAKE",
	"paper":            "PAPER_MODE",
	"heartbeat-max":    "HEARTBEAT_MAX",
	"point-mult":       "POINT_MULT",
	"admin-token":      "ADMIN_TOKEN",
	"calendar-url":     "CALENDAR_URL",
	"calendar-file":    "CALENDAR_FILE",
	"calendar-refresh": "CALENDAR_REFRESH",
	"news-pre":         "NEWS_PRE",
	"news-post":        "NEWS_POST",
	"news-lookahead":   "NEWS_LOOKAHEAD",
	"decisions-path":   "DECISIONS_PATH",
	"journal-path":     "JOURNAL_PATH",
	"checkpoint-path":  "CHECKPOINT_PATH",
	"log-level":        "LOG_LEVEL",
}

// Bind registers every setting on fs and returns the struct the parsed
// values land in. Call Resolve after the flags are parsed.
func Bind(fs *pflag.FlagSet) *Config {
	cfg := &Config{}
	fs.StringVar(&cfg.Addr, "addr", ":8000", "HTTP listen address")
	fs.StringSliceVar(&cfg.Whitelist, "whitelist", []string{"CME_MINI:MES1!", "MES", "ETHUSDT"}, "symbols allowed through the gate")
	fs.StringSliceVar(&cfg.HoursGated, "hours-gated", []string{"MES"}, "canonical symbols subject to trading hours, heartbeat, news and daily caps")
	fs.StringToStringVar(&cfg.Aliases, "aliases", map[string]string{"CME_MINI:MES1!": "MES"}, "symbol aliases, alias=canonical")
	fs.StringVar(&cfg.TZ, "tz", "America/New_York", "trading timezone")
	fs.StringVar(&cfg.RTHStart, "rth-start", "09:30", "regular trading hours start, HH:MM")
	fs.StringVar(&cfg.RTHEnd, "rth-end", "15:45", "regular trading hours end, HH:MM")
	fs.DurationVar(&cfg.FlattenLead, "flatten-lead", time.Minute, "forced flatten band before rth-end")
	fs.DurationVar(&cfg.HeartbeatMax, "heartbeat-max", 10*time.Minute, "max silence between signals")
	fs.Float64Var(&cfg.DailyStop, "daily-stop", -500, "daily realized loss cap")
	fs.Float64Var(&cfg.DailyTake, "daily-take", 250, "daily realized profit cap")
	fs.Float64Var(&cfg.PointMult, "point-mult", 5, "PnL per point of price movement")
	fs.BoolVar(&cfg.Paper, "paper", true, "simulate fills instead of dispatching orders")
	fs.StringVar(&cfg.AdminToken, "admin-token", "", "X-Admin-Token required by /enable and /disable; empty disables the check")
	fs.StringVar(&cfg.OrderType, "order-type", "market", "order type: market or limit")
	fs.StringVar(&cfg.PaperBaseURL, "paper-base-url", "https://paper-api.alpaca.markets", "brokerage base URL")
	fs.StringToStringVar(&cfg.VenueSymbols, "venue-symbols", map[string]string{"ETHUSDT": "ETH/USD"}, "broker symbol mapping, symbol=venue")
	fs.StringVar(&cfg.CalendarURL, "calendar-url", "", "economic calendar JSON feed")
	fs.StringVar(&cfg.CalendarFile, "calendar-file", "", "economic calendar YAML file, reloaded on change")
	fs.DurationVar(&cfg.CalendarRefresh, "calendar-refresh", 15*time.Minute, "calendar refresh interval")
	fs.DurationVar(&cfg.NewsPre, "news-pre", 5*time.Minute, "blackout before a release")
	fs.DurationVar(&cfg.NewsPost, "news-post", 5*time.Minute, "blackout after a release")
	fs.DurationVar(&cfg.NewsLookahead, "news-lookahead", 24*time.Hour, "how far ahead releases are loaded")
	fs.StringSliceVar(&cfg.NewsImpact, "news-impact", []string{"High"}, "impact levels that cause a blackout")
	fs.StringSliceVar(&cfg.NewsCurrency, "news-currency", []string{"USD"}, "currencies that cause a blackout")
	fs.StringVar(&cfg.DecisionsPath, "decisions-path", "decisions.ndjson", "path to decisions log")
	fs.StringVar(&cfg.JournalPath, "journal-path", "", "SQLite decision journal; empty disables it")
	fs.StringVar(&cfg.CheckpointPath, "checkpoint-path", "checkpoint.json", "path to checkpoint file")
	fs.DurationVar(&cfg.DispatchTimeout, "dispatch-timeout", 5*time.Second, "timeout for one order dispatch")
	fs.DurationVar(&cfg.ReconcileInterval, "reconcile-interval", time.Minute, "broker position reconciliation interval")
	fs.Float64Var(&cfg.WebhookRPS, "webhook-rps", 20, "webhook requests per second")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "debug, info, warn or error")
	return cfg
}

// Resolve loads .env, fills unset flags from the environment and validates
// the result. Precedence is flag, then environment, then .env, then default.
func (c *Config) Resolve(fs *pflag.FlagSet, dotEnvPath string) error {
	if err := loadDotEnv(dotEnvPath); err != nil {
		return err
	}
	if err := applyEnv(fs); err != nil {
		return err
	}
	c.APIKey = os.Getenv("APCA_API_KEY_ID")
	c.APISecret = os.Getenv("APCA_API_SECRET_KEY")
	return c.validate()
}

func applyEnv(fs *pflag.FlagSet) error {
	for name, env := range envNames {
		if fs.Lookup(name) == nil || fs.Changed(name) {
			continue
		}
		value, ok := os.LookupEnv(env)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		if err := fs.Set(name, strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("%s: %w", env, err)
		}
	}
	return nil
}

func (c *Config) validate() error {
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		return fmt.Errorf("tz: %w", err)
	}
	c.Location = loc
	if c.Start, err = session.ParseTimeOfDay(c.RTHStart); err != nil {
		return fmt.Errorf("rth-start: %w", err)
	}
	if c.End, err = session.ParseTimeOfDay(c.RTHEnd); err != nil {
		return fmt.Errorf("rth-end: %w", err)
	}
	if c.Start.String() >= c.End.String() {
		return fmt.Errorf("rth-start %s must be before rth-end %s", c.Start, c.End)
	}
	if err := c.Level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("log-level: %w", err)
	}

	c.Whitelist = upperAll(c.Whitelist)
	c.HoursGated = upperAll(c.HoursGated)
	c.Aliases = upperMap(c.Aliases)
	c.VenueSymbols = upperKeys(c.VenueSymbols)
	if len(c.Whitelist) == 0 {
		return fmt.Errorf("whitelist must not be empty")
	}

	if !(c.DailyStop < 0 && c.DailyTake > 0) {
		return ErrInvalidCaps
	}
	if c.PointMult <= 0 {
		return fmt.Errorf("point-mult must be > 0")
	}
	if c.FlattenLead < 0 {
		return fmt.Errorf("flatten-lead must be >= 0")
	}
	if c.HeartbeatMax <= 0 {
		return fmt.Errorf("heartbeat-max must be > 0")
	}
	if c.DispatchTimeout <= 0 || c.ReconcileInterval <= 0 || c.CalendarRefresh <= 0 {
		return fmt.Errorf("dispatch-timeout, reconcile-interval and calendar-refresh must be > 0")
	}
	if c.NewsPre < 0 || c.NewsPost < 0 || c.NewsLookahead < 0 {
		return fmt.Errorf("news windows must be >= 0")
	}
	if c.WebhookRPS <= 0 {
		return fmt.Errorf("webhook-rps must be > 0")
	}
	if c.OrderType != "market" && c.OrderType != "limit" {
		return fmt.Errorf("unsupported order type: %s", c.OrderType)
	}
	if !c.Paper && (c.APIKey == "" || c.APISecret == "") {
		return ErrMissingCredentials
	}
	return nil
}

// Rules builds the gate configuration. Resolve must have succeeded.
func (c *Config) Rules() risk.Rules {
	return risk.Rules{
		Whitelist:    toSet(c.Whitelist),
		HoursGated:   toSet(c.HoursGated),
		Aliases:      c.Aliases,
		Calendar:     c.Calendar(),
		HeartbeatMax: c.HeartbeatMax,
		DailyStop:    c.DailyStop,
		DailyTake:    c.DailyTake,
	}
}

func (c *Config) Calendar() session.Calendar {
	return session.Calendar{
		Location:    c.Location,
		Start:       c.Start,
		End:         c.End,
		FlattenLead: c.FlattenLead,
	}
}

func (c *Config) NewsFilter() calendar.Filter {
	return calendar.Filter{
		Impacts:    c.NewsImpact,
		Currencies: c.NewsCurrency,
		Pre:        c.NewsPre,
		Post:       c.NewsPost,
		Lookahead:  c.NewsLookahead,
	}
}

// CanonicalSymbols lists the distinct books the gate can open.
func (c *Config) CanonicalSymbols() []string {
	rules := risk.Rules{Aliases: c.Aliases}
	seen := map[string]bool{}
	var out []string
	for _, s := range c.Whitelist {
		canonical := rules.Canonical(s)
		if !seen[canonical] {
			seen[canonical] = true
			out = append(out, canonical)
		}
	}
	return out
}

func toSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}

func upperAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func upperMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToUpper(strings.TrimSpace(k))] = strings.ToUpper(strings.TrimSpace(v))
	}
	return out
}

func upperKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}
