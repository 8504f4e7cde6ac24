package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
)

// DefaultQuizURL is the page walked when QUIZWALKER_URL is unset.
const DefaultQuizURL = "http://localhost:8000/index.html"

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Browser    BrowserConfig
	Walker     WalkerConfig
	Screenshot ScreenshotConfig
	Preflight  PreflightConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Webhook    WebhookConfig
	Log        LogConfig
}

// ServerConfig controls the HTTP server (quizwalker-server only).
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"

	// MaxConcurrentRuns caps simultaneous walks; each walk owns a browser.
	MaxConcurrentRuns int // default: 2

	// JobTTL is how long finished run jobs stay queryable.
	JobTTL time.Duration // default: 1h
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	// Off by default so runs can be watched or screen-recorded.
	Headless bool // default: false

	// Maximized starts the window maximized and disables viewport emulation.
	Maximized bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for all browser traffic.
	Proxy string

	// Stealth masks navigator.webdriver and friends before navigation.
	Stealth bool // default: false

	// CaptureConsole records console API calls for results extraction.
	CaptureConsole bool // default: true

	// BlockedResourceTypes lists resource types to block, e.g. "Media".
	BlockedResourceTypes []string
}

// WalkerConfig controls the quiz traversal.
type WalkerConfig struct {
	QuizURL string

	StartSettle    time.Duration // default: 1s
	QuestionSettle time.Duration // default: 600ms
	AdvanceSettle  time.Duration // default: 600ms
	SubmitSettle   time.Duration // default: 1s
	ShutdownDelay  time.Duration // default: 1s

	// ElementTimeout bounds every wait-for-element condition.
	ElementTimeout time.Duration // default: 10s

	// RunTimeout bounds a whole walk; 0 means no deadline.
	RunTimeout time.Duration // default: 0

	// MaxIterations bounds the question loop; 0 means unbounded.
	MaxIterations int // default: 100

	// StallThreshold is how many identical consecutive questions trigger a warning.
	StallThreshold int // default: 3

	Selectors SelectorConfig
}

// SelectorConfig lists the CSS selectors of the quiz page DOM contract.
type SelectorConfig struct {
	StartButton  string // default: "#startBtn"
	QuestionText string // default: "#question-text"
	Options      string // default: "#options .option"
	NextButton   string // default: "#nextBtn"
	SubmitButton string // default: "#submitBtn"
	Results      string // default: "#results"
	Summary      string // default: "#summary"
	HiddenClass  string // default: "hidden"
	ResultMarker string // default: "DETAILED_RESULTS"
}

// ScreenshotConfig controls where screenshots are written.
type ScreenshotConfig struct {
	Dir string // default: "screenshots"
}

// PreflightConfig controls the static DOM contract check.
type PreflightConfig struct {
	Enabled bool          // default: true
	Timeout time.Duration // default: 5s
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 3
}

// WebhookConfig holds defaults for run completion webhooks.
type WebhookConfig struct {
	URL    string
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"

	// File is the run log; empty disables it.
	File string // default: "automation.log"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              envOr("QUIZWALKER_HOST", "0.0.0.0"),
			Port:              envIntOr("QUIZWALKER_PORT", 8080),
			Mode:              envOr("QUIZWALKER_MODE", "release"),
			MaxConcurrentRuns: envIntOr("QUIZWALKER_MAX_RUNS", 2),
			JobTTL:            envDurationOr("QUIZWALKER_JOB_TTL", time.Hour),
		},
		Browser: BrowserConfig{
			Headless:             envBoolOr("QUIZWALKER_HEADLESS", false),
			Maximized:            envBoolOr("QUIZWALKER_MAXIMIZED", true),
			NoSandbox:            envBoolOr("QUIZWALKER_NO_SANDBOX", false),
			BrowserBin:           os.Getenv("QUIZWALKER_BROWSER_BIN"),
			Proxy:                os.Getenv("QUIZWALKER_PROXY"),
			Stealth:              envBoolOr("QUIZWALKER_STEALTH", false),
			CaptureConsole:       envBoolOr("QUIZWALKER_CAPTURE_CONSOLE", true),
			BlockedResourceTypes: envSliceOr("QUIZWALKER_BLOCKED_RESOURCES", nil),
		},
		Walker: WalkerConfig{
			QuizURL:        envOr("QUIZWALKER_URL", DefaultQuizURL),
			StartSettle:    envDurationOr("QUIZWALKER_START_SETTLE", time.Second),
			QuestionSettle: envDurationOr("QUIZWALKER_QUESTION_SETTLE", 600*time.Millisecond),
			AdvanceSettle:  envDurationOr("QUIZWALKER_ADVANCE_SETTLE", 600*time.Millisecond),
			SubmitSettle:   envDurationOr("QUIZWALKER_SUBMIT_SETTLE", time.Second),
			ShutdownDelay:  envDurationOr("QUIZWALKER_SHUTDOWN_DELAY", time.Second),
			ElementTimeout: envDurationOr("QUIZWALKER_ELEMENT_TIMEOUT", 10*time.Second),
			RunTimeout:     envDurationOr("QUIZWALKER_RUN_TIMEOUT", 0),
			MaxIterations:  envIntOr("QUIZWALKER_MAX_ITERATIONS", 100),
			StallThreshold: envIntOr("QUIZWALKER_STALL_THRESHOLD", 3),
			Selectors: SelectorConfig{
				StartButton:  envOr("QUIZWALKER_SEL_START", "#startBtn"),
				QuestionText: envOr("QUIZWALKER_SEL_QUESTION", "#question-text"),
				Options:      envOr("QUIZWALKER_SEL_OPTIONS", "#options .option"),
				NextButton:   envOr("QUIZWALKER_SEL_NEXT", "#nextBtn"),
				SubmitButton: envOr("QUIZWALKER_SEL_SUBMIT", "#submitBtn"),
				Results:      envOr("QUIZWALKER_SEL_RESULTS", "#results"),
				Summary:      envOr("QUIZWALKER_SEL_SUMMARY", "#summary"),
				HiddenClass:  envOr("QUIZWALKER_HIDDEN_CLASS", "hidden"),
				ResultMarker: envOr("QUIZWALKER_RESULT_MARKER", "DETAILED_RESULTS"),
			},
		},
		Screenshot: ScreenshotConfig{
			Dir: envOr("QUIZWALKER_SCREENSHOT_DIR", "screenshots"),
		},
		Preflight: PreflightConfig{
			Enabled: envBoolOr("QUIZWALKER_PREFLIGHT", true),
			Timeout: envDurationOr("QUIZWALKER_PREFLIGHT_TIMEOUT", 5*time.Second),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("QUIZWALKER_AUTH_ENABLED", true),
			APIKeys: envSliceOr("QUIZWALKER_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("QUIZWALKER_RATE_RPS", 1.0),
			Burst:             envIntOr("QUIZWALKER_RATE_BURST", 3),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("QUIZWALKER_WEBHOOK_URL"),
			Secret: os.Getenv("QUIZWALKER_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("QUIZWALKER_LOG_LEVEL", "info"),
			Format: envOr("QUIZWALKER_LOG_FORMAT", "text"),
			File:   envOr("QUIZWALKER_LOG_FILE", "automation.log"),
		},
	}
}

// Validate rejects configurations the walker cannot run with.
// Every selector must compile as CSS.
func (c *Config) Validate() error {
	if c.Walker.QuizURL == "" {
		return fmt.Errorf("config: quiz URL is empty")
	}
	if c.Walker.MaxIterations < 0 {
		return fmt.Errorf("config: max iterations must be >= 0, got %d", c.Walker.MaxIterations)
	}
	if c.Walker.ElementTimeout <= 0 {
		return fmt.Errorf("config: element timeout must be positive")
	}
	if c.Screenshot.Dir == "" {
		return fmt.Errorf("config: screenshot dir is empty")
	}
	if c.Walker.Selectors.HiddenClass == "" || strings.ContainsAny(c.Walker.Selectors.HiddenClass, " \t") {
		return fmt.Errorf("config: hidden class %q must be a single class name", c.Walker.Selectors.HiddenClass)
	}
	if c.Walker.Selectors.ResultMarker == "" {
		return fmt.Errorf("config: result marker is empty")
	}
	for name, sel := range c.Walker.Selectors.cssSelectors() {
		if _, err := cascadia.Compile(sel); err != nil {
			return fmt.Errorf("config: %s selector %q: %w", name, sel, err)
		}
	}
	return nil
}

func (s SelectorConfig) cssSelectors() map[string]string {
	return map[string]string{
		"start":    s.StartButton,
		"question": s.QuestionText,
		"options":  s.Options,
		"next":     s.NextButton,
		"submit":   s.SubmitButton,
		"results":  s.Results,
		"summary":  s.Summary,
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
