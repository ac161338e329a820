package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kidandcat/pagesuite/pkg/driver"
)

// ErrInvalid is wrapped by every configuration validation error.
var ErrInvalid = errors.New("invalid configuration")

const (
	DriverPlaywright = "playwright"
	DriverChromedp   = "chromedp"
)

// Settings is the resolved configuration of a run. It is built once and
// passed by value; nothing mutates it afterwards.
type Settings struct {
	BaseURL     string
	TestShopURL string
	Username    string
	Password    string

	Driver   string
	Browsers []string
	Headless bool
	SlowMo   time.Duration
	Viewport driver.Viewport
	Workers  int
	CI       bool

	DefaultTimeout time.Duration
	ActionTimeouts map[string]time.Duration

	ScreenshotOnFailure bool
	FullPageScreenshots bool
	ScreenshotDir       string
	CaptureTimeout      time.Duration
	RecordVideo         bool
	VideoDir            string

	FailOnConsoleError  bool
	ConsoleIgnore       []string
	BaselineDir         string
	UpdateScreenshots   bool
	ScreenshotThreshold float64
}

func Defaults() Settings {
	return Settings{
		BaseURL:             "https://example.com",
		TestShopURL:         "file://./test-ecommerce-site",
		Username:            "demo@example.com",
		Password:            "demopass",
		Driver:              DriverPlaywright,
		Browsers:            []string{"chromium"},
		Headless:            true,
		Viewport:            driver.Viewport{Width: 1920, Height: 1080},
		Workers:             1,
		DefaultTimeout:      10 * time.Second,
		ScreenshotOnFailure: true,
		FullPageScreenshots: true,
		ScreenshotDir:       "screenshots",
		CaptureTimeout:      5 * time.Second,
		VideoDir:            "videos",
		ConsoleIgnore:       []string{"Failed to load resource"},
		BaselineDir:         "__screenshots__",
	}
}

// Load resolves settings from defaults, the config file at path (or the
// first one found in the working directory when path is empty) and the
// environment read through getenv.
func Load(path string, getenv func(string) string) (Settings, error) {
	s := Defaults()

	if path == "" {
		path = FindConfigFile(".")
	}
	if path != "" {
		fc, err := LoadConfig(path)
		if err != nil {
			return Settings{}, err
		}
		s = s.WithFile(fc)
	}

	s, err := s.WithEnv(getenv)
	if err != nil {
		return Settings{}, err
	}
	return s, s.Validate()
}

// LoadDotEnv loads the given .env files (".env" when none are given) into
// the process environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// WithFile returns a copy of s overlaid with the values set in fc.
func (s Settings) WithFile(fc *FileConfig) Settings {
	if fc == nil {
		return s
	}
	s = s.clone()
	if fc.BaseURL != "" {
		s.BaseURL = fc.BaseURL
	}
	if fc.TestShopURL != "" {
		s.TestShopURL = fc.TestShopURL
	}
	if fc.Headless != nil {
		s.Headless = *fc.Headless
	}
	if fc.SlowMo != nil {
		s.SlowMo = fc.SlowMo.Duration
	}
	if fc.Timeout != nil {
		s.DefaultTimeout = fc.Timeout.Duration
	}
	if fc.CaptureTimeout != nil {
		s.CaptureTimeout = fc.CaptureTimeout.Duration
	}
	if fc.ScreenshotOnFailure != nil {
		s.ScreenshotOnFailure = *fc.ScreenshotOnFailure
	}
	if fc.FullPageScreenshots != nil {
		s.FullPageScreenshots = *fc.FullPageScreenshots
	}
	if fc.FailOnConsoleError != nil {
		s.FailOnConsoleError = *fc.FailOnConsoleError
	}
	if fc.ConsoleIgnore != nil {
		s.ConsoleIgnore = append([]string(nil), fc.ConsoleIgnore...)
	}
	if fc.ScreenshotDir != "" {
		s.ScreenshotDir = fc.ScreenshotDir
	}
	if fc.VideoDir != "" {
		s.VideoDir = fc.VideoDir
	}
	if fc.RecordVideo != nil {
		s.RecordVideo = *fc.RecordVideo
	}
	if fc.BaselineDir != "" {
		s.BaselineDir = fc.BaselineDir
	}
	if fc.UpdateScreenshots {
		s.UpdateScreenshots = true
	}
	if fc.ScreenshotThreshold != 0 {
		s.ScreenshotThreshold = fc.ScreenshotThreshold
	}
	if fc.ViewportWidth > 0 && fc.ViewportHeight > 0 {
		s.Viewport = driver.Viewport{Width: fc.ViewportWidth, Height: fc.ViewportHeight}
	}
	if len(fc.Browsers) > 0 {
		s.Browsers = append([]string(nil), fc.Browsers...)
	}
	if fc.Driver != "" {
		s.Driver = fc.Driver
	}
	if fc.Workers > 0 {
		s.Workers = fc.Workers
	}
	for action, d := range fc.ActionTimeouts {
		if d == nil {
			continue
		}
		if s.ActionTimeouts == nil {
			s.ActionTimeouts = map[string]time.Duration{}
		}
		s.ActionTimeouts[action] = d.Duration
	}
	return s
}

// WithEnv returns a copy of s overlaid with the environment variables that
// are set.
func (s Settings) WithEnv(getenv func(string) string) (Settings, error) {
	s = s.clone()
	var errs []error

	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalid, key, v))
			return
		}
		*dst = b
	}
	millis := func(key string, dst *time.Duration) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 {
			errs = append(errs, fmt.Errorf("%w: %s=%q is not a number of milliseconds", ErrInvalid, key, v))
			return
		}
		*dst = time.Duration(ms) * time.Millisecond
	}

	str("BASE_URL", &s.BaseURL)
	str("TESTSHOP_URL", &s.TestShopURL)
	str("TEST_USERNAME", &s.Username)
	str("TEST_PASSWORD", &s.Password)
	str("BROWSER_DRIVER", &s.Driver)
	str("SCREENSHOT_DIR", &s.ScreenshotDir)
	str("VIDEO_DIR", &s.VideoDir)
	boolean("HEADLESS", &s.Headless)
	boolean("RECORD_VIDEO", &s.RecordVideo)
	millis("SLOWMO", &s.SlowMo)
	millis("DEFAULT_TIMEOUT", &s.DefaultTimeout)

	// Only the literal "true" enables capture, any other value disables it.
	if v := strings.TrimSpace(getenv("SCREENSHOT_ON_FAILURE")); v != "" {
		s.ScreenshotOnFailure = strings.EqualFold(v, "true")
	}
	s.CI = s.CI || truthy(getenv("CI"))

	if v := getenv("BROWSER"); strings.TrimSpace(v) != "" {
		s.Browsers = ParseList(v)
	}
	if v := strings.TrimSpace(getenv("VIEWPORT")); v != "" {
		vp, err := ParseViewport(v)
		if err != nil {
			errs = append(errs, err)
		} else {
			s.Viewport = vp
		}
	}
	if v := strings.TrimSpace(getenv("WORKERS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: WORKERS=%q is not a number", ErrInvalid, v))
		} else {
			s.Workers = n
		}
	}

	if len(errs) > 0 {
		return Settings{}, errors.Join(errs...)
	}
	return s, nil
}

// Validate reports every invalid value in s.
func (s Settings) Validate() error {
	var errs []error
	if u, err := url.Parse(s.BaseURL); err != nil || u.Scheme == "" {
		errs = append(errs, fmt.Errorf("%w: base URL %q must be absolute", ErrInvalid, s.BaseURL))
	}
	if s.DefaultTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: default timeout must be positive", ErrInvalid))
	}
	if s.SlowMo < 0 {
		errs = append(errs, fmt.Errorf("%w: slow motion delay must not be negative", ErrInvalid))
	}
	if s.Viewport.Width <= 0 || s.Viewport.Height <= 0 {
		errs = append(errs, fmt.Errorf("%w: viewport %s must be positive", ErrInvalid, s.Viewport))
	}
	if s.Workers < 1 {
		errs = append(errs, fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalid, s.Workers))
	}
	if s.Driver != DriverPlaywright && s.Driver != DriverChromedp {
		errs = append(errs, fmt.Errorf("%w: unknown browser driver %q", ErrInvalid, s.Driver))
	}
	if len(s.Browsers) == 0 {
		errs = append(errs, fmt.Errorf("%w: no browser configured", ErrInvalid))
	}
	for _, b := range s.Browsers {
		switch b {
		case "chromium", "firefox", "webkit":
		default:
			errs = append(errs, fmt.Errorf("%w: unknown browser %q", ErrInvalid, b))
		}
	}
	if s.ScreenshotThreshold < 0 || s.ScreenshotThreshold > 1 {
		errs = append(errs, fmt.Errorf("%w: screenshot threshold must be within [0, 1]", ErrInvalid))
	}
	return errors.Join(errs...)
}

// ActionTimeout returns the timeout configured for action, falling back to
// the default timeout.
func (s Settings) ActionTimeout(action string) time.Duration {
	if d, ok := s.ActionTimeouts[action]; ok && d > 0 {
		return d
	}
	return s.DefaultTimeout
}

// Lookup resolves the ${NAME} placeholders scripts may use.
func (s Settings) Lookup(name string) (string, bool) {
	switch name {
	case "BASE_URL":
		return s.BaseURL, true
	case "TESTSHOP_URL":
		return s.TestShopURL, true
	case "TEST_USERNAME":
		return s.Username, true
	case "TEST_PASSWORD":
		return s.Password, true
	}
	return "", false
}

func (s Settings) clone() Settings {
	s.Browsers = append([]string(nil), s.Browsers...)
	s.ConsoleIgnore = append([]string(nil), s.ConsoleIgnore...)
	if s.ActionTimeouts != nil {
		m := make(map[string]time.Duration, len(s.ActionTimeouts))
		for k, v := range s.ActionTimeouts {
			m[k] = v
		}
		s.ActionTimeouts = m
	}
	return s
}

// ParseViewport parses "WIDTHxHEIGHT".
func ParseViewport(v string) (driver.Viewport, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(v)), "x")
	if !ok {
		return driver.Viewport{}, fmt.Errorf("%w: viewport %q must look like 1920x1080", ErrInvalid, v)
	}
	width, errW := strconv.Atoi(w)
	height, errH := strconv.Atoi(h)
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		return driver.Viewport{}, fmt.Errorf("%w: viewport %q must look like 1920x1080", ErrInvalid, v)
	}
	return driver.Viewport{Width: width, Height: height}, nil
}

// ParseList splits a comma separated list, dropping blanks.
func ParseList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func truthy(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	return v != "" && v != "0" && v != "false" && v != "no"
}
