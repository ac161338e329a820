package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidandcat/pagesuite/pkg/driver"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestDefaults(t *testing.T) {
	s := Defaults()

	assert.Equal(t, "https://example.com", s.BaseURL)
	assert.True(t, s.Headless)
	assert.Equal(t, 10*time.Second, s.DefaultTimeout)
	assert.True(t, s.ScreenshotOnFailure)
	assert.Equal(t, "demo@example.com", s.Username)
	assert.Equal(t, "demopass", s.Password)
	assert.Equal(t, driver.Viewport{Width: 1920, Height: 1080}, s.Viewport)
	assert.Equal(t, []string{"chromium"}, s.Browsers)
	assert.Equal(t, "screenshots", s.ScreenshotDir)
	assert.False(t, s.FailOnConsoleError)
	require.NoError(t, s.Validate())
}

func TestWithEnv(t *testing.T) {
	s, err := Defaults().WithEnv(env(map[string]string{
		"BASE_URL":        "https://shop.test",
		"HEADLESS":        "false",
		"SLOWMO":          "500",
		"DEFAULT_TIMEOUT": "2500",
		"TEST_USERNAME":   "qa@shop.test",
		"TEST_PASSWORD":   "secret",
		"BROWSER":         "chromium, firefox ,",
		"BROWSER_DRIVER":  "chromedp",
		"VIEWPORT":        "375x667",
		"WORKERS":         "3",
		"CI":              "true",
		"RECORD_VIDEO":    "1",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://shop.test", s.BaseURL)
	assert.False(t, s.Headless)
	assert.Equal(t, 500*time.Millisecond, s.SlowMo)
	assert.Equal(t, 2500*time.Millisecond, s.DefaultTimeout)
	assert.Equal(t, "qa@shop.test", s.Username)
	assert.Equal(t, "secret", s.Password)
	assert.Equal(t, []string{"chromium", "firefox"}, s.Browsers)
	assert.Equal(t, DriverChromedp, s.Driver)
	assert.Equal(t, driver.Viewport{Width: 375, Height: 667}, s.Viewport)
	assert.Equal(t, 3, s.Workers)
	assert.True(t, s.CI)
	assert.True(t, s.RecordVideo)
}

func TestWithEnvScreenshotOnFailure(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", true},
		{"true", true},
		{"TRUE", true},
		{"false", false},
		{"1", false},
		{"yes", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			s, err := Defaults().WithEnv(env(map[string]string{"SCREENSHOT_ON_FAILURE": tt.value}))
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.ScreenshotOnFailure)
		})
	}
}

func TestWithEnvInvalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"timeout not numeric", map[string]string{"DEFAULT_TIMEOUT": "ten"}},
		{"negative slowmo", map[string]string{"SLOWMO": "-5"}},
		{"headless not boolean", map[string]string{"HEADLESS": "maybe"}},
		{"viewport malformed", map[string]string{"VIEWPORT": "wide"}},
		{"workers not numeric", map[string]string{"WORKERS": "many"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Defaults().WithEnv(env(tt.vars))
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestWithEnvDoesNotMutateReceiver(t *testing.T) {
	base := Defaults()
	_, err := base.WithEnv(env(map[string]string{"BROWSER": "webkit"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"chromium"}, base.Browsers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"relative base url", func(s *Settings) { s.BaseURL = "example.com" }},
		{"zero timeout", func(s *Settings) { s.DefaultTimeout = 0 }},
		{"zero workers", func(s *Settings) { s.Workers = 0 }},
		{"unknown driver", func(s *Settings) { s.Driver = "selenium" }},
		{"unknown browser", func(s *Settings) { s.Browsers = []string{"safari"} }},
		{"no browser", func(s *Settings) { s.Browsers = nil }},
		{"bad viewport", func(s *Settings) { s.Viewport = driver.Viewport{Width: 0, Height: 10} }},
		{"threshold out of range", func(s *Settings) { s.ScreenshotThreshold = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Defaults()
			tt.mutate(&s)
			require.ErrorIs(t, s.Validate(), ErrInvalid)
		})
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pagesuite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`baseURL: https://from-file.test
timeout: 3s
workers: 2
screenshotDir: shots
actionTimeouts:
  navigate: 20s
`), 0644))

	s, err := Load(path, env(map[string]string{
		"BASE_URL": "https://from-env.test",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://from-env.test", s.BaseURL)
	assert.Equal(t, 3*time.Second, s.DefaultTimeout)
	assert.Equal(t, 2, s.Workers)
	assert.Equal(t, "shots", s.ScreenshotDir)
	assert.Equal(t, 20*time.Second, s.ActionTimeout("navigate"))
	assert.Equal(t, 3*time.Second, s.ActionTimeout("click"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), env(nil))
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("PAGESUITE_DOTENV_PROBE=loaded\n"), 0644))
	t.Setenv("PAGESUITE_DOTENV_PROBE", "")
	os.Unsetenv("PAGESUITE_DOTENV_PROBE")

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "absent.env")))
	assert.Equal(t, "loaded", os.Getenv("PAGESUITE_DOTENV_PROBE"))
}

func TestLookup(t *testing.T) {
	s := Defaults()
	v, ok := s.Lookup("TEST_USERNAME")
	assert.True(t, ok)
	assert.Equal(t, "demo@example.com", v)

	_, ok = s.Lookup("HOME")
	assert.False(t, ok)
}

func TestParseViewport(t *testing.T) {
	vp, err := ParseViewport(" 768X1024 ")
	require.NoError(t, err)
	assert.Equal(t, driver.Viewport{Width: 768, Height: 1024}, vp)

	_, err = ParseViewport("768x")
	require.ErrorIs(t, err, ErrInvalid)
}
