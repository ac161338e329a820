package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig represents the configuration loaded from a file. Pointer fields
// distinguish "unset" from the zero value.
type FileConfig struct {
	BaseURL             string               `yaml:"baseURL" json:"baseURL"`
	TestShopURL         string               `yaml:"testShopURL" json:"testShopURL"`
	Headless            *bool                `yaml:"headless" json:"headless"`
	SlowMo              *Duration            `yaml:"slowMo" json:"slowMo"`
	Timeout             *Duration            `yaml:"timeout" json:"timeout"`
	CaptureTimeout      *Duration            `yaml:"captureTimeout" json:"captureTimeout"`
	ScreenshotOnFailure *bool                `yaml:"screenshotOnFailure" json:"screenshotOnFailure"`
	FullPageScreenshots *bool                `yaml:"fullPageScreenshots" json:"fullPageScreenshots"`
	FailOnConsoleError  *bool                `yaml:"failOnConsoleError" json:"failOnConsoleError"`
	ConsoleIgnore       []string             `yaml:"consoleIgnore" json:"consoleIgnore"`
	ScreenshotDir       string               `yaml:"screenshotDir" json:"screenshotDir"`
	VideoDir            string               `yaml:"videoDir" json:"videoDir"`
	RecordVideo         *bool                `yaml:"recordVideo" json:"recordVideo"`
	BaselineDir         string               `yaml:"baselineDir" json:"baselineDir"`
	UpdateScreenshots   bool                 `yaml:"updateScreenshots" json:"updateScreenshots"`
	ScreenshotThreshold float64              `yaml:"screenshotThreshold" json:"screenshotThreshold"`
	ViewportWidth       int                  `yaml:"viewportWidth" json:"viewportWidth"`
	ViewportHeight      int                  `yaml:"viewportHeight" json:"viewportHeight"`
	Browsers            []string             `yaml:"browsers" json:"browsers"`
	Driver              string               `yaml:"driver" json:"driver"`
	Workers             int                  `yaml:"workers" json:"workers"`
	ActionTimeouts      map[string]*Duration `yaml:"actionTimeouts" json:"actionTimeouts"`
}

// Duration is a custom type for unmarshaling duration strings
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// LoadConfig loads configuration from file
func LoadConfig(filename string) (*FileConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var config FileConfig
	ext := filepath.Ext(filename)

	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	case ".json":
		err = json.Unmarshal(data, &config)
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	return &config, nil
}

var configNames = []string{
	"pagesuite.config.yaml",
	"pagesuite.config.yml",
	"pagesuite.config.json",
	"pagesuite.yaml",
	"pagesuite.yml",
	"pagesuite.json",
	".pagesuite.yaml",
	".pagesuite.yml",
	".pagesuite.json",
}

// FindConfigFile searches dir for a config file and returns its path, or ""
// when there is none.
func FindConfigFile(dir string) string {
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
