package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configFileVar = "CONFIG_FILE"
	appNameVar    = "APP_NAME"
	envVar        = "ENV"
	logLevelVar   = "LOG_LEVEL"
)

// fileValues holds variables read from the optional YAML config file, keyed by the
// environment variable name they stand in for.
type fileValues map[string]string

type EnvVars struct {
	file fileValues
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.file.get(appNameVar, "FinAdmin")
}

func (e EnvVars) GetEnv() string {
	return e.file.get(envVar, "DEV")
}

func (e EnvVars) GetLogLevel() string {
	return e.file.get(logLevelVar, "info")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func loadFile(path string) (fileValues, error) {
	if path == "" {
		return fileValues{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fileValues{}, fmt.Errorf("[config loadFile] read %s: %w", path, err)
	}
	values := fileValues{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fileValues{}, fmt.Errorf("[config loadFile] parse %s: %w", path, err)
	}
	return values, nil
}

// get resolves a variable: environment first, then the config file, then the default.
func (f fileValues) get(name, defaultValue string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	if value, ok := f[name]; ok && value != "" {
		return value
	}
	return defaultValue
}

// duration accepts Go durations ("90s") or a bare number of seconds ("900").
func (f fileValues) duration(name string, defaultValue time.Duration) time.Duration {
	raw := f.get(name, "")
	if raw == "" {
		return defaultValue
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return d
}

func (f fileValues) integer(name string, defaultValue int) int {
	v, err := strconv.Atoi(f.get(name, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func (f fileValues) float(name string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(f.get(name, ""), 64)
	if err != nil {
		return defaultValue
	}
	return v
}
