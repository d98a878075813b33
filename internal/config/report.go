package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// ReportConfig holds configuration for journal aggregation.
type ReportConfig struct {
	Input         string
	PGDSN         string
	Out           string
	Window        string
	StateFile     string
	RecomputeFrom string
	DecimalsX     uint8
	DecimalsY     uint8
	LogLevel      string
}

// LoadReport merges config file, environment variables, and flags into ReportConfig.
func LoadReport(cfgFile string, flags *pflag.FlagSet) (ReportConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"window":    "1h",
		"log-level": "info",
	})
	if err != nil {
		return ReportConfig{}, err
	}

	cfg := ReportConfig{
		Input:         v.GetString("in"),
		PGDSN:         v.GetString("pg-dsn"),
		Out:           v.GetString("out"),
		Window:        v.GetString("window"),
		StateFile:     v.GetString("state-file"),
		RecomputeFrom: v.GetString("recompute-from"),
		DecimalsX:     uint8(v.GetUint("decimals-x")),
		DecimalsY:     uint8(v.GetUint("decimals-y")),
		LogLevel:      v.GetString("log-level"),
	}
	return cfg, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	if strings.TrimSpace(input) == "" {
		return 0, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseUint(input, 10, 64)
		if err != nil {
			return 0, err
		}
		return val, nil
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
