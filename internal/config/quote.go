package config

import (
	"time"

	"github.com/spf13/pflag"
)

// QuoteConfig holds configuration for quoting against chain state.
type QuoteConfig struct {
	RPCURL       string
	MintX        string
	MintY        string
	VaultX       string
	VaultY       string
	LPMint       string
	FeeBP        uint16
	Block        uint64
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"max-retries":   3,
		"retry-backoff": 500 * time.Millisecond,
		"log-level":     "info",
	})
	if err != nil {
		return QuoteConfig{}, err
	}

	cfg := QuoteConfig{
		RPCURL:       v.GetString("rpc"),
		MintX:        v.GetString("mint-x"),
		MintY:        v.GetString("mint-y"),
		VaultX:       v.GetString("vault-x"),
		VaultY:       v.GetString("vault-y"),
		LPMint:       v.GetString("lp-mint"),
		FeeBP:        uint16(v.GetUint("fee-bp")),
		Block:        v.GetUint64("block"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}
	return cfg, nil
}
