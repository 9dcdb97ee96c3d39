package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	LogLevel string

	RPCURL       string
	RPCRate      float64
	PoolAddress  string
	Factory      string
	MaxRetries   int
	RetryBackoff time.Duration

	HedgedToken       string
	ReferenceToken    string
	HedgedDecimals    uint8
	ReferenceDecimals uint8
	PoolFee           uint32
	Fees              []uint32
	InitialPrice      string
	RangeWidth        int

	OnlyAuthorizedFulfill bool
	KeeperFulfill         bool
	AutoFulfill           bool
	PollInterval          time.Duration

	StatePath   string
	JournalPath string
	PGDSN       string

	Listen        string
	MetricsListen string
	APITokens     []string

	Managers  []string
	Guardians []string
	Keepers   []string

	CustodyHedged    string
	CustodyReference string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("rpc-rate", 10.0)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("hedged-decimals", 18)
	v.SetDefault("reference-decimals", 6)
	v.SetDefault("pool-fee", 3000)
	v.SetDefault("range-width", 1)
	v.SetDefault("only-authorized-fulfill", true)
	v.SetDefault("keeper-fulfill", false)
	v.SetDefault("auto-fulfill", true)
	v.SetDefault("poll-interval", 15*time.Second)
	v.SetDefault("state", "./data/state.db")
	v.SetDefault("journal", "./data/order_events.jsonl")
	v.SetDefault("listen", ":8080")
	v.SetDefault("custody-hedged", "0")
	v.SetDefault("custody-reference", "0")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("hedger")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	fees, err := getFees(v, "fees")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		LogLevel:              v.GetString("log-level"),
		RPCURL:                v.GetString("rpc"),
		RPCRate:               v.GetFloat64("rpc-rate"),
		PoolAddress:           v.GetString("pool"),
		Factory:               v.GetString("factory"),
		MaxRetries:            v.GetInt("max-retries"),
		RetryBackoff:          v.GetDuration("retry-backoff"),
		HedgedToken:           v.GetString("hedged"),
		ReferenceToken:        v.GetString("reference"),
		HedgedDecimals:        uint8(v.GetUint("hedged-decimals")),
		ReferenceDecimals:     uint8(v.GetUint("reference-decimals")),
		PoolFee:               v.GetUint32("pool-fee"),
		Fees:                  fees,
		InitialPrice:          v.GetString("price"),
		RangeWidth:            v.GetInt("range-width"),
		OnlyAuthorizedFulfill: v.GetBool("only-authorized-fulfill"),
		KeeperFulfill:         v.GetBool("keeper-fulfill"),
		AutoFulfill:           v.GetBool("auto-fulfill"),
		PollInterval:          v.GetDuration("poll-interval"),
		StatePath:             v.GetString("state"),
		JournalPath:           v.GetString("journal"),
		PGDSN:                 v.GetString("pg-dsn"),
		Listen:                v.GetString("listen"),
		MetricsListen:         v.GetString("metrics-listen"),
		APITokens:             getStringSlice(v, "api-token"),
		Managers:              getStringSlice(v, "manager"),
		Guardians:             getStringSlice(v, "guardian"),
		Keepers:               getStringSlice(v, "keeper"),
		CustodyHedged:         v.GetString("custody-hedged"),
		CustodyReference:      v.GetString("custody-reference"),
	}

	if cfg.HedgedDecimals > 77 || cfg.ReferenceDecimals > 77 {
		return Config{}, fmt.Errorf("token decimals out of range")
	}
	if cfg.RangeWidth <= 0 {
		return Config{}, fmt.Errorf("range-width must be positive")
	}

	return cfg, nil
}

func getFees(v *viper.Viper, key string) ([]uint32, error) {
	items := getStringSlice(v, key)
	out := make([]uint32, 0, len(items))
	for _, item := range items {
		fee, err := strconv.ParseUint(item, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", key, item, err)
		}
		out = append(out, uint32(fee))
	}
	return out, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
