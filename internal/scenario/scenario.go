package scenario

import (
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// File is a scripted hedging session.
type File struct {
	Name                  string      `yaml:"name"`
	Pair                  PairSpec    `yaml:"pair"`
	Fees                  []uint32    `yaml:"fees"`
	PoolFee               uint32      `yaml:"pool_fee"`
	RangeWidth            int         `yaml:"range_width"`
	OnlyAuthorizedFulfill *bool       `yaml:"only_authorized_fulfill"`
	KeeperFulfill         bool        `yaml:"keeper_fulfill"`
	Custody               CustodySpec `yaml:"custody"`
	Steps                 []Step      `yaml:"steps"`
}

type PairSpec struct {
	Hedged            string `yaml:"hedged"`
	Reference         string `yaml:"reference"`
	HedgedDecimals    uint8  `yaml:"hedged_decimals"`
	ReferenceDecimals uint8  `yaml:"reference_decimals"`
	Price             string `yaml:"price"`
}

// CustodySpec holds the human amounts minted to custody at start.
type CustodySpec struct {
	Hedged    string `yaml:"hedged"`
	Reference string `yaml:"reference"`
}

// Step is one action followed by optional expectations.
// Actions: hedge, price, fulfill, exit, withdraw, recover, set_fee,
// set_authorized_fulfill and check.
type Step struct {
	Action      string  `yaml:"action"`
	Caller      string  `yaml:"caller"`
	Delta       string  `yaml:"delta"`
	Price       string  `yaml:"price"`
	Tick        *int    `yaml:"tick"`
	Amount      string  `yaml:"amount"`
	Token       string  `yaml:"token"`
	Recipient   string  `yaml:"recipient"`
	Fee         uint32  `yaml:"fee"`
	Enabled     *bool   `yaml:"enabled"`
	ExpectError string  `yaml:"expect_error"`
	Expect      *Expect `yaml:"expect"`
}

type Expect struct {
	State     string         `yaml:"state"`
	Direction string         `yaml:"direction"`
	PoolFee   uint32         `yaml:"pool_fee"`
	Balances  []BalanceCheck `yaml:"balances"`
}

// BalanceCheck compares an account's human balance of a token.
type BalanceCheck struct {
	Account string `yaml:"account"`
	Token   string `yaml:"token"`
	Equals  string `yaml:"equals"`
	Min     string `yaml:"min"`
	Max     string `yaml:"max"`
}

// Load reads and validates a scenario file.
func Load(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("scenario path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	applyDefaults(&f)
	return &f, validate(&f)
}

func applyDefaults(f *File) {
	if f.PoolFee == 0 {
		f.PoolFee = 3000
	}
	if f.RangeWidth == 0 {
		f.RangeWidth = 1
	}
	if f.OnlyAuthorizedFulfill == nil {
		enabled := true
		f.OnlyAuthorizedFulfill = &enabled
	}
}

func validate(f *File) error {
	if !common.IsHexAddress(f.Pair.Hedged) || !common.IsHexAddress(f.Pair.Reference) {
		return errors.New("pair.hedged and pair.reference must be addresses")
	}
	if _, err := decimal.NewFromString(f.Pair.Price); err != nil {
		return fmt.Errorf("pair.price: %w", err)
	}
	for _, amount := range []string{f.Custody.Hedged, f.Custody.Reference} {
		if amount == "" {
			continue
		}
		if _, err := decimal.NewFromString(amount); err != nil {
			return fmt.Errorf("custody amount %q: %w", amount, err)
		}
	}
	if len(f.Steps) == 0 {
		return errors.New("scenario has no steps")
	}
	for i, step := range f.Steps {
		if _, ok := actions[step.Action]; !ok {
			return fmt.Errorf("step %d: unknown action %q", i, step.Action)
		}
	}
	return nil
}

// EnvConfig builds the simulated deployment described by the file.
func (f *File) EnvConfig() (EnvConfig, error) {
	price, err := decimal.NewFromString(f.Pair.Price)
	if err != nil {
		return EnvConfig{}, fmt.Errorf("pair.price: %w", err)
	}
	cfg := EnvConfig{
		Pair: Pair{
			HedgedToken:       common.HexToAddress(f.Pair.Hedged),
			ReferenceToken:    common.HexToAddress(f.Pair.Reference),
			HedgedDecimals:    f.Pair.HedgedDecimals,
			ReferenceDecimals: f.Pair.ReferenceDecimals,
		},
		InitialPrice:          price,
		Fees:                  f.Fees,
		PoolFee:               f.PoolFee,
		RangeWidth:            f.RangeWidth,
		OnlyAuthorizedFulfill: *f.OnlyAuthorizedFulfill,
		KeeperFulfill:         f.KeeperFulfill,
		Accounts:              DefaultAccounts(),
	}
	if f.Custody.Hedged != "" {
		cfg.CustodyHedged = decimal.RequireFromString(f.Custody.Hedged)
	}
	if f.Custody.Reference != "" {
		cfg.CustodyReference = decimal.RequireFromString(f.Custody.Reference)
	}
	return cfg, nil
}
