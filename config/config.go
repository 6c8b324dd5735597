package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Config is the isolationd daemon configuration.
type Config struct {
	ListenAddress           string        `toml:"ListenAddress"`
	DataDir                 string        `toml:"DataDir"`
	TwapDurationSeconds     uint32        `toml:"TwapDurationSeconds"`
	DeductionCoefficientBps uint64        `toml:"DeductionCoefficientBps"`
	Addresses               AddressConfig `toml:"addresses"`
	Venue                   VenueConfig   `toml:"venue"`
}

// AddressConfig holds the hex addresses of every collaborator the daemon
// wires at startup.
type AddressConfig struct {
	Owner           string `toml:"Owner"`
	MarginEngine    string `toml:"MarginEngine"`
	Router          string `toml:"Router"`
	Market          string `toml:"Market"`
	Oracle          string `toml:"Oracle"`
	UnderlyingToken string `toml:"UnderlyingToken"`
	PTToken         string `toml:"PTToken"`
	YTToken         string `toml:"YTToken"`
	LPToken         string `toml:"LPToken"`
	Token0          string `toml:"Token0"`
	Token1          string `toml:"Token1"`
	WrapperTrader   string `toml:"WrapperTrader"`
	UnwrapperTrader string `toml:"UnwrapperTrader"`
}

// VenueConfig seeds the manual venue used by dev deployments. Amount fields
// are decimal strings to preserve wad precision through TOML.
type VenueConfig struct {
	PTRate          string `toml:"PTRate"`
	UnderlyingPrice string `toml:"UnderlyingPrice"`
	Token0Price     string `toml:"Token0Price"`
	Token1Price     string `toml:"Token1Price"`
	Reserve0        string `toml:"Reserve0"`
	Reserve1        string `toml:"Reserve1"`
	LPSupply        string `toml:"LPSupply"`
	KLast           string `toml:"KLast"`
	FeeTo           string `toml:"FeeTo"`
	Expired         bool   `toml:"Expired"`
}

// Load reads the configuration file, applying defaults and validating the
// address fields. A missing file yields the defaults with empty addresses so
// dev tooling can boot without wiring.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}

	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./isolationd-data"
	}
	if cfg.TwapDurationSeconds == 0 {
		cfg.TwapDurationSeconds = 900
	}
	if cfg.DeductionCoefficientBps >= 10_000 {
		return nil, fmt.Errorf("config: deduction coefficient %d bps leaves no price", cfg.DeductionCoefficientBps)
	}
	if err := cfg.Addresses.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a AddressConfig) validate() error {
	fields := map[string]string{
		"Owner":           a.Owner,
		"MarginEngine":    a.MarginEngine,
		"Router":          a.Router,
		"Market":          a.Market,
		"Oracle":          a.Oracle,
		"UnderlyingToken": a.UnderlyingToken,
		"PTToken":         a.PTToken,
		"YTToken":         a.YTToken,
		"LPToken":         a.LPToken,
		"Token0":          a.Token0,
		"Token1":          a.Token1,
		"WrapperTrader":   a.WrapperTrader,
		"UnwrapperTrader": a.UnwrapperTrader,
	}
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if !common.IsHexAddress(value) {
			return fmt.Errorf("config: addresses.%s %q is not a hex address", name, value)
		}
	}
	return nil
}

// Address parses a configured hex address, returning the zero address for an
// empty field.
func Address(value string) common.Address {
	if !common.IsHexAddress(value) {
		return common.Address{}
	}
	return common.HexToAddress(value)
}

// Amount parses a decimal string into a big integer, defaulting to zero for
// an empty field.
func Amount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("config: invalid amount %q", value)
	}
	if parsed.Sign() < 0 {
		return nil, fmt.Errorf("config: amount %q must not be negative", value)
	}
	return parsed, nil
}
