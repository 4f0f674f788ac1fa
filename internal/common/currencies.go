package common

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

type CurrencyConfig struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

type CurrenciesConfig struct {
	Currencies []CurrencyConfig `yaml:"currencies"`
}

// CurrencyRegistry is the closed set of currency codes the ledger accepts.
// The two default currencies are fully independent balances; no
// cross-currency arithmetic is ever performed.
type CurrencyRegistry struct {
	codes map[string]CurrencyConfig
}

// DefaultCurrencies returns the built-in currency set: UNITS (the base unit
// currency) and TOINS (the recognition currency).
func DefaultCurrencies() []CurrencyConfig {
	return []CurrencyConfig{
		{Code: "UNITS", Name: "Ünits"},
		{Code: "TOINS", Name: "Töins"},
	}
}

func NewCurrencyRegistry(currencies []CurrencyConfig) *CurrencyRegistry {
	codes := make(map[string]CurrencyConfig, len(currencies))
	for _, c := range currencies {
		codes[c.Code] = c
	}
	return &CurrencyRegistry{codes: codes}
}

func (r *CurrencyRegistry) Recognized(code string) bool {
	_, ok := r.codes[code]
	return ok
}

func (r *CurrencyRegistry) Codes() []string {
	codes := make([]string, 0, len(r.codes))
	for code := range r.codes {
		codes = append(codes, code)
	}
	return codes
}

// LoadCurrencyRegistry reads the currency set from a YAML file. A missing
// file falls back to the default set; a malformed file is an error.
func LoadCurrencyRegistry(currenciesFile string) (*CurrencyRegistry, error) {
	var currenciesPath string
	if filepath.IsAbs(currenciesFile) {
		currenciesPath = currenciesFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		currenciesPath = filepath.Join(wd, currenciesFile)
	}

	data, err := os.ReadFile(currenciesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return NewCurrencyRegistry(DefaultCurrencies()), nil
		}
		return nil, fmt.Errorf("unable to read %s: %w", currenciesFile, err)
	}

	var config CurrenciesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", currenciesFile, err)
	}

	if len(config.Currencies) == 0 {
		return nil, fmt.Errorf("%s defines no currencies", currenciesFile)
	}

	for i, currency := range config.Currencies {
		if currency.Code == "" {
			return nil, fmt.Errorf("currency at index %d missing code", i)
		}
	}

	return NewCurrencyRegistry(config.Currencies), nil
}
