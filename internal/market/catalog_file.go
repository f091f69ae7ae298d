package market

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CatalogFile is the YAML layout of a symbol/profile override file:
//
//	profiles:
//	  crypto: {base: 0.0004, trend: 0.001, spike: 0.003, spread: 0.0001, volume: 5}
//	symbols:
//	  - {name: SOLUSD, class: crypto, start_price: 145.2, decimals: 2}
type CatalogFile struct {
	Profiles map[Class]Profile `yaml:"profiles"`
	Symbols  []Symbol          `yaml:"symbols"`
}

// LoadCatalog reads a catalog override file. Classes and symbols absent
// from the file keep their compiled-in defaults.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes YAML catalog data.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for class, p := range file.Profiles {
		if p.Base < 0 || p.Trend < 0 || p.Spike < 0 || p.Spread < 0 || p.Volume < 0 {
			return nil, fmt.Errorf("profile %s: magnitudes must be >= 0", class)
		}
	}
	for _, s := range file.Symbols {
		if normalize(s.Name) == "" {
			return nil, fmt.Errorf("symbol without name")
		}
		if !(s.StartPrice > 0) {
			return nil, fmt.Errorf("symbol %s: start_price must be > 0", s.Name)
		}
		if s.Class == "" {
			return nil, fmt.Errorf("symbol %s: class is required", s.Name)
		}
	}

	symbols := file.Symbols
	if len(symbols) > 0 {
		merged := make([]Symbol, 0, len(DefaultSymbols)+len(symbols))
		seen := make(map[string]bool, len(symbols))
		for _, s := range symbols {
			seen[normalize(s.Name)] = true
		}
		for _, s := range DefaultSymbols {
			if !seen[normalize(s.Name)] {
				merged = append(merged, s)
			}
		}
		symbols = append(merged, symbols...)
	}
	return NewCatalog(file.Profiles, symbols), nil
}
