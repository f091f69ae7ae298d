package market

import (
	"fmt"
	"sort"
	"strings"
)

// Class groups symbols that share a volatility profile.
type Class string

const (
	ClassForex     Class = "forex"
	ClassStock     Class = "stock"
	ClassCrypto    Class = "crypto"
	ClassCommodity Class = "commodity"
)

// Profile holds the per-class magnitudes fed to the generator.
// Base, Trend and Spike are fractions of the previous price.
type Profile struct {
	Base   float64 `yaml:"base" json:"base"`
	Trend  float64 `yaml:"trend" json:"trend"`
	Spike  float64 `yaml:"spike" json:"spike"`
	Spread float64 `yaml:"spread" json:"spread"` // bid/ask half-spread as a fraction of price
	Volume float64 `yaml:"volume" json:"volume"` // mean synthetic volume per tick
}

// Symbol describes a tradable instrument.
type Symbol struct {
	Name       string  `yaml:"name" json:"name"`
	Class      Class   `yaml:"class" json:"class"`
	StartPrice float64 `yaml:"start_price" json:"start_price"`
	Decimals   int     `yaml:"decimals" json:"decimals"`
}

// DefaultProfiles is the compiled-in class table.
var DefaultProfiles = map[Class]Profile{
	ClassForex:     {Base: 0.00004, Trend: 0.00010, Spike: 0.00030, Spread: 0.00001, Volume: 120},
	ClassStock:     {Base: 0.00015, Trend: 0.00040, Spike: 0.00120, Spread: 0.00005, Volume: 60},
	ClassCrypto:    {Base: 0.00030, Trend: 0.00080, Spike: 0.00250, Spread: 0.00010, Volume: 8},
	ClassCommodity: {Base: 0.00010, Trend: 0.00025, Spike: 0.00080, Spread: 0.00003, Volume: 40},
}

// DefaultSymbols is the compiled-in symbol table.
var DefaultSymbols = []Symbol{
	{Name: "EURUSD", Class: ClassForex, StartPrice: 1.0850, Decimals: 5},
	{Name: "GBPUSD", Class: ClassForex, StartPrice: 1.2650, Decimals: 5},
	{Name: "USDJPY", Class: ClassForex, StartPrice: 149.50, Decimals: 3},
	{Name: "AAPL", Class: ClassStock, StartPrice: 189.40, Decimals: 2},
	{Name: "TSLA", Class: ClassStock, StartPrice: 242.10, Decimals: 2},
	{Name: "BTCUSD", Class: ClassCrypto, StartPrice: 64250.0, Decimals: 2},
	{Name: "ETHUSD", Class: ClassCrypto, StartPrice: 3150.0, Decimals: 2},
	{Name: "XAUUSD", Class: ClassCommodity, StartPrice: 2345.0, Decimals: 2},
	{Name: "WTI", Class: ClassCommodity, StartPrice: 78.30, Decimals: 2},
}

// UnknownSymbolError reports a lookup that fell back to the default profile.
type UnknownSymbolError struct {
	Symbol string
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("unknown symbol %q, using default %s profile", e.Symbol, ClassForex)
}

// Catalog resolves symbols to their profile and start price.
type Catalog struct {
	profiles map[Class]Profile
	symbols  map[string]Symbol
}

// NewCatalog builds a catalog. Nil or empty arguments fall back to the defaults.
func NewCatalog(profiles map[Class]Profile, symbols []Symbol) *Catalog {
	c := &Catalog{
		profiles: make(map[Class]Profile, len(DefaultProfiles)),
		symbols:  make(map[string]Symbol),
	}
	for k, v := range DefaultProfiles {
		c.profiles[k] = v
	}
	for k, v := range profiles {
		c.profiles[k] = v
	}
	if len(symbols) == 0 {
		symbols = DefaultSymbols
	}
	for _, s := range symbols {
		c.symbols[normalize(s.Name)] = s
	}
	return c
}

// LookupProfile never fails hard: unknown symbols get the forex profile
// together with an *UnknownSymbolError the caller may log.
func (c *Catalog) LookupProfile(symbol string) (Profile, error) {
	s, ok := c.symbols[normalize(symbol)]
	if !ok {
		return c.profiles[ClassForex], &UnknownSymbolError{Symbol: symbol}
	}
	p, ok := c.profiles[s.Class]
	if !ok {
		return c.profiles[ClassForex], &UnknownSymbolError{Symbol: symbol}
	}
	return p, nil
}

// Symbol returns the symbol definition if known.
func (c *Catalog) Symbol(name string) (Symbol, bool) {
	s, ok := c.symbols[normalize(name)]
	return s, ok
}

// Symbols returns the known symbol names in sorted order.
func (c *Catalog) Symbols() []string {
	out := make([]string, 0, len(c.symbols))
	for _, s := range c.symbols {
		out = append(out, s.Name)
	}
	sort.Strings(out)
	return out
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
