package settings

// UniverseEntry names one symbol in the curated universe
type UniverseEntry struct {
	Symbol string `yaml:"symbol" json:"symbol"`
	Name   string `yaml:"name" json:"name"`
}

// Universe is the curated candidate pool loaded from universe.yaml.
// The bot only ever considers symbols listed here.
type Universe struct {
	ETFs   []UniverseEntry `yaml:"etfs" json:"etfs"`
	Stocks []UniverseEntry `yaml:"stocks" json:"stocks"`
}

// Symbols returns every universe symbol, ETFs first
func (u *Universe) Symbols() []string {
	out := make([]string, 0, len(u.ETFs)+len(u.Stocks))
	for _, e := range u.ETFs {
		out = append(out, e.Symbol)
	}
	for _, s := range u.Stocks {
		out = append(out, s.Symbol)
	}
	return out
}

// ETFSymbols returns only the ETF symbols
func (u *Universe) ETFSymbols() []string {
	out := make([]string, 0, len(u.ETFs))
	for _, e := range u.ETFs {
		out = append(out, e.Symbol)
	}
	return out
}

// IsETF reports whether a symbol is listed in the ETF section
func (u *Universe) IsETF(symbol string) bool {
	for _, e := range u.ETFs {
		if e.Symbol == symbol {
			return true
		}
	}
	return false
}

// DisplayName returns the configured name for a symbol, or the symbol itself
func (u *Universe) DisplayName(symbol string) string {
	for _, e := range u.ETFs {
		if e.Symbol == symbol {
			return e.Name
		}
	}
	for _, s := range u.Stocks {
		if s.Symbol == symbol {
			return s.Name
		}
	}
	return symbol
}

// Count returns the total number of universe symbols
func (u *Universe) Count() int {
	return len(u.ETFs) + len(u.Stocks)
}
