package market

import "sort"

// SymbolInfo describes one entry of the static security universe.
type SymbolInfo struct {
	Symbol         string
	Name           string
	ProviderSymbol string
	Exchange       string
	Currency       string
	Category       string
}

// Category priority for batch scheduling: lower value is fetched first so the
// most watched names paint first on a cold cache.
var categoryPriority = map[string]int{
	"large-cap": 0,
	"banks":     1,
	"energy":    2,
	"mid-cap":   3,
	"etf":       4,
	"small-cap": 5,
}

// Universe is the bounded set of securities the engine serves. Symbols outside
// this table are rejected at the API boundary, which keeps the cache bounded.
var Universe = []SymbolInfo{
	{Symbol: "opap", Name: "OPAP S.A.", ProviderSymbol: "OPAP.AT", Exchange: "ATHEX", Currency: "EUR", Category: "large-cap"},
	{Symbol: "ete", Name: "National Bank of Greece", ProviderSymbol: "ETE.AT", Exchange: "ATHEX", Currency: "EUR", Category: "banks"},
	{Symbol: "alpha", Name: "Alpha Services and Holdings", ProviderSymbol: "ALPHA.AT", Exchange: "ATHEX", Currency: "EUR", Category: "banks"},
	{Symbol: "eurob", Name: "Eurobank Ergasias", ProviderSymbol: "EUROB.AT", Exchange: "ATHEX", Currency: "EUR", Category: "banks"},
	{Symbol: "tpeir", Name: "Piraeus Financial Holdings", ProviderSymbol: "TPEIR.AT", Exchange: "ATHEX", Currency: "EUR", Category: "banks"},
	{Symbol: "ppc", Name: "Public Power Corporation", ProviderSymbol: "PPC.AT", Exchange: "ATHEX", Currency: "EUR", Category: "energy"},
	{Symbol: "motor", Name: "Motor Oil Hellas", ProviderSymbol: "MOH.AT", Exchange: "ATHEX", Currency: "EUR", Category: "energy"},
	{Symbol: "elpe", Name: "Helleniq Energy", ProviderSymbol: "ELPE.AT", Exchange: "ATHEX", Currency: "EUR", Category: "energy"},
	{Symbol: "mytil", Name: "Metlen Energy & Metals", ProviderSymbol: "MYTIL.AT", Exchange: "ATHEX", Currency: "EUR", Category: "large-cap"},
	{Symbol: "ote", Name: "Hellenic Telecommunications", ProviderSymbol: "HTO.AT", Exchange: "ATHEX", Currency: "EUR", Category: "large-cap"},
	{Symbol: "titc", Name: "Titan Cement International", ProviderSymbol: "TITC.AT", Exchange: "ATHEX", Currency: "EUR", Category: "mid-cap"},
	{Symbol: "gekterna", Name: "GEK Terna Holding", ProviderSymbol: "GEKTERNA.AT", Exchange: "ATHEX", Currency: "EUR", Category: "mid-cap"},
	{Symbol: "aegn", Name: "Aegean Airlines", ProviderSymbol: "AEGN.AT", Exchange: "ATHEX", Currency: "EUR", Category: "mid-cap"},
	{Symbol: "lamda", Name: "Lamda Development", ProviderSymbol: "LAMDA.AT", Exchange: "ATHEX", Currency: "EUR", Category: "mid-cap"},
	{Symbol: "jumbo", Name: "Jumbo S.A.", ProviderSymbol: "BELA.AT", Exchange: "ATHEX", Currency: "EUR", Category: "mid-cap"},
}

var universeIndex = func() map[string]SymbolInfo {
	idx := make(map[string]SymbolInfo, len(Universe))
	for _, info := range Universe {
		idx[info.Symbol] = info
	}
	return idx
}()

// Lookup resolves a symbol against the universe.
func Lookup(symbol string) (SymbolInfo, bool) {
	info, ok := universeIndex[symbol]
	return info, ok
}

// AllSymbols returns the universe ordered by category priority, then symbol.
// The ordering only affects launch order of batch fetches, not results.
func AllSymbols() []string {
	infos := make([]SymbolInfo, len(Universe))
	copy(infos, Universe)
	sort.SliceStable(infos, func(i, j int) bool {
		pi, pj := priorityOf(infos[i].Category), priorityOf(infos[j].Category)
		if pi != pj {
			return pi < pj
		}
		return infos[i].Symbol < infos[j].Symbol
	})
	symbols := make([]string, len(infos))
	for i, info := range infos {
		symbols[i] = info.Symbol
	}
	return symbols
}

func priorityOf(category string) int {
	if p, ok := categoryPriority[category]; ok {
		return p
	}
	return len(categoryPriority)
}
