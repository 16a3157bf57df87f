package loader

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cardscope/cardscope/pkg/api"
)

// tierFor classifies a city against the configured reference lists.
// Cities on neither list default to Tier-3.
func (l *Loader) tierFor(city string) api.CityTier {
	key := normalizeCity(city)
	switch {
	case l.tier1[key]:
		return api.Tier1
	case l.tier2[key]:
		return api.Tier2
	default:
		return api.Tier3
	}
}

// normalizeCity lowers a city name and strips a trailing country suffix,
// so "Greater Mumbai, India" matches a "Greater Mumbai" list entry.
func normalizeCity(city string) string {
	city = strings.ToLower(strings.TrimSpace(city))
	if i := strings.Index(city, ","); i >= 0 {
		city = city[:i]
	}
	return strings.TrimSpace(city)
}

// resolveCategory picks the transaction category. An explicit source
// value wins when it names a configured category; otherwise the keyword
// rules run over the explicit value and then the description text. The
// fallback category covers rows nothing matches.
func (l *Loader) resolveCategory(explicit, description string) string {
	if explicit != "" {
		if canonical, ok := l.catNames[strings.ToLower(explicit)]; ok {
			return canonical
		}
	}
	for _, text := range []string{explicit, description} {
		if text == "" {
			continue
		}
		if cat, ok := l.categorize(text); ok {
			return cat
		}
	}
	return l.cfg.FallbackCategory
}

// categorize runs the ordered keyword rules over free text.
func (l *Loader) categorize(text string) (string, bool) {
	lowered := strings.ToLower(text)
	for _, rule := range l.cfg.CategoryRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lowered, strings.ToLower(kw)) {
				return rule.Category, true
			}
		}
	}
	return "", false
}

// deriveCalendar fills the date-derived fields.
func (l *Loader) deriveCalendar(txn *api.Transaction) {
	txn.Year = txn.Date.Year()
	txn.Month = txn.Date.Month()
	txn.Quarter = (int(txn.Date.Month())-1)/3 + 1
	txn.DayOfWeek = txn.Date.Weekday()
	txn.Weekend = txn.DayOfWeek == time.Saturday || txn.DayOfWeek == time.Sunday
}

// spendingTier bands an amount per the configured bounds.
func (l *Loader) spendingTier(amount decimal.Decimal) api.SpendingTier {
	b := l.cfg.SpendingBands
	switch {
	case amount.LessThan(decimal.NewFromFloat(b.LowMax)):
		return api.SpendLow
	case amount.LessThan(decimal.NewFromFloat(b.MediumMax)):
		return api.SpendMedium
	case amount.LessThan(decimal.NewFromFloat(b.HighMax)):
		return api.SpendHigh
	default:
		return api.SpendPremium
	}
}

// titleCase normalizes free-text fields: trimmed, with each word's first
// letter upper-cased.
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
