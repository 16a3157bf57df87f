package loader

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cardscope/cardscope/pkg/api"
)

func TestTierFor(t *testing.T) {
	l := newTestLoader(t)
	tests := []struct {
		city string
		want api.CityTier
	}{
		{"Delhi", api.Tier1},
		{"Greater Mumbai", api.Tier1},
		{"Greater Mumbai, India", api.Tier1},
		{"pune", api.Tier2},
		{"Jaipur", api.Tier2},
		{"Nowhereville", api.Tier3},
		{"", api.Tier3},
	}
	for _, tt := range tests {
		t.Run(tt.city, func(t *testing.T) {
			if got := l.tierFor(tt.city); got != tt.want {
				t.Errorf("tierFor(%q) = %q, want %q", tt.city, got, tt.want)
			}
		})
	}
}

func TestResolveCategory(t *testing.T) {
	l := newTestLoader(t)
	tests := []struct {
		name        string
		explicit    string
		description string
		want        string
	}{
		{"explicit canonical", "Fuel", "", "Fuel"},
		{"explicit lowercased", "fuel", "", "Fuel"},
		{"explicit free text hits keyword", "Petrol pump", "", "Fuel"},
		{"description keyword", "", "IRCTC booking 8821", "Travel"},
		{"explicit wins over description", "Dining", "IRCTC booking", "Dining"},
		{"nothing matches", "", "misc spend", "Shopping"},
		{"empty everything", "", "", "Shopping"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.resolveCategory(tt.explicit, tt.description); got != tt.want {
				t.Errorf("resolveCategory(%q, %q) = %q, want %q", tt.explicit, tt.description, got, tt.want)
			}
		})
	}
}

func TestSpendingTier(t *testing.T) {
	l := newTestLoader(t)
	tests := []struct {
		amount string
		want   api.SpendingTier
	}{
		{"999.99", api.SpendLow},
		{"1000", api.SpendMedium},
		{"4999", api.SpendMedium},
		{"5000", api.SpendHigh},
		{"14999.99", api.SpendHigh},
		{"15000", api.SpendPremium},
		{"250000", api.SpendPremium},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			d, err := decimal.NewFromString(tt.amount)
			if err != nil {
				t.Fatal(err)
			}
			if got := l.spendingTier(d); got != tt.want {
				t.Errorf("spendingTier(%s) = %q, want %q", tt.amount, got, tt.want)
			}
		})
	}
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"delhi", "Delhi"},
		{"GREATER MUMBAI", "Greater Mumbai"},
		{"  gold  ", "Gold"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := titleCase(tt.in); got != tt.want {
			t.Errorf("titleCase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
