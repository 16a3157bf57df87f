// Package config loads cardscope configuration.
//
// Configuration is layered: embedded defaults, then an optional JSON file,
// then CARDSCOPE_* environment variables. The defaults are complete, so a
// bare Load("") is always valid.
package config

import (
	_ "embed"
	"fmt"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

//go:embed defaults.json
var defaultsJSON []byte

// envPrefix namespaces the environment variables read by Load.
const envPrefix = "CARDSCOPE_"

// CategoryRule maps description keywords to a spending category. Rules
// are evaluated in order; the first keyword hit wins.
type CategoryRule struct {
	Category string   `koanf:"category"`
	Keywords []string `koanf:"keywords"`
}

// SpendingBands holds the upper bounds of the Low/Medium/High amount
// bands. Amounts at or above HighMax fall into Premium.
type SpendingBands struct {
	LowMax    float64 `koanf:"low_max"`
	MediumMax float64 `koanf:"medium_max"`
	HighMax   float64 `koanf:"high_max"`
}

// SegmentRule labels an RFM score triple. Zero bounds are unconstrained;
// rules are evaluated in order and the first match wins.
type SegmentRule struct {
	Label string `koanf:"label"`
	MinR  int    `koanf:"min_r"`
	MaxR  int    `koanf:"max_r"`
	MinF  int    `koanf:"min_f"`
	MaxF  int    `koanf:"max_f"`
	MinM  int    `koanf:"min_m"`
	MaxM  int    `koanf:"max_m"`
}

// RFMConfig controls customer segmentation.
type RFMConfig struct {
	// Buckets is the requested quantile bucket count per measure.
	Buckets         int           `koanf:"buckets"`
	Segments        []SegmentRule `koanf:"segments"`
	FallbackSegment string        `koanf:"fallback_segment"`
}

// Config holds the full cardscope configuration.
type Config struct {
	// Columns maps each canonical field to the source header names it
	// accepts, so varying input schemas normalize to one table.
	Columns map[string][]string `koanf:"columns"`

	Tier1Cities []string `koanf:"tier1_cities"`
	Tier2Cities []string `koanf:"tier2_cities"`

	Categories       []string       `koanf:"categories"`
	FallbackCategory string         `koanf:"fallback_category"`
	CategoryRules    []CategoryRule `koanf:"category_rules"`

	CardTypes   []string `koanf:"card_types"`
	DateFormats []string `koanf:"date_formats"`

	// MaxBadRowFraction is the malformed-row fraction above which a load
	// fails with a DataQualityError.
	MaxBadRowFraction float64 `koanf:"max_bad_row_fraction"`

	SpendingBands SpendingBands `koanf:"spending_bands"`
	RFM           RFMConfig     `koanf:"rfm"`
}

// Load builds a Config from embedded defaults, the optional JSON file at
// path, and CARDSCOPE_* environment variables, in that precedence order.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultsJSON), kjson.Parser()); err != nil {
		return nil, fmt.Errorf("loading embedded defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), kjson.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// CARDSCOPE_MAX_BAD_ROW_FRACTION=0.2 → max_bad_row_fraction,
	// CARDSCOPE_RFM__BUCKETS=5 → rfm.buckets.
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants the rest of the system relies on.
func (c *Config) Validate() error {
	for _, field := range RequiredFields {
		if len(c.Columns[field]) == 0 {
			return fmt.Errorf("config: no source columns configured for required field %q", field)
		}
	}
	if c.MaxBadRowFraction < 0 || c.MaxBadRowFraction > 1 {
		return fmt.Errorf("config: max_bad_row_fraction %v outside [0, 1]", c.MaxBadRowFraction)
	}
	if c.RFM.Buckets < 2 {
		return fmt.Errorf("config: rfm.buckets must be at least 2, got %d", c.RFM.Buckets)
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("config: categories list is empty")
	}
	if len(c.DateFormats) == 0 {
		return fmt.Errorf("config: date_formats list is empty")
	}
	return nil
}

// RequiredFields are the canonical fields every dataset must provide.
// transaction_id, category, and description are optional: missing IDs are
// synthesized and categories fall back to keyword rules.
var RequiredFields = []string{"date", "amount", "city", "card_type", "customer_id", "gender"}
