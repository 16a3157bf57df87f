package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cardscope/cardscope/pkg/logging"
)

type options struct {
	input      string
	configPath string

	from      string
	to        string
	cities    stringList
	genders   stringList
	cardTypes stringList

	groupBy   string
	query     string
	rfm       bool
	exportTo  string
	reportTo  string
	logLevel  string
	logAsJSON bool
}

// stringList collects a repeatable comma-friendly flag value.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

func main() {
	var opts options
	flag.StringVar(&opts.input, "input", "", "path to the source CSV file (required)")
	flag.StringVar(&opts.configPath, "config", "", "optional JSON config file layered over the defaults")
	flag.StringVar(&opts.from, "from", "", "filter: start date, YYYY-MM-DD")
	flag.StringVar(&opts.to, "to", "", "filter: end date, YYYY-MM-DD")
	flag.Var(&opts.cities, "city", "filter: city name, repeatable or comma-separated")
	flag.Var(&opts.genders, "gender", "filter: gender, repeatable or comma-separated")
	flag.Var(&opts.cardTypes, "card-type", "filter: card type, repeatable or comma-separated")
	flag.StringVar(&opts.groupBy, "group-by", "", "print a breakdown by dimension (city, city_tier, month, category, gender, card_type, weekday, spending_tier)")
	flag.StringVar(&opts.query, "query", "", "run a restricted SELECT expression over the filtered view")
	flag.BoolVar(&opts.rfm, "rfm", false, "print customer RFM segmentation")
	flag.StringVar(&opts.exportTo, "export", "", "write the filtered table to this CSV file")
	flag.StringVar(&opts.reportTo, "report", "", "write a summary report to this CSV file")
	flag.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.BoolVar(&opts.logAsJSON, "log-json", false, "emit logs as JSON")
	flag.Parse()

	logger := logging.New(logging.Options{
		Level:  logging.ParseLevel(opts.logLevel),
		JSON:   opts.logAsJSON,
		Output: os.Stderr,
	})

	if opts.input == "" {
		fmt.Fprintln(os.Stderr, "cardscope: -input is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(opts, logger); err != nil {
		logger.Error("cardscope failed", "error", err)
		os.Exit(1)
	}
}
