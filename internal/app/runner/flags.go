package runner

import (
	"flag"
	"fmt"
	"strings"

	"akamaru/internal/app/core"
	"akamaru/internal/app/pipeline"
)

// options holds the flags that do not map straight onto core.Config.
type options struct {
	group string
	help  bool
}

// bindFlags registers every flag on fs. Short and long names share a target;
// defaults come from cfg, which already holds the config file values.
func bindFlags(fs *flag.FlagSet, cfg *core.Config) *options {
	opts := &options{}

	fs.StringVar(&cfg.Sector, "s", "", "Sector to list actors for")
	fs.StringVar(&cfg.Sector, "sector", "", "Sector to list actors for")
	fs.StringVar(&opts.group, "g", "", "Actor name ('-' reads names from stdin)")
	fs.StringVar(&opts.group, "group", "", "Actor name ('-' reads names from stdin)")
	fs.BoolVar(&cfg.TTPs, "t", false, "Include softwares of knowledge-base actors")
	fs.BoolVar(&cfg.TTPs, "ttps", false, "Include softwares of knowledge-base actors")
	fs.BoolVar(&cfg.Activity, "r", false, "Recent ransomware activity")
	fs.BoolVar(&cfg.Activity, "ransomware-activities", false, "Recent ransomware activity")
	fs.BoolVar(&cfg.ListSectors, "l", false, "List supported sectors")
	fs.BoolVar(&cfg.ListSectors, "list-sectors", false, "List supported sectors")

	fs.BoolVar(&cfg.OutputCSV, "oc", false, "Export results to CSV")
	fs.BoolVar(&cfg.OutputCSV, "output-csv", false, "Export results to CSV")
	fs.StringVar(&cfg.OutputDir, "o", cfg.OutputDir, "CSV output directory")
	fs.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "CSV output directory")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose output")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Verbose output")
	fs.BoolVar(&cfg.NoColors, "no-colors", false, "Disable colors")

	fs.Float64Var(&cfg.Delay, "d", cfg.Delay, "Delay between requests in seconds")
	fs.Float64Var(&cfg.Delay, "delay", cfg.Delay, "Delay between requests in seconds")
	fs.StringVar(&cfg.Proxy, "proxy", cfg.Proxy, "HTTP or SOCKS proxy URL")
	fs.BoolVar(&cfg.Insecure, "insecure", cfg.Insecure, "Skip TLS verification")
	fs.BoolVar(&cfg.Render, "render", cfg.Render, "Render client-side pages with headless Chrome")
	fs.StringVar(&cfg.Engine, "engine", cfg.Engine, "Analysis search engine: auto, google, brave, html")

	fs.BoolVar(&opts.help, "h", false, "Display help")
	fs.BoolVar(&opts.help, "help", false, "Display help")
	return opts
}

// validate checks flag values and resolves -g into cfg.Groups.
func (o *options) validate(cfg *core.Config, stdinPiped bool, readStdin func() ([]string, error)) error {
	if cfg.Delay < 0 {
		return fmt.Errorf("delay cannot be negative, got %v", cfg.Delay)
	}
	switch strings.ToLower(cfg.Engine) {
	case "", "auto", "google", "brave", "html":
	default:
		return fmt.Errorf("unknown search engine %q", cfg.Engine)
	}

	group := strings.TrimSpace(o.group)
	switch {
	case group == "-":
		if !stdinPiped {
			return fmt.Errorf("-g - expects actor names on stdin")
		}
		names, err := readStdin()
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		if len(names) == 0 {
			return fmt.Errorf("no actor names on stdin")
		}
		cfg.Groups = names
	case group != "":
		cfg.Groups = []string{group}
	}
	return nil
}

// resolveMode picks the query a run performs. The sector listing wins over
// a sector query, which wins over actor lookups, which win over activity.
func resolveMode(cfg *core.Config) pipeline.Mode {
	switch {
	case cfg.ListSectors:
		return pipeline.ModeListSectors
	case strings.TrimSpace(cfg.Sector) != "":
		return pipeline.ModeSector
	case len(cfg.Groups) > 0:
		return pipeline.ModeActor
	case cfg.Activity:
		return pipeline.ModeActivity
	default:
		return pipeline.ModeNone
	}
}
