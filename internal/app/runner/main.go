package runner

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"akamaru/internal/app/console"
	"akamaru/internal/app/core"
	"akamaru/internal/app/pipeline"
	"akamaru/internal/app/render"
	"akamaru/internal/app/report"
	"akamaru/internal/app/search"
	"akamaru/internal/app/sources"
	"akamaru/internal/app/tech"
	"akamaru/internal/app/utils"
)

const exitInterrupted = 130

func Run() {
	os.Exit(run())
}

func run() int {
	// Load config file first (will set defaults)
	fileConfig, cfgErr := core.LoadConfigFile()
	cfg := fileConfig.ToConfig()
	cfg.LoadAPIKeys()

	opts := bindFlags(flag.CommandLine, cfg)
	flag.Usage = console.PrintUsage
	flag.Parse()

	console.InitColors(cfg.NoColors)
	console.InitLogger(os.Stderr, cfg.Verbose)
	if cfgErr != nil {
		console.Warn("config file ignored, using defaults", "err", cfgErr)
	}

	if opts.help {
		console.PrintUsage()
		return 0
	}
	if flag.NArg() > 0 {
		console.ShowErrorAndExit("[!] Unexpected argument %q", flag.Arg(0))
	}
	if err := opts.validate(cfg, utils.CheckStdin(), utils.ReadStdin); err != nil {
		console.ShowErrorAndExit("[!] %v", err)
	}

	mode := resolveMode(cfg)
	if mode == pipeline.ModeNone {
		console.PrintUsage()
		return 0
	}
	console.ShowBanner()

	client, err := search.BuildHTTPClient(cfg.Proxy, cfg.Insecure, cfg.Timeout)
	if err != nil {
		console.LogErr("[!] Failed to create HTTP Client: %v", err)
		return 1
	}
	cfg.Client = client

	var (
		renderer  sources.Renderer
		inspector sources.Inspector
	)
	if cfg.Render {
		chrome := render.NewChrome(cfg.UserAgent, cfg.Proxy, cfg.Verbose)
		defer chrome.Close()
		renderer, inspector = chrome, tech.NewDetector()
	}

	p, err := pipeline.New(cfg, sources.FromConfig(cfg, renderer, inspector))
	if err != nil {
		console.LogErr("[!] %v", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		count := 0
		for sig := range sigCh {
			count++
			if count == 1 {
				console.LogErr("[!] Caught %s, attempting graceful shutdown... (press Ctrl+C again to force)", sig.String())
				cancel()
			} else {
				console.LogErr("[!] Force exiting.")
				os.Exit(exitInterrupted)
			}
		}
	}()
	defer func() {
		signal.Stop(sigCh)
		close(sigCh)
		cancel()
	}()

	console.Logv(cfg.Verbose, "[RUNNER] mode=%s delay=%.2fs engine=%s", mode, cfg.Delay, cfg.Engine)
	results, err := dispatch(ctx, p, mode, cfg)
	for _, res := range results {
		printResult(res, cfg.TTPs)
	}

	code := 0
	switch {
	case ctx.Err() != nil:
		console.LogErr("[!] Interrupted")
		return exitInterrupted
	case errors.Is(err, core.ErrUnsupportedSector):
		console.LogErr("[!] %v", err)
		console.LogErr("[!] Run akamaru -l for the supported sectors.")
		return 1
	case err != nil:
		console.LogErr("[!] %v", err)
		code = 1
	}

	if cfg.OutputCSV {
		if err := export(cfg.OutputDir, results, cfg.TTPs); err != nil {
			console.LogErr("[!] CSV export failed: %v", err)
			return 1
		}
	}
	return code
}

// dispatch runs the query for mode. Actor lookups run one query per name and
// keep going when a single name fails.
func dispatch(ctx context.Context, p *pipeline.Pipeline, mode pipeline.Mode, cfg *core.Config) ([]*pipeline.Result, error) {
	switch mode {
	case pipeline.ModeListSectors:
		return []*pipeline.Result{p.ListSectors()}, nil
	case pipeline.ModeSector:
		res, err := p.SectorQuery(ctx, cfg.Sector, cfg.TTPs)
		return nonNil(res), err
	case pipeline.ModeActor:
		var (
			results []*pipeline.Result
			errs    []error
		)
		for _, name := range cfg.Groups {
			res, err := p.ActorQuery(ctx, name)
			results = append(results, nonNil(res)...)
			if err != nil {
				if ctx.Err() != nil {
					return results, ctx.Err()
				}
				console.Logv(cfg.Verbose, "[RUNNER] %s: %v", name, err)
				errs = append(errs, err)
			}
		}
		return results, errors.Join(errs...)
	case pipeline.ModeActivity:
		res, err := p.ActivityQuery(ctx)
		return nonNil(res), err
	}
	return nil, nil
}

func nonNil(res *pipeline.Result) []*pipeline.Result {
	if res == nil {
		return nil
	}
	return []*pipeline.Result{res}
}

// export writes the rows of every result into the day's report.
func export(dir string, results []*pipeline.Result, includeTTPs bool) error {
	var rows []report.Row
	for _, res := range results {
		rows = append(rows, res.Rows(includeTTPs)...)
	}
	if len(rows) == 0 {
		console.Info("Nothing to export")
		return nil
	}
	path, err := report.NewWriter(dir).Write(rows)
	if err != nil {
		return err
	}
	console.Success("%d rows saved to %s", len(rows), console.Highlight(path))
	return nil
}
