// Package commands implements the xfapply subcommands
package commands

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	xforms "github.com/orbeon/orbeon-forms-sub002"
	"github.com/orbeon/orbeon-forms-sub002/cmd/xfapply/internal/ui"
	"github.com/orbeon/orbeon-forms-sub002/internal/dom"
	"github.com/orbeon/orbeon-forms-sub002/internal/normalize"
	"github.com/orbeon/orbeon-forms-sub002/internal/schedule"
)

type applyOptions struct {
	page        string
	responses   []string
	configPath  string
	outPath     string
	constrained bool
	minify      bool
	verbose     bool
}

func parseApplyArgs(args []string) (*applyOptions, error) {
	opts := &applyOptions{}
	var positional []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config", "--out":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s requires a value", args[i])
			}
			if args[i] == "--config" {
				opts.configPath = args[i+1]
			} else {
				opts.outPath = args[i+1]
			}
			i++
		case "--constrained":
			opts.constrained = true
		case "--minify":
			opts.minify = true
		case "--verbose", "-v":
			opts.verbose = true
		default:
			positional = append(positional, args[i])
		}
	}
	if len(positional) < 2 {
		return nil, fmt.Errorf("usage: xfapply apply <page.html> <response.xml>... [--config <file>] [--out <file>] [--constrained] [--minify] [--verbose]")
	}
	opts.page = positional[0]
	opts.responses = positional[1:]
	return opts, nil
}

// Apply replays response files against a rendered page and writes the
// resulting page. The report goes to report, the page to out unless --out
// names a file.
func Apply(args []string, out, report io.Writer) error {
	opts, err := parseApplyArgs(args)
	if err != nil {
		return err
	}

	cfg := xforms.DefaultConfig()
	if opts.configPath != "" {
		if cfg, err = xforms.LoadConfig(opts.configPath); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	f, err := os.Open(opts.page)
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}
	doc, err := dom.Parse(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("failed to parse page: %w", err)
	}

	logOutput := io.Discard
	if opts.verbose {
		logOutput = report
	}
	clock := schedule.NewManual()
	host := &transcript{}
	engine, err := xforms.New(doc, cfg, xforms.Host{
		Focus:     host,
		Scripts:   host,
		Navigator: host,
		Messages:  host,
		Help:      host,
		Poller:    host,
		Viewport:  viewport(opts.constrained),
		Scheduler: clock,
	}, xforms.WithLogger(log.New(logOutput, cfg.LogPrefix, 0)))
	if err != nil {
		return err
	}

	var deferred []*xforms.Result
	engine.OnDeferred(func(res *xforms.Result) {
		deferred = append(deferred, res)
	})

	ctx := context.Background()
	failed := 0
	for _, path := range opts.responses {
		name := filepath.Base(path)
		res, err := applyFile(ctx, engine, path)
		if err != nil {
			failed++
			fmt.Fprintln(report, ui.Header(name))
			fmt.Fprintln(report, "  "+ui.Error(err.Error()))
			continue
		}
		fmt.Fprint(report, ui.Result(name, res))
		printTranscript(report, host)

		if res.Deferred > 0 {
			clock.Advance(cfg.DeferralDelay)
			for _, d := range deferred {
				fmt.Fprint(report, ui.Result(name+" (after "+cfg.DeferralDelay.String()+")", d))
				printTranscript(report, host)
			}
			deferred = nil
		}
	}

	rendered := dom.Render(doc)
	if opts.minify {
		rendered = normalize.Markup(rendered)
	}
	if opts.outPath != "" {
		if err := os.WriteFile(opts.outPath, []byte(rendered), 0o644); err != nil {
			return fmt.Errorf("failed to write page: %w", err)
		}
	} else if _, err := io.WriteString(out, rendered); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d response(s) could not be parsed", failed, len(opts.responses))
	}
	return nil
}

func applyFile(ctx context.Context, engine *xforms.Engine, path string) (*xforms.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return engine.HandleResponse(ctx, f)
}

func printTranscript(w io.Writer, host *transcript) {
	for _, line := range host.take() {
		fmt.Fprintln(w, ui.Muted("  → "+line))
	}
}
