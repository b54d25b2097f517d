package main

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/ilkoid/records-classifier/pkg/config"
)

// cliOptions хранит значения флагов и явно заданные флаги.
type cliOptions struct {
	configPath   string
	model        string
	lines        int
	temperature  float64
	maxParallel  int
	skipAnalysis bool
	scanOnly     bool
	logPath      string
	timeout      time.Duration
	debug        bool
	version      bool

	root   string
	output string
	set    map[string]bool
}

// parseFlags разбирает аргументы: флаги, затем <root> [output.csv].
func parseFlags(args []string, stderr io.Writer) (*cliOptions, error) {
	opts := &cliOptions{set: make(map[string]bool)}

	fs := flag.NewFlagSet("recclass", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: recclass [flags] <root> <output.csv>")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Flags:")
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.configPath, "config", "", "Path to config.yaml (default: ./config.yaml)")
	fs.StringVar(&opts.model, "model", "", "Override model name")
	fs.IntVar(&opts.lines, "lines", 100, "Lines of text per file sent to the model")
	fs.Float64Var(&opts.temperature, "temperature", 0.1, "Model temperature (0-1)")
	fs.IntVar(&opts.maxParallel, "max-parallel", 0, "Concurrent classifications (0 = 2.5 x CPUs)")
	fs.BoolVar(&opts.skipAnalysis, "skip-analysis", false, "Apply retention rules only, never call the model")
	fs.BoolVar(&opts.scanOnly, "scan-only", false, "Print category counts and exit")
	fs.StringVar(&opts.logPath, "log", "", "Log file path (default: recclass-<timestamp>.log)")
	fs.DurationVar(&opts.timeout, "timeout", 0, "Per-file model time budget, retries included (default 120s)")
	fs.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&opts.version, "version", false, "Show version")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	if opts.version {
		return opts, nil
	}

	switch fs.NArg() {
	case 2:
		opts.output = fs.Arg(1)
		fallthrough
	case 1:
		opts.root = fs.Arg(0)
	case 0:
	default:
		return nil, fmt.Errorf("too many arguments: %v", fs.Args())
	}

	return opts, nil
}

// apply накладывает явно заданные флаги и аргументы на конфигурацию.
func (o *cliOptions) apply(cfg *config.AppConfig) {
	if o.root != "" {
		cfg.Run.Root = o.root
	}
	if o.output != "" {
		cfg.Run.Output = o.output
	}
	if o.set["model"] {
		cfg.Run.Model = o.model
	}
	if o.set["lines"] {
		cfg.Run.LinesPerFile = o.lines
	}
	if o.set["temperature"] {
		cfg.Run.Temperature = o.temperature
		for name, def := range cfg.Models.Definitions {
			def.Temperature = o.temperature
			cfg.Models.Definitions[name] = def
		}
	}
	if o.set["max-parallel"] {
		cfg.Run.MaxParallel = o.maxParallel
	}
	if o.set["skip-analysis"] {
		cfg.Run.SkipAnalysis = o.skipAnalysis
	}
	if o.set["log"] {
		cfg.Run.LogPath = o.logPath
	}
	if o.set["timeout"] {
		cfg.Run.TaskTimeout = o.timeout
	}
	if o.set["debug"] {
		cfg.App.Debug = o.debug
	}
	// scan-only не вызывает модель и не пишет экспорт
	if o.scanOnly {
		cfg.Run.SkipAnalysis = true
		if cfg.Run.Output == "" {
			cfg.Run.Output = "-"
		}
	}
	cfg.Run = cfg.Run.GetDefaults()
}
