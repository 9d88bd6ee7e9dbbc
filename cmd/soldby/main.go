package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/soldby/internal/app"
	"github.com/ternarybob/soldby/internal/common"
	"github.com/ternarybob/soldby/internal/services/report"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles  configPaths // Multiple -config flags supported
	scanURL      = flag.String("url", "", "Listing page URL to scan")
	scanFile     = flag.String("file", "", "Saved listing page to scan")
	baseURL      = flag.String("base-url", "", "Storefront origin (overrides config)")
	locale       = flag.String("locale", "", "Rating locale such as de-de (overrides <html lang>)")
	format       = flag.String("format", "", "Report format: text, json, yaml, markdown, html, pdf")
	output       = flag.String("out", "", "Report file (default stdout)")
	watch        = flag.Bool("watch", false, "Render -url in Chrome and keep annotating it until interrupted")
	scheduled    = flag.Bool("schedule", false, "Rescan [scan] urls on the configured schedule")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("SoldBy version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	common.InstallCrashHandler("")
	defer common.RecoverWithCrashFile()

	if len(configFiles) == 0 {
		if _, err := os.Stat("soldby.toml"); err == nil {
			configFiles = append(configFiles, "soldby.toml")
		} else if _, err := os.Stat("deployments/soldby.toml"); err == nil {
			configFiles = append(configFiles, "deployments/soldby.toml")
		}
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Validate
	// 4. Initialize logger
	// 5. Print banner
	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
		os.Exit(1)
	}

	common.ApplyFlagOverrides(config, *baseURL, *locale, *format, *output)
	if *scheduled {
		config.Scan.Enabled = true
	}

	if err := config.Validate(); err != nil {
		arbor.NewLogger().Fatal().Err(err).Msg("Invalid configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(config, logger)

	logger.Debug().
		Strs("config_files", configFiles).
		Str("storage_type", config.Storage.Type).
		Str("report_format", config.Report.Format).
		Str("log_level", config.Logging.Level).
		Msg("Resolved configuration")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, application, logger); err != nil {
		logger.Error().Err(err).Msg("SoldBy failed")
		application.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, application *app.App, logger arbor.ILogger) error {
	switch {
	case *scheduled:
		if err := application.StartSchedule(application.WriteReport); err != nil {
			return err
		}
		logger.Info().Msg("Rescan schedule running - Press Ctrl+C to stop")
		<-ctx.Done()
		logger.Info().Msg("Interrupt signal received")
		return nil

	case *watch:
		if *scanURL == "" {
			return fmt.Errorf("-watch requires -url")
		}
		logger.Info().Msg("Watching page - Press Ctrl+C to stop")
		rep, err := application.Watch(ctx, *scanURL)
		if err != nil {
			return err
		}
		return application.WriteReport(rep)

	case *scanFile != "":
		return scanAndWrite(application, func() (report.Report, error) {
			return application.ScanFile(ctx, *scanFile)
		})

	case *scanURL != "":
		return scanAndWrite(application, func() (report.Report, error) {
			return application.ScanURL(ctx, *scanURL)
		})

	default:
		flag.Usage()
		return fmt.Errorf("one of -url, -file or -schedule is required")
	}
}

func scanAndWrite(application *app.App, scan func() (report.Report, error)) error {
	rep, err := scan()
	if err != nil {
		return err
	}
	return application.WriteReport(rep)
}
