// Package main is the entry point for the HRT tracker command line
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/mrcode/hrt-tracker/internal/app"
	"github.com/mrcode/hrt-tracker/internal/calibration"
	"github.com/mrcode/hrt-tracker/internal/chart"
	"github.com/mrcode/hrt-tracker/internal/logger"
	"github.com/mrcode/hrt-tracker/internal/models"
)

// Exit codes
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const (
	sparklineWidth  = 60
	sparklineHeight = 8
)

var exitFunc = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}

func usage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, `Usage: hrt-tracker [global flags] <command> [flags]

Commands:
  calibrate     Fit per-route correction factors and save them
  predict       Predict the calibrated level at a time
  chart         Render the simulated and calibrated curves to PNG
  notify-test   Send a test desktop notification

Global flags:
`)
	fs.PrintDefaults()
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("hrt-tracker", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "settings file (default: settings.json in the user config dir)")
	logMode := global.String("log", "dev", "log format: dev or prod")
	factorsPath := global.String("factors", "", "calibration factors file (default: factors.json in the user config dir)")
	global.Usage = func() { usage(global, stderr) }

	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if global.NArg() == 0 {
		global.Usage()
		return exitUsage
	}

	log, err := logger.New(*logMode)
	if err != nil {
		fmt.Fprintf(stderr, "error: creating logger: %v\n", err)
		return exitError
	}
	defer log.Sync()

	settings, err := loadSettings(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}
	store, err := openStore(*factorsPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}
	svc, err := app.NewService(settings, log, store)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}

	cmd, cmdArgs := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "calibrate":
		err = runCalibrate(ctx, svc, settings, cmdArgs, stdout, stderr)
	case "predict":
		err = runPredict(ctx, svc, settings, cmdArgs, stdout, stderr)
	case "chart":
		err = runChart(ctx, svc, cmdArgs, stdout, stderr)
	case "notify-test":
		err = svc.Notifier().SendTestNotification()
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		global.Usage()
		return exitUsage
	}

	var usageErr usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &usageErr):
		return exitUsage
	default:
		log.Error("Command failed", "command", cmd, "error", err)
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}
}

// usageError marks a subcommand flag parsing failure already reported by the FlagSet
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return usageError{err}
	}
	return nil
}

func loadSettings(path string) (*models.Settings, error) {
	settings := models.DefaultSettings()
	if path == "" {
		if err := settings.Load(); err != nil {
			return nil, fmt.Errorf("loading settings: %w", err)
		}
		return settings, nil
	}
	if err := settings.LoadFrom(path); err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	return settings, nil
}

func openStore(path string) (*app.FactorStore, error) {
	if path != "" {
		return app.NewFactorStore(path), nil
	}
	return app.DefaultFactorStore()
}

func runCalibrate(ctx context.Context, svc *app.Service, settings *models.Settings, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("calibrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	data := fs.String("data", "", "dataset file or URL (default: configured data source)")
	asJSON := fs.Bool("json", false, "print the full calibration report as JSON")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	report, err := svc.Calibrate(ctx, *data)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printFactors(stdout, report.Factors)
	fmt.Fprintf(stdout, "\nMeasurements: %d applied, %d outliers, %d low signal\n",
		report.Count(calibration.OutcomeApplied),
		report.Count(calibration.OutcomeOutlier),
		report.Count(calibration.OutcomeLowSignal))
	for _, step := range report.StepsWith(calibration.OutcomeOutlier) {
		fmt.Fprintf(stdout, "  rejected %s at %.1f h: measured %s, predicted %s\n",
			step.Measurement.ID, step.Measurement.TimeH,
			settings.FormatLevel(step.Measurement.ConcPGmL),
			settings.FormatLevel(step.TotalPredicted))
	}

	if line := chart.Sparkline(chart.Resample(report.Combined(report.Factors), sparklineWidth), sparklineHeight); line != "" {
		fmt.Fprintf(stdout, "\nCalibrated curve (pg/mL):\n%s\n", line)
	}
	return nil
}

func printFactors(w io.Writer, factors models.CalibrationFactors) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROUTE\tFACTOR")
	for _, route := range models.Routes {
		if factors.Has(route) {
			fmt.Fprintf(tw, "%s\t%.3f\n", route, factors.Get(route))
		} else {
			fmt.Fprintf(tw, "%s\t%.3f (uncalibrated)\n", route, models.DefaultFactor)
		}
	}
	_ = tw.Flush()
}

func runPredict(ctx context.Context, svc *app.Service, settings *models.Settings, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	fs.SetOutput(stderr)
	data := fs.String("data", "", "dataset file or URL (default: configured data source)")
	at := fs.Float64("t", 0, "time in hours on the dataset timeline")
	asJSON := fs.Bool("json", false, "print the prediction as JSON")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	p, err := svc.Predict(ctx, *data, *at)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}

	fmt.Fprintf(stdout, "t=%.1f h  calibrated %s  raw %s  (%s)\n",
		p.TimeH,
		settings.FormatLevel(p.CalibratedPGmL),
		settings.FormatLevel(p.RawPGmL),
		p.Status)
	return nil
}

func runChart(ctx context.Context, svc *app.Service, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("chart", flag.ContinueOnError)
	fs.SetOutput(stderr)
	data := fs.String("data", "", "dataset file or URL (default: configured data source)")
	out := fs.String("o", "calibration.png", "output PNG path")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if _, err := svc.RenderChart(ctx, *data, *out); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\n", *out)
	return nil
}
