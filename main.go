package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"betterrest/internal/bedtime"
	"betterrest/internal/clock"
	"betterrest/internal/config"
	"betterrest/internal/model"
)

const appVersion = "0.2.0"

// errEstimateFailed marks a run whose estimate failed. The alert has already
// been printed, so main only sets the exit code.
var errEstimateFailed = errors.New("estimate failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	switch {
	case err == nil:
	case errors.Is(err, errEstimateFailed):
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		wakeStr string
		sleepH  float64
		coffee  int
		details bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:           "betterrest",
		Short:         "Bedtime calculator (CLI or web)",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			setupLogging(cfg.Debug)

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			if cfg.Port > 0 {
				printListenAddrs(cmd.OutOrStdout(), cfg.Port)
				return serveWeb(cmd.Context(), a, cfg.Port)
			}

			if strings.TrimSpace(wakeStr) == "" {
				return fmt.Errorf("--wake is required (or use --port)")
			}
			wakeMin, err := clock.ParseHHMM(wakeStr)
			if err != nil {
				return fmt.Errorf("invalid --wake: %w", err)
			}
			in := bedtime.Input{
				WakeTime:    clock.On(time.Now(), wakeMin, a.loc),
				SleepAmount: sleepH,
				CoffeeCups:  coffee,
			}
			if err := checkRange(in); err != nil {
				return err
			}

			pred, estErr := a.estimator.Estimate(in)
			res := a.result(in, pred, estErr)
			if asJSON {
				if err := writeJSONTo(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else {
				printCLI(cmd.OutOrStdout(), res, details)
			}
			if estErr != nil {
				return errEstimateFailed
			}
			return nil
		},
	}

	cmd.Version = appVersion
	cmd.SetVersionTemplate("betterrest v{{.Version}}\n")
	// cobra prints the version template for this flag before RunE runs.
	cmd.Flags().BoolP("version", "v", false, "Show version and exit")

	cmd.Flags().StringVar(&wakeStr, "wake", clock.FormatMinutes(bedtime.DefaultWakeMinute), "Wake up time HH:MM")
	cmd.Flags().Float64Var(&sleepH, "sleep", bedtime.DefaultSleep, "Desired amount of sleep in hours (4-12, 0.25 steps)")
	cmd.Flags().IntVar(&coffee, "coffee", bedtime.DefaultCoffee, "Daily coffee intake in cups (1-20)")
	cmd.Flags().BoolVar(&details, "details", false, "Show inputs and predicted sleep alongside the bedtime")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")

	// Settings below can also come from .betterrest.yaml or BETTERREST_* variables.
	cmd.PersistentFlags().String("config", "", "Config file (default ./.betterrest.yaml)")
	cmd.PersistentFlags().String("model", "", "Model artifact (.json or .yaml); empty uses the built-in model")
	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.Flags().Int("port", 0, "Run web UI on this port (e.g. 8484)")
	cmd.Flags().String("time-format", config.DefaultTimeFormat, "Bedtime display format: 24h or 12h")
	cmd.Flags().String("location", config.DefaultLocation, "Time zone used to read wake times (IANA name or Local)")
	cmd.Flags().Int("cache-size", config.DefaultCacheSize, "Prediction cache entries (0 disables)")
	cmd.Flags().Bool("watch-model", true, "Reload the model artifact when it changes (web mode)")

	cmd.AddCommand(newModelCmd())
	return cmd
}

func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Inspect or create model artifacts",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the built-in sample model to a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "sleep_calculator.json"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := model.WriteDefault(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Validate the configured model and print its coefficients",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			setupLogging(cfg.Debug)

			m := model.Default()
			if cfg.ModelPath != "" {
				if m, err = model.Load(cfg.ModelPath); err != nil {
					return err
				}
			}
			printModel(cmd.OutOrStdout(), m.Artifact())
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

// checkRange applies the limits the form steppers enforce to values that came
// from flags or the JSON API.
func checkRange(in bedtime.Input) error {
	c := in.Clamp()
	if c.SleepAmount != in.SleepAmount {
		return fmt.Errorf("sleep amount must be between %g and %g hours in %g steps", bedtime.MinSleep, bedtime.MaxSleep, bedtime.SleepStep)
	}
	if c.CoffeeCups != in.CoffeeCups {
		return fmt.Errorf("coffee intake must be between %d and %d cups", bedtime.MinCoffee, bedtime.MaxCoffee)
	}
	return nil
}

func setupLogging(debug bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}
