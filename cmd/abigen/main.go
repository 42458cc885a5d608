package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alexhholmes/abilayout/internal/access"
	"github.com/alexhholmes/abilayout/internal/analyzer"
	"github.com/alexhholmes/abilayout/internal/driver"
	"github.com/alexhholmes/abilayout/internal/parser"
	"github.com/alexhholmes/abilayout/internal/target"
)

var (
	rootOpts = struct {
		verbose   bool
		logFormat string
	}{}

	// Flags shared by every command that loads descriptors
	loadOpts = struct {
		generate     []string
		include      []string
		target       string
		targetFile   string
		probeResults string
	}{}

	logger = zap.NewNop()

	rootCmd = &cobra.Command{
		Use:   "abigen",
		Short: "Generate Go bindings for native structure layouts",
		Long: `abigen reconstructs the memory layout of native structures from their
descriptors and generates Go accessors for their fields: mirror structs where
the layout is trusted, offset arithmetic where it is not expressible, and cgo
glue where neither is safe.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(rootOpts.verbose, rootOpts.logFormat)
			if err != nil {
				return err
			}
			logger = l
			analyzer.SetLogger(l)
			access.SetLogger(l)
			parser.SetLogger(l)
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootOpts.verbose, "verbose", "v", false, "log every layout decision")
	rootCmd.PersistentFlags().StringVar(&rootOpts.logFormat, "log-format", "console", "log encoding (=console, =json)")

	for _, cmd := range []*cobra.Command{generateCmd, inspectCmd, checkCmd} {
		addLoadFlags(cmd)
		rootCmd.AddCommand(cmd)
	}
}

func addLoadFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&loadOpts.generate, "generate", "g", nil, "descriptor files or Go packages to generate")
	cmd.Flags().StringSliceVarP(&loadOpts.include, "include", "I", nil, "descriptor files referenced but not generated")
	cmd.Flags().StringVar(&loadOpts.target, "target", target.DefaultName, "target platform")
	cmd.Flags().StringVar(&loadOpts.targetFile, "target-file", "", "yaml file with additional target platforms")
	cmd.Flags().StringVar(&loadOpts.probeResults, "probe-results", "", "read-back table produced by the probe program")
}

func newLogger(verbose bool, format string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}

	switch format {
	case "console":
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "json":
		cfg.Encoding = "json"
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	cfg.DisableStacktrace = !verbose
	return cfg.Build()
}

// loadTarget finds the platform named by --target, searching
// --target-file first
func loadTarget() (*target.Target, error) {
	if loadOpts.targetFile != "" {
		ts, err := target.LoadFile(loadOpts.targetFile)
		if err != nil {
			return nil, err
		}
		if t, err := ts.Find(loadOpts.target); err == nil {
			return t, nil
		}
	}
	return target.Find(loadOpts.target)
}

// inputs returns --generate, defaulting to the positional arguments
func inputs(args []string) []string {
	return append(append([]string(nil), loadOpts.generate...), args...)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func baseOptions(args []string) (driver.Options, error) {
	t, err := loadTarget()
	if err != nil {
		return driver.Options{}, err
	}
	return driver.Options{
		Generate:     inputs(args),
		Include:      loadOpts.include,
		Target:       t,
		ProbeResults: loadOpts.probeResults,
		Logger:       logger,
	}, nil
}
