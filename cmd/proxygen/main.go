package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/lubkli/IoCBuilder-sub000/internal/codegen"
	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// config holds the flag defaults; every flag can be preset from the environment
type config struct {
	Package string   `env:"PROXYGEN_PKG"     envDefault:"."`
	Types   []string `env:"PROXYGEN_TYPES"   envSeparator:","`
	Output  string   `env:"PROXYGEN_OUT"`
	Verbose bool     `env:"PROXYGEN_VERBOSE" envDefault:"false"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := env.ParseAs[config]()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: parse env: %v\n", err)
		os.Exit(1)
	}

	if err := newRootCmd(cfg).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "proxygen",
		Short: "Generate typed proxy stubs",
		Long: `proxygen writes the statically typed stubs that turn a proxy.Surrogate back
into the type it stands in for. Interfaces get capability-wrap stubs, structs get
subclass-wrap stubs with one constructor per New<Type> function.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildTime),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return generate(cmd.Context(), cfg, cmd.OutOrStdout(), newLogger(cmd.ErrOrStderr(), cfg.Verbose))
		},
	}

	rootCmd.Flags().StringVarP(&cfg.Package, "pkg", "p", cfg.Package, "Directory of the package holding the types")
	rootCmd.Flags().StringSliceVarP(&cfg.Types, "type", "t", cfg.Types, "Comma-separated names of the types to generate stubs for")
	rootCmd.Flags().StringVarP(&cfg.Output, "out", "o", cfg.Output, `Output file, "-" for stdout (default <pkg>/<first type>_proxy.go)`)
	rootCmd.Flags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Enable verbose output")

	return rootCmd
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func generate(ctx context.Context, cfg config, stdout io.Writer, logger *slog.Logger) error {
	if len(cfg.Types) == 0 {
		return fmt.Errorf("no types given, use --type")
	}

	model, err := codegen.Load(ctx, cfg.Package, cfg.Types)
	if err != nil {
		return err
	}
	for _, t := range model.Targets {
		logger.Debug("inspected type", "type", t.Name, "kind", t.Kind.String(), "methods", len(t.Methods), "constructors", len(t.Constructors))
	}

	var buf bytes.Buffer
	if err := codegen.Render(model, &buf); err != nil {
		return err
	}

	if cfg.Output == "-" {
		_, err := buf.WriteTo(stdout)
		return err
	}

	out := cfg.Output
	if out == "" {
		out = filepath.Join(cfg.Package, strings.ToLower(cfg.Types[0])+"_proxy.go")
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write stubs: %w", err)
	}

	logger.Info("wrote proxy stubs", "file", out, "types", strings.Join(cfg.Types, ","))
	return nil
}
