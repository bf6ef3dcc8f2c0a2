// Command pika compresses images at a fixed quality or toward a target size.
//
// Usage:
//
//	pika compress [flags] <file|dir>...
//	pika probe <file|dir>...
//	pika version
//
// Examples:
//
//	pika compress photo.jpg
//	pika compress --quality 60 --max-width 1920 photos/
//	pika compress --mode target-size --target-size 200KB --format webp photo.png
//	pika compress --zip --out dist/ photos/
package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shamspias/pika"
	"github.com/shamspias/pika/internal/config"
	"github.com/shamspias/pika/internal/logging"
)

// version is set at build time via ldflags.
var version = pika.Version

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app is the state shared by all commands of one invocation.
type app struct {
	cfgFile string
	verbose bool

	cfg     *config.Config
	log     *zap.Logger
	reg     *prometheus.Registry
	metrics *pika.Metrics
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "pika",
		Short: "Local adaptive image compression",
		Long: `pika compresses JPEG, PNG, WebP and GIF images to JPEG or WebP.

In quality mode every image is encoded once at the given quality. In
target-size mode pika searches for the best quality under the size and,
when even that is too large, shrinks the image step by step.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = logging.Sync(a.log)
			}
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newCompressCmd(a), newProbeCmd(a), newVersionCmd())
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	for _, w := range cfg.Warnings {
		log.Warn("config value replaced", zap.String("reason", w))
	}

	a.cfg = cfg
	a.log = log
	a.reg = prometheus.NewRegistry()
	a.metrics = pika.NewMetrics(a.reg)
	return nil
}

// writeMetrics dumps the registry when a textfile is configured.
func (a *app) writeMetrics() {
	path := a.cfg.Metrics.Textfile
	if path == "" {
		return
	}
	if err := prometheus.WriteToTextfile(path, a.reg); err != nil {
		a.log.Warn("failed to write metrics", zap.String("path", path), zap.Error(err))
	}
}
