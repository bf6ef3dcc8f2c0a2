package main

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shamspias/pika"
)

type compressFlags struct {
	mode       string
	quality    int
	targetSize string
	maxWidth   int
	maxHeight  int
	format     string
	out        string
	zip        bool
	noProgress bool
}

func newCompressCmd(a *app) *cobra.Command {
	var f compressFlags

	cmd := &cobra.Command{
		Use:   "compress [flags] <file|dir>...",
		Short: "Compress images",
		Long: `Compress every accepted image among the arguments, one after another.
Directories are expanded one level deep. Unsupported files are skipped.

Results are written to --out as <name>-compressed.<ext>, or bundled into
` + pika.ArchiveName + ` with --zip.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCompress(cmd, f, args)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.mode, "mode", "", "quality | target-size (default from config)")
	fl.IntVarP(&f.quality, "quality", "q", 0, "quality 1-100")
	fl.StringVarP(&f.targetSize, "target-size", "s", "", "target file size, e.g. 200KB or 1.5MB (implies --mode target-size)")
	fl.IntVar(&f.maxWidth, "max-width", 0, "maximum width in pixels")
	fl.IntVar(&f.maxHeight, "max-height", 0, "maximum height in pixels")
	fl.StringVarP(&f.format, "format", "f", "", "output format: jpeg | webp")
	fl.StringVarP(&f.out, "out", "o", "", "output directory")
	fl.BoolVar(&f.zip, "zip", false, "write a single zip archive")
	fl.BoolVar(&f.noProgress, "no-progress", false, "hide the progress bar")
	return cmd
}

// settings merges flags that were set explicitly over the configuration.
func (a *app) settings(cmd *cobra.Command, f compressFlags) (pika.Settings, error) {
	s := a.cfg.Settings()
	fl := cmd.Flags()

	if fl.Changed("mode") {
		mode, err := pika.ParseMode(f.mode)
		if err != nil {
			return s, err
		}
		s.Mode = mode
	}
	if fl.Changed("quality") {
		if f.quality < 1 || f.quality > 100 {
			return s, fmt.Errorf("quality %d out of range 1-100", f.quality)
		}
		s.Quality = f.quality
	}
	if fl.Changed("target-size") {
		n, err := parseSize(f.targetSize)
		if err != nil {
			return s, fmt.Errorf("invalid target-size %q: %w", f.targetSize, err)
		}
		s.TargetSizeKB = float64(n) / 1024
		if !fl.Changed("mode") {
			s.Mode = pika.GoalTargetSize
		}
	}
	if fl.Changed("max-width") {
		s.MaxWidth = f.maxWidth
	}
	if fl.Changed("max-height") {
		s.MaxHeight = f.maxHeight
	}
	if fl.Changed("format") {
		format, err := pika.ParseFormat(f.format)
		if err != nil {
			return s, err
		}
		s.Format = format
	}
	return s.Normalize(), nil
}

func (a *app) runCompress(cmd *cobra.Command, f compressFlags, args []string) error {
	s, err := a.settings(cmd, f)
	if err != nil {
		return err
	}
	outDir := a.cfg.Output.Dir
	if cmd.Flags().Changed("out") {
		outDir = f.out
	}
	zipOut := a.cfg.Output.Zip || f.zip

	sources, rejected := pika.Acquire(args)
	for _, r := range rejected {
		a.log.Warn("skipped", zap.String("file", r.Path), zap.Error(r.Err))
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", r.Path, r.Err)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no supported images among %d path(s)", len(args))
	}

	c := pika.New(pika.Options{
		Resampler:      a.cfg.Resampler(),
		DefaultQuality: s.Quality,
		Logger:         a.log,
		Metrics:        a.metrics,
	})
	batch := pika.NewBatch(c)
	ids := batch.Add(sources...)

	var onUpdate pika.ItemFunc
	if !f.noProgress {
		bar := progressbar.NewOptions(len(ids)*100,
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()

		index := make(map[string]int, len(ids))
		for i, id := range ids {
			index[id] = i
		}
		onUpdate = func(it pika.Item) {
			bar.Describe(it.Name)
			_ = bar.Set(index[it.ID]*100 + int(it.Progress))
		}
	}

	a.log.Debug("compressing",
		zap.Int("images", len(ids)),
		zap.String("mode", s.Mode.String()),
		zap.Int("quality", s.Quality),
		zap.Int64("target", s.TargetBytes()),
		zap.String("format", s.Format.String()),
	)

	runErr := batch.CompressAll(cmd.Context(), s, onUpdate)
	defer a.writeMetrics()

	w := cmd.OutOrStdout()
	var failed int
	for _, it := range batch.Items() {
		switch it.Status {
		case pika.StatusDone:
			line := it.Compressed.String()
			if !it.Compressed.MetTarget {
				line += " (target not reached)"
			}
			fmt.Fprintln(w, line)
		case pika.StatusError:
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "failed %s: %v\n", it.Name, it.Err)
		}
	}
	if runErr != nil {
		return runErr
	}

	if err := save(cmd, batch.Entries(), outDir, zipOut); err != nil {
		return err
	}
	fmt.Fprintln(w, batch.Summary())

	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(ids))
	}
	return nil
}

func save(cmd *cobra.Command, entries []pika.ArchiveEntry, dir string, zipOut bool) error {
	if len(entries) == 0 {
		return pika.ErrNoCompressedImages
	}
	if zipOut {
		path := filepath.Join(dir, pika.ArchiveName)
		if err := pika.SaveArchive(path, entries); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d images)\n", path, len(entries))
		return nil
	}
	for _, e := range entries {
		if _, err := pika.SaveEntry(dir, e); err != nil {
			return err
		}
	}
	return nil
}

// parseSize parses sizes such as "200KB", "1.5MB" or "5000" into bytes.
// Units are binary: 1KB = 1024 bytes.
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "B"):
		s = strings.TrimSuffix(s, "B")
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(n) || math.IsInf(n, 0) || n <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}
	v := n * multiplier
	if v > float64(pika.MaxTargetBytes) {
		return 0, fmt.Errorf("size exceeds %s", pika.FormatSize(pika.MaxTargetBytes, 0))
	}
	b := int64(math.Round(v))
	if b < 1 {
		return 0, fmt.Errorf("size rounds to 0 bytes")
	}
	return b, nil
}
