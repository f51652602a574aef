package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"rendercore/browser"
	"rendercore/config"
	"rendercore/font"
	"rendercore/trace"
	"rendercore/url"
)

type renderFlags struct {
	output  string
	timeout time.Duration
	dark    bool
}

func newRenderCmd() *cobra.Command {
	flags := renderFlags{}
	cmd := &cobra.Command{
		Use:   "render <url|file>",
		Short: "Load a page, render the first frame and save the viewport as PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseTarget(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
			defer cancel()
			return render(ctx, cfg, target, flags, logger)
		},
	}
	cmd.Flags().StringVarP(&flags.output, "output", "o", "page.png", "image file to write")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 30*time.Second, "give up if no frame is drawn in time")
	cmd.Flags().BoolVar(&flags.dark, "dark", false, "render with the dark color scheme")
	return cmd
}

// parseTarget accepts an absolute URL or a path to a local file.
func parseTarget(arg string) (*url.URL, error) {
	if strings.Contains(arg, "://") {
		return url.NewURL(arg)
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, err
	}
	return url.NewURL("file://" + filepath.ToSlash(abs))
}

func options(c *config.Config, log *zap.Logger) browser.Options {
	var fontOpts []font.CacheOption
	if c.Fonts.Family != "" {
		fontOpts = append(fontOpts, font.WithFamily(c.Fonts.Family))
	}
	return browser.Options{
		ViewportWidth:  c.Viewport.Width,
		ViewportHeight: c.Viewport.Height,
		FrameInterval:  c.Frame.Interval,
		ScrollStep:     c.Scroll.Step,
		DarkMode:       c.DarkMode,
		Fonts:          font.NewCache(log, fontOpts...),
		Fetcher:        url.NewDefaultFetcher(log),
	}
}

func render(ctx context.Context, c *config.Config, target *url.URL, flags renderFlags, log *zap.Logger) (err error) {
	opts := options(c, log)
	opts.DarkMode = opts.DarkMode || flags.dark

	if c.Trace.File != "" {
		f, ferr := os.Create(c.Trace.File)
		if ferr != nil {
			return fmt.Errorf("create trace file: %w", ferr)
		}
		opts.Measure = trace.NewMeasureTime(f, "rendercore")
		defer func() {
			err = multierr.Combine(err, opts.Measure.Finish(), f.Close())
		}()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	saved := false
	b := browser.NewBrowser(opts, browser.PresenterFunc(func(frame *image.NRGBA, commit *browser.CommitData) error {
		if err := imaging.Save(frame, flags.output); err != nil {
			return fmt.Errorf("save %s: %w", flags.output, err)
		}
		log.Info("Saved frame", zap.String("file", flags.output), zap.Stringer("url", commit.URL),
			zap.Float64("document_height", commit.Height))
		saved = true
		cancel()
		return nil
	}), log)
	defer b.Stop()

	if err := b.Load(ctx, target); err != nil {
		return err
	}
	if err := b.Run(ctx); err != nil && !(saved && errors.Is(err, context.Canceled)) {
		return fmt.Errorf("render %s: %w", target, err)
	}
	return nil
}
