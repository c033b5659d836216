package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stsysd/koyomi/calendar"
	"github.com/stsysd/koyomi/config"
	"github.com/stsysd/koyomi/host"
	"github.com/stsysd/koyomi/ingest"
	"github.com/stsysd/koyomi/render"
	"github.com/stsysd/koyomi/watch"
	"golang.org/x/text/language"
)

// surface は描画結果を文字列として取り出せる描画先です。
type surface interface {
	calendar.Surface
	String() string
}

// outputOptions は描画の出力形式です。render と demo で共通です。
type outputOptions struct {
	format string
	output string
	width  float64
	height float64
	perRow int
}

func (o *outputOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.format, "format", "f", "svg", "output format: svg or term")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().Float64Var(&o.width, "width", 0, "viewport width in px (svg)")
	cmd.Flags().Float64Var(&o.height, "height", 0, "viewport height in px (svg)")
	cmd.Flags().IntVar(&o.perRow, "per-row", 3, "months per row (term)")
}

func (o *outputOptions) newSurface() (surface, error) {
	switch o.format {
	case "svg":
		return render.NewSVG(nil), nil
	case "term":
		return render.NewTerminal(o.perRow), nil
	}
	return nil, fmt.Errorf("unknown format %q: must be svg or term", o.format)
}

func (o *outputOptions) viewport() calendar.Viewport {
	return calendar.Viewport{Width: o.width, Height: o.height}
}

// write は描画結果を出力先に書き込みます。
func (o *outputOptions) write(w io.Writer, s string) error {
	if o.output == "" {
		_, err := fmt.Fprintln(w, s)
		return err
	}
	return os.WriteFile(o.output, []byte(s+"\n"), 0o644)
}

// renderer は1つの入力ファイルを描画するエンジン一式です。
// 監視中も同じエンジンを使い回し、変更のたびに更新サイクルを実行します。
type renderer struct {
	input    string
	settings string
	ingest   ingest.Options
	out      outputOptions

	engine  *calendar.Engine
	surface surface
	now     func() time.Time
}

func newRenderer(input, settings string, ing ingest.Options, out outputOptions, logger *slog.Logger) (*renderer, error) {
	abs, err := filepath.Abs(input)
	if err != nil {
		return nil, err
	}
	surf, err := out.newSurface()
	if err != nil {
		return nil, err
	}

	r := &renderer{
		input:    abs,
		settings: settings,
		ingest:   ing,
		out:      out,
		surface:  surf,
		now:      time.Now,
	}
	r.engine = calendar.NewEngine(calendar.Deps{
		Colors: host.NewPalette(),
		Format: host.NewFormatter(language.English),
		// 同じファイルなら実行のたびに同じ識別子になる
		Identities: host.NewIdentities(uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+abs))),
		Host:       host.NewSelection(),
		Surface:    surf,
		Logger:     logger,
		Now:        r.now,
	})
	return r, nil
}

// loadTable は拡張子に応じて入力ファイルを読み込みます。
func loadTable(path string, opts ingest.Options) (*calendar.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ingest.ReadCSV(f, opts)
	case ".xlsx", ".xlsm":
		return ingest.ReadXLSX(path, opts)
	}
	return nil, fmt.Errorf("unsupported input %s: must be .csv or .xlsx", path)
}

// update は設定と入力を読み直して更新サイクルを実行し、描画結果を返します。
func (r *renderer) update(ctx context.Context) (string, error) {
	settings, err := config.LoadSettings(r.settings, r.now())
	if err != nil {
		return "", err
	}
	table, err := loadTable(r.input, r.ingest)
	if err != nil {
		return "", err
	}
	if _, err := r.engine.Update(ctx, settings, table, r.out.viewport()); err != nil {
		return "", err
	}
	return r.surface.String(), nil
}

func newRenderCommand() *cobra.Command {
	var (
		out      outputOptions
		ing      ingest.Options
		settings string
		watching bool
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "render <input.csv|input.xlsx>",
		Short: "Render a CSV or XLSX table as a calendar",
		Long: `Render a CSV or XLSX table as a calendar.

The first column holds dates (YYYY-MM-DD, M/D/YYYY or RFC3339; Excel date
serials in XLSX). Every other column is a metric drawn as a stacked bar,
except those named with --tooltip.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			r, err := newRenderer(args[0], settings, ing, out, logger)
			if err != nil {
				return err
			}

			s, err := r.update(cmd.Context())
			if err != nil {
				return err
			}
			if err := out.write(cmd.OutOrStdout(), s); err != nil {
				return err
			}
			if !watching {
				return nil
			}

			w, err := watch.New([]string{args[0], settings}, watch.WithLogger(logger))
			if err != nil {
				return err
			}
			defer w.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			logger.Info("watching for changes", "files", w.Files())
			return w.Run(ctx, func(changed []string) error {
				s, err := r.update(ctx)
				if err != nil {
					return err
				}
				if out.format == "term" && out.output == "" {
					// 画面を消してから描き直す
					fmt.Fprint(cmd.OutOrStdout(), "\033[H\033[2J")
				}
				return out.write(cmd.OutOrStdout(), s)
			})
		},
	}

	out.addFlags(cmd)
	cmd.Flags().StringVarP(&settings, "settings", "s", "", "settings YAML file")
	cmd.Flags().StringSliceVar(&ing.TooltipColumns, "tooltip", nil, "columns shown only in tooltips")
	cmd.Flags().StringToStringVar(&ing.Formats, "column-format", nil, "value format per column, e.g. Sales=#,0.00")
	cmd.Flags().StringVar(&ing.CategoryFormat, "date-format", "", "date format for tooltips, e.g. yyyy-MM-dd")
	cmd.Flags().StringVar(&ing.Sheet, "sheet", "", "sheet name (xlsx; default: first sheet)")
	cmd.Flags().BoolVarP(&watching, "watch", "w", false, "re-render when the input or settings file changes")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	return cmd
}
