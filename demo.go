package main

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/stsysd/koyomi/calendar"
	"github.com/stsysd/koyomi/host"
	"golang.org/x/text/language"
)

// demoTable は直近1年分のランダムな活動データを生成します。
func demoTable(rng *rand.Rand, today time.Time) *calendar.Table {
	// 日数の計算はUTCで行い、夏時間の影響を受けないようにする
	end := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	start := end.AddDate(-1, 0, 1)
	days := int(end.Sub(start).Hours()/24) + 1

	dates := lo.Times(days, func(i int) time.Time {
		d := start.AddDate(0, 0, i)
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.Local)
	})

	commits := make([]calendar.Value, days)
	reviews := make([]calendar.Value, days)
	notes := make([]calendar.Value, days)
	for i, d := range dates {
		// 週末は活動が多め
		n := rng.IntN(6)
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			n = rng.IntN(10)
		}
		// ときどき大きく跳ねる
		if rng.IntN(20) == 0 {
			n += rng.IntN(20)
			notes[i] = calendar.Text("release")
		}
		commits[i] = calendar.Number(float64(n))
		reviews[i] = calendar.Number(float64(rng.IntN(4)))
	}

	return &calendar.Table{
		Category: calendar.Category{Name: "Date", Format: "yyyy-MM-dd", Values: dates},
		Columns: []calendar.Column{
			{Name: "Commits", Role: calendar.RoleMetric, Values: commits},
			{Name: "Reviews", Role: calendar.RoleMetric, Values: reviews},
			{Name: "Note", Role: calendar.RoleTooltip, Values: notes},
		},
	}
}

func newDemoCommand() *cobra.Command {
	var (
		out  outputOptions
		seed uint64
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Render a calendar of random activity for the past year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			surf, err := out.newSurface()
			if err != nil {
				return err
			}

			today := time.Now()
			settings := calendar.DefaultSettings(today)
			settings.Calendar.Mode = calendar.ModeYearly
			settings.Legend.Show = true
			settings.Legend.TitleShow = true

			engine := calendar.NewEngine(calendar.Deps{
				Colors:     host.NewPalette(),
				Format:     host.NewFormatter(language.English),
				Identities: host.NewIdentities(uuid.NameSpaceOID),
				Host:       host.NewSelection(),
				Surface:    surf,
				Logger:     slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn})),
			})

			rng := rand.New(rand.NewPCG(seed, seed))
			if _, err := engine.Update(cmd.Context(), settings, demoTable(rng, today), out.viewport()); err != nil {
				return fmt.Errorf("failed to render demo: %w", err)
			}
			return out.write(cmd.OutOrStdout(), surf.String())
		},
	}

	out.addFlags(cmd)
	cmd.Flags().Uint64Var(&seed, "seed", uint64(time.Now().UnixNano()), "random seed")
	return cmd
}
