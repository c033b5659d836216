package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrNoFrame は一度も更新されていないエンジンを操作したときのエラーです。
var ErrNoFrame = errors.New("calendar has not been rendered yet")

// Deps はエンジンが利用する外部の協調者です。
type Deps struct {
	Colors     ColorResolver
	Format     Formatter
	Identities IdentityFactory
	Host       SelectionManager
	Surface    Surface
	Logger     *slog.Logger
	// Now は「今日」を決める時計です。nil の場合は time.Now を使います。
	Now func() time.Time
}

// LegendPainter は凡例の不透明度だけを塗り直せる描画先です。
type LegendPainter interface {
	PaintLegend(st LegendState)
}

// pendingLegend は凡例クリックの確定待ちを保持する1枠だけのスロットです。
type pendingLegend struct {
	clicked string
	result  <-chan int
}

// Engine は設定と表データからカレンダーを組み立て、選択状態を管理します。
// 1つの論理スレッドから呼び出すことを前提にしています。
type Engine struct {
	deps      Deps
	selection *Selection
	settings  Settings
	frame     *Frame
	legend    LegendState
	pending   *pendingLegend
}

// NewEngine は新しいエンジンを作成し、ホストの選択変更通知を購読します。
func NewEngine(deps Deps) *Engine {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	e := &Engine{
		deps:      deps,
		selection: NewSelection(deps.Host, deps.Surface),
	}
	deps.Host.OnChanged(e.HostSelectionChanged)
	return e
}

// Selection は選択状態機械を返します。
func (e *Engine) Selection() *Selection {
	return e.selection
}

// Frame は直近の更新サイクルの結果を返します。
func (e *Engine) Frame() *Frame {
	return e.frame
}

// Legend は現在の凡例の不透明度を返します。
func (e *Engine) Legend() LegendState {
	return e.legend
}

// SetSurface は描画先を差し替えます。次の Update から使われます。
func (e *Engine) SetSurface(s Surface) {
	e.deps.Surface = s
	e.selection.SetPainter(s)
}

// Update は表示範囲の決定、データ変換、グリッド構築、積み上げ、ツールチップ作成、描画、
// 選択の復元までを1回で行います。
func (e *Engine) Update(ctx context.Context, s Settings, t *Table, vp Viewport) (*Frame, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	today := e.deps.Now()
	rng := ResolveDateRange(s.Calendar, today)
	ds := Transform(t, s, TransformDeps{
		Colors:     e.deps.Colors,
		Format:     e.deps.Format,
		Identities: e.deps.Identities,
	})

	grids, err := buildGrids(ctx, rng, s.Calendar.FirstWeekday())
	if err != nil {
		return nil, fmt.Errorf("building month grids: %w", err)
	}

	f := newFrame()
	f.Range = rng
	f.Viewport = Viewport{Width: max(0, vp.Width), Height: max(0, vp.Height)}
	f.Geometry = Geometry{CellSize: float64(s.Calendar.CellSize)}
	f.Dataset = ds
	f.Months = grids
	f.Legend = ds.Metrics
	if len(ds.Points) > 0 {
		f.Legend = FilterLegend(ds.Points, ds.Metrics, rng)
	}

	e.bind(f, t)

	if len(e.deps.Host.CurrentIDs()) == 0 {
		e.selection.Reset()
	}

	e.settings = s
	e.frame = f
	e.legend = LegendState{}
	if e.deps.Surface != nil {
		e.deps.Surface.Draw(f, s, e.legend)
	}
	e.selection.Restore(f.HasCell)

	e.deps.Logger.Debug("calendar updated",
		"start", rng.Start.String(),
		"months", rng.Months,
		"points", len(ds.Points),
		"metrics", len(ds.Metrics),
		"selected", len(e.selection.cells),
	)
	return f, nil
}

// buildGrids は各月のグリッドを並行して構築します。
// 開始日と週の開始曜日は読み取り専用の共有入力で、結果は月ごとの枠に書き込みます。
func buildGrids(ctx context.Context, rng DateRange, firstDay time.Weekday) ([]MonthGrid, error) {
	months := rng.MonthList()
	grids := make([]MonthGrid, len(months))

	g, ctx := errgroup.WithContext(ctx)
	for i, m := range months {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			grids[i] = BuildMonthGrid(m, rng.Start, firstDay)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return grids, nil
}

// bind はセルIDをキーにセル、データ、積み上げ、ツールチップの対応表を作ります。
func (e *Engine) bind(f *Frame, t *Table) {
	byCell := make(map[string][]DataPoint)
	for _, p := range f.Dataset.Points {
		byCell[p.CellID] = append(byCell[p.CellID], p)
		f.identityCells[p.Identity.Key] = p.CellID
	}

	var categoryFormat string
	if t != nil {
		categoryFormat = t.Category.Format
	}

	colorOf := make(map[string]string, len(f.Dataset.Metrics))
	for _, m := range f.Dataset.Metrics {
		colorOf[m.Name] = m.Color
	}
	tips := TooltipContext{
		Baseline:   f.Dataset.TooltipColumns,
		Preference: TooltipPreference(f.Dataset.TooltipColumns, f.Legend),
		ColorOf:    func(name string) string { return colorOf[name] },
		Format:     e.deps.Format,
	}

	for _, g := range f.Months {
		for _, cell := range g.Cells {
			if !cell.InRange {
				continue
			}
			f.cells[cell.ID] = cell

			points, ok := byCell[cell.ID]
			if !ok {
				continue
			}
			f.dayPoints[cell.ID] = points
			header := e.deps.Format.FormatDate(cell.Date.Time(), categoryFormat)
			f.dayTooltips[cell.ID] = tips.DayTooltip(points, header)

			// 最初の月では開始日より前のデータを積み上げない
			if g.Month.First && cell.Date.Before(f.Range.Start) {
				continue
			}
			stack := LayoutStack(points, f.Geometry.CellRect(cell), f.Geometry.CellSize)
			if len(stack.Segments) == 0 {
				continue
			}
			f.stacks[cell.ID] = stack

			bars := make([][]TooltipItem, len(stack.Segments))
			for i, seg := range stack.Segments {
				if seg.Visible {
					bars[i] = tips.BarTooltip(points, seg.Point)
				}
			}
			f.barTooltips[cell.ID] = bars
		}
	}
}

// ClickCell はセル自体のクリックを処理します。積み上げデータのないセルは反応しません。
func (e *Engine) ClickCell(cellID string, modifier bool) (bool, error) {
	if e.frame == nil {
		return false, ErrNoFrame
	}
	stack, ok := e.frame.Stack(cellID)
	if !ok || stack.CellTarget == nil {
		return false, nil
	}
	e.selection.Click(cellID, []DataPoint{*stack.CellTarget}, modifier)
	return true, nil
}

// ClickBar は積み上げバー1段のクリックを処理します。
// 選択するのはそのバーの識別子だけですが、ハイライトはセル単位です。
// 描画されない段（値が0）を指定した場合はセルのクリックとして同じ識別子で扱います。
func (e *Engine) ClickBar(cellID string, segment int, modifier bool) (bool, error) {
	if e.frame == nil {
		return false, ErrNoFrame
	}
	stack, ok := e.frame.Stack(cellID)
	if !ok || segment < 0 || segment >= len(stack.Segments) {
		return false, nil
	}
	e.selection.Click(cellID, []DataPoint{stack.Segments[segment].Point}, modifier)
	return true, nil
}

// ClickBackground はセル以外の場所のクリックを処理します。
func (e *Engine) ClickBackground() {
	e.selection.ClickBackground()
}

// ClickLegend は凡例項目のクリックを処理します。
// ホストの確定結果は ApplyPending で反映されます。
func (e *Engine) ClickLegend(metric string) (bool, error) {
	if e.frame == nil {
		return false, ErrNoFrame
	}
	for _, m := range e.frame.Legend {
		if m.Name != metric {
			continue
		}
		e.selection.Reset()
		e.pending = &pendingLegend{
			clicked: m.Name,
			result:  e.deps.Host.Select(m.Identity, false),
		}
		return true, nil
	}
	return false, nil
}

// ApplyPending は確定済みの凡例選択があれば不透明度を更新します。
// 未確定なら何もせず false を返します。
func (e *Engine) ApplyPending() bool {
	if e.pending == nil {
		return false
	}
	select {
	case active, ok := <-e.pending.result:
		if !ok {
			e.pending = nil
			return false
		}
		e.applyLegendAck(legendAck{clicked: e.pending.clicked, active: active})
		e.pending = nil
		return true
	default:
		return false
	}
}

// WaitPending は凡例選択の確定を待って反映します。
func (e *Engine) WaitPending(ctx context.Context) error {
	if e.pending == nil {
		return nil
	}
	select {
	case active, ok := <-e.pending.result:
		if ok {
			e.applyLegendAck(legendAck{clicked: e.pending.clicked, active: active})
		}
		e.pending = nil
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) applyLegendAck(ack legendAck) {
	if e.frame == nil {
		return
	}
	e.legend = ApplyLegendSelection(e.frame.Legend, ack.clicked, ack.active)
	if lp, ok := e.deps.Surface.(LegendPainter); ok {
		lp.PaintLegend(e.legend)
	}
}

// HostSelectionChanged はホストから通知された選択を反映します。
func (e *Engine) HostSelectionChanged(ids []Identity) {
	e.selection.HostChanged(ids, e.resolveIdentity)
}

func (e *Engine) resolveIdentity(id Identity) (string, bool) {
	if e.frame == nil {
		return "", false
	}
	cellID, ok := e.frame.CellForIdentity(id)
	if !ok || !e.frame.HasCell(cellID) {
		return "", false
	}
	return cellID, true
}

// CurrentSelection はホストが保持している選択識別子を返します。
func (e *Engine) CurrentSelection() []Identity {
	return e.deps.Host.CurrentIDs()
}

// Tooltip はセル（segment < 0）またはバー1段のツールチップを返します。
func (e *Engine) Tooltip(cellID string, segment int) ([]TooltipItem, bool) {
	if e.frame == nil {
		return nil, false
	}
	if segment < 0 {
		return e.frame.DayTooltip(cellID)
	}
	return e.frame.BarTooltip(cellID, segment)
}
