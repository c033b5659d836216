package calendar

import (
	"slices"
)

// SelectionState は選択状態機械の状態です。
type SelectionState int

const (
	Idle SelectionState = iota
	Single
	Multi
)

func (s SelectionState) String() string {
	switch s {
	case Single:
		return "single"
	case Multi:
		return "multi"
	}
	return "idle"
}

// Selection はハイライト中のセルを保持し、クリックとホストからの通知を調停します。
// 更新サイクルをまたいで残る唯一の状態です。
type Selection struct {
	cells []string
	// multi は Ctrl クリックなどで複数選択を積み上げている途中かどうかです。
	multi bool

	host    SelectionManager
	painter Painter
}

// NewSelection は空の選択状態を作成します。
func NewSelection(host SelectionManager, painter Painter) *Selection {
	return &Selection{host: host, painter: painter}
}

// State は現在の状態を返します。
func (s *Selection) State() SelectionState {
	switch len(s.cells) {
	case 0:
		return Idle
	case 1:
		return Single
	}
	return Multi
}

// Cells は選択中のセルIDを選択順に返します。
func (s *Selection) Cells() []string {
	return slices.Clone(s.cells)
}

// Contains はセルが選択中かどうかを返します。
func (s *Selection) Contains(cellID string) bool {
	return slices.Contains(s.cells, cellID)
}

// SetPainter は描画先を差し替えます。
func (s *Selection) SetPainter(p Painter) {
	s.painter = p
}

func (s *Selection) paint(cellID string, state FillState) {
	if s.painter != nil {
		s.painter.PaintCell(cellID, state)
	}
}

// clearCells はハイライトをすべて消します。ホストには通知しません。
func (s *Selection) clearCells() {
	for _, id := range s.cells {
		s.paint(id, FillDefault)
	}
	s.cells = nil
}

// toggleCell はセルの選択を切り替えた結果を返します。
// 戻り値が false の場合、選択が解除されホストへ clear を送る必要があります。
func (s *Selection) toggleCell(cellID string, additive bool) bool {
	if additive {
		if i := slices.Index(s.cells, cellID); i >= 0 {
			s.cells = slices.Delete(s.cells, i, i+1)
			s.paint(cellID, FillDefault)
		} else {
			s.cells = append(s.cells, cellID)
			s.paint(cellID, FillSelected)
		}
		s.multi = true
		return true
	}

	wasSelected := s.Contains(cellID)
	wasMulti := s.multi
	s.clearCells()
	s.multi = false

	if wasSelected && !wasMulti {
		// 単独で選択中のセルをもう一度クリックしたら解除する
		return false
	}
	s.cells = []string{cellID}
	s.paint(cellID, FillSelected)
	return true
}

// Click はセルまたはバーのクリックを処理します。
// targets はホストへ選択を伝えるデータで、バーのクリックならそのバーだけです。
func (s *Selection) Click(cellID string, targets []DataPoint, modifier bool) {
	if !s.toggleCell(cellID, modifier) {
		s.host.Clear()
		return
	}

	if !s.multi {
		s.host.Clear()
	}
	additive := s.multi
	for i, p := range targets {
		if i != 0 && len(targets) > 1 {
			additive = true
		}
		s.host.Select(p.Identity, additive)
	}
}

// ClickBackground はセル以外の場所のクリックで選択をすべて解除します。
func (s *Selection) ClickBackground() {
	if len(s.cells) == 0 {
		return
	}
	s.clearCells()
	s.multi = false
	s.host.Clear()
}

// HostChanged はホストから通知された選択をそのまま反映します。
// resolve は識別子をセルIDに戻す関数で、見つからない識別子は無視します。
func (s *Selection) HostChanged(ids []Identity, resolve func(Identity) (string, bool)) {
	s.clearCells()
	s.multi = false
	if len(ids) == 0 {
		return
	}

	for _, id := range ids {
		cellID, ok := resolve(id)
		if !ok || s.Contains(cellID) {
			continue
		}
		s.cells = append(s.cells, cellID)
		s.paint(cellID, FillSelected)
	}
	s.multi = len(s.cells) > 1
}

// Reset はホストに選択がないときに呼ばれ、ローカルの選択を捨てます。
func (s *Selection) Reset() {
	s.clearCells()
	s.multi = false
}

// Restore は再描画後のセルに選択状態を塗り直します。
// present に含まれないセルは描画されていないため塗りません。
func (s *Selection) Restore(present func(cellID string) bool) {
	for _, id := range s.cells {
		if present(id) {
			s.paint(id, FillSelected)
		}
	}
}
