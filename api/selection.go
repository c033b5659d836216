package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/stsysd/koyomi/calendar"
	"github.com/stsysd/koyomi/model"
)

// openSession はパスのデータセットのセッションをロックし、最新の状態に更新して返します。
// 失敗した場合はエラーレスポンスを書き込み、ok=false を返します。
// 成功した場合、呼び出し側は sess.mu.Unlock を呼ぶ必要があります。
func (s *Server) openSession(w http.ResponseWriter, r *http.Request, vp *calendar.Viewport) (*session, bool) {
	id, err := datasetID(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	sess := s.sessions.get(id.UUID())
	sess.mu.Lock()
	if err := s.sessions.refresh(r.Context(), sess, vp); err != nil {
		sess.mu.Unlock()
		if errors.Is(err, model.ErrDatasetNotFound) {
			s.sessions.drop(id.UUID())
		}
		s.writeError(w, err, "update calendar")
		return nil, false
	}
	return sess, true
}

// SelectionResponse は選択状態のレスポンスです。
type SelectionResponse struct {
	Handled    bool                `json:"handled"`
	State      string              `json:"state"`
	Cells      []string            `json:"cells"`
	Identities []calendar.Identity `json:"identities"`
	Legend     *LegendResponse     `json:"legend,omitempty"`
}

// LegendResponse は凡例とメトリクスバーの不透明度です。
type LegendResponse struct {
	Items   map[string]float64 `json:"items"`
	Metrics map[string]float64 `json:"metrics"`
}

func selectionResponse(sess *session, handled bool) *SelectionResponse {
	sel := sess.engine.Selection()
	resp := &SelectionResponse{
		Handled:    handled,
		State:      sel.State().String(),
		Cells:      sel.Cells(),
		Identities: sess.engine.CurrentSelection(),
	}
	if resp.Cells == nil {
		resp.Cells = []string{}
	}
	if resp.Identities == nil {
		resp.Identities = []calendar.Identity{}
	}
	return resp
}

func legendResponse(sess *session) *LegendResponse {
	resp := &LegendResponse{Items: map[string]float64{}, Metrics: map[string]float64{}}
	if f := sess.engine.Frame(); f != nil {
		st := sess.engine.Legend()
		for _, m := range f.Legend {
			resp.Items[m.Name] = st.Item(m.Name)
			resp.Metrics[m.Name] = st.Metric(m.Name)
		}
	}
	return resp
}

// persistSelection は選択を保存します。保存に失敗しても応答は返します。
func (s *Server) persistSelection(r *http.Request, sess *session) {
	if err := s.sessions.persist(r.Context(), sess); err != nil {
		s.logger.Error("Error saving selection", "err", err, "dataset_id", sess.id.String())
	}
}

// handleGetSelection は現在の選択状態を返します。
func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.openSession(w, r, nil)
	if !ok {
		return
	}
	defer sess.mu.Unlock()

	resp := selectionResponse(sess, true)
	resp.Legend = legendResponse(sess)
	writeJSON(w, http.StatusOK, resp)
}

// handleReplaceSelection はホスト側で変わった選択を反映します。空の配列は選択解除です。
func (s *Server) handleReplaceSelection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identities []calendar.Identity `json:"identities"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	sess, ok := s.openSession(w, r, nil)
	if !ok {
		return
	}
	defer sess.mu.Unlock()

	// 通知を受けたエンジンが識別子をセルに戻して塗り直す
	sess.host.Replace(body.Identities)
	selectionEvents.WithLabelValues("host").Inc()
	s.persistSelection(r, sess)

	writeJSON(w, http.StatusOK, selectionResponse(sess, true))
}

// ClickParams はクリック操作のパラメータです。
type ClickParams struct {
	CellID   string
	Segment  int
	Modifier bool
}

// NewClickParams はリクエストからクリック操作のパラメータを作成します。
// cell_id が空なら背景のクリック、segment が負または省略ならセル全体のクリックです。
func NewClickParams(r *http.Request) (*ClickParams, error) {
	var body struct {
		CellID   string `json:"cell_id"`
		Segment  *int   `json:"segment"`
		Modifier bool   `json:"modifier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}

	segment := -1
	if body.Segment != nil && *body.Segment >= 0 {
		segment = *body.Segment
	}
	return &ClickParams{CellID: body.CellID, Segment: segment, Modifier: body.Modifier}, nil
}

// handleClick はセル、バー、背景のクリックを処理します。
func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	params, err := NewClickParams(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess, ok := s.openSession(w, r, nil)
	if !ok {
		return
	}
	defer sess.mu.Unlock()

	handled := true
	kind := "background"
	switch {
	case params.CellID == "":
		sess.engine.ClickBackground()
	case params.Segment < 0:
		kind = "cell"
		handled, err = sess.engine.ClickCell(params.CellID, params.Modifier)
	default:
		kind = "bar"
		handled, err = sess.engine.ClickBar(params.CellID, params.Segment, params.Modifier)
	}
	if err != nil {
		s.writeError(w, err, "handle click")
		return
	}
	if handled {
		selectionEvents.WithLabelValues(kind).Inc()
		s.persistSelection(r, sess)
	}

	writeJSON(w, http.StatusOK, selectionResponse(sess, handled))
}

// handleLegendClick は凡例項目のクリックを処理し、確定後の不透明度を返します。
func (s *Server) handleLegendClick(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Metric string `json:"metric"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if body.Metric == "" {
		writeJSONError(w, "metric is required", http.StatusBadRequest)
		return
	}

	sess, ok := s.openSession(w, r, nil)
	if !ok {
		return
	}
	defer sess.mu.Unlock()

	handled, err := sess.engine.ClickLegend(body.Metric)
	if err != nil {
		s.writeError(w, err, "handle legend click")
		return
	}
	if handled {
		if err := sess.engine.WaitPending(r.Context()); err != nil {
			s.writeError(w, err, "wait for selection")
			return
		}
		selectionEvents.WithLabelValues("legend").Inc()
		s.persistSelection(r, sess)
	}

	resp := selectionResponse(sess, handled)
	resp.Legend = legendResponse(sess)
	writeJSON(w, http.StatusOK, resp)
}

// TooltipResponse はツールチップのレスポンスです。
type TooltipResponse struct {
	Items []calendar.TooltipItem `json:"items"`
}

// handleTooltip はセルまたはバー1段のツールチップを返します。
func (s *Server) handleTooltip(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	cellID := query.Get("cell")
	if cellID == "" {
		writeJSONError(w, "cell is required", http.StatusBadRequest)
		return
	}
	segment, err := model.NewSegment(query.Get("segment"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess, ok := s.openSession(w, r, nil)
	if !ok {
		return
	}
	defer sess.mu.Unlock()

	items, found := sess.engine.Tooltip(cellID, segment.Int())
	if !found {
		writeJSONError(w, "Tooltip not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, &TooltipResponse{Items: items})
}

// SchemaResponse は設定項目の一覧です。
type SchemaResponse struct {
	Objects []calendar.ObjectInstance `json:"objects"`
}

// handleSchema は設定画面に公開する項目と有効範囲を返します。
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	object, err := model.NewObjectName(r.URL.Query().Get("object"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess, ok := s.openSession(w, r, nil)
	if !ok {
		return
	}
	defer sess.mu.Unlock()

	settings, err := s.store.GetSettings(r.Context(), sess.id)
	if err != nil {
		s.writeError(w, err, "retrieve settings")
		return
	}
	var metrics []calendar.MetricDescriptor
	if f := sess.engine.Frame(); f != nil {
		metrics = f.Dataset.Metrics
	}

	objects := calendar.EnumerateObjects(settings, object.String(), metrics)
	if objects == nil {
		objects = []calendar.ObjectInstance{}
	}
	writeJSON(w, http.StatusOK, &SchemaResponse{Objects: objects})
}
