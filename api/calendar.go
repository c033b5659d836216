package api

import (
	"errors"
	"net/http"

	"github.com/stsysd/koyomi/calendar"
	"github.com/stsysd/koyomi/model"
)

// GetCalendarParams はカレンダー画像取得のパラメータです。
type GetCalendarParams struct {
	DatasetID *model.DatasetID
	Viewport  calendar.Viewport
}

// NewGetCalendarParams はリクエストからカレンダー画像取得のパラメータを作成します。
func NewGetCalendarParams(r *http.Request) (*GetCalendarParams, error) {
	id, err := datasetID(r)
	if err != nil {
		return nil, err
	}

	query := r.URL.Query()
	vp, err := model.NewViewportSize(query.Get("width"), query.Get("height"))
	if err != nil {
		return nil, err
	}

	return &GetCalendarParams{
		DatasetID: id,
		Viewport:  calendar.Viewport{Width: vp.Width(), Height: vp.Height()},
	}, nil
}

// handleGetCalendar は指定データセットのカレンダーを選択状態込みのSVGで返却します。
func (s *Server) handleGetCalendar(w http.ResponseWriter, r *http.Request) {
	// パラメータを検証
	params, err := NewGetCalendarParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess := s.sessions.get(params.DatasetID.UUID())
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := s.sessions.refresh(r.Context(), sess, &params.Viewport); err != nil {
		var validationErr *model.ValidationError
		switch {
		case errors.Is(err, model.ErrDatasetNotFound):
			s.sessions.drop(params.DatasetID.UUID())
			http.Error(w, "Dataset not found", http.StatusNotFound)
		case errors.As(err, &validationErr):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			s.logger.Error("Error rendering calendar", "err", err)
			http.Error(w, "Failed to render calendar", http.StatusInternalServerError)
		}
		return
	}

	svg := sess.svg.String()
	renderBytes.Observe(float64(len(svg)))

	// レスポンスの返却
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write([]byte(svg))
}
