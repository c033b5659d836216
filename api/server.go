// Package api はkoyomiのAPIサーバー実装を提供します。
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stsysd/koyomi/calendar"
	"github.com/stsysd/koyomi/config"
	"github.com/stsysd/koyomi/model"
	"github.com/stsysd/koyomi/store"
)

// Server はAPIサーバーの構造体です。
type Server struct {
	router   *http.ServeMux
	store    store.Store
	config   *config.Config
	logger   *slog.Logger
	sessions *sessionPool
	now      func() time.Time
}

// Option はServerの生成時の設定です。
type Option func(*Server)

// WithLogger はサーバーが使うロガーを指定します。
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithClock は「今日」を決める時計を指定します。
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// ErrorResponse はエラーレスポンスの構造体です。
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// writeJSONError はJSON形式でエラーレスポンスを返却します。
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	resp := ErrorResponse{
		Error: message,
		Code:  statusCode,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Error encoding error response", "err", err)
	}
}

// writeJSON はJSON形式でレスポンスを返却します。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "err", err)
	}
}

// writeError はエラーの種類に応じたステータスコードでエラーを返却します。
func (s *Server) writeError(w http.ResponseWriter, err error, action string) {
	var validationErr *model.ValidationError
	switch {
	case errors.Is(err, model.ErrDatasetNotFound):
		writeJSONError(w, "Dataset not found", http.StatusNotFound)
	case errors.As(err, &validationErr):
		// バリデーションエラーの場合は400を返す
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("Error "+action, "err", err)
		writeJSONError(w, "Failed to "+action, http.StatusInternalServerError)
	}
}

// NewServer は新しいAPIサーバーインスタンスを生成します。
func NewServer(store store.Store, config *config.Config, opts ...Option) *Server {
	s := &Server{
		router: http.NewServeMux(),
		store:  store,
		config: config,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sessions = newSessionPool(store, s.logger, s.now)
	s.routes()
	return s
}

// routes はAPIエンドポイントのルーティングを設定します。
func (s *Server) routes() {
	// ヘルスチェックとメトリクスは認証不要
	s.router.HandleFunc("GET /healthz", s.handleHealthCheck)
	s.router.Handle("GET /metrics", promhttp.Handler())

	// すべての保護されたエンドポイントをまずセキュアなルータに登録
	securedHandler := http.NewServeMux()

	// Dataset endpoints
	securedHandler.HandleFunc("GET /api/v0/d", instrument("list_datasets", s.handleListDatasets))
	securedHandler.HandleFunc("POST /api/v0/d", instrument("create_dataset", s.handleCreateDataset))
	securedHandler.HandleFunc("GET /api/v0/d/{dataset_id}", instrument("get_dataset", s.handleGetDataset))
	securedHandler.HandleFunc("PUT /api/v0/d/{dataset_id}", instrument("update_dataset", s.handleUpdateDataset))
	securedHandler.HandleFunc("DELETE /api/v0/d/{dataset_id}", instrument("delete_dataset", s.handleDeleteDataset))

	// Row endpoints
	securedHandler.HandleFunc("POST /api/v0/d/{dataset_id}/rows", instrument("put_rows", s.handlePutRows))
	securedHandler.HandleFunc("PUT /api/v0/d/{dataset_id}/rows.csv", instrument("replace_rows_csv", s.handleReplaceRowsCSV))

	// Selection endpoints
	securedHandler.HandleFunc("GET /api/v0/d/{dataset_id}/selection", instrument("get_selection", s.handleGetSelection))
	securedHandler.HandleFunc("PUT /api/v0/d/{dataset_id}/selection", instrument("replace_selection", s.handleReplaceSelection))
	securedHandler.HandleFunc("POST /api/v0/d/{dataset_id}/selection/click", instrument("click", s.handleClick))
	securedHandler.HandleFunc("POST /api/v0/d/{dataset_id}/selection/legend", instrument("legend_click", s.handleLegendClick))
	securedHandler.HandleFunc("GET /api/v0/d/{dataset_id}/tooltip", instrument("tooltip", s.handleTooltip))
	securedHandler.HandleFunc("GET /api/v0/d/{dataset_id}/schema", instrument("schema", s.handleSchema))

	// 認証ミドルウェアを適用し、メインルータにマウント
	s.router.Handle("/api/", s.authMiddleware(securedHandler))

	// Calendar endpoints - support both with and without .svg extension
	s.router.HandleFunc("GET /d/{dataset_id}/calendar.svg", instrument("calendar", s.handleGetCalendar))
	s.router.HandleFunc("GET /d/{dataset_id}/calendar", instrument("calendar", s.handleGetCalendar))
}

// ServeHTTP はServer構造体をhttp.Handlerとして実装します。
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// routesに設定されたルーティングを使用する
	s.router.ServeHTTP(w, r)
}

// handleHealthCheck はヘルスチェックエンドポイントのハンドラーです。
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DatasetResponse はデータセットと設定をまとめたレスポンスです。
type DatasetResponse struct {
	*model.Dataset
	Settings calendar.Settings `json:"settings"`
}

// ListDatasetsParams はデータセット一覧取得のパラメータです。
type ListDatasetsParams struct {
	Pagination *model.Pagination
}

// NewListDatasetsParams はリクエストからデータセット一覧取得のパラメータを作成します。
func NewListDatasetsParams(r *http.Request) (*ListDatasetsParams, error) {
	query := r.URL.Query()
	pagination, err := model.NewPagination(query.Get("limit"), query.Get("cursor"))
	if err != nil {
		return nil, err
	}
	return &ListDatasetsParams{Pagination: pagination}, nil
}

// ListDatasetsResponse はデータセット一覧取得のレスポンスです。
type ListDatasetsResponse struct {
	Items  []*model.Dataset `json:"items"`
	Cursor *string          `json:"cursor,omitempty"`
}

// handleListDatasets はデータセット一覧取得をハンドリングします。
func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	// パラメータを検証
	params, err := NewListDatasetsParams(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	datasets, next, err := s.store.ListDatasets(r.Context(), params.Pagination)
	if err != nil {
		s.writeError(w, err, "list datasets")
		return
	}

	// 空配列を返すためにnilチェック
	if datasets == nil {
		datasets = []*model.Dataset{}
	}
	writeJSON(w, http.StatusOK, &ListDatasetsResponse{Items: datasets, Cursor: next})
}

// CreateDatasetParams はデータセット作成のパラメータです。
type CreateDatasetParams struct {
	Name           string
	Description    string
	CategoryFormat string
	Columns        []model.ColumnDef
	Settings       calendar.Settings
}

// NewCreateDatasetParams はリクエストからデータセット作成のパラメータを作成します。
// settings は既定値に上書きする形で指定します。
func NewCreateDatasetParams(r *http.Request, today time.Time) (*CreateDatasetParams, error) {
	var body struct {
		Name           string            `json:"name"`
		Description    string            `json:"description"`
		CategoryFormat string            `json:"category_format"`
		Columns        []model.ColumnDef `json:"columns"`
		Settings       json.RawMessage   `json:"settings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}

	settings, err := overlaySettings(calendar.DefaultSettings(today), body.Settings)
	if err != nil {
		return nil, err
	}

	return &CreateDatasetParams{
		Name:           body.Name,
		Description:    body.Description,
		CategoryFormat: body.CategoryFormat,
		Columns:        body.Columns,
		Settings:       settings,
	}, nil
}

// overlaySettings は base にJSONで指定された項目だけを上書きします。
func overlaySettings(base calendar.Settings, raw json.RawMessage) (calendar.Settings, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return base, nil
	}
	if err := json.Unmarshal(raw, &base); err != nil {
		return calendar.Settings{}, model.NewValidationError(fmt.Sprintf("invalid settings: %v", err))
	}
	if err := base.Validate(); err != nil {
		return calendar.Settings{}, err
	}
	return base, nil
}

// handleCreateDataset はデータセット作成をハンドリングします。
func (s *Server) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	params, err := NewCreateDatasetParams(r, s.now())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	d, err := model.NewDataset(params.Name, params.Description, params.CategoryFormat, params.Columns)
	if err != nil {
		writeJSONError(w, fmt.Sprintf("Invalid dataset data: %v", err), http.StatusBadRequest)
		return
	}

	if err := s.store.CreateDataset(r.Context(), d, params.Settings); err != nil {
		s.writeError(w, err, "create dataset")
		return
	}

	writeJSON(w, http.StatusCreated, &DatasetResponse{Dataset: d, Settings: params.Settings})
}

// datasetID はパスからデータセットIDを取り出します。
func datasetID(r *http.Request) (*model.DatasetID, error) {
	id, err := model.NewDatasetID(r.PathValue("dataset_id"))
	if err != nil {
		return nil, fmt.Errorf("invalid dataset_id: %w", err)
	}
	return id, nil
}

// handleGetDataset はデータセット取得をハンドリングします。
func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	id, err := datasetID(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	d, err := s.store.GetDataset(r.Context(), id.UUID())
	if err != nil {
		s.writeError(w, err, "retrieve dataset")
		return
	}
	settings, err := s.store.GetSettings(r.Context(), id.UUID())
	if err != nil {
		s.writeError(w, err, "retrieve settings")
		return
	}

	writeJSON(w, http.StatusOK, &DatasetResponse{Dataset: d, Settings: settings})
}

// handleUpdateDataset はデータセット更新をハンドリングします。
// 指定された項目だけを更新します。列定義は変更できません。
func (s *Server) handleUpdateDataset(w http.ResponseWriter, r *http.Request) {
	id, err := datasetID(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// リクエストボディの読み取り
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	var update struct {
		Name           *string         `json:"name"`
		Description    *string         `json:"description"`
		CategoryFormat *string         `json:"category_format"`
		Settings       json.RawMessage `json:"settings"`
	}
	if err := json.Unmarshal(body, &update); err != nil {
		writeJSONError(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	// 既存データセットの取得
	d, err := s.store.GetDataset(r.Context(), id.UUID())
	if err != nil {
		s.writeError(w, err, "retrieve dataset")
		return
	}
	current, err := s.store.GetSettings(r.Context(), id.UUID())
	if err != nil {
		s.writeError(w, err, "retrieve settings")
		return
	}

	settings, err := overlaySettings(current, update.Settings)
	if err != nil {
		s.writeError(w, err, "update settings")
		return
	}

	if update.Name != nil {
		d.Name = *update.Name
	}
	if update.Description != nil {
		d.Description = *update.Description
	}
	if update.CategoryFormat != nil {
		d.CategoryFormat = *update.CategoryFormat
	}
	d.UpdatedAt = s.now()

	if err := d.Validate(); err != nil {
		writeJSONError(w, fmt.Sprintf("Invalid dataset data: %v", err), http.StatusBadRequest)
		return
	}
	if err := s.store.UpdateDataset(r.Context(), d); err != nil {
		s.writeError(w, err, "update dataset")
		return
	}
	if err := s.store.SaveSettings(r.Context(), id.UUID(), settings); err != nil {
		s.writeError(w, err, "update settings")
		return
	}
	s.sessions.invalidate(id.UUID())

	writeJSON(w, http.StatusOK, &DatasetResponse{Dataset: d, Settings: settings})
}

// handleDeleteDataset はデータセット削除をハンドリングします。
func (s *Server) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	id, err := datasetID(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.store.DeleteDataset(r.Context(), id.UUID()); err != nil {
		s.writeError(w, err, "delete dataset")
		return
	}
	s.sessions.drop(id.UUID())

	// 削除成功のレスポンスを返す
	w.WriteHeader(http.StatusNoContent)
}
