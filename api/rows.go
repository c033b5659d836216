package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/stsysd/koyomi/ingest"
	"github.com/stsysd/koyomi/model"
)

// PutRowsParams は行の追加のパラメータです。
type PutRowsParams struct {
	DatasetID *model.DatasetID
	Rows      []*model.Row
	Replace   bool
}

// NewPutRowsParams はリクエストから行の追加のパラメータを作成します。
// ボディは [{"date": ..., "values": {...}}] の配列です。?replace=true で既存の行を置き換えます。
func NewPutRowsParams(r *http.Request) (*PutRowsParams, error) {
	id, err := datasetID(r)
	if err != nil {
		return nil, err
	}

	replace := false
	if v := r.URL.Query().Get("replace"); v != "" {
		replace, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid replace parameter: must be a boolean")
		}
	}

	var rows []*model.Row
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	for i, row := range rows {
		if row == nil {
			return nil, fmt.Errorf("row %d is null", i)
		}
	}

	return &PutRowsParams{DatasetID: id, Rows: rows, Replace: replace}, nil
}

// RowsResponse は保存した行数を返すレスポンスです。
type RowsResponse struct {
	Count int `json:"count"`
}

// handlePutRows は行の追加をハンドリングします。
func (s *Server) handlePutRows(w http.ResponseWriter, r *http.Request) {
	params, err := NewPutRowsParams(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if params.Replace {
		err = s.store.ReplaceRows(r.Context(), params.DatasetID.UUID(), params.Rows)
	} else {
		err = s.store.PutRows(r.Context(), params.DatasetID.UUID(), params.Rows)
	}
	if err != nil {
		s.writeError(w, err, "save rows")
		return
	}
	s.sessions.invalidate(params.DatasetID.UUID())

	writeJSON(w, http.StatusOK, &RowsResponse{Count: len(params.Rows)})
}

// handleReplaceRowsCSV はCSVで送られた行で既存の行を置き換えます。
// 1列目は日付、2列目以降の見出しはデータセットの列名と一致する必要があります。
func (s *Server) handleReplaceRowsCSV(w http.ResponseWriter, r *http.Request) {
	id, err := datasetID(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	table, err := ingest.ReadCSV(r.Body, ingest.Options{})
	if err != nil {
		s.writeError(w, err, "read csv")
		return
	}
	rows := ingest.Rows(table)

	if err := s.store.ReplaceRows(r.Context(), id.UUID(), rows); err != nil {
		s.writeError(w, err, "save rows")
		return
	}
	s.sessions.invalidate(id.UUID())

	writeJSON(w, http.StatusOK, &RowsResponse{Count: len(rows)})
}
