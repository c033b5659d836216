package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stsysd/koyomi/calendar"
	"github.com/stsysd/koyomi/config"
	"github.com/stsysd/koyomi/store"
)

// テスト用の定数
const testAPIKey = "test-api-key"

// テスト用の設定を生成するヘルパー関数
func newTestConfig() *config.Config {
	return &config.Config{
		DataDir: "./testdata",
		Port:    "8080",
		APIKey:  testAPIKey,
	}
}

func testClock() time.Time {
	return time.Date(2024, 1, 20, 9, 0, 0, 0, time.Local)
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestServer(t *testing.T) (*Server, *store.SQLiteStore) {
	t.Helper()
	st := newTestStore(t)
	return NewServer(st, newTestConfig(), WithClock(testClock)), st
}

// doRequest はAPIキー付きでリクエストを送ります。body が文字列ならそのまま、それ以外はJSONにします。
func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
		r = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response body: %v", err)
	}
	return v
}

type datasetBody struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Settings calendar.Settings `json:"settings"`
}

// createFixture は2024年1月から2か月表示のデータセットを作り、行を登録します。
func createFixture(t *testing.T, h http.Handler) string {
	t.Helper()

	w := doRequest(t, h, http.MethodPost, "/api/v0/d", map[string]any{
		"name":            "sales",
		"description":     "daily sales",
		"category_format": "yyyy-MM-dd",
		"columns": []map[string]string{
			{"name": "Sales", "format": "#,0.00"},
			{"name": "Cost"},
			{"name": "Notes", "role": "tooltip"},
		},
		"settings": map[string]any{
			"calendar": map[string]any{
				"mode":          "fixed",
				"start_date":    "1/1/2024",
				"num_of_months": 2,
			},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status code %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	d := decode[datasetBody](t, w)

	w = doRequest(t, h, http.MethodPost, "/api/v0/d/"+d.ID+"/rows", []map[string]any{
		{"date": "2024-01-05", "values": map[string]any{"Sales": 10, "Cost": 5, "Notes": "memo"}},
		{"date": "1/6/2024", "values": map[string]any{"Sales": 3}},
		{"date": "2024-02-10", "values": map[string]any{"Cost": 7}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	return d.ID
}

func TestHealthCheck(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("Unexpected body: %s", w.Body.String())
	}
}

// TestAuthMiddleware tests API key checks on protected endpoints.
func TestAuthMiddleware(t *testing.T) {
	st := newTestStore(t)

	tests := []struct {
		description    string
		serverKey      string
		requestKey     string
		expectedStatus int
	}{
		{description: "正しいキー", serverKey: testAPIKey, requestKey: testAPIKey, expectedStatus: http.StatusOK},
		{description: "キーなし", serverKey: testAPIKey, requestKey: "", expectedStatus: http.StatusUnauthorized},
		{description: "誤ったキー", serverKey: testAPIKey, requestKey: "wrong", expectedStatus: http.StatusUnauthorized},
		{description: "サーバー側未設定", serverKey: "", requestKey: "anything", expectedStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			cfg := newTestConfig()
			cfg.APIKey = tt.serverKey
			server := NewServer(st, cfg)

			req := httptest.NewRequest(http.MethodGet, "/api/v0/d", nil)
			if tt.requestKey != "" {
				req.Header.Set("X-API-Key", tt.requestKey)
			}
			w := httptest.NewRecorder()
			server.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status code %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestDatasetEndpoints(t *testing.T) {
	server, _ := newTestServer(t)
	id := createFixture(t, server)

	// 取得
	w := doRequest(t, server, http.MethodGet, "/api/v0/d/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}
	got := decode[datasetBody](t, w)
	if got.Name != "sales" {
		t.Errorf("Expected name sales, got %q", got.Name)
	}
	if got.Settings.Calendar.StartDate != "1/1/2024" || got.Settings.Calendar.NumOfMonths != 2 {
		t.Errorf("Unexpected settings: %+v", got.Settings.Calendar)
	}
	// 指定していない設定は既定値
	if got.Settings.Calendar.CellSize != 50 {
		t.Errorf("Expected default cell size 50, got %d", got.Settings.Calendar.CellSize)
	}

	// 一覧
	w = doRequest(t, server, http.MethodGet, "/api/v0/d?limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}
	list := decode[struct {
		Items  []datasetBody `json:"items"`
		Cursor *string       `json:"cursor"`
	}](t, w)
	if len(list.Items) != 1 || list.Items[0].ID != id || list.Cursor != nil {
		t.Errorf("Unexpected list response: %+v", list)
	}

	// 更新
	w = doRequest(t, server, http.MethodPut, "/api/v0/d/"+id, map[string]any{
		"name":     "renamed",
		"settings": map[string]any{"legend": map[string]any{"show": true}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	got = decode[datasetBody](t, w)
	if got.Name != "renamed" || !got.Settings.Legend.Show {
		t.Errorf("Dataset was not updated: %+v", got)
	}
	// 既存の設定は保持される
	if got.Settings.Calendar.NumOfMonths != 2 {
		t.Errorf("Expected months to be kept, got %d", got.Settings.Calendar.NumOfMonths)
	}

	// 範囲外の設定での更新は拒否
	w = doRequest(t, server, http.MethodPut, "/api/v0/d/"+id, map[string]any{
		"settings": map[string]any{"calendar": map[string]any{"cell_size": 100}},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status code %d, got %d", http.StatusBadRequest, w.Code)
	}

	// 削除
	w = doRequest(t, server, http.MethodDelete, "/api/v0/d/"+id, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected status code %d, got %d", http.StatusNoContent, w.Code)
	}
	w = doRequest(t, server, http.MethodGet, "/api/v0/d/"+id, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status code %d after delete, got %d", http.StatusNotFound, w.Code)
	}
}

func TestCreateDatasetErrors(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		description string
		body        any
	}{
		{description: "不正なJSON", body: `{"name":`},
		{description: "列なし", body: map[string]any{"name": "empty"}},
		{description: "名前なし", body: map[string]any{"columns": []map[string]string{{"name": "A"}}}},
		{description: "不正な役割", body: map[string]any{"name": "x", "columns": []map[string]string{{"name": "A", "role": "axis"}}}},
		{
			description: "範囲外の設定",
			body: map[string]any{
				"name":     "x",
				"columns":  []map[string]string{{"name": "A"}},
				"settings": map[string]any{"calendar": map[string]any{"first_day": 7}},
			},
		},
		{
			description: "属性を含む色",
			body: map[string]any{
				"name":     "x",
				"columns":  []map[string]string{{"name": "A"}},
				"settings": map[string]any{"calendar": map[string]any{"header_color": `black" onload="alert(1)`}},
			},
		},
		{
			description: "属性を含むメトリクスの色",
			body: map[string]any{
				"name":     "x",
				"columns":  []map[string]string{{"name": "A"}},
				"settings": map[string]any{"metric_colors": map[string]string{"A": `red"/><script>alert(1)</script>`}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			w := doRequest(t, server, http.MethodPost, "/api/v0/d", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status code %d, got %d: %s", http.StatusBadRequest, w.Code, w.Body.String())
			}
		})
	}
}

func TestRowEndpoints(t *testing.T) {
	server, _ := newTestServer(t)
	id := createFixture(t, server)

	tests := []struct {
		description    string
		method         string
		path           string
		body           any
		expectedStatus int
	}{
		{
			description:    "未定義の列",
			method:         http.MethodPost,
			path:           "/api/v0/d/" + id + "/rows",
			body:           []map[string]any{{"date": "2024-01-07", "values": map[string]any{"Profit": 1}}},
			expectedStatus: http.StatusBadRequest,
		},
		{
			description:    "不正な日付",
			method:         http.MethodPost,
			path:           "/api/v0/d/" + id + "/rows",
			body:           []map[string]any{{"date": "yesterday", "values": map[string]any{"Sales": 1}}},
			expectedStatus: http.StatusBadRequest,
		},
		{
			description:    "存在しないデータセット",
			method:         http.MethodPost,
			path:           "/api/v0/d/00000000-0000-0000-0000-000000000000/rows",
			body:           []map[string]any{{"date": "2024-01-07", "values": map[string]any{"Sales": 1}}},
			expectedStatus: http.StatusNotFound,
		},
		{
			description:    "不正なID",
			method:         http.MethodPost,
			path:           "/api/v0/d/not-a-uuid/rows",
			body:           []map[string]any{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			description:    "CSVの未定義の列",
			method:         http.MethodPut,
			path:           "/api/v0/d/" + id + "/rows.csv",
			body:           "Date,Profit\n2024-01-08,4\n",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			w := doRequest(t, server, tt.method, tt.path, tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status code %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

// TestReplaceRowsCSV tests that a CSV upload replaces rows and the next render reflects it.
func TestReplaceRowsCSV(t *testing.T) {
	server, _ := newTestServer(t)
	id := createFixture(t, server)

	// 最初の描画でセッションを作っておく
	w := doRequest(t, server, http.MethodGet, "/d/"+id+"/calendar.svg", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}

	w = doRequest(t, server, http.MethodPut, "/api/v0/d/"+id+"/rows.csv", "Date,Sales\n2024-01-08,4\n2024-01-09,\n")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if got := decode[RowsResponse](t, w); got.Count != 2 {
		t.Errorf("Expected 2 rows, got %d", got.Count)
	}

	// 置き換え前のデータは消えている
	w = doRequest(t, server, http.MethodGet, "/api/v0/d/"+id+"/tooltip?cell=a1_5_2024", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status code %d for replaced row, got %d", http.StatusNotFound, w.Code)
	}
	w = doRequest(t, server, http.MethodPost, "/api/v0/d/"+id+"/selection/click", map[string]any{"cell_id": "a1_8_2024"})
	if got := decode[SelectionResponse](t, w); !got.Handled || got.State != "single" {
		t.Errorf("Expected click on new row to select it, got %+v", got)
	}
}

// TestGetCalendar tests rendering the calendar as SVG.
func TestGetCalendar(t *testing.T) {
	server, _ := newTestServer(t)
	id := createFixture(t, server)

	tests := []struct {
		description    string
		path           string
		expectedStatus int
		contains       []string
	}{
		{
			description:    "SVG拡張子つき",
			path:           "/d/" + id + "/calendar.svg",
			expectedStatus: http.StatusOK,
			contains:       []string{`<svg width="730"`, `id="a1_5_2024"`, `data-month="2024-02"`, `data-metric="Cost"`},
		},
		{
			description:    "拡張子なし、幅指定",
			path:           "/d/" + id + "/calendar?width=400",
			expectedStatus: http.StatusOK,
			contains:       []string{`<svg width="365"`},
		},
		{
			description:    "不正な幅",
			path:           "/d/" + id + "/calendar.svg?width=-1",
			expectedStatus: http.StatusBadRequest,
		},
		{
			description:    "存在しないデータセット",
			path:           "/d/00000000-0000-0000-0000-000000000000/calendar.svg",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			// 認証は不要
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status code %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if w.Code != http.StatusOK {
				return
			}
			if ct := w.Header().Get("Content-Type"); ct != "image/svg+xml" {
				t.Errorf("Expected Content-Type image/svg+xml, got %s", ct)
			}
			for _, s := range tt.contains {
				if !strings.Contains(w.Body.String(), s) {
					t.Errorf("Expected SVG to contain %s", s)
				}
			}
		})
	}
}

// TestUpdateDatasetRejectsMarkupColor tests that a color setting cannot inject markup into the public SVG.
func TestUpdateDatasetRejectsMarkupColor(t *testing.T) {
	server, _ := newTestServer(t)
	id := createFixture(t, server)

	w := doRequest(t, server, http.MethodPut, "/api/v0/d/"+id, map[string]any{
		"settings": map[string]any{"legend": map[string]any{"label_color": `black" onload="alert(1)`}},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status code %d, got %d: %s", http.StatusBadRequest, w.Code, w.Body.String())
	}

	w = doRequest(t, server, http.MethodPut, "/api/v0/d/"+id, map[string]any{
		"settings": map[string]any{"calendar": map[string]any{"header_color": "#336699"}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/d/"+id+"/calendar.svg", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d", http.StatusOK, rec.Code)
	}
	if strings.Contains(rec.Body.String(), "onload") {
		t.Error("Rejected color should not reach the SVG")
	}
	if !strings.Contains(rec.Body.String(), `fill="#336699"`) {
		t.Error("Expected updated header color")
	}
}

// TestCalendarFollowsDateChange tests that a relative calendar moves when the day changes.
func TestCalendarFollowsDateChange(t *testing.T) {
	now := testClock()
	server := NewServer(newTestStore(t), newTestConfig(), WithClock(func() time.Time { return now }))

	w := doRequest(t, server, http.MethodPost, "/api/v0/d", map[string]any{
		"name":    "relative",
		"columns": []map[string]string{{"name": "Sales"}},
		"settings": map[string]any{
			"calendar": map[string]any{
				"mode":                    "relative",
				"num_of_previous_months":  0,
				"num_of_following_months": 1,
			},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status code %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	id := decode[datasetBody](t, w).ID

	getCalendar := func() string {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/d/"+id+"/calendar.svg", nil)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status code %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}
		return rec.Body.String()
	}

	if out := getCalendar(); !strings.Contains(out, `data-month="2024-01"`) {
		t.Fatal("Expected January before the date change")
	}

	// 同じ日のうちは前回のフレームを使う
	now = now.Add(2 * time.Hour)
	if out := getCalendar(); !strings.Contains(out, `data-month="2024-01"`) {
		t.Error("Expected January later on the same day")
	}

	now = time.Date(2024, 3, 20, 9, 0, 0, 0, time.Local)
	out := getCalendar()
	if !strings.Contains(out, `data-month="2024-03"`) {
		t.Error("Expected March after the date change")
	}
	if strings.Contains(out, `data-month="2024-01"`) {
		t.Error("January should no longer be drawn")
	}
}

// TestClickFlow tests the selection state machine through the click endpoint.
func TestClickFlow(t *testing.T) {
	server, _ := newTestServer(t)
	id := createFixture(t, server)
	clickPath := "/api/v0/d/" + id + "/selection/click"

	steps := []struct {
		description string
		body        map[string]any
		handled     bool
		state       string
		cells       []string
	}{
		{
			description: "セルをクリック",
			body:        map[string]any{"cell_id": "a1_5_2024"},
			handled:     true, state: "single", cells: []string{"a1_5_2024"},
		},
		{
			description: "同じセルで解除",
			body:        map[string]any{"cell_id": "a1_5_2024"},
			handled:     true, state: "idle", cells: []string{},
		},
		{
			description: "修飾キーで追加",
			body:        map[string]any{"cell_id": "a1_5_2024", "modifier": true},
			handled:     true, state: "single", cells: []string{"a1_5_2024"},
		},
		{
			description: "修飾キーで複数選択",
			body:        map[string]any{"cell_id": "a1_6_2024", "modifier": true},
			handled:     true, state: "multi", cells: []string{"a1_5_2024", "a1_6_2024"},
		},
		{
			description: "複数選択中の通常クリックで1つに",
			body:        map[string]any{"cell_id": "a1_6_2024"},
			handled:     true, state: "single", cells: []string{"a1_6_2024"},
		},
		{
			description: "データのないセル",
			body:        map[string]any{"cell_id": "a1_7_2024"},
			handled:     false, state: "single", cells: []string{"a1_6_2024"},
		},
		{
			description: "バーをクリック",
			body:        map[string]any{"cell_id": "a1_5_2024", "segment": 1},
			handled:     true, state: "single", cells: []string{"a1_5_2024"},
		},
		{
			description: "背景をクリック",
			body:        map[string]any{},
			handled:     true, state: "idle", cells: []string{},
		},
	}

	for _, st := range steps {
		w := doRequest(t, server, http.MethodPost, clickPath, st.body)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected status code %d, got %d: %s", st.description, http.StatusOK, w.Code, w.Body.String())
		}
		got := decode[SelectionResponse](t, w)
		if got.Handled != st.handled {
			t.Errorf("%s: expected handled=%v, got %v", st.description, st.handled, got.Handled)
		}
		if got.State != st.state {
			t.Errorf("%s: expected state %s, got %s", st.description, st.state, got.State)
		}
		if strings.Join(got.Cells, ",") != strings.Join(st.cells, ",") {
			t.Errorf("%s: expected cells %v, got %v", st.description, st.cells, got.Cells)
		}
	}
}

// TestSelectionPersistence tests that a selection survives a server restart.
func TestSelectionPersistence(t *testing.T) {
	server, st := newTestServer(t)
	id := createFixture(t, server)

	w := doRequest(t, server, http.MethodPost, "/api/v0/d/"+id+"/selection/click", map[string]any{"cell_id": "a1_5_2024"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}
	clicked := decode[SelectionResponse](t, w)
	if len(clicked.Identities) != 1 {
		t.Fatalf("Expected 1 identity, got %v", clicked.Identities)
	}

	// 同じストアで新しいサーバーを起動
	restarted := NewServer(st, newTestConfig(), WithClock(testClock))
	w = doRequest(t, restarted, http.MethodGet, "/api/v0/d/"+id+"/selection", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}
	got := decode[SelectionResponse](t, w)
	if got.State != "single" || len(got.Cells) != 1 || got.Cells[0] != "a1_5_2024" {
		t.Errorf("Expected restored selection of a1_5_2024, got %+v", got)
	}
	if len(got.Identities) != 1 || got.Identities[0].Key != clicked.Identities[0].Key {
		t.Errorf("Expected restored identity %v, got %v", clicked.Identities, got.Identities)
	}

	// 描画にも反映される
	req := httptest.NewRequest(http.MethodGet, "/d/"+id+"/calendar.svg", nil)
	rec := httptest.NewRecorder()
	restarted.ServeHTTP(rec, req)
	if !strings.Contains(rec.Body.String(), `fill="darkgrey" data-date="1/5/2024"`) {
		t.Error("Expected restored cell to be painted as selected")
	}
}

// TestReplaceSelection tests host pushed selections.
func TestReplaceSelection(t *testing.T) {
	server, _ := newTestServer(t)
	id := createFixture(t, server)
	path := "/api/v0/d/" + id + "/selection"

	tests := []struct {
		description string
		identities  []calendar.Identity
		state       string
		cells       []string
	}{
		{
			description: "日付から解決",
			identities:  []calendar.Identity{{Key: "external", Date: "1/6/2024"}},
			state:       "single",
			cells:       []string{"a1_6_2024"},
		},
		{
			description: "重複と不明な識別子は無視",
			identities: []calendar.Identity{
				{Key: "x", Date: "1/5/2024"},
				{Key: "y", Date: "1/5/2024"},
				{Key: "z", Date: "7/4/1999"},
				{Key: "w"},
			},
			state: "single",
			cells: []string{"a1_5_2024"},
		},
		{
			description: "空で解除",
			identities:  []calendar.Identity{},
			state:       "idle",
			cells:       []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			w := doRequest(t, server, http.MethodPut, path, map[string]any{"identities": tt.identities})
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status code %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
			}
			got := decode[SelectionResponse](t, w)
			if got.State != tt.state {
				t.Errorf("Expected state %s, got %s", tt.state, got.State)
			}
			if strings.Join(got.Cells, ",") != strings.Join(tt.cells, ",") {
				t.Errorf("Expected cells %v, got %v", tt.cells, got.Cells)
			}
		})
	}
}

// TestLegendClick tests legend opacity after the host acknowledges the selection.
func TestLegendClick(t *testing.T) {
	server, _ := newTestServer(t)
	id := createFixture(t, server)
	path := "/api/v0/d/" + id + "/selection/legend"

	// セルを選択しておく
	doRequest(t, server, http.MethodPost, "/api/v0/d/"+id+"/selection/click", map[string]any{"cell_id": "a1_5_2024"})

	w := doRequest(t, server, http.MethodPost, path, map[string]any{"metric": "Sales"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	got := decode[SelectionResponse](t, w)
	if !got.Handled {
		t.Fatal("Expected legend click to be handled")
	}
	// セルのハイライトは解除される
	if got.State != "idle" {
		t.Errorf("Expected idle cell selection, got %s", got.State)
	}
	if len(got.Identities) != 1 {
		t.Errorf("Expected the series identity to be selected, got %v", got.Identities)
	}
	if got.Legend == nil {
		t.Fatal("Expected legend opacity in response")
	}
	if got.Legend.Items["Sales"] != 1 || got.Legend.Items["Cost"] != 0.5 {
		t.Errorf("Unexpected item opacity: %v", got.Legend.Items)
	}
	if got.Legend.Metrics["Sales"] != 1 || got.Legend.Metrics["Cost"] != 0.3 {
		t.Errorf("Unexpected metric opacity: %v", got.Legend.Metrics)
	}
	if _, ok := got.Legend.Items["Notes"]; ok {
		t.Error("Tooltip columns should not appear in the legend")
	}

	// 描画にも反映される
	w = doRequest(t, server, http.MethodGet, "/d/"+id+"/calendar.svg", nil)
	if !strings.Contains(w.Body.String(), `fill-opacity="0.3" data-cell="a1_5_2024" data-segment="0" data-metric="Cost"`) {
		t.Error("Expected faded Cost bar in SVG")
	}

	// 凡例にないメトリクス
	w = doRequest(t, server, http.MethodPost, path, map[string]any{"metric": "Notes"})
	if got := decode[SelectionResponse](t, w); got.Handled {
		t.Error("Expected click on a non-legend metric to be ignored")
	}

	w = doRequest(t, server, http.MethodPost, path, map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status code %d without metric, got %d", http.StatusBadRequest, w.Code)
	}
}

// TestTooltip tests day and bar tooltips.
func TestTooltip(t *testing.T) {
	server, _ := newTestServer(t)
	id := createFixture(t, server)
	base := "/api/v0/d/" + id + "/tooltip"

	w := doRequest(t, server, http.MethodGet, base+"?cell=a1_5_2024", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	day := decode[TooltipResponse](t, w)
	if len(day.Items) != 1 || day.Items[0].DisplayName != "Notes" || day.Items[0].Value != "memo" {
		t.Errorf("Unexpected day tooltip: %+v", day.Items)
	}
	if day.Items[0].Header != "2024-01-05" {
		t.Errorf("Expected header 2024-01-05, got %q", day.Items[0].Header)
	}

	// 1段目は Sales（最後に宣言された列ほど下）
	w = doRequest(t, server, http.MethodGet, base+"?cell=a1_5_2024&segment=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	bar := decode[TooltipResponse](t, w)
	found := false
	for _, it := range bar.Items {
		if it.DisplayName == "Sales" {
			found = true
			if it.Value != "10.00" {
				t.Errorf("Expected formatted Sales 10.00, got %q", it.Value)
			}
		}
	}
	if !found {
		t.Errorf("Expected Sales in bar tooltip, got %+v", bar.Items)
	}

	tests := []struct {
		description    string
		query          string
		expectedStatus int
	}{
		{description: "セル未指定", query: "", expectedStatus: http.StatusBadRequest},
		{description: "不正な段", query: "?cell=a1_5_2024&segment=-5", expectedStatus: http.StatusBadRequest},
		{description: "データのないセル", query: "?cell=a1_7_2024", expectedStatus: http.StatusNotFound},
		{description: "範囲外の段", query: "?cell=a1_5_2024&segment=9", expectedStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			w := doRequest(t, server, http.MethodGet, base+tt.query, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status code %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestSchema(t *testing.T) {
	server, _ := newTestServer(t)
	id := createFixture(t, server)

	w := doRequest(t, server, http.MethodGet, "/api/v0/d/"+id+"/schema?object=calendarSettings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	got := decode[SchemaResponse](t, w)
	if len(got.Objects) != 1 || got.Objects[0].ObjectName != "calendarSettings" {
		t.Errorf("Unexpected schema: %+v", got.Objects)
	}

	w = doRequest(t, server, http.MethodGet, "/api/v0/d/"+id+"/schema?object=metricsSettings", nil)
	got = decode[SchemaResponse](t, w)
	if len(got.Objects) == 0 || got.Objects[0].Selector == nil {
		t.Errorf("Expected metric objects with selectors, got %+v", got.Objects)
	}

	w = doRequest(t, server, http.MethodGet, "/api/v0/d/"+id+"/schema?object=unknown", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status code %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	id := createFixture(t, server)
	doRequest(t, server, http.MethodGet, "/d/"+id+"/calendar.svg", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}
	for _, name := range []string{"koyomi_update_cycles_total", "koyomi_http_requests_total"} {
		if !strings.Contains(w.Body.String(), name) {
			t.Errorf("Expected metrics to contain %s", name)
		}
	}
}
