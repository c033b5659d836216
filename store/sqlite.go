// Package store は、データの永続化機能を提供します。
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stsysd/koyomi/calendar"
	"github.com/stsysd/koyomi/db"
	"github.com/stsysd/koyomi/model"
)

// DatasetStore はデータセットの保存と取得を行うインターフェースです。
type DatasetStore interface {
	// CreateDataset は新しいデータセットを設定とともに作成します。
	CreateDataset(ctx context.Context, d *model.Dataset, settings calendar.Settings) error
	// GetDataset は指定されたIDのデータセットを取得します。
	GetDataset(ctx context.Context, id uuid.UUID) (*model.Dataset, error)
	// UpdateDataset はデータセットの名前、説明、書式を更新します。
	UpdateDataset(ctx context.Context, d *model.Dataset) error
	// DeleteDataset はデータセットと関連するすべてのデータを削除します。
	DeleteDataset(ctx context.Context, id uuid.UUID) error
	// ListDatasets はデータセットをIDの順に取得します。次のページがあればカーソルを返します。
	ListDatasets(ctx context.Context, p *model.Pagination) ([]*model.Dataset, *string, error)
	// GetSettings はデータセットのカレンダー設定を取得します。
	GetSettings(ctx context.Context, id uuid.UUID) (calendar.Settings, error)
	// SaveSettings はデータセットのカレンダー設定を保存します。
	SaveSettings(ctx context.Context, id uuid.UUID, settings calendar.Settings) error
}

// RowStore は行データの保存と取得を行うインターフェースです。
type RowStore interface {
	// PutRows は行を追加します。同じ日付・列の値は上書きされます。
	PutRows(ctx context.Context, id uuid.UUID, rows []*model.Row) error
	// ReplaceRows は既存の行をすべて削除してから行を保存します。
	ReplaceRows(ctx context.Context, id uuid.UUID, rows []*model.Row) error
	// IterRows は日付の昇順に行を返します。
	IterRows(ctx context.Context, id uuid.UUID) iter.Seq2[*model.Row, error]
	// LoadTable はエンジンに渡す表データを組み立てます。
	LoadTable(ctx context.Context, d *model.Dataset) (*calendar.Table, error)
}

// SelectionStore は選択状態の保存と取得を行うインターフェースです。
type SelectionStore interface {
	// SaveSelection は選択中の識別子を保存します。
	SaveSelection(ctx context.Context, id uuid.UUID, ids []calendar.Identity) error
	// LoadSelection は保存された識別子を取得します。
	LoadSelection(ctx context.Context, id uuid.UUID) ([]calendar.Identity, error)
}

// Store はすべての永続化操作をまとめたインターフェースです。
type Store interface {
	DatasetStore
	RowStore
	SelectionStore
	// Close はストアの接続を閉じます。
	Close() error
}

// SQLiteStore はSQLiteを使用したStoreの実装です。
type SQLiteStore struct {
	conn *sql.DB
}

// dateLayout は cells.date に保存する日付の形式です。
const dateLayout = "2006-01-02"

// NewSQLiteStore は新しいSQLiteStoreを作成します。
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	// データディレクトリの作成（存在しない場合）
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	conn, err := Open(dataDir)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize database tables: %w", err)
	}

	return &SQLiteStore{conn: conn}, nil
}

// Open はデータディレクトリ内のSQLiteデータベースに接続します。マイグレーションは行いません。
func Open(dataDir string) (*sql.DB, error) {
	dbPath := filepath.Join(dataDir, "koyomi.db")
	conn, err := sql.Open("sqlite3", "file:"+dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite database: %w", err)
	}
	return conn, nil
}

// Close はデータベース接続を閉じます。
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// withTx はトランザクション内で fn を実行します。
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// トランザクションをロールバックするための遅延関数
	defer func() {
		if tx != nil {
			tx.Rollback() // 成功した場合は既にnilになっているためエラーは無視
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil // コミットが成功したのでnilにして遅延関数でのロールバックを防ぐ
	return nil
}

// CreateDataset は新しいデータセットをデータベースに保存します。
func (s *SQLiteStore) CreateDataset(ctx context.Context, d *model.Dataset, settings calendar.Settings) error {
	// バリデーション
	if err := d.Validate(); err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO datasets (id, name, description, category_format, settings, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			d.ID.String(), d.Name, d.Description, d.CategoryFormat, string(settingsJSON),
			d.CreatedAt.Format(time.RFC3339), d.UpdatedAt.Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("failed to create dataset: %w", err)
		}

		for i, c := range d.Columns {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO dataset_columns (dataset_id, position, name, query_name, role, format)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				d.ID.String(), i, c.Name, c.QueryName, c.Role, c.Format)
			if err != nil {
				return fmt.Errorf("failed to create column %s: %w", c.Name, err)
			}
		}
		return nil
	})
}

// GetDataset は指定されたIDのデータセットを取得します。
func (s *SQLiteStore) GetDataset(ctx context.Context, id uuid.UUID) (*model.Dataset, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, name, description, category_format, created_at, updated_at FROM datasets WHERE id = ?`,
		id.String())
	d, err := s.scanDataset(ctx, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrDatasetNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanDataset は1行を読み取り、列定義を合わせてDatasetを作ります。
func (s *SQLiteStore) scanDataset(ctx context.Context, row scanner) (*model.Dataset, error) {
	var idStr, name, description, categoryFormat, createdAtStr, updatedAtStr string
	if err := row.Scan(&idStr, &name, &description, &categoryFormat, &createdAtStr, &updatedAtStr); err != nil {
		return nil, err
	}

	// UUIDの解析
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID in database: %w", err)
	}

	// 文字列から時間に変換
	createdAt, err := time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	columns, err := s.getColumns(ctx, idStr)
	if err != nil {
		return nil, err
	}

	return model.LoadDataset(id, name, description, categoryFormat, columns, createdAt, updatedAt)
}

func (s *SQLiteStore) getColumns(ctx context.Context, datasetID string) ([]model.ColumnDef, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT name, query_name, role, format FROM dataset_columns WHERE dataset_id = ? ORDER BY position`,
		datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	defer rows.Close()

	var columns []model.ColumnDef
	for rows.Next() {
		var c model.ColumnDef
		if err := rows.Scan(&c.Name, &c.QueryName, &c.Role, &c.Format); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

// UpdateDataset は指定されたデータセットを更新します。列定義は変更できません。
func (s *SQLiteStore) UpdateDataset(ctx context.Context, d *model.Dataset) error {
	// バリデーション
	if err := d.Validate(); err != nil {
		return err
	}

	result, err := s.conn.ExecContext(ctx,
		`UPDATE datasets SET name = ?, description = ?, category_format = ?, updated_at = ? WHERE id = ?`,
		d.Name, d.Description, d.CategoryFormat, d.UpdatedAt.Format(time.RFC3339), d.ID.String())
	if err != nil {
		return fmt.Errorf("failed to update dataset: %w", err)
	}
	return expectAffected(result, model.ErrDatasetNotFound)
}

// expectAffected は1行も更新されなかった場合に notFound を返します。
func expectAffected(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

// DeleteDataset は指定されたIDのデータセットを削除します。
// 列定義、行、選択は外部キーの ON DELETE CASCADE で削除されます。
func (s *SQLiteStore) DeleteDataset(ctx context.Context, id uuid.UUID) error {
	result, err := s.conn.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	return expectAffected(result, model.ErrDatasetNotFound)
}

// ListDatasets はデータセットをIDの順に取得します。
func (s *SQLiteStore) ListDatasets(ctx context.Context, p *model.Pagination) ([]*model.Dataset, *string, error) {
	cursor := ""
	if p.Cursor() != nil {
		cursor = *p.Cursor()
	}

	// 次のページの有無を判定するため1件多く取得する
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, name, description, category_format, created_at, updated_at
		 FROM datasets WHERE id > ? ORDER BY id LIMIT ?`,
		cursor, p.Limit()+1)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list datasets: %w", err)
	}

	type rawDataset struct {
		id, name, description, categoryFormat, createdAt, updatedAt string
	}
	var raws []rawDataset
	for rows.Next() {
		var r rawDataset
		if err := rows.Scan(&r.id, &r.name, &r.description, &r.categoryFormat, &r.createdAt, &r.updatedAt); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		raws = append(raws, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *string
	if len(raws) > p.Limit() {
		raws = raws[:p.Limit()]
		last := raws[len(raws)-1].id
		next = &last
	}

	datasets := make([]*model.Dataset, 0, len(raws))
	for _, r := range raws {
		d, err := s.scanDataset(ctx, rawScanner{r.id, r.name, r.description, r.categoryFormat, r.createdAt, r.updatedAt})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load dataset: %w", err)
		}
		datasets = append(datasets, d)
	}
	return datasets, next, nil
}

// rawScanner は読み取り済みの値を scanner として扱います。
// 行の読み取り中に列定義を問い合わせないよう、一度すべて読み取ってから使います。
type rawScanner []string

func (r rawScanner) Scan(dest ...any) error {
	if len(dest) != len(r) {
		return fmt.Errorf("expected %d destinations, got %d", len(r), len(dest))
	}
	for i, d := range dest {
		p, ok := d.(*string)
		if !ok {
			return fmt.Errorf("destination %d is not *string", i)
		}
		*p = r[i]
	}
	return nil
}

// GetSettings はデータセットのカレンダー設定を取得します。
func (s *SQLiteStore) GetSettings(ctx context.Context, id uuid.UUID) (calendar.Settings, error) {
	var raw string
	err := s.conn.QueryRowContext(ctx, `SELECT settings FROM datasets WHERE id = ?`, id.String()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return calendar.Settings{}, model.ErrDatasetNotFound
	}
	if err != nil {
		return calendar.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}

	// 保存されていない項目は既定値のまま残す
	settings := calendar.DefaultSettings(time.Now())
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return calendar.Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return settings, nil
}

// SaveSettings はデータセットのカレンダー設定を保存します。
func (s *SQLiteStore) SaveSettings(ctx context.Context, id uuid.UUID, settings calendar.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	result, err := s.conn.ExecContext(ctx,
		`UPDATE datasets SET settings = ?, updated_at = ? WHERE id = ?`,
		string(raw), time.Now().Format(time.RFC3339), id.String())
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return expectAffected(result, model.ErrDatasetNotFound)
}
