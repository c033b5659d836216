package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/stsysd/koyomi/calendar"
	"github.com/stsysd/koyomi/model"
)

// PutRows は行を追加します。同じ日付・列の値は上書きされます。
func (s *SQLiteStore) PutRows(ctx context.Context, id uuid.UUID, rows []*model.Row) error {
	d, err := s.GetDataset(ctx, id)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := d.ValidateRow(r); err != nil {
			return err
		}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertRows(ctx, tx, id, rows)
	})
}

// ReplaceRows は既存の行をすべて削除してから行を保存します。
func (s *SQLiteStore) ReplaceRows(ctx context.Context, id uuid.UUID, rows []*model.Row) error {
	d, err := s.GetDataset(ctx, id)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := d.ValidateRow(r); err != nil {
			return err
		}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cells WHERE dataset_id = ?`, id.String()); err != nil {
			return fmt.Errorf("failed to delete rows: %w", err)
		}
		return insertRows(ctx, tx, id, rows)
	})
}

func insertRows(ctx context.Context, tx *sql.Tx, id uuid.UUID, rows []*model.Row) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cells (dataset_id, date, column_name, num, text) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (dataset_id, date, column_name) DO UPDATE SET num = excluded.num, text = excluded.text`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		date := r.Date.Format(dateLayout)
		for name, v := range r.Values {
			var num sql.NullFloat64
			var text sql.NullString
			if f, ok := v.Number(); ok {
				num = sql.NullFloat64{Float64: f, Valid: true}
			}
			if t, ok := v.Text(); ok {
				text = sql.NullString{String: t, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, id.String(), date, name, num, text); err != nil {
				return fmt.Errorf("failed to insert value %s on %s: %w", name, date, err)
			}
		}
	}
	return nil
}

// IterRows は日付の昇順に行を返します。
// 同じ日付の値は1つの Row にまとめられます。
func (s *SQLiteStore) IterRows(ctx context.Context, id uuid.UUID) iter.Seq2[*model.Row, error] {
	return func(yield func(*model.Row, error) bool) {
		rows, err := s.conn.QueryContext(ctx,
			`SELECT date, column_name, num, text FROM cells WHERE dataset_id = ? ORDER BY date, column_name`,
			id.String())
		if err != nil {
			yield(nil, fmt.Errorf("failed to query rows: %w", err))
			return
		}
		defer rows.Close()

		var current *model.Row
		var currentDate string
		for rows.Next() {
			var date, name string
			var num sql.NullFloat64
			var text sql.NullString
			if err := rows.Scan(&date, &name, &num, &text); err != nil {
				yield(nil, fmt.Errorf("failed to scan row: %w", err))
				return
			}

			if current == nil || date != currentDate {
				if current != nil && !yield(current, nil) {
					return
				}
				t, err := time.ParseInLocation(dateLayout, date, time.Local)
				if err != nil {
					yield(nil, fmt.Errorf("failed to parse row date: %w", err))
					return
				}
				current = &model.Row{Date: t, Values: map[string]model.CellValue{}}
				currentDate = date
			}

			switch {
			case num.Valid:
				current.Values[name] = model.NumberValue(num.Float64)
			case text.Valid:
				current.Values[name] = model.TextValue(text.String)
			default:
				current.Values[name] = model.CellValue{}
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
			return
		}
		if current != nil {
			yield(current, nil)
		}
	}
}

// LoadTable はエンジンに渡す表データを組み立てます。
// カテゴリは行の日付、値列はデータセットの列定義の順になります。
func (s *SQLiteStore) LoadTable(ctx context.Context, d *model.Dataset) (*calendar.Table, error) {
	var rows []*model.Row
	for r, err := range s.IterRows(ctx, d.ID) {
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
	return TableFromRows(d, rows), nil
}

// TableFromRows は行データを列ごとの表データに並べ替えます。
func TableFromRows(d *model.Dataset, rows []*model.Row) *calendar.Table {
	t := &calendar.Table{
		Category: calendar.Category{Name: "Date", Format: d.CategoryFormat},
	}
	for _, c := range d.Columns {
		role := calendar.RoleMetric
		if c.Role == model.RoleTooltip {
			role = calendar.RoleTooltip
		}
		t.Columns = append(t.Columns, calendar.Column{
			Name:      c.Name,
			QueryName: c.QueryName,
			Role:      role,
			Format:    c.Format,
			Values:    make([]calendar.Value, 0, len(rows)),
		})
	}

	for _, r := range rows {
		t.Category.Values = append(t.Category.Values, r.Date)
		for i, c := range d.Columns {
			t.Columns[i].Values = append(t.Columns[i].Values, toValue(r.Values[c.Name]))
		}
	}
	return t
}

func toValue(v model.CellValue) calendar.Value {
	if f, ok := v.Number(); ok {
		return calendar.Number(f)
	}
	if s, ok := v.Text(); ok {
		return calendar.Text(s)
	}
	return calendar.Null
}

// SaveSelection は選択中の識別子を保存します。
func (s *SQLiteStore) SaveSelection(ctx context.Context, id uuid.UUID, ids []calendar.Identity) error {
	if ids == nil {
		ids = []calendar.Identity{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode selection: %w", err)
	}

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO selections (dataset_id, identities, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (dataset_id) DO UPDATE SET identities = excluded.identities, updated_at = excluded.updated_at`,
		id.String(), string(raw), time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save selection: %w", err)
	}
	return nil
}

// LoadSelection は保存された識別子を取得します。保存されていなければ ErrSelectionNotFound を返します。
func (s *SQLiteStore) LoadSelection(ctx context.Context, id uuid.UUID) ([]calendar.Identity, error) {
	var raw string
	err := s.conn.QueryRowContext(ctx,
		`SELECT identities FROM selections WHERE dataset_id = ?`, id.String()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrSelectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load selection: %w", err)
	}

	var ids []calendar.Identity
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("failed to decode selection: %w", err)
	}
	return ids, nil
}
