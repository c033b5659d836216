// Package model は、アプリケーションのデータモデル定義を提供します。
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// 列の役割
const (
	RoleMetric  = "metric"
	RoleTooltip = "tooltip"
)

// ColumnDef はデータセットの値列の定義です。
type ColumnDef struct {
	Name      string `json:"name"`                 // 列名（凡例・ツールチップの表示名）
	QueryName string `json:"query_name,omitempty"` // シリーズ識別子の元になる名前
	Role      string `json:"role"`                 // "metric" または "tooltip"
	Format    string `json:"format,omitempty"`     // 値の書式
}

// Dataset はカレンダーに表示するデータの集まりを表すモデルです。
type Dataset struct {
	ID             uuid.UUID   `json:"id"`
	Name           string      `json:"name"`            // データセット名
	Description    string      `json:"description"`     // 説明
	CategoryFormat string      `json:"category_format"` // 日付の表示書式
	Columns        []ColumnDef `json:"columns"`         // 値列の定義（宣言順）
	CreatedAt      time.Time   `json:"created_at"`      // 作成日時
	UpdatedAt      time.Time   `json:"updated_at"`      // 更新日時
}

// NewDataset は新しいDatasetインスタンスを作成します。
func NewDataset(name, description, categoryFormat string, columns []ColumnDef) (*Dataset, error) {
	now := time.Now()
	d := &Dataset{
		ID:             uuid.New(),
		Name:           name,
		Description:    description,
		CategoryFormat: categoryFormat,
		Columns:        normalizeColumns(columns),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadDataset は既存のDatasetインスタンスを作成します。
func LoadDataset(id uuid.UUID, name, description, categoryFormat string, columns []ColumnDef, createdAt, updatedAt time.Time) (*Dataset, error) {
	d := &Dataset{
		ID:             id,
		Name:           name,
		Description:    description,
		CategoryFormat: categoryFormat,
		Columns:        normalizeColumns(columns),
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// normalizeColumns は役割が未指定の列を metric として扱います。
func normalizeColumns(columns []ColumnDef) []ColumnDef {
	out := make([]ColumnDef, len(columns))
	for i, c := range columns {
		if c.Role == "" {
			c.Role = RoleMetric
		}
		out[i] = c
	}
	return out
}

// Validate はデータセットのデータバリデーションを行います。
func (d *Dataset) Validate() error {
	if d.ID == uuid.Nil {
		return errors.New("id is required")
	}
	if d.Name == "" {
		return errors.New("name is required")
	}
	if len(d.Columns) == 0 {
		return errors.New("at least one column is required")
	}

	seen := make(map[string]bool, len(d.Columns))
	for _, c := range d.Columns {
		if c.Name == "" {
			return errors.New("column name is required")
		}
		// 列名は行データのキーになるため重複を禁止
		if seen[c.Name] {
			return fmt.Errorf("duplicate column name %q", c.Name)
		}
		seen[c.Name] = true
		if c.Role != RoleMetric && c.Role != RoleTooltip {
			return fmt.Errorf("column %q has unknown role %q", c.Name, c.Role)
		}
	}

	if d.CreatedAt.IsZero() {
		return errors.New("created_at is required")
	}
	if d.UpdatedAt.IsZero() {
		return errors.New("updated_at is required")
	}
	return nil
}

// Column は列名に対応する定義を返します。
func (d *Dataset) Column(name string) (ColumnDef, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// ValidateRow は行がこのデータセットの列だけを参照しているかを検証します。
func (d *Dataset) ValidateRow(r *Row) error {
	if err := r.Validate(); err != nil {
		return err
	}
	for name := range r.Values {
		if _, ok := d.Column(name); !ok {
			return NewValidationError(fmt.Sprintf("unknown column %q", name))
		}
	}
	return nil
}
