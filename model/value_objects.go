// Package model provides value objects for API parameter validation.
package model

import (
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"
)

// DatasetID represents a dataset ID value object.
type DatasetID struct {
	value uuid.UUID
}

// NewDatasetID creates a new dataset ID value object.
func NewDatasetID(idStr string) (*DatasetID, error) {
	if idStr == "" {
		return nil, fmt.Errorf("dataset ID is required")
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID format")
	}

	return &DatasetID{value: id}, nil
}

// UUID returns the UUID value.
func (d *DatasetID) UUID() uuid.UUID {
	return d.value
}

// String returns the canonical UUID string.
func (d *DatasetID) String() string {
	return d.value.String()
}

// Pagination represents pagination parameters value object.
type Pagination struct {
	limit  int
	cursor *string
}

// NewPagination creates a new pagination value object.
func NewPagination(limitStr, cursorStr string) (*Pagination, error) {
	limit := 100 // Default value

	// Process limit parameter
	if limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, fmt.Errorf("invalid limit parameter: must be a positive integer")
		}
		if parsedLimit <= 0 {
			return nil, fmt.Errorf("limit must be greater than 0")
		}
		if parsedLimit > 1000 { // Set upper limit
			parsedLimit = 1000
		}
		limit = parsedLimit
	}

	var cursor *string
	if cursorStr != "" {
		cursor = &cursorStr
	}

	return &Pagination{limit: limit, cursor: cursor}, nil
}

// NewPaginationWithValues creates a pagination value object from already validated values.
func NewPaginationWithValues(limit int, cursor *string) *Pagination {
	return &Pagination{limit: limit, cursor: cursor}
}

// Limit returns the limit value.
func (p *Pagination) Limit() int {
	return p.limit
}

// Cursor returns the cursor, or nil for the first page.
func (p *Pagination) Cursor() *string {
	return p.cursor
}

// ViewportSize represents the drawing area requested by a client.
type ViewportSize struct {
	width  float64
	height float64
}

// NewViewportSize creates a viewport value object. Empty strings mean zero.
func NewViewportSize(widthStr, heightStr string) (*ViewportSize, error) {
	parse := func(name, s string) (float64, error) {
		if s == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("invalid %s parameter: must be a non-negative number", name)
		}
		return v, nil
	}

	w, err := parse("width", widthStr)
	if err != nil {
		return nil, err
	}
	h, err := parse("height", heightStr)
	if err != nil {
		return nil, err
	}
	return &ViewportSize{width: w, height: h}, nil
}

// Width returns the width.
func (v *ViewportSize) Width() float64 {
	return v.width
}

// Height returns the height.
func (v *ViewportSize) Height() float64 {
	return v.height
}

// Segment represents a bar index inside a day cell. -1 means the whole cell.
type Segment struct {
	value int
}

// NewSegment creates a segment value object. An empty string means the whole cell.
func NewSegment(s string) (*Segment, error) {
	if s == "" {
		return &Segment{value: -1}, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < -1 {
		return nil, fmt.Errorf("invalid segment parameter: must be an integer >= -1")
	}
	return &Segment{value: v}, nil
}

// Int returns the segment index.
func (s *Segment) Int() int {
	return s.value
}

// settingsObjects are the object names accepted by the schema endpoint.
var settingsObjects = map[string]bool{
	"calendarSettings": true,
	"legendSettings":   true,
	"metricsSettings":  true,
}

// ObjectName represents a settings object name value object.
type ObjectName struct {
	value string
}

// NewObjectName creates an object name value object.
func NewObjectName(s string) (*ObjectName, error) {
	if !settingsObjects[s] {
		return nil, fmt.Errorf("object must be one of calendarSettings, legendSettings, metricsSettings")
	}
	return &ObjectName{value: s}, nil
}

// String returns the object name.
func (o *ObjectName) String() string {
	return o.value
}
