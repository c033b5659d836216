// Package host はカレンダーエンジンが必要とするホスト側の機能（配色、書式、識別子、選択管理）を提供します。
package host

import (
	"sync"
)

// DefaultColors は既定の配色です。
var DefaultColors = []string{
	"#01B8AA", "#374649", "#FD625E", "#F2C80F", "#5F6B6D",
	"#8AD4EB", "#FE9666", "#A66999", "#3599B8", "#DFBFBF",
}

// Palette はシリーズに最初に要求された順で色を割り当てます。
// 一度割り当てた色は同じシリーズに対して変わりません。
type Palette struct {
	mu       sync.Mutex
	colors   []string
	assigned map[string]string
}

// NewPalette は新しいPaletteを作成します。colors が空なら DefaultColors を使います。
func NewPalette(colors ...string) *Palette {
	if len(colors) == 0 {
		colors = DefaultColors
	}
	return &Palette{colors: colors, assigned: make(map[string]string)}
}

// Color implements calendar.ColorResolver.
func (p *Palette) Color(seriesKey string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.assigned[seriesKey]; ok {
		return c
	}
	c := p.colors[len(p.assigned)%len(p.colors)]
	p.assigned[seriesKey] = c
	return c
}
