package host

import (
	"slices"
	"sync"

	"github.com/stsysd/koyomi/calendar"
)

// Selection はプロセス内で完結するホスト側の選択管理です。
// calendar.SelectionManager を実装します。
type Selection struct {
	mu        sync.Mutex
	ids       []calendar.Identity
	listeners []func([]calendar.Identity)
}

// NewSelection は空の選択を作成します。
func NewSelection() *Selection {
	return &Selection{}
}

func indexOf(ids []calendar.Identity, key string) int {
	return slices.IndexFunc(ids, func(id calendar.Identity) bool { return id.Key == key })
}

// Select は識別子を選択します。
// additive なら選択済みの識別子は外し、未選択なら追加します。
// そうでなければ選択を置き換えますが、それが唯一の選択だった場合は解除します。
func (s *Selection) Select(id calendar.Identity, additive bool) <-chan int {
	s.mu.Lock()
	i := indexOf(s.ids, id.Key)
	switch {
	case additive && i >= 0:
		s.ids = slices.Delete(s.ids, i, i+1)
	case additive:
		s.ids = append(s.ids, id)
	case len(s.ids) == 1 && i == 0:
		s.ids = nil
	default:
		s.ids = []calendar.Identity{id}
	}
	n := len(s.ids)
	s.mu.Unlock()

	ch := make(chan int, 1)
	ch <- n
	close(ch)
	return ch
}

// Clear は選択をすべて解除します。
func (s *Selection) Clear() {
	s.mu.Lock()
	s.ids = nil
	s.mu.Unlock()
}

// CurrentIDs は選択中の識別子を返します。
func (s *Selection) CurrentIDs() []calendar.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ids)
}

// OnChanged は外部からの選択変更を受け取る関数を登録します。
func (s *Selection) OnChanged(fn func([]calendar.Identity)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Replace は外部から選択を置き換え、登録された関数に通知します。
// 空のスライスを渡すと選択を解除して通知します。
func (s *Selection) Replace(ids []calendar.Identity) {
	s.mu.Lock()
	s.ids = nil
	for _, id := range ids {
		if indexOf(s.ids, id.Key) < 0 {
			s.ids = append(s.ids, id)
		}
	}
	current := slices.Clone(s.ids)
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(current)
	}
}
