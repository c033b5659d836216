package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stsysd/koyomi/calendar"
	"github.com/stsysd/koyomi/host"
	"github.com/stsysd/koyomi/model"
	"github.com/stsysd/koyomi/render"
	"github.com/stsysd/koyomi/store"
	"golang.org/x/text/language"
)

// session はデータセットごとのエンジンと選択状態です。
// mu でリクエストを直列化し、エンジンを1つの論理スレッドから操作します。
type session struct {
	mu       sync.Mutex
	id       uuid.UUID
	engine   *calendar.Engine
	host     *host.Selection
	svg      *render.SVG
	viewport calendar.Viewport
	restored bool
	// dirty はストアの内容が変わり、次の操作の前に更新サイクルが必要なことを示します。
	dirty bool
	// day は前回の更新サイクルで表示期間を決めた日付です。日付が変わると期間も変わります。
	day calendar.Date
}

// sessionPool はデータセットIDごとのセッションを保持します。
type sessionPool struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*session
	store    store.Store
	logger   *slog.Logger
	now      func() time.Time
}

func newSessionPool(st store.Store, logger *slog.Logger, now func() time.Time) *sessionPool {
	return &sessionPool{
		sessions: make(map[uuid.UUID]*session),
		store:    st,
		logger:   logger,
		now:      now,
	}
}

// get はセッションを返します。なければ作成します。
func (p *sessionPool) get(id uuid.UUID) *session {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.sessions[id]; ok {
		return s
	}

	sel := host.NewSelection()
	svg := render.NewSVG(nil)
	s := &session{
		id:    id,
		host:  sel,
		svg:   svg,
		dirty: true,
	}
	s.engine = calendar.NewEngine(calendar.Deps{
		Colors:     host.NewPalette(),
		Format:     host.NewFormatter(language.English),
		Identities: host.NewIdentities(id),
		Host:       sel,
		Surface:    svg,
		Logger:     p.logger.With("dataset_id", id.String()),
		Now:        p.now,
	})
	p.sessions[id] = s
	return s
}

// drop はデータセット削除時にセッションを破棄します。
func (p *sessionPool) drop(id uuid.UUID) {
	p.mu.Lock()
	delete(p.sessions, id)
	p.mu.Unlock()
}

// invalidate はデータセットの変更を記録し、次の操作で更新サイクルを実行させます。
func (p *sessionPool) invalidate(id uuid.UUID) {
	p.mu.Lock()
	s, ok := p.sessions[id]
	p.mu.Unlock()
	if !ok {
		return
	}
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// refresh は必要な場合にストアから最新の設定と行を読み込み、更新サイクルを実行します。
// 変更がなく表示領域も日付も同じなら前回のフレームをそのまま使います。
// 最初の更新の後で保存済みの選択を復元します。呼び出し側が s.mu を保持している必要があります。
func (p *sessionPool) refresh(ctx context.Context, s *session, vp *calendar.Viewport) (err error) {
	today := calendar.DateOf(p.now())
	if !s.dirty && today == s.day && (vp == nil || *vp == s.viewport) {
		return nil
	}

	start := time.Now()
	defer func() { observeUpdate(start, err) }()

	d, err := p.store.GetDataset(ctx, s.id)
	if err != nil {
		return err
	}
	settings, err := p.store.GetSettings(ctx, s.id)
	if err != nil {
		return err
	}
	table, err := p.store.LoadTable(ctx, d)
	if err != nil {
		return err
	}

	if vp != nil {
		s.viewport = *vp
	}
	if _, err := s.engine.Update(ctx, settings, table, s.viewport); err != nil {
		return fmt.Errorf("failed to update calendar: %w", err)
	}

	if !s.restored {
		ids, err := p.store.LoadSelection(ctx, s.id)
		switch {
		case errors.Is(err, model.ErrSelectionNotFound):
		case err != nil:
			return err
		case len(ids) > 0:
			// 通知を受けたエンジンが識別子をセルに戻して塗り直す
			s.host.Replace(ids)
		}
		s.restored = true
	}
	s.day = today
	s.dirty = false
	return nil
}

// persist は現在の選択を保存します。
func (p *sessionPool) persist(ctx context.Context, s *session) error {
	return p.store.SaveSelection(ctx, s.id, s.host.CurrentIDs())
}
