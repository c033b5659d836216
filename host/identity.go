package host

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/stsysd/koyomi/calendar"
)

// Identities は名前空間UUIDから決定的な識別子を作ります。
// 同じデータセットを読み直しても同じ識別子になるため、保存した選択を復元できます。
type Identities struct {
	Namespace uuid.UUID
}

// NewIdentities はデータセットごとの名前空間でIdentitiesを作成します。
func NewIdentities(namespace uuid.UUID) Identities {
	return Identities{Namespace: namespace}
}

// CategoryIdentity implements calendar.IdentityFactory.
func (f Identities) CategoryIdentity(categoryIndex int, date, series string) calendar.Identity {
	name := "category\x00" + strconv.Itoa(categoryIndex) + "\x00" + date + "\x00" + series
	return calendar.Identity{
		Key:    uuid.NewSHA1(f.Namespace, []byte(name)).String(),
		Date:   date,
		Series: series,
	}
}

// SeriesIdentity implements calendar.IdentityFactory.
func (f Identities) SeriesIdentity(seriesKey string) calendar.Identity {
	return calendar.Identity{
		Key:    uuid.NewSHA1(f.Namespace, []byte("series\x00"+seriesKey)).String(),
		Series: seriesKey,
	}
}
