package projection

import (
	"chat-client/domain"
	"slices"

	"github.com/samber/lo"
)

// Directory is the ordered list of counterparts and their presence.
// Order is the one returned by the last fetch.
type Directory struct {
	self         domain.UserID
	counterparts []domain.Counterpart
}

// NewDirectory builds a directory that never lists self.
func NewDirectory(self domain.UserID) *Directory {
	return &Directory{self: self}
}

// Replace installs the result of a full fetch.
func (d *Directory) Replace(list []domain.Counterpart) {
	list = lo.Filter(list, func(c domain.Counterpart, _ int) bool {
		return c.ID != "" && c.ID != d.self
	})
	d.counterparts = lo.UniqBy(list, func(c domain.Counterpart) domain.UserID {
		return c.ID
	})
}

// ApplyPresence flips the online flag of id in place.
// Unknown ids are ignored; the directory never grows from presence events.
func (d *Directory) ApplyPresence(id domain.UserID, online bool) bool {
	i := slices.IndexFunc(d.counterparts, func(c domain.Counterpart) bool {
		return c.Is(id)
	})
	if i < 0 || d.counterparts[i].Online == online {
		return false
	}
	d.counterparts[i].Online = online
	return true
}

func (d *Directory) Find(id domain.UserID) (domain.Counterpart, bool) {
	return lo.Find(d.counterparts, func(c domain.Counterpart) bool {
		return c.Is(id)
	})
}

func (d *Directory) OnlineCount() int {
	return lo.CountBy(d.counterparts, func(c domain.Counterpart) bool {
		return c.Online
	})
}

func (d *Directory) Len() int {
	return len(d.counterparts)
}

func (d *Directory) Snapshot() []domain.Counterpart {
	return slices.Clone(d.counterparts)
}
