package preview

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrUnknownTeam = errors.New("preview: no preview for team")
)

// Preview summarises one team chat: how many messages the user has not
// seen and the latest message text.
type Preview struct {
	TeamID        string `json:"teamId"`
	Title         string `json:"title,omitempty"`
	ThumbnailURL  string `json:"thumbnailUrl,omitempty"`
	MemberCount   int    `json:"memberCount,omitempty"`
	UnreadCount   int    `json:"unreadCount"`
	RecentMessage string `json:"recentMessage"`
}

// Event is the payload pushed by the backend whenever a team's preview changes.
type Event struct {
	TeamID        string `json:"teamId" jsonschema:"required"`
	UnreadCount   int    `json:"unreadCount" jsonschema:"minimum=0"`
	RecentMessage string `json:"recentMessage"`
}

// MissPolicy decides what Apply does with an event for a team that is not in the list.
type MissPolicy int

const (
	MissIgnore MissPolicy = iota
	MissAppend
	MissError
)

func (p MissPolicy) String() string {
	switch p {
	case MissIgnore:
		return "ignore"
	case MissAppend:
		return "append"
	case MissError:
		return "error"
	default:
		return fmt.Sprintf("MissPolicy(%d)", int(p))
	}
}

func ParseMissPolicy(s string) (MissPolicy, error) {
	switch s {
	case "ignore", "":
		return MissIgnore, nil
	case "append":
		return MissAppend, nil
	case "error":
		return MissError, nil
	}
	return MissIgnore, fmt.Errorf("preview: unknown miss policy %q", s)
}

// Apply returns a copy of items with the entry for ev.TeamID updated in place.
// Only UnreadCount and RecentMessage change; every other entry keeps its position.
func Apply(items []Preview, ev Event, policy MissPolicy) ([]Preview, error) {
	unread := ev.UnreadCount
	if unread < 0 {
		unread = 0
	}

	out := make([]Preview, len(items), len(items)+1)
	copy(out, items)

	for i := range out {
		if out[i].TeamID != ev.TeamID {
			continue
		}
		out[i].UnreadCount = unread
		out[i].RecentMessage = ev.RecentMessage
		return out, nil
	}

	switch policy {
	case MissAppend:
		out = append(out, Preview{
			TeamID:        ev.TeamID,
			UnreadCount:   unread,
			RecentMessage: ev.RecentMessage,
		})
		return out, nil
	case MissError:
		return out, fmt.Errorf("%w: %s", ErrUnknownTeam, ev.TeamID)
	default:
		return out, nil
	}
}

// Dedupe keeps the first preview seen for each team.
func Dedupe(items []Preview) []Preview {
	seen := make(map[string]struct{}, len(items))
	out := make([]Preview, 0, len(items))
	for _, p := range items {
		if _, ok := seen[p.TeamID]; ok {
			continue
		}
		seen[p.TeamID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// List is the live preview list shared between the baseline fetch and the
// push subscription. All mutations are serialized.
type List struct {
	mu       sync.Mutex
	items    []Preview
	onChange func([]Preview)
}

func NewList(items []Preview) *List {
	return &List{items: Dedupe(items)}
}

// Reset installs a new baseline.
func (l *List) Reset(items []Preview) {
	l.Update(func([]Preview) []Preview {
		return Dedupe(items)
	})
}

// Update replaces the list with fn(current). fn runs under the list lock and
// must not call back into the List.
func (l *List) Update(fn func([]Preview) []Preview) {
	l.mu.Lock()
	current := make([]Preview, len(l.items))
	copy(current, l.items)
	l.items = fn(current)
	snapshot := l.snapshotLocked()
	notify := l.onChange
	l.mu.Unlock()

	if notify != nil {
		notify(snapshot)
	}
}

func (l *List) Snapshot() []Preview {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// OnChange registers fn to receive a snapshot after every mutation.
func (l *List) OnChange(fn func([]Preview)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = fn
}

func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

func (l *List) snapshotLocked() []Preview {
	out := make([]Preview, len(l.items))
	copy(out, l.items)
	return out
}

// TotalUnread sums the unread counters across items.
func TotalUnread(items []Preview) int {
	total := 0
	for _, p := range items {
		total += p.UnreadCount
	}
	return total
}
