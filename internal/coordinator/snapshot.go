package coordinator

import (
	"encoding/json"
	"time"

	"fortnite-tracker/internal/domain"
)

// Snapshot is an immutable view of the player cache. A new Snapshot is
// built for every tick; published snapshots are never modified.
type Snapshot struct {
	players []string
	entries map[string]domain.Entry
	cursor  int
	ticks   uint64
	taken   time.Time
}

func newSnapshot(players []string) *Snapshot {
	entries := make(map[string]domain.Entry, len(players))
	for _, p := range players {
		entries[p] = domain.Entry{}
	}
	return &Snapshot{players: players, entries: entries, taken: time.Now()}
}

// advance returns the snapshot that follows a tick on player. Only a
// successful outcome replaces that player's entry; other entries are shared.
func (s *Snapshot) advance(player string, out domain.Outcome, cursor int, at time.Time) *Snapshot {
	next := &Snapshot{
		players: s.players,
		entries: s.entries,
		cursor:  cursor,
		ticks:   s.ticks + 1,
		taken:   at,
	}
	if out.OK() && out.Record != nil {
		entries := make(map[string]domain.Entry, len(s.entries))
		for k, v := range s.entries {
			entries[k] = v
		}
		entries[player] = domain.Entry{Record: out.Record, FetchedAt: at}
		next.entries = entries
	}
	return next
}

// Players returns the configured players in rotation order.
func (s *Snapshot) Players() []string {
	return append([]string(nil), s.players...)
}

// Get returns the entry for player. ok is false only for players that are
// not configured; an unfetched player has a nil Record.
func (s *Snapshot) Get(player string) (entry domain.Entry, ok bool) {
	entry, ok = s.entries[player]
	return entry, ok
}

// Read returns the value of key for player, or false when it is unknown.
func (s *Snapshot) Read(player string, key domain.StatKey) (float64, bool) {
	entry, ok := s.entries[player]
	if !ok {
		return 0, false
	}
	return entry.Record.Value(key)
}

// Cursor is the index of the player the next tick will fetch.
func (s *Snapshot) Cursor() int { return s.cursor }

// Ticks is the number of completed ticks reflected in the snapshot.
func (s *Snapshot) Ticks() uint64 { return s.ticks }

func (s *Snapshot) TakenAt() time.Time { return s.taken }

type snapshotPlayer struct {
	Player    string             `json:"player"`
	Record    *domain.StatRecord `json:"record"`
	FetchedAt *time.Time         `json:"fetched_at"`
}

type snapshotJSON struct {
	Cursor  int              `json:"cursor"`
	Next    string           `json:"next"`
	Ticks   uint64           `json:"ticks"`
	TakenAt time.Time        `json:"taken_at"`
	Players []snapshotPlayer `json:"players"`
}

func (s *Snapshot) MarshalJSON() ([]byte, error) {
	out := snapshotJSON{
		Cursor:  s.cursor,
		Next:    s.players[s.cursor],
		Ticks:   s.ticks,
		TakenAt: s.taken,
		Players: make([]snapshotPlayer, 0, len(s.players)),
	}
	for _, p := range s.players {
		e := s.entries[p]
		sp := snapshotPlayer{Player: p, Record: e.Record}
		if e.Record != nil {
			at := e.FetchedAt
			sp.FetchedAt = &at
		}
		out.Players = append(out.Players, sp)
	}
	return json.Marshal(out)
}
