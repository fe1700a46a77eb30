package domain

import (
	"fmt"
	"time"
)

type StatKey string

const (
	StatWins    StatKey = "wins"
	StatKills   StatKey = "kills"
	StatDeaths  StatKey = "deaths"
	StatMatches StatKey = "matches"
	StatKD      StatKey = "kd"
)

// StatKeys is the fixed, ordered set of statistics exposed per player.
var StatKeys = []StatKey{StatWins, StatKills, StatDeaths, StatKD, StatMatches}

func ParseStatKey(s string) (StatKey, error) {
	for _, k := range StatKeys {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown stat key %q", s)
}

// StatRecord is one player's overall statistics as of a single fetch.
// Any field may be nil when the upstream payload omits it.
type StatRecord struct {
	Wins    *int64   `json:"wins"`
	Kills   *int64   `json:"kills"`
	Deaths  *int64   `json:"deaths"`
	Matches *int64   `json:"matches"`
	KD      *float64 `json:"kd"`
}

func (r *StatRecord) Value(key StatKey) (float64, bool) {
	if r == nil {
		return 0, false
	}
	var iv *int64
	switch key {
	case StatWins:
		iv = r.Wins
	case StatKills:
		iv = r.Kills
	case StatDeaths:
		iv = r.Deaths
	case StatMatches:
		iv = r.Matches
	case StatKD:
		if r.KD == nil {
			return 0, false
		}
		return *r.KD, true
	default:
		return 0, false
	}
	if iv == nil {
		return 0, false
	}
	return float64(*iv), true
}

// Entry is a cached record plus the time it was fetched.
type Entry struct {
	Record    *StatRecord `json:"record"`
	FetchedAt time.Time   `json:"fetched_at"`
}

type OutcomeKind string

const (
	OutcomeSuccess     OutcomeKind = "success"
	OutcomeRateLimited OutcomeKind = "rate_limited"
	OutcomeNotFound    OutcomeKind = "not_found"
	OutcomeForbidden   OutcomeKind = "forbidden"
	OutcomeMalformed   OutcomeKind = "malformed"
	OutcomeTransport   OutcomeKind = "transport_error"
)

// Outcome is the classified result of one remote lookup.
type Outcome struct {
	Kind       OutcomeKind
	Record     *StatRecord // set only for OutcomeSuccess
	StatusCode int         // 0 when no response was received
	Err        error
}

func (o Outcome) OK() bool { return o.Kind == OutcomeSuccess }

// Unauthorized reports a rejected API key, as opposed to a private profile.
func (o Outcome) Unauthorized() bool {
	return o.Kind == OutcomeForbidden && o.StatusCode == 401
}

// TickResult describes what a single tick did.
type TickResult struct {
	Player      string
	CursorFrom  int
	CursorTo    int
	Outcome     Outcome
	StartedAt   time.Time
	CompletedAt time.Time
}

// TickRecord is a persisted journal row for a tick.
type TickRecord struct {
	ID         string    `json:"id"`
	Player     string    `json:"player"`
	Cursor     int       `json:"cursor"`
	Outcome    string    `json:"outcome"`
	StatusCode int       `json:"status_code"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
