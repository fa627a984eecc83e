// Package session holds all per-conversation state: the current table,
// its snapshot key and the append-only transcript. Sessions live in
// memory only and expire lazily on access; nothing here survives a
// restart and the store itself spawns no goroutines.
package session

import (
	"errors"
	"time"

	"github.com/tabletalk/tabletalk/internal/render"
	"github.com/tabletalk/tabletalk/internal/tabular"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrNoTable         = errors.New("session has no table")
	ErrTooManySessions = errors.New("session limit reached")
	ErrTurnNotFound    = errors.New("turn not found")
)

// Turn is one transcript entry. Turns are append-only; failed turns are
// recorded with an error result, never dropped.
type Turn struct {
	Index     int           `json:"index"`
	Question  string        `json:"question"`
	Snippet   string        `json:"snippet,omitempty"`
	Result    render.Result `json:"result"`
	Model     string        `json:"model,omitempty"`
	ElapsedMS int64         `json:"elapsed_ms"`
	CreatedAt time.Time     `json:"created_at"`
}

// Info is the copy-out view of a session's state.
type Info struct {
	ID         string    `json:"id"`
	Tenant     string    `json:"tenant,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeen   time.Time `json:"last_seen"`
	TurnCount  int       `json:"turn_count"`
	HasTable   bool      `json:"has_table"`
	SourceName string    `json:"source_name,omitempty"`
	RowCount   int       `json:"row_count,omitempty"`
}

type session struct {
	id          string
	tenant      string
	createdAt   time.Time
	lastSeen    time.Time
	table       *tabular.Table
	snapshotKey string
	uploadSeq   int
	turns       []Turn
}

func (s *session) info() Info {
	info := Info{
		ID:        s.id,
		Tenant:    s.tenant,
		CreatedAt: s.createdAt,
		LastSeen:  s.lastSeen,
		TurnCount: len(s.turns),
		HasTable:  s.table != nil,
	}
	if s.table != nil {
		info.SourceName = s.table.SourceName
		info.RowCount = s.table.RowCount
	}
	return info
}
