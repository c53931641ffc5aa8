package persistence

import (
	"grid-trader-go/internal/models"
	"time"
)

// EntryKind 区分日志条目的类型
type EntryKind string

const (
	KindPlacement EntryKind = "placement"
	KindFill      EntryKind = "fill"
)

// Entry 是事件日志中的一条记录。Placement 和 Fill 只有一个非空。
type Entry struct {
	Seq       uint64                 `json:"seq"`
	Kind      EntryKind              `json:"kind"`
	Time      time.Time              `json:"time"`
	Placement *models.PlacementEvent `json:"placement,omitempty"`
	Fill      *models.FillEvent      `json:"fill,omitempty"`
}

// EventRepository defines the interface for the append-only event journal.
// Entries are grouped by session so that several runs can share one database.
type EventRepository interface {
	// Append stores an entry under the given session. Seq must be increasing within a session.
	Append(session string, entry *Entry) error

	// List returns all entries of a session ordered by Seq.
	List(session string) ([]Entry, error)

	// Close gracefully closes the connection to the database.
	Close() error
}
