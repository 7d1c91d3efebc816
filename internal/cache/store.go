// Package cache provides optional persistence for enumeration results, so
// a dump can resume without re-bisecting rows a prior run already
// recovered.
package cache

import (
	"context"
	"time"
)

// Entry is one cached enumeration result: the JSON-encoded value of
// looking up Key under a given dialect and tag. UnionTag holds the
// caller-supplied tag that scopes entries to one injection target (the
// dump command derives it from the target URL and parameter), so targets
// that share a dialect never read each other's entries.
type Entry struct {
	ID        string    `json:"id"`
	Dialect   string    `json:"dialect"`
	UnionTag  string    `json:"union_tag"`
	Key       string    `json:"key"`
	ValueJSON string    `json:"value_json"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary is a lightweight entry overview, as returned by List.
type Summary struct {
	ID        string    `json:"id"`
	Dialect   string    `json:"dialect"`
	Key       string    `json:"key"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists and retrieves cached enumeration entries.
type Store interface {
	Save(ctx context.Context, entry *Entry) error
	Load(ctx context.Context, dialect, unionTag, key string) (*Entry, error)
	LoadByID(ctx context.Context, id string) (*Entry, error)
	List(ctx context.Context) ([]*Summary, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
