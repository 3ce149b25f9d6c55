// Package cache short-circuits wiki generation with previously generated
// results. Persistence lives behind the narrow Gateway interface: a remote
// HTTP service, an in-process ristretto layer, or a local SQLite store.
package cache

import (
	"context"
	"fmt"

	"github.com/julianshen/repowiki/internal/wiki"
)

// Key identifies one cached wiki.
type Key struct {
	Owner         string
	Repo          string
	Platform      wiki.Platform
	Language      string
	Comprehensive bool
}

// String renders the key in a stable form usable as a cache map key.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%s/%t", k.Platform, k.Owner, k.Repo, k.Language, k.Comprehensive)
}

// Entry is a cached structure plus its generated pages.
type Entry struct {
	Structure *wiki.Structure              `json:"wiki_structure"`
	Pages     map[string]*wiki.PageContent `json:"generated_pages"`
}

// Empty reports whether the entry carries nothing usable. Empty hits are
// treated as misses.
func (e *Entry) Empty() bool {
	return e == nil || e.Structure == nil || len(e.Structure.Pages) == 0 || len(e.Pages) == 0
}

// Gateway reads and writes cached wikis. Lookup failures are non-fatal by
// contract: callers treat them as a miss.
type Gateway interface {
	Lookup(ctx context.Context, key Key) (*Entry, bool, error)
	Save(ctx context.Context, key Key, entry *Entry) error
}
