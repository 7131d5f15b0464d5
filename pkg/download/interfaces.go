package download

import (
	"context"
	"net/url"
)

// Manager downloads remote files such as package source archives and
// prebuilt binaries into the local cache.
type Manager interface {
	// FetchAll downloads all items, respecting Options (e.g., concurrency and
	// destination dir). It returns a map from Item.ID to absolute local file path.
	FetchAll(ctx context.Context, items []Item, opts Options) (map[string]string, error)

	// Fetch downloads a single item below opts.Dir and returns its absolute path.
	Fetch(ctx context.Context, item Item, opts Options) (string, error)
}

// Item represents one remote resource to download.
type Item struct {
	ID       string   // stable identifier, unique within a batch
	URL      *url.URL // source URL
	Checksum string   // optional hex-encoded SHA-256; verified when set
	Filename string   // optional path relative to Options.Dir; derived from the URL when empty
}

// Options control the behavior of the download manager.
type Options struct {
	Dir         string // destination root. Must be absolute.
	Concurrency int    // parallel downloads; <=0 picks a default
}
