package api

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultPageSize is the per_page used when collecting full listings.
	DefaultPageSize = 500
	// DefaultMaxPages bounds a listing against a backend that never
	// returns an empty page.
	DefaultMaxPages = 10000
)

// PageFunc fetches one 1-based page.
type PageFunc[T any] func(ctx context.Context, page, perPage int) ([]T, error)

// PageOptions tunes Paginate. Zero values select the defaults.
type PageOptions struct {
	PerPage  int
	MaxPages int
	Logger   logrus.FieldLogger
}

// Paginate requests pages 1, 2, ... until one comes back empty and returns
// every item in server order. Given pages of sizes n1..nk followed by an
// empty page it makes exactly k+1 requests. A short page does not end the
// listing; only an empty one does.
func Paginate[T any](ctx context.Context, fetch PageFunc[T], opts PageOptions) ([]T, error) {
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	var all []T
	for page := 1; ; page++ {
		if page > maxPages {
			return all, fmt.Errorf("%w: %d pages of %d items without an empty page", ErrPageLimit, maxPages, perPage)
		}
		start := time.Now()
		items, err := fetch(ctx, page, perPage)
		if err != nil {
			return all, fmt.Errorf("fetching page %d: %w", page, err)
		}
		if len(items) == 0 {
			break
		}
		all = append(all, items...)
		log.Debugf("Page '%d' fetched for: '%.2f' sec", page, time.Since(start).Seconds())
	}
	log.Debugf("Items count: %d", len(all))
	return all, nil
}
