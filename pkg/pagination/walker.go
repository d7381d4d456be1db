package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrTooManyPages is returned when a listing does not terminate within MaxPages.
var ErrTooManyPages = errors.New("pagination exceeded max pages")

// Config holds walker configuration.
type Config struct {
	// MaxPages guards against a provider that never stops returning cursors.
	MaxPages int
}

// DefaultConfig returns safe defaults.
func DefaultConfig() Config {
	return Config{
		MaxPages: 100,
	}
}

// PageFunc fetches the page at cursor ("" for the first page) and returns
// its items and the cursor of the next page ("" when done).
type PageFunc[T any] func(ctx context.Context, cursor string) (items []T, next string, err error)

// Walk collects every page in order. Any page error aborts the walk and no
// partial result is returned.
func Walk[T any](ctx context.Context, cfg Config, fetch PageFunc[T]) ([]T, error) {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultConfig().MaxPages
	}

	start := time.Now()
	var (
		all    []T
		cursor string
	)

	for page := 1; ; page++ {
		if page > cfg.MaxPages {
			return nil, fmt.Errorf("%w (%d)", ErrTooManyPages, cfg.MaxPages)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		items, next, err := fetch(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}
		all = append(all, items...)

		if next == "" {
			log.Debug().
				Int("pages", page).
				Int("items", len(all)).
				Dur("duration", time.Since(start)).
				Msg("Pagination complete")
			return all, nil
		}
		if next == cursor {
			return nil, fmt.Errorf("fetch page %d: provider repeated cursor %q", page, next)
		}
		cursor = next
	}
}
