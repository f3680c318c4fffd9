package resilience

import (
	"context"
	"net/http"
)

// Page is one page of a cursor-paginated result.
type Page[T any] interface {
	Outcome
	PageItems() []T
	PageCursor() string
	SetPageItems(items []T)
}

// Collect walks a cursor-paginated endpoint starting from an empty cursor and
// returns the last page with its items replaced by every item seen, in order.
// A non-2xx page ends the walk and is returned untouched. There is no page
// cap; cancel ctx to bound a walk.
func Collect[T any, P Page[T]](ctx context.Context, fetch func(ctx context.Context, cursor string) (P, error)) (P, error) {
	var zero P
	items := make([]T, 0)
	cursor := ""

	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		page, err := fetch(ctx, cursor)
		if err != nil {
			return zero, err
		}
		pagesTotal.Inc()

		if status := page.StatusCode(); status < http.StatusOK || status >= http.StatusMultipleChoices {
			return page, nil
		}

		items = append(items, page.PageItems()...)

		cursor = page.PageCursor()
		if cursor == "" {
			page.SetPageItems(items)
			return page, nil
		}
	}
}
