// Package servicelog pages long service logs into fixed-size chunks so
// the client can render them incrementally.
package servicelog

import "context"

// DefaultPageSize is how many entries a page holds unless overridden.
const DefaultPageSize = 5

// Pager chunks a slice into fixed-size pages.
type Pager[T any] struct {
	items []T
	size  int
}

// NewPager constructs a pager. A non-positive size falls back to
// DefaultPageSize.
func NewPager[T any](items []T, size int) *Pager[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	return &Pager[T]{items: items, size: size}
}

// Len returns the total number of items.
func (p *Pager[T]) Len() int { return len(p.items) }

// PageCount returns the number of pages.
func (p *Pager[T]) PageCount() int {
	if len(p.items) == 0 {
		return 0
	}
	return (len(p.items) + p.size - 1) / p.size
}

// Page returns the zero-based page n, or nil when out of range. The last
// page may be short.
func (p *Pager[T]) Page(n int) []T {
	if n < 0 || n*p.size >= len(p.items) {
		return nil
	}
	start := n * p.size
	end := start + p.size
	if end > len(p.items) {
		end = len(p.items)
	}
	return p.items[start:end]
}

// Pages streams all pages in order. The channel is closed after the last
// page or when ctx is cancelled.
func (p *Pager[T]) Pages(ctx context.Context) <-chan []T {
	out := make(chan []T)
	go func() {
		defer close(out)
		for n := 0; ; n++ {
			page := p.Page(n)
			if page == nil {
				return
			}
			select {
			case out <- page:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
