package amocrm

import (
	"context"
	"fmt"
)

// PaginationClient is implemented by clients that can fetch a list page by path.
type PaginationClient[T any] interface {
	ListWithPath(ctx context.Context, path string, params *QueryParams) (*ListResponse[T], error)
}

// PaginationOptions controls multi-page fetches.
type PaginationOptions struct {
	// PageSize sets limit on every request. 0 keeps the caller's value.
	PageSize int
	// MaxPages stops after this many pages. 0 means no limit.
	MaxPages int
}

// DefaultPaginationOptions returns the page size amoCRM uses by default.
func DefaultPaginationOptions() *PaginationOptions {
	return &PaginationOptions{
		PageSize: DefaultPageSize,
	}
}

// Page sizes accepted by list endpoints.
const (
	DefaultPageSize = 50
	MaxPageSize     = 250
)

// PaginationIterator walks list pages one item at a time. A page is
// requested with page+1 until the server answers with an empty page (or
// 204 No Content) or omits the next link.
type PaginationIterator[T any] struct {
	ctx     context.Context
	client  PaginationClient[T]
	path    string
	params  *QueryParams
	items   []T
	index   int
	page    int
	started bool
	done    bool
	err     error
}

// NewPaginationIterator creates an iterator starting at params.Page (or 1).
func NewPaginationIterator[T any](ctx context.Context, client PaginationClient[T], path string, params *QueryParams) *PaginationIterator[T] {
	params = params.Clone()

	page := params.Page
	if page < 1 {
		page = 1
	}

	return &PaginationIterator[T]{
		ctx:    ctx,
		client: client,
		path:   path,
		params: params,
		page:   page,
	}
}

// HasNext reports whether another item is available. It fetches the next
// page when the current one is exhausted.
func (it *PaginationIterator[T]) HasNext() bool {
	if it.index < len(it.items) {
		return true
	}

	if it.done || it.err != nil {
		return false
	}

	it.fetch()

	return it.index < len(it.items)
}

// Next returns the next item.
func (it *PaginationIterator[T]) Next() (T, error) {
	var zero T

	if !it.HasNext() {
		if it.err != nil {
			return zero, it.err
		}

		return zero, ErrNoMoreItems
	}

	item := it.items[it.index]
	it.index++

	return item, nil
}

// Err returns the error that stopped iteration, if any.
func (it *PaginationIterator[T]) Err() error {
	return it.err
}

// All collects the remaining items.
func (it *PaginationIterator[T]) All() ([]T, error) {
	var all []T

	for it.HasNext() {
		item, err := it.Next()
		if err != nil {
			return nil, err
		}

		all = append(all, item)
	}

	if it.err != nil {
		return nil, it.err
	}

	return all, nil
}

// ForEach calls fn for every remaining item and stops at the first error.
func (it *PaginationIterator[T]) ForEach(fn func(T) error) error {
	for it.HasNext() {
		item, err := it.Next()
		if err != nil {
			return err
		}

		err = fn(item)
		if err != nil {
			return err
		}
	}

	return it.err
}

func (it *PaginationIterator[T]) fetch() {
	if it.started {
		it.page++
	}

	it.started = true
	it.params.Page = it.page

	resp, err := it.client.ListWithPath(it.ctx, it.path, it.params)
	if err != nil {
		it.err = fmt.Errorf("fetching page %d: %w", it.page, err)

		return
	}

	it.items = resp.Items()
	it.index = 0

	if len(it.items) == 0 || !hasMorePages(resp) {
		it.done = true
	}
}

// hasMorePages follows _links.next when the response carries links, and
// otherwise keeps paging until an empty page.
func hasMorePages[T any](resp *ListResponse[T]) bool {
	if resp == nil {
		return false
	}

	if len(resp.Links) == 0 {
		return true
	}

	return resp.HasNext()
}

// FetchAllPages collects items from every page.
func FetchAllPages[T any](ctx context.Context, client PaginationClient[T], path string, params *QueryParams, options *PaginationOptions) ([]T, error) {
	if options == nil {
		options = &PaginationOptions{}
	}

	var all []T

	for result := range StreamPages(ctx, client, path, params, options) {
		if result.Err != nil {
			return nil, result.Err
		}

		all = append(all, result.Items...)
	}

	return all, nil
}

// PageResult is one page delivered by StreamPages.
type PageResult[T any] struct {
	Page  int
	Items []T
	Err   error
}

// StreamPages fetches pages in a goroutine and delivers them on a channel.
// The channel is closed after the last page, an error, or ctx cancellation.
func StreamPages[T any](ctx context.Context, client PaginationClient[T], path string, params *QueryParams, options *PaginationOptions) <-chan PageResult[T] {
	results := make(chan PageResult[T])

	if options == nil {
		options = &PaginationOptions{}
	}

	params = params.Clone()
	if options.PageSize > 0 {
		params.Limit = options.PageSize
	}

	if params.Page < 1 {
		params.Page = 1
	}

	go func() {
		defer close(results)

		for pages := 0; options.MaxPages == 0 || pages < options.MaxPages; pages++ {
			resp, err := client.ListWithPath(ctx, path, params)
			if err != nil {
				sendPage(ctx, results, PageResult[T]{Page: params.Page, Err: fmt.Errorf("fetching page %d: %w", params.Page, err)})

				return
			}

			items := resp.Items()
			if len(items) == 0 {
				return
			}

			if !sendPage(ctx, results, PageResult[T]{Page: params.Page, Items: items}) {
				return
			}

			if !hasMorePages(resp) {
				return
			}

			params.Page++
		}
	}()

	return results
}

func sendPage[T any](ctx context.Context, results chan<- PageResult[T], result PageResult[T]) bool {
	select {
	case results <- result:
		return true
	case <-ctx.Done():
		return false
	}
}
