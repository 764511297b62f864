package amocrm

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Sort directions for QueryParams.Order.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// QueryParams represents list query options.
type QueryParams struct {
	Page  int
	Limit int
	// With lists related data to embed (contacts, leads, loss_reason...).
	With []string
	// Query is a full-text search string.
	Query string
	// Filters are keyed by a dotted path below filter[...], so
	// "created_at.from" is sent as filter[created_at][from]. Keys with more
	// than one value are sent as arrays.
	Filters map[string][]string
	// Order maps a field to OrderAsc or OrderDesc.
	Order map[string]string
}

// NewQueryParams creates empty query parameters.
func NewQueryParams() *QueryParams {
	return &QueryParams{
		Filters: make(map[string][]string),
		Order:   make(map[string]string),
	}
}

// WithPage sets the page number, starting at 1.
func (q *QueryParams) WithPage(page int) *QueryParams {
	q.Page = page

	return q
}

// WithLimit sets the page size. amoCRM caps it at 250.
func (q *QueryParams) WithLimit(limit int) *QueryParams {
	q.Limit = limit

	return q
}

// WithRelations adds related data to embed.
func (q *QueryParams) WithRelations(names ...string) *QueryParams {
	for _, name := range names {
		if !slices.Contains(q.With, name) {
			q.With = append(q.With, name)
		}
	}

	return q
}

// WithQuery sets the search string.
func (q *QueryParams) WithQuery(query string) *QueryParams {
	q.Query = query

	return q
}

// WithFilter adds a filter.
func (q *QueryParams) WithFilter(path string, values ...string) *QueryParams {
	if q.Filters == nil {
		q.Filters = make(map[string][]string)
	}

	q.Filters[path] = append(q.Filters[path], values...)

	return q
}

// WithIDs filters by record IDs.
func (q *QueryParams) WithIDs(ids ...int) *QueryParams {
	values := make([]string, 0, len(ids))
	for _, id := range ids {
		values = append(values, strconv.Itoa(id))
	}

	return q.WithFilter("id", values...)
}

// WithStatus filters leads by pipeline status. May be called repeatedly.
func (q *QueryParams) WithStatus(pipelineID, statusID int) *QueryParams {
	index := 0

	for path := range q.Filters {
		if strings.HasPrefix(path, "statuses.") && strings.HasSuffix(path, ".pipeline_id") {
			index++
		}
	}

	prefix := "statuses." + strconv.Itoa(index) + "."

	q.WithFilter(prefix+"pipeline_id", strconv.Itoa(pipelineID))

	return q.WithFilter(prefix+"status_id", strconv.Itoa(statusID))
}

// WithRange filters a timestamp field to [from, to]. A zero bound is omitted.
func (q *QueryParams) WithRange(field string, from, to Timestamp) *QueryParams {
	if from != 0 {
		q.WithFilter(field+".from", strconv.FormatInt(int64(from), 10))
	}

	if to != 0 {
		q.WithFilter(field+".to", strconv.FormatInt(int64(to), 10))
	}

	return q
}

// WithOrder sorts by a field.
func (q *QueryParams) WithOrder(field, direction string) *QueryParams {
	if q.Order == nil {
		q.Order = make(map[string]string)
	}

	q.Order[field] = direction

	return q
}

// Clone returns a deep copy of the parameters.
func (q *QueryParams) Clone() *QueryParams {
	if q == nil {
		return NewQueryParams()
	}

	clone := &QueryParams{
		Page:    q.Page,
		Limit:   q.Limit,
		With:    append([]string(nil), q.With...),
		Query:   q.Query,
		Filters: make(map[string][]string, len(q.Filters)),
		Order:   make(map[string]string, len(q.Order)),
	}

	for k, v := range q.Filters {
		clone.Filters[k] = append([]string(nil), v...)
	}

	for k, v := range q.Order {
		clone.Order[k] = v
	}

	return clone
}

// ToValues converts query parameters to URL values.
func (q *QueryParams) ToValues() url.Values {
	values := url.Values{}

	if q == nil {
		return values
	}

	if q.Page > 0 {
		values["page"] = []string{strconv.Itoa(q.Page)}
	}

	if q.Limit > 0 {
		values["limit"] = []string{strconv.Itoa(q.Limit)}
	}

	if len(q.With) > 0 {
		values["with"] = []string{strings.Join(q.With, ",")}
	}

	if q.Query != "" {
		values["query"] = []string{q.Query}
	}

	for path, filterValues := range q.Filters {
		if len(filterValues) == 0 {
			continue
		}

		key := "filter[" + strings.ReplaceAll(path, ".", "][") + "]"
		if len(filterValues) > 1 {
			key += "[]"
		}

		values[key] = append([]string(nil), filterValues...)
	}

	for field, direction := range q.Order {
		values["order["+field+"]"] = []string{direction}
	}

	return values
}
