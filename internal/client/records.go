package client

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/fivetwenty-io/amocrm/internal/constants"
	internalhttp "github.com/fivetwenty-io/amocrm/internal/http"
	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
	"github.com/fivetwenty-io/amocrm/pkg/fields"
	"github.com/google/uuid"
)

// Wire names accepted on read in place of the canonical ones.
var attributeAliases = map[string]string{
	"created_user_id":  "created_by",
	"modified_user_id": "updated_by",
	"custom_fields":    "custom_fields_values",
}

// Attributes amoCRM computes itself; they are never sent.
var readOnlyAttributes = []string{
	"created_by",
	"updated_by",
	"created_at",
	"updated_at",
	"closed_at",
	"closest_task_at",
	"_links",
}

// recordsEndpoint describes one record collection.
type recordsEndpoint struct {
	path      string
	embedded  string
	relations []string
	noun      string
}

var (
	leadsEndpoint = recordsEndpoint{
		path:      "/leads",
		embedded:  "leads",
		relations: []string{"contacts"},
		noun:      "lead",
	}
	contactsEndpoint = recordsEndpoint{
		path:      "/contacts",
		embedded:  "contacts",
		relations: []string{"leads"},
		noun:      "contact",
	}
)

// RecordsClient implements amocrm.RecordsClient for any record type
// described by a fields.Schema. Every decoded record is projected and every
// encoded one is flattened.
type RecordsClient[R any] struct {
	httpClient *internalhttp.Client
	schema     *fields.Schema[R]
	endpoint   recordsEndpoint
	requestID  func() string
}

func newRecordsClient[R any](httpClient *internalhttp.Client, schema *fields.Schema[R], endpoint recordsEndpoint) *RecordsClient[R] {
	return &RecordsClient[R]{
		httpClient: httpClient,
		schema:     schema,
		endpoint:   endpoint,
		requestID:  uuid.NewString,
	}
}

// Get implements amocrm.RecordsClient.Get.
func (c *RecordsClient[R]) Get(ctx context.Context, id int, params *amocrm.QueryParams) (*R, error) {
	if id <= 0 {
		return nil, amocrm.ErrRecordIDRequired
	}

	path := c.endpoint.path + "/" + strconv.Itoa(id)

	resp, err := c.httpClient.Get(ctx, path, c.query(params))
	if err != nil {
		return nil, fmt.Errorf("getting %s %d: %w", c.endpoint.noun, id, err)
	}

	var record R

	err = c.decode(resp.Body, &record)
	if err != nil {
		return nil, fmt.Errorf("parsing %s %d: %w", c.endpoint.noun, id, err)
	}

	return &record, nil
}

// List implements amocrm.RecordsClient.List.
func (c *RecordsClient[R]) List(ctx context.Context, params *amocrm.QueryParams) (*amocrm.ListResponse[R], error) {
	return c.ListWithPath(ctx, c.endpoint.path, params)
}

// ListWithPath implements amocrm.PaginationClient.ListWithPath. An empty
// body (HTTP 204) is an empty page.
func (c *RecordsClient[R]) ListWithPath(ctx context.Context, path string, params *amocrm.QueryParams) (*amocrm.ListResponse[R], error) {
	resp, err := c.httpClient.Get(ctx, path, c.query(params))
	if err != nil {
		return nil, fmt.Errorf("listing %ss: %w", c.endpoint.noun, err)
	}

	list := &amocrm.ListResponse[R]{}
	if len(resp.Body) == 0 || resp.StatusCode == http.StatusNoContent {
		return list, nil
	}

	var raw struct {
		Page     int                          `json:"_page"`
		Links    amocrm.Links                 `json:"_links"`
		Embedded map[string][]json.RawMessage `json:"_embedded"`
	}

	err = json.Unmarshal(resp.Body, &raw)
	if err != nil {
		return nil, fmt.Errorf("parsing %ss list: %w", c.endpoint.noun, err)
	}

	list.Page = raw.Page
	list.Links = raw.Links

	items := raw.Embedded[c.endpoint.embedded]
	list.Embedded.Items = make([]R, len(items))

	for i, item := range items {
		err = c.decode(item, &list.Embedded.Items[i])
		if err != nil {
			return nil, fmt.Errorf("parsing %ss list item %d: %w", c.endpoint.noun, i, err)
		}
	}

	return list, nil
}

// ListAll implements amocrm.RecordsClient.ListAll.
func (c *RecordsClient[R]) ListAll(ctx context.Context, params *amocrm.QueryParams) ([]R, error) {
	return amocrm.FetchAllPages[R](ctx, c, c.endpoint.path, params, amocrm.DefaultPaginationOptions())
}

// Create implements amocrm.RecordsClient.Create. Records are sent in
// batches; each carries a generated request_id echoed back by amoCRM.
func (c *RecordsClient[R]) Create(ctx context.Context, records ...*R) ([]amocrm.CreatedRecord, error) {
	if len(records) == 0 {
		return nil, amocrm.ErrEmptyBatch
	}

	created := make([]amocrm.CreatedRecord, 0, len(records))

	for start := 0; start < len(records); start += constants.MaxBatchSize {
		end := min(start+constants.MaxBatchSize, len(records))

		batch, err := c.createBatch(ctx, records[start:end])
		if err != nil {
			return created, err
		}

		created = append(created, batch...)
	}

	return created, nil
}

func (c *RecordsClient[R]) createBatch(ctx context.Context, records []*R) ([]amocrm.CreatedRecord, error) {
	body := make([]map[string]json.RawMessage, 0, len(records))

	for i, record := range records {
		encoded, err := c.encode(record)
		if err != nil {
			return nil, fmt.Errorf("encoding %s %d: %w", c.endpoint.noun, i, err)
		}

		requestID, err := json.Marshal(c.requestID())
		if err != nil {
			return nil, fmt.Errorf("encoding request id: %w", err)
		}

		encoded["request_id"] = requestID
		body = append(body, encoded)
	}

	resp, err := c.httpClient.Post(ctx, c.endpoint.path, body)
	if err != nil {
		return nil, fmt.Errorf("creating %ss: %w", c.endpoint.noun, err)
	}

	var list struct {
		Embedded map[string][]amocrm.CreatedRecord `json:"_embedded"`
	}

	err = json.Unmarshal(resp.Body, &list)
	if err != nil {
		return nil, fmt.Errorf("parsing %ss create response: %w", c.endpoint.noun, err)
	}

	created := list.Embedded[c.endpoint.embedded]
	if len(created) != len(records) {
		return created, fmt.Errorf("%w: sent %d, got %d", amocrm.ErrUnexpectedResponseSize, len(records), len(created))
	}

	return created, nil
}

// Update implements amocrm.RecordsClient.Update.
func (c *RecordsClient[R]) Update(ctx context.Context, id int, record *R) (*amocrm.UpdateResponse, error) {
	if id <= 0 {
		return nil, amocrm.ErrRecordIDRequired
	}

	body, err := c.encode(record)
	if err != nil {
		return nil, fmt.Errorf("encoding %s %d: %w", c.endpoint.noun, id, err)
	}

	path := c.endpoint.path + "/" + strconv.Itoa(id)

	resp, err := c.httpClient.Patch(ctx, path, body)
	if err != nil {
		return nil, fmt.Errorf("updating %s %d: %w", c.endpoint.noun, id, err)
	}

	var updated amocrm.UpdateResponse

	err = json.Unmarshal(resp.Body, &updated)
	if err != nil {
		return nil, fmt.Errorf("parsing %s update response: %w", c.endpoint.noun, err)
	}

	return &updated, nil
}

// Links implements amocrm.RecordsClient.Links.
func (c *RecordsClient[R]) Links(ctx context.Context, id int) ([]amocrm.EntityLink, error) {
	if id <= 0 {
		return nil, amocrm.ErrRecordIDRequired
	}

	path := c.endpoint.path + "/" + strconv.Itoa(id) + "/links"

	resp, err := c.httpClient.Get(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("getting %s %d links: %w", c.endpoint.noun, id, err)
	}

	if len(resp.Body) == 0 {
		return nil, nil
	}

	var list amocrm.ListResponse[amocrm.EntityLink]

	err = json.Unmarshal(resp.Body, &list)
	if err != nil {
		return nil, fmt.Errorf("parsing %s %d links: %w", c.endpoint.noun, id, err)
	}

	return list.Items(), nil
}

// query applies the endpoint's default relations to params.
func (c *RecordsClient[R]) query(params *amocrm.QueryParams) url.Values {
	query := params.Clone()
	if len(query.With) == 0 {
		query.WithRelations(c.endpoint.relations...)
	}

	return query.ToValues()
}

// decode normalizes wire aliases and projects the record.
func (c *RecordsClient[R]) decode(data []byte, record *R) error {
	normalized, err := normalizeRecord(data)
	if err != nil {
		return err
	}

	return c.schema.Unmarshal(normalized, record)
}

// encode flattens the record and drops read-only attributes.
func (c *RecordsClient[R]) encode(record *R) (map[string]json.RawMessage, error) {
	data, err := c.schema.Marshal(record)
	if err != nil {
		return nil, err
	}

	var body map[string]json.RawMessage

	err = json.Unmarshal(data, &body)
	if err != nil {
		return nil, fmt.Errorf("decoding encoded record: %w", err)
	}

	for _, name := range readOnlyAttributes {
		delete(body, name)
	}

	return body, nil
}

func normalizeRecord(data []byte) ([]byte, error) {
	var raw map[string]json.RawMessage

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}

	changed := false

	for alias, canonical := range attributeAliases {
		value, ok := raw[alias]
		if !ok {
			continue
		}

		if _, exists := raw[canonical]; !exists {
			raw[canonical] = value
		}

		delete(raw, alias)

		changed = true
	}

	if linked, ok := raw["linked_leads_id"]; ok {
		err = embedLinkedLeads(raw, linked)
		if err != nil {
			return nil, err
		}

		delete(raw, "linked_leads_id")

		changed = true
	}

	if !changed {
		return data, nil
	}

	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encoding normalized record: %w", err)
	}

	return normalized, nil
}

// embedLinkedLeads moves a webhook-style linked_leads_id list (ids or
// objects, as an array or keyed by id) into _embedded.leads unless the record
// already embeds its leads.
func embedLinkedLeads(raw map[string]json.RawMessage, linked json.RawMessage) error {
	embedded := map[string]json.RawMessage{}

	if data, ok := raw["_embedded"]; ok && string(data) != "null" {
		err := json.Unmarshal(data, &embedded)
		if err != nil {
			return fmt.Errorf("decoding _embedded: %w", err)
		}

		if _, exists := embedded["leads"]; exists {
			return nil
		}
	}

	var entries []json.RawMessage

	err := json.Unmarshal(linked, &entries)
	if err != nil {
		var keyed map[string]json.RawMessage

		if json.Unmarshal(linked, &keyed) != nil {
			return fmt.Errorf("decoding linked_leads_id: %w", err)
		}

		for _, key := range slices.SortedFunc(maps.Keys(keyed), compareIDKeys) {
			entries = append(entries, keyed[key])
		}
	}

	refs := make([]amocrm.EntityRef, 0, len(entries))

	for _, entry := range entries {
		id, ok := linkedLeadID(entry)
		if ok {
			refs = append(refs, amocrm.EntityRef{ID: id})
		}
	}

	leads, err := json.Marshal(refs)
	if err != nil {
		return fmt.Errorf("encoding linked leads: %w", err)
	}

	embedded["leads"] = leads

	data, err := json.Marshal(embedded)
	if err != nil {
		return fmt.Errorf("encoding _embedded: %w", err)
	}

	raw["_embedded"] = data

	return nil
}

func linkedLeadID(entry json.RawMessage) (int, bool) {
	var object struct {
		ID      json.Number `json:"id"`
		UpperID json.Number `json:"ID"`
	}

	var number json.Number

	switch {
	case json.Unmarshal(entry, &number) == nil:
	case json.Unmarshal(entry, &object) == nil:
		number = object.ID
		if number == "" {
			number = object.UpperID
		}
	default:
		return 0, false
	}

	id, err := strconv.Atoi(string(number))
	if err != nil {
		var quoted string
		if json.Unmarshal(entry, &quoted) == nil {
			id, err = strconv.Atoi(quoted)
		}
	}

	return id, err == nil && id > 0
}

// compareIDKeys orders numeric keys by value and anything else as text.
func compareIDKeys(a, b string) int {
	x, errX := strconv.Atoi(a)
	y, errY := strconv.Atoi(b)

	if errX == nil && errY == nil {
		return cmp.Compare(x, y)
	}

	return strings.Compare(a, b)
}
