package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
	"github.com/fivetwenty-io/amocrm/pkg/fields"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLead struct {
	amocrm.Lead

	Source  string  `json:"-"`
	Budget  float64 `json:"-"`
	Partner bool    `json:"-"`
}

var testLeadSchema = fields.MustSchema(
	func(l *testLead) *[]fields.Field { return &l.CustomFieldsValues },
	fields.Bind("source", fields.Text(fields.ID(100)), func(l *testLead) *string { return &l.Source }),
	fields.Bind("budget", fields.Numeric(fields.ID(101)), func(l *testLead) *float64 { return &l.Budget }),
	fields.Bind("partner", fields.Checkbox(fields.Code("PARTNER")), func(l *testLead) *bool { return &l.Partner }),
)

func newTestLeads(t *testing.T, handler http.HandlerFunc) *LeadsClient[testLead, amocrm.Contact] {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	leads := LeadsFor(NewTestClient(server.URL), testLeadSchema, amocrm.ContactSchema)
	leads.requestID = func() string { return "req" }

	return leads
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body string) {
	t.Helper()

	w.Header().Set("Content-Type", "application/hal+json")
	w.WriteHeader(status)
	_, err := w.Write([]byte(body))
	assert.NoError(t, err)
}

func TestRecordsClient_Get(t *testing.T) {
	t.Parallel()

	leads := newTestLeads(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/leads/42", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "contacts", r.URL.Query().Get("with"))

		writeJSON(t, w, http.StatusOK, `{
			"id": 42,
			"name": "Website deal",
			"price": 1500,
			"created_user_id": 5,
			"modified_user_id": 6,
			"custom_fields": [
				{"field_id": 100, "field_name": "Source", "field_type": "text", "values": [{"value": "web"}]},
				{"field_id": 101, "field_type": "numeric", "values": [{"value": "12.5"}]},
				{"field_code": "PARTNER", "field_type": "checkbox", "values": [{"value": true}]},
				{"field_id": 900, "field_type": "text", "values": [{"value": "kept"}]}
			],
			"_embedded": {"contacts": [{"id": 7, "is_main": true}]}
		}`)
	})

	lead, err := leads.Get(context.Background(), 42, nil)
	require.NoError(t, err)
	assert.Equal(t, 42, lead.ID)
	assert.Equal(t, "Website deal", lead.Name)
	assert.Equal(t, 5, lead.CreatedBy)
	assert.Equal(t, 6, lead.UpdatedBy)
	assert.Equal(t, "web", lead.Source)
	assert.InDelta(t, 12.5, lead.Budget, 0.001)
	assert.True(t, lead.Partner)
	assert.Len(t, lead.CustomFieldsValues, 4)

	mainContact, ok := lead.MainContactID()
	assert.True(t, ok)
	assert.Equal(t, 7, mainContact)
}

func TestRecordsClient_GetErrors(t *testing.T) {
	t.Parallel()

	leads := newTestLeads(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/leads/2" {
			writeJSON(t, w, http.StatusOK, `{"id": 2, "custom_fields_values": [{"field_id": 100, "field_type": "checkbox", "values": [{"value": true}]}]}`)

			return
		}

		writeJSON(t, w, http.StatusNotFound, `{"title": "Not Found", "status": 404, "detail": "Lead not found"}`)
	})

	_, err := leads.Get(context.Background(), 0, nil)
	require.ErrorIs(t, err, amocrm.ErrRecordIDRequired)

	_, err = leads.Get(context.Background(), 1, nil)
	require.Error(t, err)
	assert.True(t, amocrm.IsNotFound(err))

	_, err = leads.Get(context.Background(), 2, nil)
	require.ErrorIs(t, err, fields.ErrFieldTypeMismatch)
}

func TestRecordsClient_List(t *testing.T) {
	t.Parallel()

	leads := newTestLeads(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/leads", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "loss_reason", r.URL.Query().Get("with"))

		writeJSON(t, w, http.StatusOK, `{
			"_page": 2,
			"_links": {"self": {"href": "https://example.amocrm.ru/api/v4/leads?page=2"}},
			"_embedded": {"leads": [
				{"id": 1, "custom_fields_values": [{"field_id": 100, "values": [{"value": "ads"}]}]},
				{"id": 2}
			]}
		}`)
	})

	params := amocrm.NewQueryParams().WithPage(2).WithRelations("loss_reason")

	list, err := leads.List(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, 2, list.Page)
	assert.False(t, list.HasNext())
	require.Len(t, list.Items(), 2)
	assert.Equal(t, "ads", list.Items()[0].Source)
	assert.Empty(t, list.Items()[1].Source)
}

func TestRecordsClient_ListNoContent(t *testing.T) {
	t.Parallel()

	leads := newTestLeads(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	list, err := leads.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, list.Items())
}

func TestRecordsClient_ListAll(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32

	leads := newTestLeads(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "50", r.URL.Query().Get("limit"))

		switch r.URL.Query().Get("page") {
		case "1":
			writeJSON(t, w, http.StatusOK, `{
				"_page": 1,
				"_links": {"next": {"href": "https://example.amocrm.ru/api/v4/leads?page=2"}},
				"_embedded": {"leads": [{"id": 1}, {"id": 2}]}
			}`)
		case "2":
			writeJSON(t, w, http.StatusOK, `{
				"_page": 2,
				"_links": {"self": {"href": "https://example.amocrm.ru/api/v4/leads?page=2"}},
				"_embedded": {"leads": [{"id": 3}]}
			}`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})

	all, err := leads.ListAll(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 3, all[2].ID)
	assert.Equal(t, int32(2), requests.Load())
}

//nolint:funlen // Test functions can be longer for detailed testing
func TestRecordsClient_Create(t *testing.T) {
	t.Parallel()

	leads := newTestLeads(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/leads", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body []map[string]any

		err := json.NewDecoder(r.Body).Decode(&body)
		assert.NoError(t, err)
		assert.Len(t, body, 1)

		lead := body[0]
		assert.Equal(t, "New deal", lead["name"])
		assert.Equal(t, "req", lead["request_id"])
		assert.NotContains(t, lead, "created_at")
		assert.NotContains(t, lead, "updated_by")
		assert.NotContains(t, lead, "closed_at")

		customFields, ok := lead["custom_fields_values"].([]any)
		assert.True(t, ok)
		assert.Len(t, customFields, 2)
		assert.Equal(t, map[string]any{
			"field_id": float64(100),
			"values":   []any{map[string]any{"value": "referral"}},
		}, customFields[0])

		writeJSON(t, w, http.StatusOK, `{"_embedded": {"leads": [{"id": 501, "request_id": "req"}]}}`)
	})

	lead := &testLead{
		Lead: amocrm.Lead{
			Name:      "New deal",
			CreatedAt: 1700000000,
			UpdatedBy: 3,
			ClosedAt:  1700000100,
		},
		Source: "referral",
		Budget: 99,
	}

	created, err := leads.Create(context.Background(), lead)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, 501, created[0].ID)
	assert.Equal(t, "req", created[0].RequestID)
	assert.Empty(t, lead.CustomFieldsValues, "the record itself is not modified")

	_, err = leads.Create(context.Background())
	require.ErrorIs(t, err, amocrm.ErrEmptyBatch)
}

func TestRecordsClient_CreateBatches(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		batches []int
	)

	leads := newTestLeads(t, func(w http.ResponseWriter, r *http.Request) {
		var body []map[string]any

		err := json.NewDecoder(r.Body).Decode(&body)
		assert.NoError(t, err)

		mu.Lock()
		batches = append(batches, len(body))
		mu.Unlock()

		created := make([]amocrm.CreatedRecord, len(body))
		for i := range created {
			created[i] = amocrm.CreatedRecord{ID: i + 1}
		}

		data, err := json.Marshal(map[string]any{"_embedded": map[string]any{"leads": created}})
		assert.NoError(t, err)
		writeJSON(t, w, http.StatusOK, string(data))
	})

	records := make([]*testLead, 51)
	for i := range records {
		records[i] = &testLead{Lead: amocrm.Lead{Name: fmt.Sprintf("Deal %d", i)}}
	}

	created, err := leads.Create(context.Background(), records...)
	require.NoError(t, err)
	assert.Len(t, created, 51)

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, []int{50, 1}, batches)
}

func TestRecordsClient_CreateUnexpectedResponse(t *testing.T) {
	t.Parallel()

	leads := newTestLeads(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, `{"_embedded": {"leads": []}}`)
	})

	_, err := leads.Create(context.Background(), &testLead{})
	require.ErrorIs(t, err, amocrm.ErrUnexpectedResponseSize)
}

func TestRecordsClient_Update(t *testing.T) {
	t.Parallel()

	leads := newTestLeads(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/leads/7", r.URL.Path)
		assert.Equal(t, http.MethodPatch, r.Method)

		var body map[string]any

		err := json.NewDecoder(r.Body).Decode(&body)
		assert.NoError(t, err)
		assert.NotContains(t, body, "request_id")
		assert.NotContains(t, body, "updated_at")
		assert.Equal(t, float64(7), body["id"])

		writeJSON(t, w, http.StatusOK, `{"id": 7, "updated_at": 1700000500}`)
	})

	lead := &testLead{Lead: amocrm.Lead{ID: 7, UpdatedAt: 1}, Partner: true}

	updated, err := leads.Update(context.Background(), 7, lead)
	require.NoError(t, err)
	assert.Equal(t, 7, updated.ID)
	assert.Equal(t, amocrm.Timestamp(1700000500), updated.UpdatedAt)

	_, err = leads.Update(context.Background(), 0, lead)
	require.ErrorIs(t, err, amocrm.ErrRecordIDRequired)
}

func TestRecordsClient_Links(t *testing.T) {
	t.Parallel()

	leads := newTestLeads(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/leads/7/links", r.URL.Path)

		writeJSON(t, w, http.StatusOK, `{"_embedded": {"links": [
			{"to_entity_id": 10, "to_entity_type": "contacts", "metadata": {"main_contact": true}}
		]}}`)
	})

	links, err := leads.Links(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, 10, links[0].ToEntityID)
	assert.Equal(t, amocrm.EntityContacts, links[0].ToEntityType)
	require.NotNil(t, links[0].Metadata.MainContact)
	assert.True(t, *links[0].Metadata.MainContact)
}

//nolint:funlen // Test functions can be longer for detailed testing
func TestNormalizeRecord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		leads []int
	}{
		{
			name:  "list of ids",
			input: `{"id": 1, "linked_leads_id": [3, 4]}`,
			leads: []int{3, 4},
		},
		{
			name:  "string ids",
			input: `{"id": 1, "linked_leads_id": ["3"]}`,
			leads: []int{3},
		},
		{
			name:  "keyed objects",
			input: `{"id": 1, "linked_leads_id": {"5": {"ID": "5"}}}`,
			leads: []int{5},
		},
		{
			name:  "keyed objects in id order",
			input: `{"id": 1, "linked_leads_id": {"12": {"ID": "12"}, "5": {"ID": "5"}, "7": {"ID": "7"}}}`,
			leads: []int{5, 7, 12},
		},
		{
			name:  "embedded leads win",
			input: `{"id": 1, "linked_leads_id": [3], "_embedded": {"leads": [{"id": 9}]}}`,
			leads: []int{9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			normalized, err := normalizeRecord([]byte(tt.input))
			require.NoError(t, err)

			var contact amocrm.Contact

			err = json.Unmarshal(normalized, &contact)
			require.NoError(t, err)

			ids := make([]int, 0, len(contact.Leads()))
			for _, ref := range contact.Leads() {
				ids = append(ids, ref.ID)
			}

			assert.Equal(t, tt.leads, ids)
		})
	}

	t.Run("canonical names win over aliases", func(t *testing.T) {
		t.Parallel()

		normalized, err := normalizeRecord([]byte(`{"created_by": 1, "created_user_id": 2}`))
		require.NoError(t, err)

		var lead amocrm.Lead

		require.NoError(t, json.Unmarshal(normalized, &lead))
		assert.Equal(t, 1, lead.CreatedBy)
	})

	t.Run("unchanged records are returned as is", func(t *testing.T) {
		t.Parallel()

		input := []byte(`{"id": 1}`)

		normalized, err := normalizeRecord(input)
		require.NoError(t, err)
		assert.Equal(t, input, normalized)
	})
}
