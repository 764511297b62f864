package client

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
	"github.com/fivetwenty-io/amocrm/pkg/fields"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//nolint:funlen // Test functions can be longer for detailed testing
func TestLeadsClient_CreateComplex(t *testing.T) {
	t.Parallel()

	leads := newTestLeads(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/leads/complex", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body []struct {
			Name         string `json:"name"`
			CustomFields []struct {
				FieldID int `json:"field_id"`
			} `json:"custom_fields_values"`
			Embedded struct {
				Tags     []amocrm.Tag `json:"tags"`
				Contacts []struct {
					FirstName    string `json:"first_name"`
					CreatedAt    int64  `json:"created_at"`
					CustomFields []struct {
						FieldCode string         `json:"field_code"`
						Values    []fields.Value `json:"values"`
					} `json:"custom_fields_values"`
				} `json:"contacts"`
			} `json:"_embedded"`
		}

		err := json.NewDecoder(r.Body).Decode(&body)
		assert.NoError(t, err)
		require.Len(t, body, 1)

		lead := body[0]
		assert.Equal(t, "Complex deal", lead.Name)
		require.Len(t, lead.CustomFields, 1)
		assert.Equal(t, 100, lead.CustomFields[0].FieldID)
		assert.Equal(t, []amocrm.Tag{{Name: "vip"}}, lead.Embedded.Tags)

		require.Len(t, lead.Embedded.Contacts, 1)
		contact := lead.Embedded.Contacts[0]
		assert.Equal(t, "Ivan", contact.FirstName)
		assert.Zero(t, contact.CreatedAt)
		require.Len(t, contact.CustomFields, 1)
		assert.Equal(t, "PHONE", contact.CustomFields[0].FieldCode)
		assert.Equal(t, "+79990001122", contact.CustomFields[0].Values[0].Value)

		writeJSON(t, w, http.StatusOK, `[{"id": 10, "contact_id": 20, "company_id": null, "merged": false}]`)
	})

	lead := &testLead{
		Lead: amocrm.Lead{
			Name:     "Complex deal",
			Embedded: &amocrm.LeadEmbedded{Tags: []amocrm.Tag{{Name: "vip"}}},
		},
		Source: "landing",
	}
	contact := &amocrm.Contact{
		FirstName: "Ivan",
		CreatedAt: 1700000000,
		Phone:     []fields.Value{{Value: "+79990001122", EnumCode: fields.String("WORK")}},
	}

	created, err := leads.CreateComplex(context.Background(), lead, contact)
	require.NoError(t, err)
	assert.Equal(t, 10, created.ID)
	assert.Equal(t, 20, created.ContactID)
}

func TestLeadsClient_CreateComplexEmptyResponse(t *testing.T) {
	t.Parallel()

	leads := newTestLeads(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, `[]`)
	})

	_, err := leads.CreateComplex(context.Background(), &testLead{}, &amocrm.Contact{})
	require.ErrorIs(t, err, amocrm.ErrUnexpectedResponseSize)
}

func TestClient_LeadsImplementsInterface(t *testing.T) {
	t.Parallel()

	client := NewTestClient("http://localhost")

	var leads amocrm.LeadsClient = client.Leads()

	assert.NotNil(t, leads)
}
