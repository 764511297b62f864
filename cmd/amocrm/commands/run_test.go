package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fivetwenty-io/amocrm/internal/constants"
	"github.com/fivetwenty-io/amocrm/pkg/amoclient"
	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pipelinesBody = `{"_embedded":{"pipelines":[{"id":1,"name":"Sales","is_main":true,"_embedded":{"statuses":[
	{"id":10,"name":"Qualified","sort":10,"pipeline_id":1},
	{"id":142,"name":"Won","sort":10000,"pipeline_id":1}
]}}]}}`

func newAccountServer(t *testing.T) amocrm.Client {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /leads", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		_, _ = w.Write([]byte(`{"_page":2,"_embedded":{"leads":[
			{"id":5,"name":"Website redesign","price":1250000,"pipeline_id":1,"status_id":10}
		]}}`))
	})
	mux.HandleFunc("GET /leads/5", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":5,"name":"Website redesign","price":1250000,"pipeline_id":1,"status_id":10,
			"custom_fields_values":[{"field_id":100,"field_name":"Source","field_type":"text","values":[{"value":"Referral"}]}],
			"_embedded":{"contacts":[{"id":7,"is_main":true}]}}`))
	})
	mux.HandleFunc("GET /leads/pipelines", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(pipelinesBody))
	})
	mux.HandleFunc("GET /leads/pipelines/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":1,"name":"Sales","_embedded":{"statuses":[{"id":10,"name":"Qualified","pipeline_id":1}]}}`))
	})
	mux.HandleFunc("GET /contacts/7", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":7,"name":"Anna Petrova","custom_fields_values":[
			{"field_id":3,"field_code":"PHONE","field_type":"multitext","values":[{"value":"+79990001122","enum_code":"WORK"}]}
		]}`))
	})
	mux.HandleFunc("GET /leads/custom_fields", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusNoContent)

			return
		}

		_, _ = w.Write([]byte(`{"_embedded":{"custom_fields":[
			{"id":200,"name":"Stage","type":"select","enums":[{"id":1,"value":"cold"},{"id":2,"value":"hot"}]}
		]}}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := amoclient.New(context.Background(), &amocrm.Config{
		BaseURL:     server.URL,
		AccessToken: "token",
		RateLimit:   -1,
	})
	require.NoError(t, err)

	return client
}

func withOutput(t *testing.T, format string) {
	t.Helper()

	viper.Set("output", format)
	viper.Set("no_color", true)
	t.Cleanup(func() {
		viper.Set("output", "")
		viper.Set("no_color", false)
	})
}

func TestRunLeadsList(t *testing.T) {
	client := newAccountServer(t)
	opts := LeadsListOptions{ListOptions: ListOptions{Page: 2, PerPage: 50}}

	withOutput(t, constants.FormatTable)

	var buf bytes.Buffer

	err := runLeadsList(context.Background(), &buf, client, opts)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Website redesign")
	assert.Contains(t, buf.String(), "1,250,000")
	assert.Contains(t, buf.String(), "Sales")
	assert.Contains(t, buf.String(), "Qualified")

	withOutput(t, constants.FormatJSON)
	buf.Reset()

	err = runLeadsList(context.Background(), &buf, client, opts)
	require.NoError(t, err)

	var leads []amocrm.Lead

	require.NoError(t, json.Unmarshal(buf.Bytes(), &leads))
	require.Len(t, leads, 1)
	assert.Equal(t, 5, leads[0].ID)
}

func TestRunLeadsGet(t *testing.T) {
	client := newAccountServer(t)

	withOutput(t, constants.FormatTable)

	var buf bytes.Buffer

	err := runLeadsGet(context.Background(), &buf, client, 5)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Qualified")
	assert.Contains(t, out, "7 (main)")
	assert.Contains(t, out, "Anna Petrova")
	assert.Contains(t, out, "+79990001122 (WORK)")
	assert.Contains(t, out, "Referral")

	withOutput(t, constants.FormatYAML)
	buf.Reset()

	err = runLeadsGet(context.Background(), &buf, client, 5)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "name: Anna Petrova")
	assert.Contains(t, buf.String(), "enum_code: WORK")
}

func TestRunCustomFieldsList(t *testing.T) {
	client := newAccountServer(t)

	withOutput(t, constants.FormatTable)

	var buf bytes.Buffer

	err := runCustomFieldsList(context.Background(), &buf, client, amocrm.EntityLeads)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Stage")
	assert.Contains(t, buf.String(), "cold, hot")
}

func TestRunPipelinesList_InvalidOutput(t *testing.T) {
	client := newAccountServer(t)

	withOutput(t, "xml")

	err := runPipelinesList(context.Background(), &bytes.Buffer{}, client)
	require.ErrorIs(t, err, constants.ErrInvalidOutputFormat)
}
