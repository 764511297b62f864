// Package amocrm provides types, interfaces, and helpers for working with the
// amoCRM REST API (v4).
//
// # Overview
//
// The amocrm package defines the domain types (Lead, Contact, Pipeline,
// Status, CustomFieldDefinition, User, EntityLink) and the interfaces for
// resource-oriented clients (LeadsClient, ContactsClient, PipelinesClient,
// CustomFieldsClient, UsersClient). The concrete implementation lives in
// internal/client and is constructed through the amoclient package.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/amocrm/pkg/amocrm"
//	  "github.com/fivetwenty-io/amocrm/pkg/amoclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := amoclient.NewWithToken("example", "long-lived-token")
//	  if err != nil { log.Fatal(err) }
//
//	  lead, err := cli.Leads().Get(ctx, 42, nil)
//	  if err != nil { log.Fatal(err) }
//	  _ = lead
//	}
//
// # Custom fields
//
// Leads and contacts carry their custom fields in CustomFieldsValues. Typed
// access is declared with a fields.Schema over a record type that embeds
// Lead or Contact; amoclient.Leads and amoclient.Contacts return a
// RecordsClient that projects every record it reads and flattens every
// record it writes. Fields the schema does not bind are sent back unchanged.
//
// # Queries and pagination
//
// QueryParams expresses page, limit, with, query, filter[...] and order[...]
// parameters. List endpoints return one page; PaginationIterator and
// FetchAllPages walk pages until amoCRM answers with an empty page or
// 204 No Content.
//
//	params := amocrm.NewQueryParams().WithLimit(250).WithStatus(pipelineID, statusID)
//	leads, err := amocrm.FetchAllPages(ctx, cli.Leads(), "/leads", params, nil)
//
// # Errors
//
// Error responses decode into APIError. Helpers such as IsNotFound,
// IsUnauthorized, IsForbidden, IsTooManyRequests and IsValidation branch on
// the common cases.
//
// # Interceptors and caching
//
// Config.Interceptors runs request and response hooks around every call;
// logging, rate limiting, metrics, and circuit breaking hooks are provided.
// Config.Cache stores pipelines, custom field definitions and users, either
// in memory or in a NATS KV bucket shared between processes.
package amocrm
