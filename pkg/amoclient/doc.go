// Package amoclient provides the primary entry point for constructing an
// amoCRM API v4 client that implements the amocrm.Client interface.
//
// It layers configuration, HTTP transport, rate limiting and OAuth2 token
// handling on top of the resource interfaces defined in the amocrm package.
//
// Quick start
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/amocrm/pkg/amoclient"
//	  "github.com/fivetwenty-io/amocrm/pkg/amocrm"
//	  "github.com/fivetwenty-io/amocrm/pkg/fields"
//	)
//
//	type Deal struct {
//	  amocrm.Lead
//
//	  Source string `json:"-"`
//	}
//
//	var dealSchema = fields.MustSchema(
//	  func(d *Deal) *[]fields.Field { return &d.CustomFieldsValues },
//	  fields.Bind("source", fields.Text(fields.ID(123)), func(d *Deal) *string { return &d.Source }),
//	)
//
//	func example() {
//	  ctx := context.Background()
//
//	  cli, err := amoclient.NewWithToken(ctx, "example", "long-lived-token")
//	  if err != nil { log.Fatal(err) }
//
//	  deals, err := amoclient.Leads(cli, dealSchema)
//	  if err != nil { log.Fatal(err) }
//
//	  deal, err := deals.Get(ctx, 42, nil)
//	  if err != nil { log.Fatal(err) }
//
//	  deal.Source = "referral"
//	  _, err = deals.Update(ctx, deal.ID, deal)
//	}
//
// # Helpers
//
// NewWithToken and NewWithOAuth wrap New with the matching configuration.
// Leads, LeadsWithContacts and Contacts return record clients for consumer
// types; the untyped Leads() and Contacts() of amocrm.Client work on the base
// Lead and Contact.
package amoclient
