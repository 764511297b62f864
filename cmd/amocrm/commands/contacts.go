package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fivetwenty-io/amocrm/internal/constants"
	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
	"github.com/fivetwenty-io/amocrm/pkg/fields"
	"github.com/spf13/cobra"
)

// NewContactsCommand creates the contacts command group.
func NewContactsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "contacts",
		Aliases: []string{"contact"},
		Short:   "Inspect contacts",
		Long:    "List contacts and display a contact with its phones, emails and custom fields",
	}

	cmd.AddCommand(newContactsListCommand())
	cmd.AddCommand(newContactsGetCommand())

	return cmd
}

func newContactsListCommand() *cobra.Command {
	var opts ListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contacts",
		Long:  "List contacts with their phones and emails",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			return runContactsList(cmd.Context(), cmd.OutOrStdout(), session.Client, opts)
		},
	}

	addListFlags(cmd, &opts)

	return cmd
}

func runContactsList(ctx context.Context, w io.Writer, client amocrm.Client, opts ListOptions) error {
	contacts, err := fetchRecords[amocrm.Contact](ctx, client.Contacts(), opts, opts.params())
	if err != nil {
		return fmt.Errorf("failed to list contacts: %w", err)
	}

	return outputResult(w, contacts, func() error {
		if len(contacts) == 0 {
			_, _ = fmt.Fprintln(w, "No contacts found")

			return nil
		}

		return displayContactsTable(w, contacts)
	})
}

func displayContactsTable(w io.Writer, contacts []amocrm.Contact) error {
	table := newTable(w, "ID", "Name", "Phone", "Email", "Updated")

	for _, contact := range contacts {
		_ = table.Append([]string{
			strconv.Itoa(contact.ID),
			truncate(contact.Name, constants.StringTruncationLength),
			joinValues(contact.Phone),
			joinValues(contact.Email),
			formatTimestamp(contact.UpdatedAt),
		})
	}

	return renderTable(table)
}

func newContactsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get CONTACT_ID",
		Short: "Get contact details",
		Long:  "Display a contact with its linked leads and custom fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			session, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			return runContactsGet(cmd.Context(), cmd.OutOrStdout(), session.Client, id)
		},
	}
}

func runContactsGet(ctx context.Context, w io.Writer, client amocrm.Client, id int) error {
	contact, err := client.Contacts().Get(ctx, id, nil)
	if err != nil {
		return fmt.Errorf("failed to get contact: %w", err)
	}

	return outputResult(w, contact, func() error {
		table := newTable(w, "Property", "Value")
		_ = table.Append([]string{"ID", strconv.Itoa(contact.ID)})
		_ = table.Append([]string{"Name", contact.Name})
		_ = table.Append([]string{"First Name", contact.FirstName})
		_ = table.Append([]string{"Last Name", contact.LastName})
		_ = table.Append([]string{"Phone", joinValues(contact.Phone)})
		_ = table.Append([]string{"Email", joinValues(contact.Email)})
		_ = table.Append([]string{"Responsible User", strconv.Itoa(contact.ResponsibleUserID)})
		_ = table.Append([]string{"Created", formatTimestamp(contact.CreatedAt)})
		_ = table.Append([]string{"Updated", formatTimestamp(contact.UpdatedAt)})

		if refs := contact.Leads(); len(refs) > 0 {
			_ = table.Append([]string{"Leads", formatRefs(refs)})
		}

		if tags := contact.Tags(); len(tags) > 0 {
			_ = table.Append([]string{"Tags", formatTags(tags)})
		}

		err := renderTable(table)
		if err != nil {
			return err
		}

		return renderCustomFields(w, contact.CustomFieldsValues)
	})
}

func joinValues(values []fields.Value) string {
	parts := make([]string, 0, len(values))
	for _, value := range values {
		parts = append(parts, formatFieldValue(fields.TypeMultiText, value))
	}

	return strings.Join(parts, ", ")
}
