package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fivetwenty-io/amocrm/internal/constants"
	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
	"github.com/spf13/cobra"
)

// NewCustomFieldsCommand creates the custom-fields command group.
func NewCustomFieldsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "custom-fields",
		Aliases: []string{"custom-field", "cf"},
		Short:   "Inspect custom field definitions",
		Long:    "List the custom fields configured for leads, contacts, companies or customers",
	}

	cmd.AddCommand(newCustomFieldsListCommand())
	cmd.AddCommand(newCustomFieldsGetCommand())

	return cmd
}

func newCustomFieldsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [ENTITY]",
		Short: "List custom fields",
		Long:  "List the custom fields of an entity type (leads by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity := amocrm.EntityLeads

			if len(args) == 1 {
				var err error

				entity, err = parseEntity(args[0])
				if err != nil {
					return err
				}
			}

			session, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			return runCustomFieldsList(cmd.Context(), cmd.OutOrStdout(), session.Client, entity)
		},
	}
}

func runCustomFieldsList(ctx context.Context, w io.Writer, client amocrm.Client, entity amocrm.EntityType) error {
	definitions, err := client.CustomFields().ListAll(ctx, entity)
	if err != nil {
		return fmt.Errorf("failed to list custom fields: %w", err)
	}

	return outputResult(w, definitions, func() error {
		if len(definitions) == 0 {
			_, _ = fmt.Fprintf(w, "No custom fields found for %s\n", entity)

			return nil
		}

		table := newTable(w, "ID", "Name", "Code", "Type", "Options")

		for _, definition := range definitions {
			_ = table.Append([]string{
				strconv.Itoa(definition.ID),
				definition.Name,
				definition.Code,
				formatFieldType(definition.Type),
				truncate(enumLabels(definition.Enums), constants.StringTruncationLength),
			})
		}

		return renderTable(table)
	})
}

func newCustomFieldsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get ENTITY FIELD_ID",
		Short: "Get custom field details",
		Long:  "Display a custom field definition and its options",
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := parseEntity(args[0])
			if err != nil {
				return err
			}

			id, err := parseID(args[1])
			if err != nil {
				return err
			}

			session, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			definition, err := session.Client.CustomFields().Get(cmd.Context(), entity, id)
			if err != nil {
				return fmt.Errorf("failed to get custom field: %w", err)
			}

			return outputCustomField(cmd.OutOrStdout(), definition)
		},
	}
}

func outputCustomField(w io.Writer, definition *amocrm.CustomFieldDefinition) error {
	return outputResult(w, definition, func() error {
		table := newTable(w, "Property", "Value")
		_ = table.Append([]string{"ID", strconv.Itoa(definition.ID)})
		_ = table.Append([]string{"Name", definition.Name})
		_ = table.Append([]string{"Code", definition.Code})
		_ = table.Append([]string{"Type", formatFieldType(definition.Type)})
		_ = table.Append([]string{"Key", definition.Key().String()})
		_ = table.Append([]string{"API Only", formatBool(definition.IsAPIOnly)})
		_ = table.Append([]string{"Predefined", formatBool(definition.IsPredefined)})

		err := renderTable(table)
		if err != nil {
			return err
		}

		if len(definition.Enums) == 0 {
			return nil
		}

		_, _ = fmt.Fprintln(w, "\nOptions:")

		enums := newTable(w, "Enum ID", "Value", "Code", "Sort")
		for _, enum := range definition.Enums {
			_ = enums.Append([]string{strconv.Itoa(enum.ID), enum.Value, enum.Code, strconv.Itoa(enum.Sort)})
		}

		return renderTable(enums)
	})
}

func enumLabels(enums []amocrm.CustomFieldEnum) string {
	labels := make([]string, 0, len(enums))
	for _, enum := range enums {
		labels = append(labels, enum.Value)
	}

	return strings.Join(labels, ", ")
}
