package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
	"github.com/spf13/cobra"
)

// NewUsersCommand creates the users command group.
func NewUsersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "Inspect account users",
		Long:    "List the users of the account and display their rights",
	}

	cmd.AddCommand(newUsersListCommand())
	cmd.AddCommand(newUsersGetCommand())

	return cmd
}

func newUsersListCommand() *cobra.Command {
	var opts ListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Long:  "List the users of the account",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			return runUsersList(cmd.Context(), cmd.OutOrStdout(), session.Client, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.AllPages, "all", false, "fetch all pages")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.PerPage, "per-page", 0, "results per page")

	return cmd
}

func runUsersList(ctx context.Context, w io.Writer, client amocrm.Client, opts ListOptions) error {
	var users []amocrm.User

	if opts.AllPages {
		all, err := client.Users().ListAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		users = all
	} else {
		list, err := client.Users().List(ctx, opts.params())
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		users = list.Items()
	}

	return outputResult(w, users, func() error {
		table := newTable(w, "ID", "Name", "Email", "Admin", "Active")

		for _, user := range users {
			_ = table.Append([]string{
				strconv.Itoa(user.ID),
				user.Name,
				user.Email,
				formatBool(user.Rights.IsAdmin),
				formatBool(user.Rights.IsActive),
			})
		}

		return renderTable(table)
	})
}

func newUsersGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get USER_ID",
		Short: "Get user details",
		Long:  "Display a user and their entity rights",
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

			user, err := session.Client.Users().Get(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to get user: %w", err)
			}

			return outputUser(cmd.OutOrStdout(), user)
		},
	}
}

func outputUser(w io.Writer, user *amocrm.User) error {
	return outputResult(w, user, func() error {
		table := newTable(w, "Property", "Value")
		_ = table.Append([]string{"ID", strconv.Itoa(user.ID)})
		_ = table.Append([]string{"Name", user.Name})
		_ = table.Append([]string{"Email", user.Email})
		_ = table.Append([]string{"Language", user.Lang})
		_ = table.Append([]string{"Admin", formatBool(user.Rights.IsAdmin)})
		_ = table.Append([]string{"Active", formatBool(user.Rights.IsActive)})

		err := renderTable(table)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintln(w, "\nRights:")

		rights := newTable(w, "Entity", "View", "Edit", "Add", "Delete", "Export")
		for _, entity := range []struct {
			name   string
			rights amocrm.EntityRights
		}{
			{"leads", user.Rights.Leads},
			{"contacts", user.Rights.Contacts},
			{"companies", user.Rights.Companies},
		} {
			_ = rights.Append([]string{
				entity.name,
				entity.rights.View,
				entity.rights.Edit,
				entity.rights.Add,
				entity.rights.Delete,
				entity.rights.Export,
			})
		}

		return renderTable(rights)
	})
}
