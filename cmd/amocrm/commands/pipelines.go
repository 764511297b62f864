package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
	"github.com/spf13/cobra"
)

// NewPipelinesCommand creates the pipelines command group.
func NewPipelinesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pipelines",
		Aliases: []string{"pipeline"},
		Short:   "Inspect lead pipelines",
		Long:    "List lead pipelines and their statuses",
	}

	cmd.AddCommand(newPipelinesListCommand())
	cmd.AddCommand(newPipelinesGetCommand())
	cmd.AddCommand(newPipelinesStatusesCommand())

	return cmd
}

func newPipelinesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pipelines",
		Long:  "List all lead pipelines of the account",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			return runPipelinesList(cmd.Context(), cmd.OutOrStdout(), session.Client)
		},
	}
}

func runPipelinesList(ctx context.Context, w io.Writer, client amocrm.Client) error {
	pipelines, err := client.Pipelines().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pipelines: %w", err)
	}

	return outputResult(w, pipelines, func() error {
		table := newTable(w, "ID", "Name", "Main", "Archived", "Statuses")

		for _, pipeline := range pipelines {
			_ = table.Append([]string{
				strconv.Itoa(pipeline.ID),
				pipeline.Name,
				formatBool(pipeline.IsMain),
				formatBool(pipeline.IsArchive),
				strconv.Itoa(len(pipeline.Statuses())),
			})
		}

		return renderTable(table)
	})
}

func newPipelinesGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get PIPELINE_ID",
		Short: "Get pipeline details",
		Long:  "Display a pipeline and its statuses",
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

			pipeline, err := session.Client.Pipelines().Get(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to get pipeline: %w", err)
			}

			w := cmd.OutOrStdout()

			return outputResult(w, pipeline, func() error {
				table := newTable(w, "Property", "Value")
				_ = table.Append([]string{"ID", strconv.Itoa(pipeline.ID)})
				_ = table.Append([]string{"Name", pipeline.Name})
				_ = table.Append([]string{"Sort", strconv.Itoa(pipeline.Sort)})
				_ = table.Append([]string{"Main", formatBool(pipeline.IsMain)})
				_ = table.Append([]string{"Unsorted", formatBool(pipeline.IsUnsortedOn)})
				_ = table.Append([]string{"Archived", formatBool(pipeline.IsArchive)})

				err := renderTable(table)
				if err != nil {
					return err
				}

				_, _ = fmt.Fprintln(w, "\nStatuses:")

				return displayStatusesTable(w, pipeline.Statuses())
			})
		},
	}
}

func newPipelinesStatusesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "statuses PIPELINE_ID",
		Short: "List pipeline statuses",
		Long:  "List the statuses of a pipeline in sort order",
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

			statuses, err := session.Client.Pipelines().ListStatuses(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to list statuses: %w", err)
			}

			w := cmd.OutOrStdout()

			return outputResult(w, statuses, func() error {
				return displayStatusesTable(w, statuses)
			})
		},
	}
}

func displayStatusesTable(w io.Writer, statuses []amocrm.Status) error {
	table := newTable(w, "ID", "Name", "Sort", "Editable", "Closed")

	for i := range statuses {
		status := &statuses[i]
		_ = table.Append([]string{
			strconv.Itoa(status.ID),
			formatStatus(status),
			strconv.Itoa(status.Sort),
			formatBool(status.IsEditable),
			formatBool(status.IsClosed()),
		})
	}

	return renderTable(table)
}
