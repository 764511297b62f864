package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/fivetwenty-io/amocrm/internal/constants"
	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// ListOptions holds the paging and search options shared by list commands.
type ListOptions struct {
	AllPages bool
	Page     int
	PerPage  int
	Query    string
}

func (o ListOptions) params() *amocrm.QueryParams {
	params := amocrm.NewQueryParams()
	if o.Page > 0 {
		params.WithPage(o.Page)
	}

	if o.PerPage > 0 {
		params.WithLimit(o.PerPage)
	}

	if o.Query != "" {
		params.WithQuery(o.Query)
	}

	return params
}

func addListFlags(cmd *cobra.Command, opts *ListOptions) {
	cmd.Flags().BoolVar(&opts.AllPages, "all", false, "fetch all pages")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.PerPage, "per-page", constants.DefaultPageSize, "results per page")
	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "full-text search")
}

// fetchRecords lists one page, or every page with --all.
func fetchRecords[R any](ctx context.Context, client amocrm.RecordsClient[R], opts ListOptions, params *amocrm.QueryParams) ([]R, error) {
	if opts.AllPages {
		return client.ListAll(ctx, params)
	}

	list, err := client.List(ctx, params)
	if err != nil {
		return nil, err
	}

	return list.Items(), nil
}

// pipelineIndex resolves pipeline and status names of leads.
type pipelineIndex map[int]amocrm.Pipeline

func newPipelineIndex(pipelines []amocrm.Pipeline) pipelineIndex {
	index := make(pipelineIndex, len(pipelines))
	for _, pipeline := range pipelines {
		index[pipeline.ID] = pipeline
	}

	return index
}

func (idx pipelineIndex) pipelineName(id int) string {
	pipeline, ok := idx[id]
	if !ok {
		return strconv.Itoa(id)
	}

	return pipeline.Name
}

func (idx pipelineIndex) status(pipelineID, statusID int) *amocrm.Status {
	pipeline, ok := idx[pipelineID]
	if !ok {
		return nil
	}

	status, _ := pipeline.Status(statusID)

	return status
}

// NewLeadsCommand creates the leads command group.
func NewLeadsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "leads",
		Aliases: []string{"lead", "deals"},
		Short:   "Inspect leads",
		Long:    "List leads and display a lead with its contacts and custom fields",
	}

	cmd.AddCommand(newLeadsListCommand())
	cmd.AddCommand(newLeadsGetCommand())
	cmd.AddCommand(newLeadsLinksCommand())

	return cmd
}

// LeadsListOptions holds the options for listing leads.
type LeadsListOptions struct {
	ListOptions

	PipelineID int
}

func newLeadsListCommand() *cobra.Command {
	var opts LeadsListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List leads",
		Long:  "List leads with their pipeline, status and price",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			return runLeadsList(cmd.Context(), cmd.OutOrStdout(), session.Client, opts)
		},
	}

	addListFlags(cmd, &opts.ListOptions)
	cmd.Flags().IntVar(&opts.PipelineID, "pipeline", 0, "only leads of this pipeline")

	return cmd
}

func runLeadsList(ctx context.Context, w io.Writer, client amocrm.Client, opts LeadsListOptions) error {
	params := opts.params()
	if opts.PipelineID > 0 {
		params.WithFilter("pipeline_id", strconv.Itoa(opts.PipelineID))
	}

	var (
		leads     []amocrm.Lead
		pipelines []amocrm.Pipeline
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		leads, err = fetchRecords[amocrm.Lead](gctx, client.Leads(), opts.ListOptions, params)
		if err != nil {
			return fmt.Errorf("failed to list leads: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		var err error

		pipelines, err = client.Pipelines().List(gctx)
		if err != nil {
			return fmt.Errorf("failed to list pipelines: %w", err)
		}

		return nil
	})

	err := g.Wait()
	if err != nil {
		return err
	}

	index := newPipelineIndex(pipelines)

	return outputResult(w, leads, func() error {
		if len(leads) == 0 {
			_, _ = fmt.Fprintln(w, "No leads found")

			return nil
		}

		table := newTable(w, "ID", "Name", "Price", "Pipeline", "Status", "Updated")

		for _, lead := range leads {
			_ = table.Append([]string{
				strconv.Itoa(lead.ID),
				truncate(lead.Name, constants.StringTruncationLength),
				formatPrice(lead.Price),
				index.pipelineName(lead.PipelineID),
				formatStatus(index.status(lead.PipelineID, lead.StatusID)),
				formatTimestamp(lead.UpdatedAt),
			})
		}

		return renderTable(table)
	})
}

// LeadDetails is a lead together with its linked contacts.
type LeadDetails struct {
	Lead     *amocrm.Lead     `json:"lead"               yaml:"lead"`
	Contacts []amocrm.Contact `json:"contacts,omitempty" yaml:"contacts,omitempty"`
}

func newLeadsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get LEAD_ID",
		Short: "Get lead details",
		Long:  "Display a lead with its status, contacts and custom fields",
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

			return runLeadsGet(cmd.Context(), cmd.OutOrStdout(), session.Client, id)
		},
	}
}

func runLeadsGet(ctx context.Context, w io.Writer, client amocrm.Client, id int) error {
	lead, err := client.Leads().Get(ctx, id, nil)
	if err != nil {
		return fmt.Errorf("failed to get lead: %w", err)
	}

	var pipeline *amocrm.Pipeline

	refs := lead.Contacts()
	contacts := make([]amocrm.Contact, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.DefaultConcurrencyLimit)

	g.Go(func() error {
		var err error

		pipeline, err = client.Pipelines().Get(gctx, lead.PipelineID)
		if err != nil {
			return fmt.Errorf("failed to get pipeline: %w", err)
		}

		return nil
	})

	for i, ref := range refs {
		g.Go(func() error {
			contact, err := client.Contacts().Get(gctx, ref.ID, nil)
			if err != nil {
				return fmt.Errorf("failed to get contact %d: %w", ref.ID, err)
			}

			contacts[i] = *contact

			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		return err
	}

	details := LeadDetails{Lead: lead, Contacts: contacts}

	return outputResult(w, details, func() error {
		return displayLeadTable(w, lead, pipeline, contacts)
	})
}

func displayLeadTable(w io.Writer, lead *amocrm.Lead, pipeline *amocrm.Pipeline, contacts []amocrm.Contact) error {
	var status *amocrm.Status
	if pipeline != nil {
		status, _ = pipeline.Status(lead.StatusID)
	}

	pipelineName := strconv.Itoa(lead.PipelineID)
	if pipeline != nil {
		pipelineName = pipeline.Name
	}

	table := newTable(w, "Property", "Value")
	_ = table.Append([]string{"ID", strconv.Itoa(lead.ID)})
	_ = table.Append([]string{"Name", lead.Name})
	_ = table.Append([]string{"Price", formatPrice(lead.Price)})
	_ = table.Append([]string{"Pipeline", pipelineName})
	_ = table.Append([]string{"Status", formatStatus(status)})
	_ = table.Append([]string{"Responsible User", strconv.Itoa(lead.ResponsibleUserID)})
	_ = table.Append([]string{"Created", formatTimestamp(lead.CreatedAt)})
	_ = table.Append([]string{"Updated", formatTimestamp(lead.UpdatedAt)})

	if lead.ClosedAt != 0 {
		_ = table.Append([]string{"Closed", formatTimestamp(lead.ClosedAt)})
	}

	if reason := lead.LossReason(); reason != nil {
		_ = table.Append([]string{"Loss Reason", reason.Name})
	}

	if tags := lead.Tags(); len(tags) > 0 {
		_ = table.Append([]string{"Tags", formatTags(tags)})
	}

	if refs := lead.Contacts(); len(refs) > 0 {
		_ = table.Append([]string{"Contacts", formatRefs(refs)})
	}

	err := renderTable(table)
	if err != nil {
		return err
	}

	if len(contacts) > 0 {
		_, _ = fmt.Fprintln(w, "\nContacts:")

		err = displayContactsTable(w, contacts)
		if err != nil {
			return err
		}
	}

	return renderCustomFields(w, lead.CustomFieldsValues)
}

func newLeadsLinksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "links LEAD_ID",
		Short: "List lead links",
		Long:  "List the entities linked to a lead",
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

			links, err := session.Client.Leads().Links(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to list lead links: %w", err)
			}

			return outputLinks(cmd.OutOrStdout(), links)
		},
	}
}

func outputLinks(w io.Writer, links []amocrm.EntityLink) error {
	return outputResult(w, links, func() error {
		if len(links) == 0 {
			_, _ = fmt.Fprintln(w, "No links found")

			return nil
		}

		table := newTable(w, "Entity", "ID", "Main")

		for _, link := range links {
			isMain := ""
			if link.Metadata != nil && link.Metadata.MainContact != nil {
				isMain = formatBool(*link.Metadata.MainContact)
			}

			_ = table.Append([]string{string(link.ToEntityType), strconv.Itoa(link.ToEntityID), isMain})
		}

		return renderTable(table)
	})
}
