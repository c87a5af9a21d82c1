package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/garyjia/approval-workflow/internal/application/workflow"
	"github.com/garyjia/approval-workflow/internal/container"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// documentView is the JSON shape printed by show and apply
type documentView struct {
	*entity.WorkflowDocument
	Terminal  bool             `json:"terminal"`
	Permitted []domainwf.State `json:"permitted,omitempty"`
}

type createOptions struct {
	outputJSON bool
}

func (a *App) newCreateCmd() *cobra.Command {
	opts := &createOptions{}

	cmd := &cobra.Command{
		Use:   "create <document-type> <document-id>",
		Short: "Register a document at its initial state",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd.Context(), func(c *container.Container) error {
				doc, err := workflow.CreateDocument(cmd.Context(), c.Registry(), c.Documents(),
					domainwf.DocumentType(args[0]), args[1])
				if err != nil {
					return err
				}
				return a.printDocument(c, doc, nil, opts.outputJSON)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.outputJSON, "json", false, "Output as JSON")

	return cmd
}

type showOptions struct {
	role       string
	outputJSON bool
}

func (a *App) newShowCmd() *cobra.Command {
	opts := &showOptions{}

	cmd := &cobra.Command{
		Use:   "show <document-type> <document-id>",
		Short: "Show a document's state and version",
		Long: `Show a document's current state and version. With --role the states
that role may request next are listed as well.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd.Context(), func(c *container.Container) error {
				engine := c.WorkflowEngine()
				docType := domainwf.DocumentType(args[0])

				doc, err := engine.GetDocument(cmd.Context(), docType, args[1])
				if err != nil {
					return err
				}

				var permitted []domainwf.State
				if opts.role != "" {
					permitted, err = engine.PermittedTransitions(cmd.Context(), docType, args[1], domainwf.Role(opts.role))
					if err != nil {
						return err
					}
				}
				return a.printDocument(c, doc, permitted, opts.outputJSON)
			})
		},
	}

	cmd.Flags().StringVar(&opts.role, "role", "", "List the transitions this role may request")
	cmd.Flags().BoolVar(&opts.outputJSON, "json", false, "Output as JSON")

	return cmd
}

type applyOptions struct {
	toState    string
	actorID    string
	role       string
	version    int64
	guard      string
	outputJSON bool
}

func (a *App) newApplyCmd() *cobra.Command {
	opts := &applyOptions{version: -1}

	cmd := &cobra.Command{
		Use:   "apply <document-type> <document-id>",
		Short: "Apply a transition to a document",
		Long: `Apply a transition through the workflow engine. The request is checked
against the transition table and the document version, and every attempt
is written to the audit log.

Examples:
  # Approve a payment request at version 0
  workflowctl apply payment_request PR-1 --to approved --actor hr-7 --role hr --version 0

  # Reject a vendor invoice with the admin comment guard satisfied
  workflowctl apply vendor_invoice INV-9 --to rejected --actor admin-1 --role admin --version 2 --guard true`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request(args)
			if err != nil {
				return err
			}
			return a.withContainer(cmd.Context(), func(c *container.Container) error {
				doc, err := c.WorkflowEngine().Apply(cmd.Context(), req)
				if err != nil {
					return fmt.Errorf("transition rejected (%s): %w", domainwf.ReasonOf(err), err)
				}
				return a.printDocument(c, doc, nil, opts.outputJSON)
			})
		},
	}

	cmd.Flags().StringVar(&opts.toState, "to", "", "Target state (required)")
	cmd.Flags().StringVar(&opts.actorID, "actor", "", "Acting user id (required)")
	cmd.Flags().StringVar(&opts.role, "role", "", "Acting role (required)")
	cmd.Flags().Int64Var(&opts.version, "version", -1, "Expected document version (required)")
	cmd.Flags().StringVar(&opts.guard, "guard", "", "Business guard outcome: true or false")
	cmd.Flags().BoolVar(&opts.outputJSON, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("actor")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("version")

	return cmd
}

func (o *applyOptions) request(args []string) (workflow.ApplyRequest, error) {
	req := workflow.ApplyRequest{
		DocumentType:    domainwf.DocumentType(args[0]),
		DocumentID:      args[1],
		ToState:         domainwf.State(o.toState),
		ActorID:         o.actorID,
		ActorRole:       domainwf.Role(o.role),
		ExpectedVersion: o.version,
	}

	if o.version < 0 {
		return req, fmt.Errorf("--version must be zero or greater")
	}
	if strings.TrimSpace(o.actorID) == "" {
		return req, fmt.Errorf("--actor must not be blank")
	}

	if o.guard != "" {
		v, err := strconv.ParseBool(o.guard)
		if err != nil {
			return req, fmt.Errorf("invalid --guard value %q: %w", o.guard, err)
		}
		req.GuardResult = &v
	}

	return req, nil
}

func (a *App) printDocument(c *container.Container, doc *entity.WorkflowDocument, permitted []domainwf.State, asJSON bool) error {
	view := documentView{
		WorkflowDocument: doc,
		Terminal:         c.Registry().IsTerminal(doc.DocumentType, doc.CurrentState),
		Permitted:        permitted,
	}

	if asJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}

	fmt.Fprintf(a.stdout, "Document: %s\n", doc.Key())
	fmt.Fprintf(a.stdout, "State:    %s\n", doc.CurrentState)
	fmt.Fprintf(a.stdout, "Version:  %d\n", doc.Version)
	if view.Terminal {
		fmt.Fprintln(a.stdout, "Terminal: yes")
	}
	if permitted != nil {
		names := make([]string, 0, len(permitted))
		for _, s := range permitted {
			names = append(names, s.String())
		}
		if len(names) == 0 {
			names = append(names, "(none)")
		}
		fmt.Fprintf(a.stdout, "Next:     %s\n", strings.Join(names, ", "))
	}
	return nil
}
