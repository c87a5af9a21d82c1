package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/garyjia/approval-workflow/internal/container"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
	"github.com/garyjia/approval-workflow/internal/infrastructure/export"
)

type historyOptions struct {
	afterSeq   int64
	actorID    string
	limit      int
	outputJSON bool
}

func (a *App) newHistoryCmd() *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history [<document-type> <document-id>]",
		Short: "List audit entries for a document or an actor",
		Long: `List audit entries oldest first. Pass a document type and id for a
document's trail, or --actor for everything one actor attempted. Use --after
with the last seq printed to continue from where a previous listing stopped.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.actorID != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd.Context(), func(c *container.Container) error {
				engine := c.WorkflowEngine()

				var (
					entries []*entity.AuditEntry
					err     error
				)
				if opts.actorID != "" {
					entries, err = engine.ListAuditByActor(cmd.Context(), opts.actorID, opts.afterSeq, opts.limit)
				} else {
					entries, err = engine.ListAudit(cmd.Context(), domainwf.DocumentType(args[0]), args[1], opts.afterSeq)
				}
				if err != nil {
					return err
				}

				if opts.outputJSON {
					if entries == nil {
						entries = []*entity.AuditEntry{}
					}
					enc := json.NewEncoder(a.stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(entries)
				}
				return writeHistory(a.stdout, entries)
			})
		},
	}

	cmd.Flags().Int64Var(&opts.afterSeq, "after", 0, "Only entries with seq greater than this cursor")
	cmd.Flags().StringVar(&opts.actorID, "actor", "", "List entries recorded for this actor")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Maximum entries for --actor (0 uses the store default)")
	cmd.Flags().BoolVar(&opts.outputJSON, "json", false, "Output as JSON")

	return cmd
}

func writeHistory(w io.Writer, entries []*entity.AuditEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No audit entries.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTIME\tDOCUMENT\tACTOR\tROLE\tFROM\tTO\tOUTCOME\tREASON")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s/%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Seq, e.Timestamp.Format("2006-01-02 15:04:05"), e.DocumentType, e.DocumentID,
			e.ActorID, e.ActorRole, e.FromState, e.ToState, e.Outcome, e.ReasonCode)
	}
	return tw.Flush()
}

type exportOptions struct {
	outPath string
}

func (a *App) newExportCmd() *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export <document-type> <document-id>",
		Short: "Export a document's audit trail as an Excel workbook",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd.Context(), func(c *container.Container) error {
				entries, err := c.WorkflowEngine().ListAudit(cmd.Context(), domainwf.DocumentType(args[0]), args[1], 0)
				if err != nil {
					return err
				}

				out := opts.outPath
				if out == "" {
					out = fmt.Sprintf("%s-%s-audit.xlsx", args[0], args[1])
				}

				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				if err := export.WriteAuditWorkbook(f, entries); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}

				fmt.Fprintf(a.stdout, "Wrote %d audit entries to %s\n", len(entries), out)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&opts.outPath, "out", "o", "", "Output file (default <type>-<id>-audit.xlsx)")

	return cmd
}
