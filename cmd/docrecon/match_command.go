package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/docrecon/docrecon/internal/domain"
	"github.com/docrecon/docrecon/internal/usecase"
)

type matchOptions struct {
	input   string
	source  string
	orderNo string
	vendor  string
	commit  bool
	json    bool
}

func newMatchCommand(ctx *commandContext) *cobra.Command {
	opts := &matchOptions{}

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Classify extracted line items from a JSON file",
		Long: `Classify extracted line items against the master catalog or purchase
order history. The input is a JSON array of item objects, or an object with
an "items" array. With --commit, eligible items are written: to the catalog,
or as a new purchase order when --source purchase_orders is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(cmd, ctx, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "JSON file with extracted items (- for stdin)")
	cmd.Flags().StringVar(&opts.source, "source", "catalog", "Reference set: catalog or purchase_orders")
	cmd.Flags().StringVar(&opts.orderNo, "order", "", "Purchase order number (limits matching, or names the order to save)")
	cmd.Flags().StringVar(&opts.vendor, "vendor", "", "Vendor recorded with a committed purchase order")
	cmd.Flags().BoolVar(&opts.commit, "commit", false, "Write eligible items after matching")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the result as JSON")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runMatch(cmd *cobra.Command, ctx *commandContext, opts *matchOptions) error {
	source, err := usecase.ParseSource(opts.source)
	if err != nil {
		return err
	}

	raw, err := readItems(cmd, opts.input)
	if err != nil {
		return err
	}

	a, err := ctx.ensureApp(cmd.Context())
	if err != nil {
		return err
	}
	items := a.Service.Normalizer().Normalize(raw)

	var (
		result *usecase.ReconcileResult
		commit *domain.CommitResult
	)
	switch {
	case !opts.commit:
		result, err = a.Service.Reconcile(cmd.Context(), &usecase.ReconcileRequest{
			Items:   items,
			Source:  source,
			OrderNo: opts.orderNo,
		})
	case source == usecase.SourcePurchaseOrders:
		result, commit, err = a.Service.SavePurchaseOrder(cmd.Context(), &domain.PurchaseOrder{
			OrderNo:    opts.orderNo,
			Vendor:     opts.vendor,
			SourceFile: opts.input,
		}, items)
	default:
		result, commit, err = a.Service.CommitToCatalog(cmd.Context(), items)
	}
	if err != nil {
		return err
	}

	if opts.json {
		return writeJSON(cmd, struct {
			*usecase.ReconcileResult
			Commit *domain.CommitResult `json:"commit,omitempty"`
		}{result, commit})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderVerdicts(result.Items))
	printSummary(out, result, commit)
	return nil
}

func readItems(cmd *cobra.Command, path string) ([]map[string]any, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	var items []map[string]any
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}

	var wrapped struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: input must be a JSON array of items or an object with an items array", domain.ErrInvalidRequest)
	}
	return wrapped.Items, nil
}

func renderVerdicts(items []domain.AnnotatedItem) string {
	headers := []string{"#", "Item Code", "Description", "Status", "Confidence", "Method", "Matched"}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft}

	rows := make([][]string, 0, len(items))
	for i, a := range items {
		matched := ""
		if a.Verdict.MatchedItem != nil {
			matched = a.Verdict.MatchedItem.Key
			if matched == "" {
				matched = a.Verdict.MatchedItem.Description
			}
		}
		description := a.Item.Description
		if a.Item.Malformed {
			description = "(" + a.Item.Problem + ")"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			a.Item.Key,
			description,
			string(a.Verdict.Status),
			strconv.FormatFloat(a.Verdict.Confidence, 'f', 2, 64),
			string(a.Verdict.Method),
			matched,
		})
	}
	return renderTable(headers, rows, aligns)
}

func printSummary(out io.Writer, result *usecase.ReconcileResult, commit *domain.CommitResult) {
	summary := result.Plan.Summary
	fmt.Fprintf(out, "Run %s: %d items, %d eligible, %d already exist, %d duplicated in batch\n",
		result.RunID, summary.Total, summary.Eligible, summary.SkippedExisting, summary.SkippedDuplicate)
	if len(result.DuplicateKeys) > 0 {
		fmt.Fprintf(out, "Warning: reference set has duplicate keys: %v\n", result.DuplicateKeys)
	}
	if commit == nil {
		return
	}
	fmt.Fprintf(out, "Inserted %d, skipped %d", commit.Summary.Inserted, len(commit.Skipped))
	if commit.RefreshSignalled {
		fmt.Fprint(out, ", embedding refresh signalled")
	}
	fmt.Fprintln(out)
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
