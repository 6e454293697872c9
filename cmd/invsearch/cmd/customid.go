package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/invsearch/internal/customid"
	apperr "github.com/Aman-CERP/invsearch/internal/errors"
	"github.com/Aman-CERP/invsearch/internal/store"
)

func newCustomIDCmd(opts *globalOptions) *cobra.Command {
	var inventory string

	cmd := &cobra.Command{
		Use:   "customid",
		Short: "Inspect an inventory's custom ID template",
		Long: `Inspect the custom ID template of an inventory: its elements, the
pattern that validates IDs and a preview of the next ID.

Neither subcommand advances the inventory's sequence.`,
	}
	cmd.PersistentFlags().StringVarP(&inventory, "inventory", "i", "", "Inventory ID (required)")
	_ = cmd.MarkPersistentFlagRequired("inventory")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the template, its pattern and the next ID",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runCustomIDShow(cmd.Context(), cmd, opts, inventory)
			},
		},
		&cobra.Command{
			Use:     "validate <custom-id>",
			Short:   "Check a custom ID against the template",
			Example: `  invsearch customid validate INV-0042 --inventory 6ba7b810-9dad-11d1-80b4-00c04fd430c8`,
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCustomIDValidate(cmd.Context(), cmd, opts, inventory, args[0])
			},
		},
	)
	return cmd
}

func parseInventoryID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, apperr.ValidationError(fmt.Sprintf("invalid inventory id %q", s), err)
	}
	return id, nil
}

type templateView struct {
	InventoryID uuid.UUID        `json:"inventoryId"`
	Elements    []*store.Element `json:"elements"`
	Pattern     string           `json:"pattern"`
	Preview     customid.Result  `json:"preview"`
}

func runCustomIDShow(ctx context.Context, cmd *cobra.Command, opts *globalOptions, inventory string) error {
	out, err := opts.writer(cmd)
	if err != nil {
		return err
	}
	invID, err := parseInventoryID(inventory)
	if err != nil {
		return err
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	elements, err := a.ids.Elements(ctx, invID)
	if err != nil {
		return err
	}
	tmpl, err := a.ids.Template(ctx, invID)
	if err != nil {
		return err
	}
	preview, err := a.ids.Preview(ctx, invID)
	if err != nil {
		return err
	}

	view := templateView{InventoryID: invID, Elements: elements, Pattern: tmpl.Pattern(), Preview: preview}
	return out.Emit(view, func() {
		out.Header("Template")
		for _, el := range elements {
			detail := el.Text
			if el.Format != "" {
				detail = el.Format
			}
			out.Statusf("", "%d. %-10s %s", el.Position, el.Kind, detail)
		}
		out.Newline()
		out.KeyValue("pattern", view.Pattern)
		out.KeyValue("next id", preview.CustomID)
	})
}

type validateResult struct {
	CustomID       string `json:"customId"`
	Valid          bool   `json:"valid"`
	SequenceNumber *int64 `json:"sequenceNumber,omitempty"`
}

func runCustomIDValidate(ctx context.Context, cmd *cobra.Command, opts *globalOptions, inventory, candidate string) error {
	out, err := opts.writer(cmd)
	if err != nil {
		return err
	}
	invID, err := parseInventoryID(inventory)
	if err != nil {
		return err
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	seq, err := a.ids.Validate(ctx, invID, candidate)
	if err != nil && apperr.GetCode(err) != apperr.ErrCodeCustomIDMismatch {
		return err
	}
	res := validateResult{CustomID: candidate, Valid: err == nil, SequenceNumber: seq}

	emitErr := out.Emit(res, func() {
		if res.Valid {
			out.Successf("%s matches the template", candidate)
			if seq != nil {
				out.KeyValue("sequence", *seq)
			}
			return
		}
		out.Errorf("%s does not match the template", candidate)
	})
	if emitErr != nil {
		return emitErr
	}
	// A mismatch is a failed check: exit non-zero.
	return err
}
