package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/intake/internal/intake"
	"github.com/mesh-intelligence/intake/internal/rows"
	"github.com/mesh-intelligence/intake/pkg/types"
)

func sectionNames() string {
	names := make([]string, len(rows.All))
	for i, s := range rows.All {
		names[i] = s.Name
	}
	return strings.Join(names, ", ")
}

func (a *app) rowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "row",
		Short: "Add, edit, delete, or list rows of a record section",
		Long: fmt.Sprintf(`Row edits one table section of a stored record and saves the whole record.

Sections: %s

Example:
  intake row add A001 loans --set "Kde som si požičal?=banka" --set "Koľko ešte dlžím?=1200"
  intake row edit A001 loans --id UV1700000000000001 --set "Koľko ešte dlžím?=900"
  intake row delete A001 loans --id UV1700000000000001`, sectionNames()),
	}
	cmd.AddCommand(a.rowAddCmd(), a.rowEditCmd(), a.rowDeleteCmd(), a.rowListCmd())
	return cmd
}

// rowContext is a loaded record with its session, ready for one
// transition.
type rowContext struct {
	cid     string
	section rows.Section
	record  types.FormRecord
	session *rows.Session
	svc     *intake.Service
}

// openRows loads cid and its row tables. A missing record starts empty
// when allowMissing is set.
func (a *app) openRows(ctx context.Context, cid, sectionName string, allowMissing bool) (*rowContext, error) {
	section, ok := rows.Lookup(sectionName)
	if !ok {
		return nil, fmt.Errorf("unknown section %q (valid: %s)", sectionName, sectionNames())
	}
	svc, err := a.service(ctx)
	if err != nil {
		return nil, err
	}

	cid = strings.TrimSpace(cid)
	record := types.FormRecord{}
	loaded, err := svc.Load(ctx, cid)
	switch {
	case err == nil:
		record = loaded.Record
	case errors.Is(err, types.ErrNotFound) && allowMissing:
	case errors.Is(err, types.ErrDecode):
		return nil, fmt.Errorf("%w; run 'intake repair %s' first", err, cid)
	default:
		return nil, err
	}

	s := rows.NewSession()
	s.Apply(record)
	return &rowContext{cid: cid, section: section, record: record, session: s, svc: svc}, nil
}

// save writes the session back into the record and saves it.
func (rc *rowContext) save(ctx context.Context) (types.SaveOutcome, error) {
	outcome, err := rc.svc.Save(ctx, rc.cid, rc.session.Export(rc.record))
	if err != nil {
		return "", fmt.Errorf("auto-save failed: %w", err)
	}
	return outcome, nil
}

// parseFields turns key=value pairs into row fields. Values of number
// fields must parse as numbers; a comma is accepted as decimal separator.
func parseFields(section rows.Section, pairs []string) (types.RowRecord, error) {
	known := make(map[string]bool)
	for _, f := range section.TextFields {
		known[f] = true
	}
	for _, f := range section.NumberFields {
		known[f] = true
	}

	fields := make(types.RowRecord, len(pairs))
	for _, p := range pairs {
		key, val, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set %q: want key=value", p)
		}
		key = strings.TrimSpace(key)
		if !known[key] {
			return nil, fmt.Errorf("unknown field %q for section %s", key, section.Name)
		}
		if !section.IsNumber(key) {
			fields[key] = val
			continue
		}
		n, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(val), ",", "."), 64)
		if err != nil {
			return nil, fmt.Errorf("field %q needs a number, got %q", key, val)
		}
		fields[key] = n
	}
	return fields, nil
}

// selectionError turns a non-applied selection result into a user error.
func selectionError(res rows.Result, id string) error {
	if res == rows.NoSelection {
		return fmt.Errorf("%s: no row with ID %q", res, id)
	}
	return fmt.Errorf("%s", res)
}

func (a *app) printRowResult(cmd *cobra.Command, action, id string, outcome types.SaveOutcome) error {
	if a.jsonMode {
		return writeJSON(cmd.OutOrStdout(), map[string]string{
			"action":  action,
			"id":      id,
			"outcome": string(outcome),
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", action, id, outcome)
	return nil
}

func (a *app) rowAddCmd() *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "add <cid> <section>",
		Short: "Append a row with a fresh ID",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rc, err := a.openRows(ctx, args[0], args[1], true)
			if err != nil {
				return err
			}
			fields, err := parseFields(rc.section, sets)
			if err != nil {
				return err
			}

			t := rows.Add(rc.session.Table(rc.section), rc.section, rc.session.Generator(rc.section))
			id := t[len(t)-1].ID()
			if len(fields) > 0 {
				t, _ = rows.Edit(rows.Select(t, id), fields)
			}
			rc.session.Set(rc.section, t)

			outcome, err := rc.save(ctx)
			if err != nil {
				return err
			}
			return a.printRowResult(cmd, "added", id, outcome)
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field value as key=value (repeatable)")
	return cmd
}

func (a *app) rowEditCmd() *cobra.Command {
	var (
		id   string
		sets []string
	)
	cmd := &cobra.Command{
		Use:   "edit <cid> <section>",
		Short: "Overwrite fields of the row with --id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rc, err := a.openRows(ctx, args[0], args[1], false)
			if err != nil {
				return err
			}
			fields, err := parseFields(rc.section, sets)
			if err != nil {
				return err
			}

			t, res := rows.Edit(rows.Select(rc.session.Table(rc.section), id), fields)
			if res != rows.Applied {
				return selectionError(res, id)
			}
			rc.session.Set(rc.section, t)

			outcome, err := rc.save(ctx)
			if err != nil {
				return err
			}
			return a.printRowResult(cmd, "edited", id, outcome)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "ID of the row to edit")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field value as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func (a *app) rowDeleteCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "delete <cid> <section>",
		Short: "Remove the row with --id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rc, err := a.openRows(ctx, args[0], args[1], false)
			if err != nil {
				return err
			}

			t, res := rows.Delete(rows.Select(rc.session.Table(rc.section), id))
			if res != rows.Applied {
				return selectionError(res, id)
			}
			rc.session.Set(rc.section, t)

			outcome, err := rc.save(ctx)
			if err != nil {
				return err
			}
			return a.printRowResult(cmd, "deleted", id, outcome)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "ID of the row to delete")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func (a *app) rowListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <cid> <section>",
		Short: "Print the rows of a section with their total",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := a.openRows(cmd.Context(), args[0], args[1], false)
			if err != nil {
				return err
			}
			t := rc.session.Table(rc.section)
			total := rows.Total(t, rc.section)

			if a.jsonMode {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"section": rc.section.Name,
					"rows":    t,
					"total":   total,
				})
			}

			out := cmd.OutOrStdout()
			if len(t) == 0 {
				fmt.Fprintf(out, "No rows in %s.\n", rc.section.Name)
				return nil
			}
			cols := append(append([]string{types.IDKey}, rc.section.TextFields...), rc.section.NumberFields...)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, strings.Join(cols, "\t"))
			for _, r := range t {
				vals := make([]string, len(cols))
				for i, c := range cols {
					vals[i] = fmt.Sprint(r[c])
				}
				fmt.Fprintln(w, strings.Join(vals, "\t"))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "Total: %.2f\n", total)
			return nil
		},
	}
}
