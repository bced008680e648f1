package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/intake/internal/intake"
	"github.com/mesh-intelligence/intake/pkg/types"
)

func (a *app) saveCmd() *cobra.Command {
	var phase int64
	cmd := &cobra.Command{
		Use:   "save <cid> [file|-]",
		Short: "Save a record from a JSON file or stdin",
		Long: `Save replaces the whole record stored for CID. The record is read as a JSON
object from file, or from stdin when file is omitted or "-". Text values are
sanitized before storing.

Example:
  intake save A001 record.json
  intake save A001 --phase 2 < record.json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := "-"
			if len(args) == 2 {
				src = args[1]
			}
			record, err := readRecord(cmd.InOrStdin(), src)
			if err != nil {
				return err
			}

			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			var opts []intake.SaveOption
			if cmd.Flags().Changed("phase") {
				opts = append(opts, intake.WithPhase(phase))
			}
			outcome, err := svc.Save(cmd.Context(), args[0], record, opts...)
			if err != nil {
				return fmt.Errorf("auto-save failed: %w", err)
			}

			if a.jsonMode {
				return writeJSON(cmd.OutOrStdout(), map[string]string{
					"cid":     strings.TrimSpace(args[0]),
					"outcome": string(outcome),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), outcome)
			return nil
		},
	}
	cmd.Flags().Int64Var(&phase, "phase", 0, "phase tag stored with the record")
	return cmd
}

// readRecord decodes a JSON object from src, or from stdin when src is "-".
// Numbers are kept as json.Number.
func readRecord(stdin io.Reader, src string) (types.FormRecord, error) {
	var r io.Reader = stdin
	if src != "-" {
		f, err := os.Open(src)
		if err != nil {
			return nil, fmt.Errorf("open record: %w", err)
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var record types.FormRecord
	if err := dec.Decode(&record); err != nil {
		return nil, fmt.Errorf("parse record JSON: %w", err)
	}
	if record == nil {
		record = types.FormRecord{}
	}
	return record, nil
}

// loadedOutput is the JSON shape printed by load.
type loadedOutput struct {
	CID         string           `json:"cid"`
	LastUpdated time.Time        `json:"last_updated"`
	CreatedAt   time.Time        `json:"created_at"`
	Phase       *int64           `json:"phase,omitempty"`
	Recovered   bool             `json:"recovered,omitempty"`
	Record      types.FormRecord `json:"record"`
}

func (a *app) loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <cid>",
		Short: "Print the record stored for a CID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			cid := strings.TrimSpace(args[0])
			loaded, err := svc.Load(cmd.Context(), cid)
			if errors.Is(err, types.ErrDecode) {
				return fmt.Errorf("%w; run 'intake repair %s' to attempt recovery", err, cid)
			}
			if err != nil {
				return err
			}
			if loaded.Recovered {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: stored record has raw line breaks; run 'intake repair %s'\n", cid)
			}

			out := loadedOutput{
				CID:         loaded.CID,
				LastUpdated: loaded.LastUpdated,
				CreatedAt:   loaded.CreatedAt,
				Phase:       loaded.Phase,
				Recovered:   loaded.Recovered,
				Record:      loaded.Record,
			}
			if a.jsonMode {
				return writeJSON(cmd.OutOrStdout(), out)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "cid:          %s\n", out.CID)
			fmt.Fprintf(w, "last updated: %s\n", out.LastUpdated.Format(time.RFC3339))
			if out.Phase != nil {
				fmt.Fprintf(w, "phase:        %d\n", *out.Phase)
			}
			return writeJSON(w, out.Record)
		},
	}
}

func (a *app) repairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair <cid>",
		Short: "Rewrite a stored record as sanitized, valid JSON",
		Long: `Repair parses the stored record, escaping raw line breaks and tabs if the
direct parse fails, and writes it back sanitized. A record that still cannot
be parsed is left untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			ok, err := svc.Repair(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			result := "repaired"
			if !ok {
				result = "unrecoverable"
			}
			if a.jsonMode {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"cid":      strings.TrimSpace(args[0]),
					"repaired": ok,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

// listEntry is the JSON shape printed by list.
type listEntry struct {
	CID         string    `json:"cid"`
	Phase       *int64    `json:"phase,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
	CreatedAt   time.Time `json:"created_at"`
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			envs, err := st.List(cmd.Context())
			if err != nil {
				return err
			}

			entries := make([]listEntry, len(envs))
			for i, e := range envs {
				entries[i] = listEntry{CID: e.CID, Phase: e.Phase, LastUpdated: e.LastUpdated, CreatedAt: e.CreatedAt}
			}
			if a.jsonMode {
				return writeJSON(cmd.OutOrStdout(), entries)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No records found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CID\tPHASE\tLAST UPDATED")
			for _, e := range entries {
				phase := "-"
				if e.Phase != nil {
					phase = fmt.Sprint(*e.Phase)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.CID, phase, e.LastUpdated.Format("2006-01-02 15:04"))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "Total: %d record(s)\n", len(entries))
			return nil
		},
	}
}
