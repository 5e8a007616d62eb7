package main

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadmatch/internal/model"
	"github.com/sells-group/leadmatch/internal/resolve"
	"github.com/sells-group/leadmatch/internal/source"
	"github.com/sells-group/leadmatch/internal/store"
)

var (
	matchFile      string
	matchState     string
	matchCarry     []string
	matchDryRun    bool
	matchWorkers   int
	matchFormat    string
	matchOutput    string
	matchDecisions bool
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match canonical records against an import file and merge carried fields",
	Long: "Loads canonical records from the store as sources and the import file as the candidate pool, " +
		"resolves each source through the key, exact-name and fuzzy tiers, then writes carried fields " +
		"and backfilled keys onto matched records.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		opts := matchOptions{
			File:      matchFile,
			State:     matchState,
			DryRun:    matchDryRun,
			Match:     cfg.Match,
			Merge:     cfg.Merge,
			Delimiter: cfg.Import.Delimiter,
			Sheet:     cfg.Import.Sheet,
		}
		if cmd.Flags().Changed("carry") {
			opts.Merge.Carry = matchCarry
		}
		if cmd.Flags().Changed("workers") {
			opts.Match.Workers = matchWorkers
		}

		report, err := runMatch(ctx, st, opts)
		if err != nil {
			return err
		}
		if !matchDecisions {
			report.Decisions = nil
		}
		return writeReport(cmd.OutOrStdout(), matchOutput, matchFormat, report)
	},
}

type matchOptions struct {
	File      string
	State     string
	DryRun    bool
	Match     resolve.Config
	Merge     resolve.MergeOptions
	Delimiter string
	Sheet     string
}

type matchReport struct {
	RunID     string              `json:"run_id" yaml:"run_id"`
	File      string              `json:"file" yaml:"file"`
	State     string              `json:"state,omitempty" yaml:"state,omitempty"`
	Sources   int                 `json:"sources" yaml:"sources"`
	Pool      int                 `json:"pool" yaml:"pool"`
	Counts    model.TierCounts    `json:"counts" yaml:"counts"`
	Planned   int                 `json:"planned_updates" yaml:"planned_updates"`
	Applied   int64               `json:"applied_updates" yaml:"applied_updates"`
	DryRun    bool                `json:"dry_run" yaml:"dry_run"`
	Exclusive bool                `json:"exclusive" yaml:"exclusive"`
	Updates   []model.FieldUpdate `json:"updates,omitempty" yaml:"updates,omitempty"`
	Decisions []model.Decision    `json:"decisions,omitempty" yaml:"decisions,omitempty"`
}

// runMatch resolves canonical records (sources) against the import file
// (pool), persists planned updates and the decision audit trail, and
// reports per-tier counts.
func runMatch(ctx context.Context, st store.Store, opts matchOptions) (*matchReport, error) {
	if opts.File == "" {
		return nil, eris.New("match: --file is required")
	}

	sources, err := st.ListRecords(ctx, store.RecordFilter{
		State:   opts.State,
		Columns: extraColumns(opts.Merge.Carry),
	})
	if err != nil {
		return nil, eris.Wrap(err, "match: load canonical records")
	}

	srcOpts := source.Options{Sheet: opts.Sheet, Carry: opts.Merge.Carry}
	if opts.Delimiter != "" {
		srcOpts.Delimiter, _ = utf8.DecodeRuneInString(opts.Delimiter)
	}
	imported, err := source.ReadFile(ctx, opts.File, srcOpts)
	if err != nil {
		return nil, eris.Wrapf(err, "match: read %s", opts.File)
	}

	matcher := resolve.NewMatcher(opts.Match)
	pool := resolve.NewPool(imported)

	var decisions []model.Decision
	var counts model.TierCounts
	exclusive := opts.Match.Exclusive
	if opts.Match.Workers > 1 {
		if exclusive {
			zap.L().Warn("match: parallel matching does not consume pool records, running non-exclusive",
				zap.Int("workers", opts.Match.Workers),
			)
			exclusive = false
		}
		decisions, err = matcher.MatchParallel(ctx, sources, pool, opts.Match.Workers)
		if err != nil {
			return nil, err
		}
		counts = model.CountTiers(decisions)
	} else {
		decisions, counts = matcher.Resolve(sources, pool)
	}

	updates := resolve.PlanMerge(decisions, opts.Merge)
	report := &matchReport{
		RunID:     uuid.NewString(),
		File:      opts.File,
		State:     opts.State,
		Sources:   len(sources),
		Pool:      len(imported),
		Counts:    counts,
		Planned:   len(updates),
		DryRun:    opts.DryRun,
		Exclusive: exclusive,
		Updates:   updates,
		Decisions: decisions,
	}

	if opts.DryRun {
		zap.L().Info("match: dry run, nothing written",
			zap.String("run_id", report.RunID),
			zap.Int("planned_updates", len(updates)),
		)
		return report, nil
	}

	applied, err := st.ApplyUpdates(ctx, updates)
	if err != nil {
		return nil, eris.Wrap(err, "match: apply updates")
	}
	report.Applied = applied

	if err := st.SaveDecisions(ctx, report.RunID, decisions); err != nil {
		return nil, eris.Wrap(err, "match: save decisions")
	}

	zap.L().Info("match: complete",
		zap.String("run_id", report.RunID),
		zap.Int("sources", report.Sources),
		zap.Int("pool", report.Pool),
		zap.Int("matched", counts.Matched()),
		zap.Int64("applied_updates", applied),
	)
	return report, nil
}

// extraColumns returns the carry columns that live outside the core fields.
func extraColumns(carry []string) []string {
	var out []string
	for _, c := range carry {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" && !model.IsCoreField(c) {
			out = append(out, c)
		}
	}
	return out
}

func init() {
	matchCmd.Flags().StringVar(&matchFile, "file", "", "import file (.csv, .tsv, .xlsx) used as the candidate pool (required)")
	matchCmd.Flags().StringVar(&matchState, "state", "", "only match canonical records in this state")
	matchCmd.Flags().StringSliceVar(&matchCarry, "carry", nil, "columns copied onto matched records (default from config)")
	matchCmd.Flags().BoolVar(&matchDryRun, "dry-run", false, "report planned updates without writing")
	matchCmd.Flags().IntVar(&matchWorkers, "workers", 0, "concurrent matchers; >1 disables pool consumption (default from config)")
	matchCmd.Flags().StringVar(&matchFormat, "format", "json", "report format: json or yaml")
	matchCmd.Flags().StringVar(&matchOutput, "output", "", "write the report to this file instead of stdout")
	matchCmd.Flags().BoolVar(&matchDecisions, "decisions", false, "include every decision in the report")
	_ = matchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(matchCmd)
}
