package main

import (
	"context"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadmatch/internal/model"
	"github.com/sells-group/leadmatch/internal/source"
	"github.com/sells-group/leadmatch/internal/store"
)

var importFile string

// recordWriter is implemented by stores that can seed canonical records.
type recordWriter interface {
	InsertRecords(ctx context.Context, records []model.BusinessRecord) error
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load canonical records from a CSV/XLSX export into a local SQLite store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := runImport(ctx, st, importFile, cfg.Import.Delimiter, cfg.Import.Sheet)
		if err != nil {
			return err
		}
		zap.L().Info("import complete",
			zap.Int("records", n),
			zap.String("file", importFile),
		)
		return nil
	},
}

// runImport reads path and inserts its rows as canonical records. Rows
// without an id get a random one.
func runImport(ctx context.Context, st store.Store, path, delimiter, sheet string) (int, error) {
	w, ok := st.(recordWriter)
	if !ok {
		return 0, eris.New("import: store driver does not support seeding records (use store.driver=sqlite)")
	}

	opts := source.Options{Sheet: sheet}
	if delimiter != "" {
		opts.Delimiter, _ = utf8.DecodeRuneInString(delimiter)
	}
	records, err := source.ReadFile(ctx, path, opts)
	if err != nil {
		return 0, eris.Wrapf(err, "import: read %s", path)
	}

	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
	}

	if err := st.Migrate(ctx); err != nil {
		return 0, err
	}
	if err := w.InsertRecords(ctx, records); err != nil {
		return 0, eris.Wrap(err, "import: insert records")
	}
	return len(records), nil
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to CSV/TSV/XLSX file (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
