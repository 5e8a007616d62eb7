package source

import (
	"context"
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadmatch/internal/model"
)

// streamCSV reads delimited rows onto a channel. Both channels are closed
// when reading stops; at most one error is sent.
func streamCSV(ctx context.Context, r io.Reader, delimiter rune) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if delimiter != 0 {
			reader.Comma = delimiter
		}
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1 // exports often have ragged rows

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// ReadCSV decodes a delimited export with a header row into records.
func ReadCSV(ctx context.Context, r io.Reader, opts Options) ([]model.BusinessRecord, error) {
	header, rows, err := collect(streamCSV(ctx, r, opts.Delimiter))
	if err != nil {
		return nil, err
	}
	if header == nil {
		return nil, eris.New("csv: missing header row")
	}
	records := decodeRows(header, rows, opts.Carry)
	zap.L().Debug("source: decoded csv",
		zap.Int("rows", len(rows)),
		zap.Int("records", len(records)),
	)
	return records, nil
}

// ReadCSVFile opens path and decodes it with ReadCSV.
func ReadCSVFile(ctx context.Context, path string, opts Options) ([]model.BusinessRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return ReadCSV(ctx, f, opts)
}
