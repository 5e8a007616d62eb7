// Package source reads business records from delimited-text and XLSX
// exports and maps their columns onto model.BusinessRecord.
package source

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadmatch/internal/model"
)

// Options configures record decoding.
type Options struct {
	Delimiter rune   // default ','
	Sheet     string // XLSX sheet name; first sheet when empty
	// Carry lists extra columns kept in Record.Extra. Nil keeps every
	// non-core column.
	Carry []string
}

// headerAliases maps normalized header names onto record fields.
var headerAliases = map[string]string{
	"id":            model.FieldID,
	"name":          model.FieldName,
	"business_name": model.FieldName,
	"company":       model.FieldName,
	"company_name":  model.FieldName,
	"city":          model.FieldCity,
	"state":         model.FieldState,
	"region":        model.FieldState,
	"phone":         model.FieldPhone,
	"phone_number":  model.FieldPhone,
	"telephone":     model.FieldPhone,
	"place_id":      model.FieldExternalKey,
	"placeid":       model.FieldExternalKey,
	"external_key":  model.FieldExternalKey,
	"google_id":     model.FieldExternalKey,
	"slug":          model.FieldSlug,
}

// normalizeHeader lower-cases a header cell and joins words with '_'.
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Join(strings.FieldsFunc(h, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
}

// columnMap resolves each header position to the field it fills, or "" to
// drop the column.
func columnMap(header []string, carry []string) []string {
	keep := make(map[string]bool, len(carry))
	for _, c := range carry {
		keep[normalizeHeader(c)] = true
	}

	fields := make([]string, len(header))
	taken := make(map[string]bool, len(header))
	for i, h := range header {
		name := normalizeHeader(h)
		if name == "" {
			continue
		}
		// First aliased column wins (e.g. "name" before "company"); later
		// aliases of the same field are treated as extras.
		if f, ok := headerAliases[name]; ok && !taken[f] {
			fields[i] = f
			taken[f] = true
			continue
		}
		if carry == nil || keep[name] {
			fields[i] = name
		}
	}
	return fields
}

// decodeRows turns raw rows into records. Rows with neither a name nor an
// external key are skipped.
func decodeRows(header []string, rows [][]string, carry []string) []model.BusinessRecord {
	fields := columnMap(header, carry)
	records := make([]model.BusinessRecord, 0, len(rows))
	for _, row := range rows {
		var r model.BusinessRecord
		for i, cell := range row {
			if i >= len(fields) || fields[i] == "" {
				continue
			}
			cell = strings.TrimSpace(cell)
			if cell == "" && !model.IsCoreField(fields[i]) {
				continue
			}
			r.Set(fields[i], cell)
		}
		if r.Name == "" && r.ExternalKey == "" {
			continue
		}
		records = append(records, r)
	}
	return records
}

// ReadFile reads records from path, choosing the parser by extension:
// .xlsx uses the spreadsheet reader, anything else is delimited text
// (.tsv defaults to tab).
func ReadFile(ctx context.Context, path string, opts Options) ([]model.BusinessRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(ctx, path, opts)
	case ".tsv":
		if opts.Delimiter == 0 {
			opts.Delimiter = '\t'
		}
		return ReadCSVFile(ctx, path, opts)
	case ".csv", ".txt", "":
		return ReadCSVFile(ctx, path, opts)
	default:
		return nil, eris.Errorf("source: unsupported file type %q", filepath.Ext(path))
	}
}

// collect drains a row stream, splitting off the header row.
func collect(rowCh <-chan []string, errCh <-chan error) ([]string, [][]string, error) {
	var header []string
	var rows [][]string
	first := true
	for row := range rowCh {
		if first {
			header = row
			first = false
			continue
		}
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return nil, nil, err
		}
	}
	return header, rows, nil
}
