package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
)

// LoadCSV reads a rectangular CSV file into a dataset. The first row must be
// a header. groupCol and outcomeCol name the group-label and outcome columns;
// every remaining column is parsed as a numeric predictor, with column order
// defining predictor index. Unparseable or empty cells fail the load: the
// data model rejects missing values rather than imputing them.
func LoadCSV(path, name, groupCol, outcomeCol string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	d, err := ReadCSV(f, name, groupCol, outcomeCol)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return d, nil
}

// ReadCSV is LoadCSV over an arbitrary reader.
func ReadCSV(r io.Reader, name, groupCol, outcomeCol string) (*Dataset, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	groupIdx, outcomeIdx := -1, -1
	predictorNames := make([]string, 0, len(header))
	predictorIdx := make([]int, 0, len(header))
	for i, col := range header {
		switch col {
		case groupCol:
			groupIdx = i
		case outcomeCol:
			outcomeIdx = i
		default:
			predictorNames = append(predictorNames, col)
			predictorIdx = append(predictorIdx, i)
		}
	}
	if groupIdx < 0 {
		return nil, fmt.Errorf("group column %q not found in header", groupCol)
	}
	if outcomeIdx < 0 {
		return nil, fmt.Errorf("outcome column %q not found in header", outcomeCol)
	}

	var records []Record
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		rec := Record{
			Predictors: make([]float64, len(predictorIdx)),
			Group:      row[groupIdx],
		}
		if rec.Group == "" {
			return nil, fmt.Errorf("line %d: empty group label: %w", line, ErrMissingValue)
		}

		rec.Outcome, err = parseCell(row[outcomeIdx])
		if err != nil {
			return nil, fmt.Errorf("line %d column %s: %w", line, outcomeCol, err)
		}

		for k, i := range predictorIdx {
			rec.Predictors[k], err = parseCell(row[i])
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, header[i], err)
			}
		}
		records = append(records, rec)
	}

	d, err := NewDataset(name, predictorNames, records)
	if err != nil {
		return nil, err
	}

	slog.Debug("dataset loaded", "name", name, "records", d.N(), "predictors", d.P())
	return d, nil
}

func parseCell(s string) (float64, error) {
	if s == "" {
		return 0, ErrMissingValue
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, ErrMissingValue)
	}
	if !isFinite(v) {
		return 0, fmt.Errorf("%q: %w", s, ErrMissingValue)
	}
	return v, nil
}
