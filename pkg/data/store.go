package data

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

const (
	insertDatasetSQL = `INSERT INTO dataset (name, predictor_names, outcome_name, group_name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			predictor_names = excluded.predictor_names,
			outcome_name = excluded.outcome_name,
			group_name = excluded.group_name,
			created_at = excluded.created_at
	`

	insertRecordSQL = `INSERT INTO record (dataset, idx, grp, outcome, predictors)
		VALUES (?, ?, ?, ?, ?)
	`

	deleteRecordsSQL = `DELETE FROM record WHERE dataset = ?`
	deleteDatasetSQL = `DELETE FROM dataset WHERE name = ?`

	selectDatasetSQL = `SELECT predictor_names, outcome_name, group_name FROM dataset WHERE name = ?`

	selectRecordsSQL = `SELECT grp, outcome, predictors FROM record
		WHERE dataset = ?
		ORDER BY idx
	`

	selectDatasetListSQL = `SELECT d.name, d.outcome_name, d.group_name, d.created_at, COUNT(r.idx)
		FROM dataset d
		LEFT JOIN record r ON d.name = r.dataset
		GROUP BY d.name, d.outcome_name, d.group_name, d.created_at
		ORDER BY d.name
	`

	selectGroupCountsSQL = `SELECT grp, COUNT(*) FROM record
		WHERE dataset = ?
		GROUP BY grp
		ORDER BY grp
	`
)

// DatasetInfo is a catalog row describing a stored dataset.
type DatasetInfo struct {
	Name        string `json:"name" yaml:"name"`
	OutcomeName string `json:"outcome_name" yaml:"outcomeName"`
	GroupName   string `json:"group_name" yaml:"groupName"`
	CreatedAt   string `json:"created_at" yaml:"createdAt"`
	Records     int    `json:"records" yaml:"records"`
}

// GroupCount is a per-group record count for a stored dataset.
type GroupCount struct {
	Group string `json:"group" yaml:"group"`
	Count int    `json:"count" yaml:"count"`
}

// SaveDataset stores a dataset, replacing any previous dataset of the same name.
func SaveDataset(db *sql.DB, d *Dataset) error {
	if db == nil {
		return errDBNotInitialized
	}
	if d == nil || len(d.Records) == 0 {
		return fmt.Errorf("saving dataset: %w", ErrEmptyDataset)
	}

	names, err := json.Marshal(d.PredictorNames)
	if err != nil {
		return fmt.Errorf("encoding predictor names: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("starting dataset tx: %w", err)
	}

	now := time.Now().UTC().Format("2006-01-02T15:04:05Z")
	if _, err := tx.Exec(insertDatasetSQL, d.Name, string(names), d.OutcomeName, d.GroupName, now); err != nil {
		rollbackTransaction(tx)
		return fmt.Errorf("saving dataset %s: %w", d.Name, err)
	}
	if _, err := tx.Exec(deleteRecordsSQL, d.Name); err != nil {
		rollbackTransaction(tx)
		return fmt.Errorf("clearing records for %s: %w", d.Name, err)
	}

	stmt, err := tx.Prepare(insertRecordSQL)
	if err != nil {
		rollbackTransaction(tx)
		return fmt.Errorf("preparing record insert: %w", err)
	}

	for i, r := range d.Records {
		vals, err := json.Marshal(r.Predictors)
		if err != nil {
			rollbackTransaction(tx)
			return fmt.Errorf("encoding record %d: %w", i, err)
		}
		if _, err := stmt.Exec(d.Name, i, r.Group, r.Outcome, string(vals)); err != nil {
			rollbackTransaction(tx)
			return fmt.Errorf("saving record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing dataset tx: %w", err)
	}

	slog.Debug("dataset saved", "name", d.Name, "records", d.N())
	return nil
}

// GetDataset loads a stored dataset by name.
func GetDataset(db *sql.DB, name string) (*Dataset, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	var namesJSON, outcomeName, groupName string
	if err := db.QueryRow(selectDatasetSQL, name).Scan(&namesJSON, &outcomeName, &groupName); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("dataset %q not found", name)
		}
		return nil, fmt.Errorf("querying dataset %s: %w", name, err)
	}

	var predictorNames []string
	if err := json.Unmarshal([]byte(namesJSON), &predictorNames); err != nil {
		return nil, fmt.Errorf("decoding predictor names for %s: %w", name, err)
	}

	rows, err := db.Query(selectRecordsSQL, name)
	if err != nil {
		return nil, fmt.Errorf("querying records for %s: %w", name, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var valsJSON string
		if err := rows.Scan(&r.Group, &r.Outcome, &valsJSON); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		if err := json.Unmarshal([]byte(valsJSON), &r.Predictors); err != nil {
			return nil, fmt.Errorf("decoding record predictors: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records for %s: %w", name, err)
	}

	d, err := NewDataset(name, predictorNames, records)
	if err != nil {
		return nil, fmt.Errorf("loading dataset %s: %w", name, err)
	}
	d.OutcomeName = outcomeName
	d.GroupName = groupName
	return d, nil
}

// ListDatasets returns catalog rows for all stored datasets.
func ListDatasets(db *sql.DB) ([]*DatasetInfo, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectDatasetListSQL)
	if err != nil {
		return nil, fmt.Errorf("querying dataset list: %w", err)
	}
	defer rows.Close()

	list := make([]*DatasetInfo, 0)
	for rows.Next() {
		var info DatasetInfo
		if err := rows.Scan(&info.Name, &info.OutcomeName, &info.GroupName, &info.CreatedAt, &info.Records); err != nil {
			return nil, fmt.Errorf("scanning dataset row: %w", err)
		}
		list = append(list, &info)
	}
	return list, rows.Err()
}

// GetGroupCounts returns per-group record counts for a stored dataset.
func GetGroupCounts(db *sql.DB, name string) ([]*GroupCount, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectGroupCountsSQL, name)
	if err != nil {
		return nil, fmt.Errorf("querying group counts for %s: %w", name, err)
	}
	defer rows.Close()

	list := make([]*GroupCount, 0)
	for rows.Next() {
		var gc GroupCount
		if err := rows.Scan(&gc.Group, &gc.Count); err != nil {
			return nil, fmt.Errorf("scanning group count: %w", err)
		}
		list = append(list, &gc)
	}
	return list, rows.Err()
}

// DeleteDataset removes a stored dataset and its records.
func DeleteDataset(db *sql.DB, name string) error {
	if db == nil {
		return errDBNotInitialized
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("starting delete tx: %w", err)
	}
	if _, err := tx.Exec(deleteRecordsSQL, name); err != nil {
		rollbackTransaction(tx)
		return fmt.Errorf("deleting records for %s: %w", name, err)
	}
	if _, err := tx.Exec(deleteDatasetSQL, name); err != nil {
		rollbackTransaction(tx)
		return fmt.Errorf("deleting dataset %s: %w", name, err)
	}
	return tx.Commit()
}
