package summary

import (
	"database/sql"
	"log"

	"github.com/BurntSushi/migration"
)

// we need to adapt the migration version functions to work with MySQL and QL
// This code is slightly modified from github.com/BurntSushi/migration

type dbVersion struct {
	// SQL to get the version of this db, returns one row and one column
	GetSQL string
	// SQL to insert a new version of this db. takes one parameter, the new
	// version
	SetSQL string
	// the SQL to create the version table for this db
	CreateSQL string
}

func (d dbVersion) Get(tx migration.LimitedTx) (int, error) {
	var version int
	err := tx.QueryRow(d.GetSQL).Scan(&version)
	if err != nil {
		// we assume error means there is no migration table
		log.Println(err.Error())
		return 0, nil
	}
	return version, nil
}

func (d dbVersion) Set(tx migration.LimitedTx, version int) error {
	if _, err := tx.Exec(d.SetSQL, version); err != nil {
		if _, err := tx.Exec(d.CreateSQL); err != nil {
			return err
		}
		_, err = tx.Exec(d.SetSQL, version)
		return err
	}
	return nil
}

// performExec runs a single statement inside its own transaction.
func performExec(db *sql.DB, query string, args ...interface{}) (sql.Result, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	result, err := tx.Exec(query, args...)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	err = tx.Commit()
	return result, err
}

// loadRows reads a summary table of (ctype, versions, bytes) rows.
func loadRows(db *sql.DB, query string) (Stats, error) {
	st := Stats{PerType: make(map[string]TypeStats)}
	rows, err := db.Query(query)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var ctype string
		var ts TypeStats
		if err := rows.Scan(&ctype, &ts.Versions, &ts.Bytes); err != nil {
			return st, err
		}
		if ts.Versions <= 0 && ts.Bytes <= 0 {
			continue
		}
		st.PerType[ctype] = ts
	}
	st.total()
	return st, rows.Err()
}

// replaceRows swaps the contents of a summary table in one transaction.
func replaceRows(db *sql.DB, clear, insert string, st Stats) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err = tx.Exec(clear); err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, ctype := range st.Types() {
		ts := st.PerType[ctype]
		if _, err = tx.Exec(insert, ctype, ts.Versions, ts.Bytes); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
