package summary

import (
	"database/sql"
	"log"

	_ "github.com/cznic/ql/driver"
)

// QL keeps the summary in the embedded QL database. It is intended for
// development and single process use.
type QL struct {
	db *sql.DB
}

var _ Summary = &QL{}

const qlSummaryInit = `
	CREATE TABLE IF NOT EXISTS summary (
		ctype string,
		nversions int64,
		nbytes int64
	);
	CREATE INDEX IF NOT EXISTS summaryctype ON summary (ctype);
`

// NewQL opens a QL summary. filename is the name of the file to save the
// database to. The filename "memory" means to keep everything in memory.
func NewQL(filename string) (*QL, error) {
	var db *sql.DB
	var err error
	if filename == "memory" {
		db, err = sql.Open("ql-mem", "mem.db")
	} else {
		db, err = sql.Open("ql", filename)
	}
	if err == nil {
		_, err = performExec(db, qlSummaryInit)
	}
	if err != nil {
		log.Printf("Open QL: %s", err.Error())
		return nil, err
	}
	return &QL{db: db}, nil
}

// Add implements Summary.
func (q *QL) Add(ctype string, dv, db int64) error {
	const dbUpdate = `UPDATE summary SET nversions = nversions + ?2, nbytes = nbytes + ?3 WHERE ctype == ?1`
	const dbInsert = `INSERT INTO summary VALUES (?1, ?2, ?3)`
	result, err := performExec(q.db, dbUpdate, ctype, dv, db)
	if err != nil {
		return err
	}
	nrows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if nrows == 0 {
		// record didn't exist. create it
		_, err = performExec(q.db, dbInsert, ctype, dv, db)
	}
	return err
}

// Load implements Summary.
func (q *QL) Load() (Stats, error) {
	return loadRows(q.db, `SELECT ctype, nversions, nbytes FROM summary`)
}

// Replace implements Summary.
func (q *QL) Replace(st Stats) error {
	return replaceRows(q.db,
		`DELETE FROM summary`,
		`INSERT INTO summary VALUES (?1, ?2, ?3)`,
		st)
}

// Close implements Summary.
func (q *QL) Close() error { return q.db.Close() }
