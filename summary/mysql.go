package summary

import (
	"database/sql"
	"log"

	"github.com/BurntSushi/migration"
	_ "github.com/go-sql-driver/mysql"
)

// MySQL keeps the summary in a MySQL table, which lets several processes
// sharing one store root agree on the totals.
type MySQL struct {
	db *sql.DB
}

var _ Summary = &MySQL{}

// List of migrations to perform. Add new ones to the end.
// DO NOT change the order of items already in this list.
var mysqlMigrations = []migration.Migrator{
	mysqlschema1,
}

var mysqlVersioning = dbVersion{
	GetSQL:    `SELECT max(version) FROM migration_version`,
	SetSQL:    `INSERT INTO migration_version (version, applied) VALUES (?, now())`,
	CreateSQL: `CREATE TABLE migration_version (version INTEGER, applied datetime)`,
}

// NewMySQL connects to a MySQL database, migrating its schema if needed.
func NewMySQL(dial string) (*MySQL, error) {
	db, err := migration.OpenWith(
		"mysql",
		dial,
		mysqlMigrations,
		mysqlVersioning.Get,
		mysqlVersioning.Set)
	if err != nil {
		log.Printf("Open Mysql: %s", err.Error())
		return nil, err
	}
	return &MySQL{db: db}, nil
}

// Add implements Summary. The adjustment is a single statement, so
// concurrent writers do not lose updates.
func (ms *MySQL) Add(ctype string, dv, db int64) error {
	const stmt = `INSERT INTO summary (ctype, nversions, nbytes) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE nversions = nversions + ?, nbytes = nbytes + ?`
	_, err := ms.db.Exec(stmt, ctype, dv, db, dv, db)
	return err
}

// Load implements Summary.
func (ms *MySQL) Load() (Stats, error) {
	return loadRows(ms.db, `SELECT ctype, nversions, nbytes FROM summary`)
}

// Replace implements Summary.
func (ms *MySQL) Replace(st Stats) error {
	return replaceRows(ms.db,
		`DELETE FROM summary`,
		`INSERT INTO summary (ctype, nversions, nbytes) VALUES (?, ?, ?)`,
		st)
}

// Close implements Summary.
func (ms *MySQL) Close() error { return ms.db.Close() }

// database migrations. each one is a go function. Add them to the
// list mysqlMigrations at top of this file for them to be run.

func mysqlschema1(tx migration.LimitedTx) error {
	var s = []string{
		`CREATE TABLE IF NOT EXISTS summary (
		id int PRIMARY KEY AUTO_INCREMENT,
		ctype varchar(255),
		nversions BIGINT,
		nbytes BIGINT,
		UNIQUE INDEX summary_ctype (ctype))`,
	}
	return execlist(tx, s)
}

// execlist exec's each item in the list, return if there is an error.
// Used to work around mysql driver not handling compound exec statements.
func execlist(tx migration.LimitedTx, stms []string) error {
	var err error
	for _, s := range stms {
		_, err = tx.Exec(s)
		if err != nil {
			break
		}
	}
	return err
}
