package store

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

const defaultTable = "sensors"

// Config carries the relational store credentials, loaded from the
// application config file.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Table    string
}

func (cfg Config) TableName() string {
	if len(cfg.Table) > 0 {
		return cfg.Table
	}
	return defaultTable
}

// Open connects to the MySQL server described by cfg.
func Open(cfg Config) (*sql.DB, error) {
	mysqlConfig := mysql.Config{
		User:                 cfg.User,
		Passwd:               cfg.Password,
		Net:                  "tcp",
		Addr:                 fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		DBName:               cfg.Database,
		AllowNativePasswords: true,
	}

	db, err := sql.Open("mysql", mysqlConfig.FormatDSN())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database connection")
	}

	err = db.Ping()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to reach database at %s", mysqlConfig.Addr)
	}

	return db, nil
}

// Execer is the slice of database/sql the recorder needs; tests supply
// a fake, production passes *sql.DB.
type Execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// Reading is one column value of a persisted sampling round.
type Reading struct {
	Column string
	Value  float64
}

// Recorder keeps the sensor table's columns aligned with the configured
// sensor set and appends one row per sampling round.
type Recorder struct {
	table  string
	db     Execer
	logger *log.Logger
}

func NewRecorder(db Execer, table string) *Recorder {
	return &Recorder{
		table: table,
		db:    db,
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "store",
			Level:  log.GetLevel(),
		}),
	}
}

// EnsureTable creates the sensor table when absent. Every other column
// is added later by EnsureColumns.
func (rec *Recorder) EnsureTable() error {
	statement := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS `%s` (id INT NOT NULL AUTO_INCREMENT, reading_time DATETIME NOT NULL, PRIMARY KEY (id))",
		rec.table)

	_, err := rec.db.Exec(statement)
	return errors.Wrapf(err, "failed to create table %s", rec.table)
}

// EnsureColumns adds a numeric column per active sensor and drops the
// columns of retired ones. Both directions run unconditionally every
// time: the duplicate/missing column errors this produces on an already
// synced table are logged and dropped, which keeps the operation
// idempotent without querying the schema first.
func (rec *Recorder) EnsureColumns(active []string, retired []string) {
	for _, column := range active {
		_, err := rec.db.Exec(fmt.Sprintf("ALTER TABLE `%s` ADD COLUMN `%s` DOUBLE", rec.table, column))
		if err != nil {
			rec.logger.Debug("add column skipped", "column", column, "err", err)
		}
	}

	for _, column := range retired {
		_, err := rec.db.Exec(fmt.Sprintf("ALTER TABLE `%s` DROP COLUMN `%s`", rec.table, column))
		if err != nil {
			rec.logger.Debug("drop column skipped", "column", column, "err", err)
		}
	}
}

// AppendRound inserts a timestamped row and fills in one column per
// reading. A single failing column does not stop the rest of the row.
func (rec *Recorder) AppendRound(readings []Reading) error {
	result, err := rec.db.Exec(fmt.Sprintf("INSERT INTO `%s` (reading_time) VALUES (NOW())", rec.table))
	if err != nil {
		return errors.Wrap(err, "failed to insert sampling round row")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to get inserted row id")
	}

	for _, reading := range readings {
		_, err = rec.db.Exec(
			fmt.Sprintf("UPDATE `%s` SET `%s` = ? WHERE id = ?", rec.table, reading.Column),
			reading.Value, id)
		if err != nil {
			rec.logger.Warn("column update failed", "column", reading.Column, "err", err)
		}
	}

	return nil
}
