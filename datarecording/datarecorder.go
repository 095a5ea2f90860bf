// Package datarecording persists latency samples after a simulation, either as
// a plain text file or as rows in a SQLite database.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// ErrFileExists is returned when the database file is already on disk.
var ErrFileExists = errors.New("database file already exists")

// DataRecorder is a backend that can record and store rows.
type DataRecorder interface {
	// CreateTable creates a table whose columns are the fields of the sample
	// entry.
	CreateTable(tableName string, sampleEntry any) error

	// InsertData buffers a row for a table that already exists.
	InsertData(tableName string, entry any) error

	// ListTables returns the names of all tables.
	ListTables() []string

	// Flush writes all buffered rows into the database.
	Flush() error

	// Close flushes and releases the database.
	Close() error
}

// New creates a DataRecorder backed by the SQLite file path.sqlite3. An
// empty path picks a unique name. Buffered rows are flushed when the process
// exits through atexit.
func New(path string, logger *slog.Logger) (DataRecorder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	w := &sqliteWriter{
		dbName:    path,
		batchSize: 100000,
		tables:    make(map[string]*table),
		logger:    logger,
	}

	err := w.init()
	if err != nil {
		return nil, err
	}

	atexit.Register(func() {
		err := w.Flush()
		if err != nil {
			logger.Error("flush on exit failed", "db", w.dbName, "err", err)
		}
	})

	return w, nil
}

// NewWithDB creates a DataRecorder on an already opened database.
func NewWithDB(db *sql.DB, logger *slog.Logger) DataRecorder {
	if logger == nil {
		logger = slog.Default()
	}

	return &sqliteWriter{
		DB:        db,
		batchSize: 100000,
		tables:    make(map[string]*table),
		logger:    logger,
	}
}

type table struct {
	structType reflect.Type
	entries    []any
}

// sqliteWriter is the writer that writes data into SQLite database
type sqliteWriter struct {
	*sql.DB

	dbName     string
	tables     map[string]*table
	order      []string
	batchSize  int
	entryCount int
	logger     *slog.Logger
}

func (t *sqliteWriter) init() error {
	if t.dbName == "" {
		t.dbName = "tree_sim_samples_" + xid.New().String()
	}

	filename := t.dbName + ".sqlite3"

	// Claim the name before SQLite sees it. An empty file is a valid database.
	f, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrFileExists, filename)
	}

	if err != nil {
		return fmt.Errorf("create %s: %w", filename, err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("create %s: %w", filename, err)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return fmt.Errorf("open %s: %w", filename, err)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return fmt.Errorf("open %s: %w", filename, err)
	}

	t.logger.Info("database created for recording", "file", filename)

	t.DB = db

	return nil
}

func isAllowedType(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func checkStructFields(entry any) error {
	types := reflect.TypeOf(entry)
	if types == nil || types.Kind() != reflect.Struct {
		return fmt.Errorf("entry of type %T is not a struct", entry)
	}

	for i := 0; i < types.NumField(); i++ {
		field := types.Field(i)

		if !field.IsExported() || !isAllowedType(field.Type.Kind()) {
			return fmt.Errorf("field %s of %T cannot be stored",
				field.Name, entry)
		}
	}

	return nil
}

func (t *sqliteWriter) CreateTable(tableName string, sampleEntry any) error {
	if _, exists := t.tables[tableName]; exists {
		return fmt.Errorf("table %s already exists", tableName)
	}

	err := checkStructFields(sampleEntry)
	if err != nil {
		return err
	}

	n := structs.Names(sampleEntry)
	fields := strings.Join(n, ", \n\t")

	createTableSQL := `CREATE TABLE ` + tableName +
		` (` + "\n\t" + fields + "\n" + `);`

	_, err = t.Exec(createTableSQL)
	if err != nil {
		return fmt.Errorf("create table %s: %w", tableName, err)
	}

	t.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleEntry),
	}
	t.order = append(t.order, tableName)

	return nil
}

func (t *sqliteWriter) InsertData(tableName string, entry any) error {
	table, exists := t.tables[tableName]
	if !exists {
		return fmt.Errorf("table %s does not exist", tableName)
	}

	if reflect.TypeOf(entry) != table.structType {
		return fmt.Errorf("entry of type %T does not match table %s",
			entry, tableName)
	}

	table.entries = append(table.entries, entry)

	t.entryCount++
	if t.entryCount >= t.batchSize {
		return t.Flush()
	}

	return nil
}

func (t *sqliteWriter) ListTables() []string {
	tables := make([]string, len(t.order))
	copy(tables, t.order)

	return tables
}

func (t *sqliteWriter) Flush() (err error) {
	if t.entryCount == 0 {
		return nil
	}

	tx, err := t.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, tableName := range t.order {
		table := t.tables[tableName]
		if len(table.entries) == 0 {
			continue
		}

		err = t.insertAll(tx, tableName, table.entries)
		if err != nil {
			return err
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	for _, table := range t.tables {
		table.entries = nil
	}

	t.entryCount = 0

	return nil
}

func (t *sqliteWriter) insertAll(tx *sql.Tx, tableName string, entries []any) error {
	stmt, err := tx.Prepare(insertStatement(tableName, entries[0]))
	if err != nil {
		return fmt.Errorf("prepare insert into %s: %w", tableName, err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		_, err = stmt.Exec(structs.Values(entry)...)
		if err != nil {
			return fmt.Errorf("insert into %s: %w", tableName, err)
		}
	}

	return nil
}

func (t *sqliteWriter) Close() error {
	err := t.Flush()
	if err != nil {
		return err
	}

	return t.DB.Close()
}

func insertStatement(table string, entry any) string {
	n := structs.Names(entry)
	for i := 0; i < len(n); i++ {
		n[i] = "?"
	}

	return "INSERT INTO " + table + " VALUES (" + strings.Join(n, ", ") + ")"
}
