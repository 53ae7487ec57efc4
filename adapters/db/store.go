// Package db persists data containers in a SQL database through sqlx.
// Postgres (lib/pq) and sqlite (modernc.org/sqlite) are supported; both run
// the same schema.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"clusterkit/adapters/db/migrations"
	"clusterkit/domain/core"
	"clusterkit/domain/data"
	"clusterkit/internal"
	apperrors "clusterkit/internal/errors"
	"clusterkit/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Open connects to the database. Sqlite connections are limited to one so an
// in-memory database is shared by every query.
func Open(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, core.NewConfigurationError("unsupported store driver %q", driver)
	}
	conn, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, apperrors.StorageError(fmt.Sprintf("failed to connect to %s", driver), err)
	}
	if driver == DriverSQLite {
		conn.SetMaxOpenConns(1)
	}
	return conn, nil
}

// Store implements ports.DataStore on a SQL database.
type Store struct {
	conn   *sqlx.DB
	logger ports.Logger
}

var _ ports.DataStore = (*Store)(nil)

// NewStore wraps an open connection. Call Migrate before first use.
func NewStore(conn *sqlx.DB, logger ports.Logger) *Store {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Store{conn: conn, logger: logger}
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	applied, err := migrations.NewMigrator(s.conn).Up(ctx)
	if err != nil {
		return apperrors.StorageError("failed to migrate schema", err)
	}
	for _, v := range applied {
		s.logger.Info("[SQLStore] applied migration %s", v)
	}
	return nil
}

type datasetRow struct {
	Name       string `db:"name"`
	CoeffNames string `db:"coeff_names"`
	Meta       string `db:"meta"`
	RowCount   int    `db:"row_count"`
	SavedAt    string `db:"saved_at"`
}

type pointRow struct {
	Position int    `db:"position"`
	Origin   int    `db:"origin"`
	Coords   string `db:"coords"`
	Output   string `db:"output"`
}

type columnRow struct {
	Name   string `db:"name"`
	Values string `db:"vals"`
}

// Save writes d under name inside one transaction, replacing whatever was
// stored under that name before.
func (s *Store) Save(ctx context.Context, name core.DatasetName, d *data.Data) error {
	if name.String() == "" {
		return core.NewInputError("dataset name cannot be empty")
	}
	if d == nil {
		return core.NewInputError("nil data container")
	}

	names, err := json.Marshal(d.CoeffNames())
	if err != nil {
		return apperrors.StorageError("failed to marshal coefficient names", err)
	}
	meta := make(map[string]string)
	for _, k := range d.MetaKeys() {
		meta[k], _ = d.Meta(k)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return apperrors.StorageError("failed to marshal metadata", err)
	}

	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.StorageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if err := deleteDataset(ctx, tx, name); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		tx.Rebind(`INSERT INTO datasets (name, coeff_names, meta, row_count, saved_at) VALUES (?, ?, ?, ?, ?)`),
		name.String(), string(names), string(metaJSON), d.Len(), core.Now().String())
	if err != nil {
		return apperrors.StorageError("failed to insert dataset", err)
	}

	stmt, err := tx.PreparexContext(ctx,
		tx.Rebind(`INSERT INTO dataset_rows (dataset, position, origin, coords, output) VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return apperrors.StorageError("failed to prepare row insert", err)
	}
	defer stmt.Close()

	index := d.Index()
	outputs := d.Outputs()
	for i, p := range d.Points() {
		coords, err := encodeComplex(p)
		if err != nil {
			return apperrors.StorageError("failed to marshal coordinates", err)
		}
		out, err := encodeFloats(outputs[i])
		if err != nil {
			return apperrors.StorageError("failed to marshal output", err)
		}
		if _, err := stmt.ExecContext(ctx, name.String(), i, index[i], coords, out); err != nil {
			return apperrors.StorageError(fmt.Sprintf("failed to insert row %d", i), err)
		}
	}

	for _, col := range d.AuxiliaryColumns() {
		values, _ := d.AuxiliaryColumn(col)
		encoded, err := encodeFloats(values)
		if err != nil {
			return apperrors.StorageError("failed to marshal column", err)
		}
		_, err = tx.ExecContext(ctx,
			tx.Rebind(`INSERT INTO dataset_columns (dataset, name, vals) VALUES (?, ?, ?)`),
			name.String(), col, encoded)
		if err != nil {
			return apperrors.StorageError(fmt.Sprintf("failed to insert column %s", col), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.StorageError("failed to commit dataset", err)
	}
	s.logger.Debug("[SQLStore] saved %s (%d rows)", name, d.Len())
	return nil
}

func deleteDataset(ctx context.Context, tx *sqlx.Tx, name core.DatasetName) error {
	for _, q := range []string{
		`DELETE FROM dataset_columns WHERE dataset = ?`,
		`DELETE FROM dataset_rows WHERE dataset = ?`,
		`DELETE FROM datasets WHERE name = ?`,
	} {
		if _, err := tx.ExecContext(ctx, tx.Rebind(q), name.String()); err != nil {
			return apperrors.StorageError("failed to delete dataset", err)
		}
	}
	return nil
}

// Load reads the container stored under name.
func (s *Store) Load(ctx context.Context, name core.DatasetName) (*data.Data, error) {
	var ds datasetRow
	err := s.conn.GetContext(ctx, &ds,
		s.conn.Rebind(`SELECT name, coeff_names, meta, row_count, saved_at FROM datasets WHERE name = ?`),
		name.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewNotFoundError("dataset", name.String())
		}
		return nil, apperrors.StorageError("failed to get dataset", err)
	}

	var coeffNames []string
	if err := json.Unmarshal([]byte(ds.CoeffNames), &coeffNames); err != nil {
		return nil, apperrors.StorageError("failed to unmarshal coefficient names", err)
	}
	meta := make(map[string]string)
	if err := json.Unmarshal([]byte(ds.Meta), &meta); err != nil {
		return nil, apperrors.StorageError("failed to unmarshal metadata", err)
	}

	var rows []pointRow
	err = s.conn.SelectContext(ctx, &rows,
		s.conn.Rebind(`SELECT position, origin, coords, output FROM dataset_rows WHERE dataset = ? ORDER BY position`),
		name.String())
	if err != nil {
		return nil, apperrors.StorageError("failed to list rows", err)
	}
	if len(rows) != ds.RowCount {
		return nil, core.NewInputError("dataset %s: expected %d rows, found %d", name, ds.RowCount, len(rows))
	}

	points := make([][]complex128, len(rows))
	outputs := make([][]float64, len(rows))
	index := make([]int, len(rows))
	for i, r := range rows {
		if points[i], err = decodeComplex(r.Coords); err != nil {
			return nil, apperrors.StorageError("failed to unmarshal coordinates", err)
		}
		if outputs[i], err = decodeFloats(r.Output); err != nil {
			return nil, apperrors.StorageError("failed to unmarshal output", err)
		}
		index[i] = r.Origin
	}

	var cols []columnRow
	err = s.conn.SelectContext(ctx, &cols,
		s.conn.Rebind(`SELECT name, vals FROM dataset_columns WHERE dataset = ? ORDER BY name`),
		name.String())
	if err != nil {
		return nil, apperrors.StorageError("failed to list columns", err)
	}
	columns := make(map[string][]float64, len(cols))
	for _, c := range cols {
		if columns[c.Name], err = decodeFloats(c.Values); err != nil {
			return nil, apperrors.StorageError("failed to unmarshal column", err)
		}
	}

	return data.Restore(coeffNames, points, outputs, index, columns, meta)
}

// List returns the names of every stored container.
func (s *Store) List(ctx context.Context) ([]core.DatasetName, error) {
	var names []string
	if err := s.conn.SelectContext(ctx, &names, `SELECT name FROM datasets ORDER BY name`); err != nil {
		return nil, apperrors.StorageError("failed to list datasets", err)
	}
	out := make([]core.DatasetName, len(names))
	for i, n := range names {
		out[i] = core.DatasetName(n)
	}
	return out, nil
}

// Delete removes the container stored under name.
func (s *Store) Delete(ctx context.Context, name core.DatasetName) error {
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.StorageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.GetContext(ctx, &count, tx.Rebind(`SELECT COUNT(*) FROM datasets WHERE name = ?`), name.String()); err != nil {
		return apperrors.StorageError("failed to look up dataset", err)
	}
	if count == 0 {
		return core.NewNotFoundError("dataset", name.String())
	}
	if err := deleteDataset(ctx, tx, name); err != nil {
		return err
	}
	return tx.Commit()
}

// JSON has no NaN, so non-finite values travel as null and come back as NaN.
func encodeFloats(values []float64) (string, error) {
	out := make([]*float64, len(values))
	for i := range values {
		if !math.IsNaN(values[i]) && !math.IsInf(values[i], 0) {
			out[i] = &values[i]
		}
	}
	b, err := json.Marshal(out)
	return string(b), err
}

func decodeFloats(s string) ([]float64, error) {
	var in []*float64
	if err := json.Unmarshal([]byte(s), &in); err != nil {
		return nil, err
	}
	out := make([]float64, len(in))
	for i, v := range in {
		if v == nil {
			out[i] = math.NaN()
		} else {
			out[i] = *v
		}
	}
	return out, nil
}

// Coordinates are stored as [re, im] pairs.
func encodeComplex(values []complex128) (string, error) {
	flat := make([]float64, 0, 2*len(values))
	for _, c := range values {
		flat = append(flat, real(c), imag(c))
	}
	return encodeFloats(flat)
}

func decodeComplex(s string) ([]complex128, error) {
	flat, err := decodeFloats(s)
	if err != nil {
		return nil, err
	}
	if len(flat)%2 != 0 {
		return nil, fmt.Errorf("odd number of coordinate parts: %d", len(flat))
	}
	out := make([]complex128, len(flat)/2)
	for i := range out {
		out[i] = complex(flat[2*i], flat[2*i+1])
	}
	return out, nil
}

