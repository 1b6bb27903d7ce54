package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"flyshark/internal/domain"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Fixed-width so that data_consulta sorts chronologically as text.
const observedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// InitDB opens the fare history database and brings the schema up to date.
// The base table matches the first release; later columns are added in
// place, so rows written before them read back with NULLs.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS historico_buscas (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		origem            TEXT NOT NULL,
		destino           TEXT NOT NULL,
		data_ida          TEXT NOT NULL,
		data_volta        TEXT,
		companhia         TEXT DEFAULT '',
		classe            TEXT NOT NULL,
		preco             REAL NOT NULL,
		data_consulta     TEXT NOT NULL,
		status_termometro TEXT DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_historico_rota ON historico_buscas(origem, destino, classe);
	CREATE INDEX IF NOT EXISTS idx_historico_consulta ON historico_buscas(data_consulta);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	for _, col := range []struct{ name, ddl string }{
		{"conexoes", `ALTER TABLE historico_buscas ADD COLUMN conexoes INTEGER`},
		{"duracao_voo", `ALTER TABLE historico_buscas ADD COLUMN duracao_voo TEXT`},
		{"itinerario", `ALTER TABLE historico_buscas ADD COLUMN itinerario TEXT`},
	} {
		var colCount int
		if err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('historico_buscas') WHERE name = ?`, col.name).Scan(&colCount); err != nil {
			db.Close()
			return nil, fmt.Errorf("inspect column %s: %w", col.name, err)
		}
		if colCount == 0 {
			if _, err := db.Exec(col.ddl); err != nil {
				db.Close()
				return nil, fmt.Errorf("add column %s: %w", col.name, err)
			}
		}
	}

	return db, nil
}

// Store implements the fare history on SQLite.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := InitDB(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	return s.db.Close()
}

const insertFare = `INSERT INTO historico_buscas
	(origem, destino, data_ida, data_volta, companhia, classe, preco, data_consulta, status_termometro, conexoes, duracao_voo, itinerario)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func fareArgs(obs domain.FareObservation) []any {
	var ret any
	if obs.ReturnDate != nil {
		ret = obs.ReturnDate.Format(domain.DateLayout)
	}
	return []any{
		obs.Origin, obs.Destination, obs.DepartureDate.Format(domain.DateLayout), ret,
		obs.Carrier, string(obs.CabinClass), obs.Price.InexactFloat64(),
		obs.ObservedAt.UTC().Format(observedAtLayout), string(obs.Status),
		obs.Connections, obs.Duration, obs.Itinerary,
	}
}

func (s *Store) InsertFare(ctx context.Context, obs domain.FareObservation) error {
	if _, err := s.db.ExecContext(ctx, insertFare, fareArgs(obs)...); err != nil {
		return &domain.PersistenceError{Op: "insert", Err: err}
	}
	return nil
}

// InsertFares appends rows in one transaction and reports how many were
// written. On error nothing is committed.
func (s *Store) InsertFares(ctx context.Context, rows []domain.FareObservation) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &domain.PersistenceError{Op: "insert", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertFare)
	if err != nil {
		return 0, &domain.PersistenceError{Op: "insert", Err: err}
	}
	defer stmt.Close()

	inserted := 0
	for _, obs := range rows {
		if _, err := stmt.ExecContext(ctx, fareArgs(obs)...); err != nil {
			return 0, &domain.PersistenceError{Op: "insert", Err: err}
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, &domain.PersistenceError{Op: "insert", Err: err}
	}
	return inserted, nil
}

const selectFares = `SELECT id, origem, destino, data_ida, data_volta, companhia, classe, preco, data_consulta,
	status_termometro, conexoes, duracao_voo, itinerario
	FROM historico_buscas`

func (s *Store) FaresByRoute(ctx context.Context, origin, destination string, cabin domain.CabinClass) ([]domain.FareObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		selectFares+` WHERE origem = ? AND destino = ? AND classe = ? ORDER BY data_consulta, id`,
		origin, destination, string(cabin),
	)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "select", Err: err}
	}
	return scanFares(rows)
}

// RecentFares returns up to limit observations for the route, newest last.
func (s *Store) RecentFares(ctx context.Context, origin, destination string, cabin domain.CabinClass, limit int) ([]domain.FareObservation, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT * FROM (`+selectFares+` WHERE origem = ? AND destino = ? AND classe = ?
		 ORDER BY data_consulta DESC, id DESC LIMIT ?) ORDER BY data_consulta, id`,
		origin, destination, string(cabin), limit,
	)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "select", Err: err}
	}
	return scanFares(rows)
}

func (s *Store) CountFares(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM historico_buscas`).Scan(&n); err != nil {
		return 0, &domain.PersistenceError{Op: "count", Err: err}
	}
	return n, nil
}

func scanFares(rows *sql.Rows) ([]domain.FareObservation, error) {
	defer rows.Close()

	var out []domain.FareObservation
	for rows.Next() {
		var (
			obs         domain.FareObservation
			departure   string
			ret         sql.NullString
			carrier     sql.NullString
			cabin       string
			price       decimal.Decimal
			observedAt  string
			status      sql.NullString
			connections sql.NullInt64
			duration    sql.NullString
			itinerary   sql.NullString
		)
		err := rows.Scan(
			&obs.ID, &obs.Origin, &obs.Destination, &departure, &ret, &carrier, &cabin,
			&price, &observedAt, &status, &connections, &duration, &itinerary,
		)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "scan", Err: err}
		}
		obs.DepartureDate, err = time.Parse(domain.DateLayout, departure)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "scan", Err: fmt.Errorf("data_ida %q: %w", departure, err)}
		}
		if ret.Valid && ret.String != "" {
			d, err := time.Parse(domain.DateLayout, ret.String)
			if err != nil {
				return nil, &domain.PersistenceError{Op: "scan", Err: fmt.Errorf("data_volta %q: %w", ret.String, err)}
			}
			obs.ReturnDate = &d
		}
		obs.ObservedAt = parseObservedAt(observedAt)
		obs.Carrier = carrier.String
		obs.CabinClass = domain.CabinClass(cabin)
		obs.Price = price
		obs.Status = domain.ParseLabel(status.String)
		obs.Connections = int(connections.Int64)
		obs.Duration = duration.String
		obs.Itinerary = itinerary.String
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "scan", Err: err}
	}
	return out, nil
}

func parseObservedAt(s string) time.Time {
	for _, layout := range []string{observedAtLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
