// Package postgres stores the fare history in Postgres, for deployments that
// share one history across bot instances.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"flyshark/internal/domain"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const schema = `
CREATE TABLE IF NOT EXISTS
historico_buscas (
    id                 BIGSERIAL     PRIMARY KEY,
    origem             VARCHAR(3)    NOT NULL,
    destino            VARCHAR(3)    NOT NULL,
    data_ida           DATE          NOT NULL,
    data_volta         DATE,
    companhia          VARCHAR(100)  DEFAULT '',
    classe             VARCHAR(10)   NOT NULL,
    preco              NUMERIC(12,2) NOT NULL,
    data_consulta      TIMESTAMPTZ   NOT NULL,
    status_termometro  VARCHAR(20)   DEFAULT ''
);

ALTER TABLE historico_buscas ADD COLUMN IF NOT EXISTS conexoes    INT;
ALTER TABLE historico_buscas ADD COLUMN IF NOT EXISTS duracao_voo VARCHAR(20);
ALTER TABLE historico_buscas ADD COLUMN IF NOT EXISTS itinerario  TEXT;

CREATE INDEX IF NOT EXISTS
historico_rota_idx ON historico_buscas (origem, destino, classe, data_consulta);
`

type Store struct {
	db *sql.DB
}

func Open(url string) (*Store, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

var fareColumns = []string{
	"origem", "destino", "data_ida", "data_volta", "companhia", "classe", "preco",
	"data_consulta", "status_termometro", "conexoes", "duracao_voo", "itinerario",
}

// InsertFares bulk-loads rows with COPY inside one transaction.
func (s *Store) InsertFares(ctx context.Context, rows []domain.FareObservation) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &domain.PersistenceError{Op: "insert", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("historico_buscas", fareColumns...))
	if err != nil {
		return 0, &domain.PersistenceError{Op: "insert", Err: err}
	}

	for _, obs := range rows {
		var ret any
		if obs.ReturnDate != nil {
			ret = *obs.ReturnDate
		}
		_, err := stmt.ExecContext(ctx,
			obs.Origin, obs.Destination, obs.DepartureDate, ret, obs.Carrier,
			string(obs.CabinClass), obs.Price.StringFixed(2), obs.ObservedAt.UTC(),
			string(obs.Status), obs.Connections, obs.Duration, obs.Itinerary,
		)
		if err != nil {
			stmt.Close()
			return 0, &domain.PersistenceError{Op: "insert", Err: err}
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, &domain.PersistenceError{Op: "insert", Err: err}
	}
	if err := stmt.Close(); err != nil {
		return 0, &domain.PersistenceError{Op: "insert", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return 0, &domain.PersistenceError{Op: "insert", Err: err}
	}
	return len(rows), nil
}

var selectFares = `SELECT id, ` + strings.Join(fareColumns, ", ") + ` FROM historico_buscas`

func (s *Store) FaresByRoute(ctx context.Context, origin, destination string, cabin domain.CabinClass) ([]domain.FareObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		selectFares+` WHERE origem = $1 AND destino = $2 AND classe = $3 ORDER BY data_consulta, id`,
		origin, destination, string(cabin),
	)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "select", Err: err}
	}
	return scanFares(rows)
}

func (s *Store) RecentFares(ctx context.Context, origin, destination string, cabin domain.CabinClass, limit int) ([]domain.FareObservation, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT * FROM (`+selectFares+` WHERE origem = $1 AND destino = $2 AND classe = $3
		 ORDER BY data_consulta DESC, id DESC LIMIT $4) AS recent ORDER BY data_consulta, id`,
		origin, destination, string(cabin), limit,
	)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "select", Err: err}
	}
	return scanFares(rows)
}

func scanFares(rows *sql.Rows) ([]domain.FareObservation, error) {
	defer rows.Close()

	var out []domain.FareObservation
	for rows.Next() {
		var (
			obs         domain.FareObservation
			ret         pq.NullTime
			carrier     sql.NullString
			cabin       string
			price       decimal.Decimal
			status      sql.NullString
			connections sql.NullInt64
			duration    sql.NullString
			itinerary   sql.NullString
		)
		err := rows.Scan(
			&obs.ID, &obs.Origin, &obs.Destination, &obs.DepartureDate, &ret, &carrier, &cabin,
			&price, &obs.ObservedAt, &status, &connections, &duration, &itinerary,
		)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "scan", Err: err}
		}
		obs.DepartureDate = domain.DateOf(obs.DepartureDate)
		if ret.Valid {
			d := domain.DateOf(ret.Time)
			obs.ReturnDate = &d
		}
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

// Ping verifies the connection, bounded by timeout.
func (s *Store) Ping(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.db.PingContext(ctx)
}
