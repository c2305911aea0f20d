package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"nadlan-scraper/models"
)

// PostgresWriter upserts exported transactions into PostgreSQL.
type PostgresWriter struct {
	db *sqlx.DB
}

type transactionRow struct {
	EntityKey        string `db:"entity_key"`
	EntityName       string `db:"entity_name"`
	RecordHash       string `db:"record_hash"`
	Address          string `db:"address"`
	Area             string `db:"area"`
	TransactionDate  string `db:"transaction_date"`
	Price            string `db:"price"`
	ParcelRef        string `db:"parcel_ref"`
	PropertyType     string `db:"property_type"`
	Rooms            string `db:"rooms"`
	Floor            string `db:"floor"`
	BuildYear        string `db:"build_year"`
	PricePerArea     string `db:"price_per_area"`
	FloorsInBuilding string `db:"floors_in_building"`
}

const insertTransaction = `
	INSERT INTO transactions (
		entity_key, entity_name, record_hash, address, area, transaction_date, price,
		parcel_ref, property_type, rooms, floor, build_year, price_per_area, floors_in_building
	) VALUES (
		:entity_key, :entity_name, :record_hash, :address, :area, :transaction_date, :price,
		:parcel_ref, :property_type, :rooms, :floor, :build_year, :price_per_area, :floors_in_building
	)
	ON CONFLICT (entity_key, record_hash) DO NOTHING`

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id                 SERIAL PRIMARY KEY,
			entity_key         TEXT        NOT NULL,
			entity_name        TEXT        NOT NULL DEFAULT '',
			record_hash        CHAR(64)    NOT NULL,
			address            TEXT        NOT NULL DEFAULT '',
			area               TEXT        NOT NULL DEFAULT '',
			transaction_date   TEXT        NOT NULL DEFAULT '',
			price              TEXT        NOT NULL DEFAULT '',
			parcel_ref         TEXT        NOT NULL DEFAULT '',
			property_type      TEXT        NOT NULL DEFAULT '',
			rooms              TEXT        NOT NULL DEFAULT '',
			floor              TEXT        NOT NULL DEFAULT '',
			build_year         TEXT        NOT NULL DEFAULT '',
			price_per_area     TEXT        NOT NULL DEFAULT '',
			floors_in_building TEXT        NOT NULL DEFAULT '',
			created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (entity_key, record_hash)
		);

		CREATE INDEX IF NOT EXISTS idx_transactions_entity ON transactions(entity_key);
		CREATE INDEX IF NOT EXISTS idx_transactions_parcel ON transactions(parcel_ref);
	`)
	return err
}

// Write batch-inserts the entity's records; rows already present are left alone.
func (pw *PostgresWriter) Write(ctx context.Context, entity models.Entity, records []models.TransactionRecord) error {
	rows := toRows(entity, records)

	const batchSize = 50
	for i := 0; i < len(rows); i += batchSize {
		end := i + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if _, err := pw.db.NamedExecContext(ctx, insertTransaction, rows[i:end]); err != nil {
			return fmt.Errorf("postgres: insert batch for %q: %w", entity.Key(), err)
		}
	}
	return nil
}

func toRows(entity models.Entity, records []models.TransactionRecord) []transactionRow {
	rows := make([]transactionRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, transactionRow{
			EntityKey:        entity.Key(),
			EntityName:       entity.Name,
			RecordHash:       r.Hash(),
			Address:          r.Address,
			Area:             r.Area,
			TransactionDate:  r.TransactionDate,
			Price:            r.Price,
			ParcelRef:        r.ParcelRef,
			PropertyType:     r.PropertyType,
			Rooms:            r.Rooms,
			Floor:            r.Floor,
			BuildYear:        r.BuildYear,
			PricePerArea:     r.PricePerArea,
			FloorsInBuilding: r.FloorsInBuilding,
		})
	}
	return rows
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
