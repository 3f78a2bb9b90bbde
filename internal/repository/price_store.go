package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	pkgch "StockCast/pkg/clickhouse"
	applogger "StockCast/pkg/logger"
)

// DefaultPriceTable holds archived daily closes.
const DefaultPriceTable = "stockcast.daily_prices"

// PriceSchema returns idempotent DDL for the price archive.
func PriceSchema(table string) []string {
	db := "default"
	if i := strings.IndexByte(table, '.'); i > 0 {
		db = table[:i]
	}
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            ticker      LowCardinality(String),
            date        Date,
            close       Float64,
            volume      Int64,
            source      LowCardinality(String),
            ingested_at DateTime64(3)
        )
        ENGINE = ReplacingMergeTree(ingested_at)
        ORDER BY (ticker, date)`, table),
	}
}

// CHPriceStore implements HistoryProvider and PriceArchive backed by ClickHouse.
type CHPriceStore struct {
	db     *sql.DB
	table  string
	source string
	l      *applogger.Logger
}

var (
	_ domrepo.HistoryProvider = (*CHPriceStore)(nil)
	_ domrepo.PriceArchive    = (*CHPriceStore)(nil)
)

func NewCHPriceStore(ch *pkgch.Client, table, source string) *CHPriceStore {
	if table == "" {
		table = DefaultPriceTable
	}
	return &CHPriceStore{db: ch.DB(), table: table, source: source}
}

// SetLogger injects a structured logger.
func (s *CHPriceStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHPriceStore) Name() string { return "clickhouse" }

// Fetch reads archived closes in [r.Start, r.End). FINAL collapses rows that
// were archived more than once.
func (s *CHPriceStore) Fetch(ctx context.Context, ticker string, r models.DateRange) (models.PriceHistory, error) {
	if err := r.Validate(); err != nil {
		return models.PriceHistory{}, err
	}
	start := time.Now()
	ticker = strings.ToUpper(ticker)
	q := fmt.Sprintf(`
        SELECT date, close, volume
        FROM %s FINAL
        WHERE ticker = ? AND date >= ? AND date < ?
        ORDER BY date ASC
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, ticker, r.Start, r.End)
	if err != nil {
		s.logErr("clickhouse fetch query error", ticker, err)
		return models.PriceHistory{}, fmt.Errorf("fetch prices: %w", err)
	}
	defer rows.Close()

	h := models.PriceHistory{Ticker: ticker, Records: make([]models.PriceRecord, 0, 256)}
	for rows.Next() {
		var rec models.PriceRecord
		if err := rows.Scan(&rec.Date, &rec.Close, &rec.Volume); err != nil {
			s.logErr("clickhouse fetch scan error", ticker, err)
			return models.PriceHistory{}, fmt.Errorf("scan price: %w", err)
		}
		rec.Date = rec.Date.UTC()
		h.Records = append(h.Records, rec)
	}
	if err := rows.Err(); err != nil {
		s.logErr("clickhouse fetch rows error", ticker, err)
		return models.PriceHistory{}, fmt.Errorf("rows: %w", err)
	}
	if h.Len() == 0 {
		return models.PriceHistory{}, fmt.Errorf("clickhouse %s: %w", ticker, models.ErrNotFound)
	}
	if s.l != nil {
		s.l.Debug("clickhouse fetch ok",
			applogger.String("ticker", ticker),
			applogger.Int("rows", h.Len()),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return h, nil
}

// StoreHistory inserts every record of h. Re-archiving the same days is safe.
func (s *CHPriceStore) StoreHistory(ctx context.Context, h models.PriceHistory) error {
	now := time.Now().UTC()
	for _, stmt := range buildInserts(s.table, s.source, h, now) {
		if _, err := s.db.ExecContext(ctx, stmt.query, stmt.args...); err != nil {
			s.logErr("clickhouse store error", h.Ticker, err)
			return fmt.Errorf("store prices: %w", err)
		}
	}
	return nil
}

func (s *CHPriceStore) logErr(msg, ticker string, err error) {
	if s.l == nil {
		return
	}
	s.l.Error(msg,
		applogger.String("table", s.table),
		applogger.String("ticker", ticker),
		applogger.Error(err),
	)
}

// insertChunk bounds the VALUES list of one INSERT.
const insertChunk = 2000

type insertStmt struct {
	query string
	args  []interface{}
}

func buildInserts(table, source string, h models.PriceHistory, now time.Time) []insertStmt {
	if h.Len() == 0 {
		return nil
	}
	ticker := strings.ToUpper(h.Ticker)
	var out []insertStmt
	for start := 0; start < h.Len(); start += insertChunk {
		end := min(start+insertChunk, h.Len())
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*6)
		for _, rec := range h.Records[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?)")
			args = append(args, ticker, rec.Date, rec.Close, rec.Volume, source, now)
		}
		out = append(out, insertStmt{
			query: fmt.Sprintf("INSERT INTO %s (ticker, date, close, volume, source, ingested_at) VALUES %s",
				table, strings.Join(values, ",")),
			args: args,
		})
	}
	return out
}
