package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tokentill/tokentill/internal/model"
)

// ActivityRepository provides database access for transfer activity events.
type ActivityRepository struct {
	repo *Repository
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(repo *Repository) *ActivityRepository {
	return &ActivityRepository{repo: repo}
}

// BulkInsert inserts multiple transfer events with idempotency via ON CONFLICT DO NOTHING.
func (r *ActivityRepository) BulkInsert(ctx context.Context, events []*model.TransferEvent) error {
	if len(events) == 0 {
		return nil
	}

	// Multi-row batches are fine at these sizes; COPY is not worth it here.
	batch := &pgx.Batch{}

	query := `
		INSERT INTO transfer_events (
			id, event_id, transfer_id, from_address, to_address,
			amount, fee, occurred_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`

	for _, event := range events {
		batch.Queue(query,
			event.ID,
			event.EventID,
			event.TransferID,
			nullableString(event.FromAddress),
			event.ToAddress,
			strconv.FormatUint(event.Amount, 10),
			strconv.FormatUint(event.Fee, 10),
			event.OccurredAt,
		)
	}

	results := r.repo.pool.SendBatch(ctx, batch)
	defer results.Close()

	// Check for errors in batch execution
	for i := 0; i < len(events); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert event %d: %w", i, err)
		}
	}

	return nil
}

// UpdateDailyStats updates the daily_account_stats table with aggregated data.
// Each account touched by the batch gets its affected days recomputed from
// the transfer_events table, so replayed batches converge to the same rows.
func (r *ActivityRepository) UpdateDailyStats(ctx context.Context, events []*model.TransferEvent) error {
	if len(events) == 0 {
		return nil
	}

	keys := uniqueDailyKeys(events)
	for _, key := range keys {
		acc, err := r.recalculateDailyStat(ctx, key.address, key.date)
		if err != nil {
			return fmt.Errorf("recalculate daily stat %s:%s: %w", key.address, key.date.Format("2006-01-02"), err)
		}
		if err := r.upsertDailyStat(ctx, acc); err != nil {
			return fmt.Errorf("upsert daily stat %s:%s: %w", key.address, key.date.Format("2006-01-02"), err)
		}
	}

	return nil
}

// dailyStatsAccumulator accumulates stats for a single account/date combination.
type dailyStatsAccumulator struct {
	address        string
	date           time.Time
	sentCount      int64
	receivedCount  int64
	sentVolume     uint64
	receivedVolume uint64
}

type dailyStatsKey struct {
	address string
	date    time.Time
}

// uniqueDailyKeys returns the (account, day) pairs touched by a batch.
// A transfer touches both sides; credits only touch the receiver.
func uniqueDailyKeys(events []*model.TransferEvent) []dailyStatsKey {
	seen := make(map[string]dailyStatsKey)
	for _, event := range events {
		day := event.OccurredAt.UTC().Truncate(24 * time.Hour)
		for _, address := range []string{event.FromAddress, event.ToAddress} {
			if address == "" {
				continue
			}
			key := fmt.Sprintf("%s:%s", address, day.Format("2006-01-02"))
			seen[key] = dailyStatsKey{address: address, date: day}
		}
	}

	keys := make([]dailyStatsKey, 0, len(seen))
	for _, key := range seen {
		keys = append(keys, key)
	}
	return keys
}

func (r *ActivityRepository) recalculateDailyStat(ctx context.Context, address string, date time.Time) (*dailyStatsAccumulator, error) {
	start := date.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	query := `
		SELECT COALESCE(from_address, ''), to_address, amount::text
		FROM transfer_events
		WHERE (from_address = $1 OR to_address = $1)
		  AND occurred_at >= $2 AND occurred_at < $3
	`

	rows, err := r.repo.pool.Query(ctx, query, address, start, end)
	if err != nil {
		return nil, fmt.Errorf("query transfer events: %w", err)
	}
	defer rows.Close()

	acc := &dailyStatsAccumulator{address: address, date: start}
	for rows.Next() {
		var from, to, amountText string
		if err := rows.Scan(&from, &to, &amountText); err != nil {
			return nil, fmt.Errorf("scan transfer event: %w", err)
		}

		amount, err := strconv.ParseUint(amountText, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amountText, err)
		}

		if from == address {
			acc.sentCount++
			acc.sentVolume += amount
		}
		if to == address {
			acc.receivedCount++
			acc.receivedVolume += amount
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer events: %w", err)
	}

	return acc, nil
}

// upsertDailyStat inserts or updates a daily_account_stats row.
func (r *ActivityRepository) upsertDailyStat(ctx context.Context, acc *dailyStatsAccumulator) error {
	id := fmt.Sprintf("%s:%s", acc.address, acc.date.Format("2006-01-02"))

	query := `
		INSERT INTO daily_account_stats (
			id, address, date, sent_count, received_count,
			sent_volume, received_volume, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, NOW(), NOW())
		ON CONFLICT (address, date) DO UPDATE SET
			sent_count = EXCLUDED.sent_count,
			received_count = EXCLUDED.received_count,
			sent_volume = EXCLUDED.sent_volume,
			received_volume = EXCLUDED.received_volume,
			updated_at = NOW()
	`

	_, err := r.repo.pool.Exec(ctx, query,
		id,
		acc.address,
		acc.date,
		acc.sentCount,
		acc.receivedCount,
		strconv.FormatUint(acc.sentVolume, 10),
		strconv.FormatUint(acc.receivedVolume, 10),
	)

	return err
}

// GetDailyStats retrieves daily stats for an account within a date range.
func (r *ActivityRepository) GetDailyStats(ctx context.Context, address string, from, to time.Time) ([]*model.DailyAccountStats, error) {
	query := `
		SELECT id, address, date, sent_count, received_count,
			   sent_volume::text, received_volume::text, created_at, updated_at
		FROM daily_account_stats
		WHERE address = $1 AND date >= $2 AND date <= $3
		ORDER BY date DESC
	`

	rows, err := r.repo.pool.Query(ctx, query, address, from, to)
	if err != nil {
		return nil, fmt.Errorf("query daily stats: %w", err)
	}
	defer rows.Close()

	var stats []*model.DailyAccountStats
	for rows.Next() {
		stat, err := scanDailyStat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan daily stat: %w", err)
		}
		stats = append(stats, stat)
	}

	return stats, rows.Err()
}

// GetActivitySummary retrieves aggregated activity for an account.
func (r *ActivityRepository) GetActivitySummary(ctx context.Context, address string, from, to time.Time) (*model.ActivitySummary, error) {
	query := `
		SELECT
			COALESCE(SUM(sent_count), 0),
			COALESCE(SUM(received_count), 0),
			COALESCE(SUM(sent_volume), 0)::text,
			COALESCE(SUM(received_volume), 0)::text
		FROM daily_account_stats
		WHERE address = $1 AND date >= $2 AND date <= $3
	`

	var sentCount, receivedCount int64
	var sentVolumeText, receivedVolumeText string

	err := r.repo.pool.QueryRow(ctx, query, address, from, to).Scan(
		&sentCount, &receivedCount, &sentVolumeText, &receivedVolumeText,
	)
	if err != nil {
		return nil, fmt.Errorf("query activity summary: %w", err)
	}

	sentVolume, err := strconv.ParseUint(sentVolumeText, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse sent volume %q: %w", sentVolumeText, err)
	}
	receivedVolume, err := strconv.ParseUint(receivedVolumeText, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse received volume %q: %w", receivedVolumeText, err)
	}

	return &model.ActivitySummary{
		SentCount:      sentCount,
		ReceivedCount:  receivedCount,
		SentVolume:     sentVolume,
		ReceivedVolume: receivedVolume,
	}, nil
}

// scanDailyStat scans a row into DailyAccountStats.
func scanDailyStat(rows pgx.Rows) (*model.DailyAccountStats, error) {
	var stat model.DailyAccountStats
	var sentVolume, receivedVolume string

	err := rows.Scan(
		&stat.ID,
		&stat.Address,
		&stat.Date,
		&stat.SentCount,
		&stat.ReceivedCount,
		&sentVolume,
		&receivedVolume,
		&stat.CreatedAt,
		&stat.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsedSent, err := strconv.ParseUint(sentVolume, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse sent volume %q: %w", sentVolume, err)
	}
	stat.SentVolume = parsedSent

	parsedReceived, err := strconv.ParseUint(receivedVolume, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse received volume %q: %w", receivedVolume, err)
	}
	stat.ReceivedVolume = parsedReceived

	return &stat, nil
}

// nullableString returns nil for empty strings.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
