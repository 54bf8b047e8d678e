package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// LowStockScanJob walks the item table for stock at or below the reorder
// level and mails a reorder summary.
type LowStockScanJob struct {
	Pool   *pgxpool.Pool
	Client *Client
	Logger *slog.Logger
	clock  func() time.Time
}

// NewLowStockScanJob initialises the scan handler. client may be nil, in
// which case findings are only logged.
func NewLowStockScanJob(pool *pgxpool.Pool, client *Client, logger *slog.Logger) *LowStockScanJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &LowStockScanJob{
		Pool:   pool,
		Client: client,
		Logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

type lowStockFinding struct {
	ItemID        int64
	OwnerID       int64
	Name          string
	SKU           string
	Total         int64
	MinStockLevel int64
}

// Handle executes one scan run.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("low-stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	findings, err := j.scan(ctx)
	if err != nil {
		j.Logger.Error("low-stock scan failed", slog.Any("error", err))
		return err
	}
	j.Logger.Info("low-stock scan finished", slog.Int("findings", len(findings)))
	if len(findings) == 0 || payload.Recipient == "" || j.Client == nil {
		return nil
	}

	_, err = j.Client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      payload.Recipient,
		Subject: fmt.Sprintf("Depotix: %d Artikel unter Mindestbestand", len(findings)),
		Body:    renderLowStockSummary(findings, j.clock()),
	})
	return err
}

func (j *LowStockScanJob) scan(ctx context.Context) ([]lowStockFinding, error) {
	rows, err := j.Pool.Query(ctx, `
		SELECT id, owner_id, name, sku, palette_count * packages_per_pallet + package_count, min_stock_level
		FROM items
		WHERE is_active
		  AND palette_count * packages_per_pallet + package_count <= min_stock_level
		ORDER BY owner_id, name`)
	if err != nil {
		return nil, fmt.Errorf("low-stock scan: query: %w", err)
	}
	defer rows.Close()

	var findings []lowStockFinding
	for rows.Next() {
		var f lowStockFinding
		if err := rows.Scan(&f.ItemID, &f.OwnerID, &f.Name, &f.SKU, &f.Total, &f.MinStockLevel); err != nil {
			return nil, fmt.Errorf("low-stock scan: scan row: %w", err)
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

// renderLowStockSummary formats the findings with Swiss digit grouping
// (1'234), matching how quantities are shown elsewhere in the product.
func renderLowStockSummary(findings []lowStockFinding, at time.Time) string {
	p := message.NewPrinter(language.MustParse("de-CH"))
	var b strings.Builder
	fmt.Fprintf(&b, "Bestandswarnung vom %s\n\n", at.Format("02.01.2006"))
	for _, f := range findings {
		fmt.Fprintf(&b, "- %s (%s): Bestand %s Pakete, Mindestbestand %s\n",
			f.Name, f.SKU, p.Sprintf("%d", f.Total), p.Sprintf("%d", f.MinStockLevel))
	}
	return b.String()
}
