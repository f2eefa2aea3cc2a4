package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"appproft-buybox-sync/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteTrackingRepository implements TrackingRepository and
// CredentialRepository using SQLite. Default backend for development and
// single-instance deployments.
type SQLiteTrackingRepository struct {
	db     *sql.DB
	cipher *Cipher
	mu     sync.Mutex
}

// NewSQLiteTrackingRepository creates a new SQLite tracking repository.
// dbPath is the path to the SQLite database file (e.g., "./data/buybox.db").
func NewSQLiteTrackingRepository(dbPath string, cipher *Cipher) (*SQLiteTrackingRepository, error) {
	// Open with WAL mode and other optimizations
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite connection pool settings
	db.SetMaxOpenConns(1) // SQLite only supports 1 writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createSQLiteTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteTrackingRepository] Initialized with database: %s", dbPath)
	return &SQLiteTrackingRepository{db: db, cipher: cipher}, nil
}

// createSQLiteTables creates the tracking schema.
func createSQLiteTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS buy_box_status (
		asin TEXT PRIMARY KEY,
		is_owner INTEGER NOT NULL DEFAULT 0,
		owner_id TEXT NOT NULL DEFAULT '',
		owner_name TEXT NOT NULL DEFAULT '',
		buy_box_price REAL NOT NULL DEFAULT 0,
		own_price REAL NOT NULL DEFAULT 0,
		competitor_count INTEGER NOT NULL DEFAULT 0,
		last_checked_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS buy_box_transitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asin TEXT NOT NULL,
		kind TEXT NOT NULL,
		previous_owner TEXT NOT NULL DEFAULT '',
		new_owner TEXT NOT NULL DEFAULT '',
		previous_price REAL NOT NULL DEFAULT 0,
		new_price REAL NOT NULL DEFAULT 0,
		occurred_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transitions_asin ON buy_box_transitions(asin, occurred_at);

	CREATE TABLE IF NOT EXISTS competitor_offers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asin TEXT NOT NULL,
		seller_id TEXT NOT NULL,
		seller_name TEXT NOT NULL DEFAULT '',
		price REAL NOT NULL DEFAULT 0,
		shipping_cost REAL NOT NULL DEFAULT 0,
		fulfillment_type TEXT NOT NULL DEFAULT '',
		is_buy_box_winner INTEGER NOT NULL DEFAULT 0,
		item_condition TEXT NOT NULL DEFAULT '',
		feedback_rating REAL NOT NULL DEFAULT 0,
		feedback_count INTEGER NOT NULL DEFAULT 0,
		collected_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_offers_asin ON competitor_offers(asin, collected_at);
	CREATE INDEX IF NOT EXISTS idx_offers_collected ON competitor_offers(collected_at);

	CREATE TABLE IF NOT EXISTS hijacker_alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asin TEXT NOT NULL,
		hijacker_id TEXT NOT NULL,
		hijacker_name TEXT NOT NULL DEFAULT '',
		own_price REAL NOT NULL DEFAULT 0,
		hijacker_price REAL NOT NULL DEFAULT 0,
		detected_at DATETIME NOT NULL,
		resolved_at DATETIME,
		is_active INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_asin ON hijacker_alerts(asin);
	CREATE INDEX IF NOT EXISTS idx_alerts_active ON hijacker_alerts(is_active);

	CREATE TABLE IF NOT EXISTS sync_runs (
		id TEXT PRIMARY KEY,
		trigger_type TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		items_total INTEGER NOT NULL DEFAULT 0,
		items_succeeded INTEGER NOT NULL DEFAULT 0,
		items_failed INTEGER NOT NULL DEFAULT 0,
		error_text TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS marketplace_credentials (
		marketplace TEXT PRIMARY KEY,
		seller_id TEXT NOT NULL DEFAULT '',
		refresh_token_enc TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := db.Exec(query)
	return err
}

// GetStatus returns the current status for an ASIN, or nil when absent.
func (r *SQLiteTrackingRepository) GetStatus(ctx context.Context, asin string) (*model.BuyBoxStatus, error) {
	query := `
		SELECT asin, is_owner, owner_id, owner_name, buy_box_price, own_price,
		       competitor_count, last_checked_at
		FROM buy_box_status WHERE asin = ?`

	var s model.BuyBoxStatus
	err := r.db.QueryRowContext(ctx, query, asin).Scan(
		&s.ASIN, &s.IsOwner, &s.OwnerID, &s.OwnerName, &s.BuyBoxPrice,
		&s.OwnPrice, &s.CompetitorCount, &s.LastCheckedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	return &s, nil
}

// ListStatuses returns the current status of every observed item.
func (r *SQLiteTrackingRepository) ListStatuses(ctx context.Context) ([]model.BuyBoxStatus, error) {
	query := `
		SELECT asin, is_owner, owner_id, owner_name, buy_box_price, own_price,
		       competitor_count, last_checked_at
		FROM buy_box_status ORDER BY asin`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}
	defer rows.Close()

	var statuses []model.BuyBoxStatus
	for rows.Next() {
		var s model.BuyBoxStatus
		if err := rows.Scan(&s.ASIN, &s.IsOwner, &s.OwnerID, &s.OwnerName,
			&s.BuyBoxPrice, &s.OwnPrice, &s.CompetitorCount, &s.LastCheckedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}

// ApplyDiff persists one item's writes as a single transaction:
// status upsert, history append, offer snapshot, alert changes.
func (r *SQLiteTrackingRepository) ApplyDiff(ctx context.Context, mut DiffMutation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	s := mut.Status
	_, err = tx.ExecContext(ctx, `
		INSERT INTO buy_box_status (asin, is_owner, owner_id, owner_name,
			buy_box_price, own_price, competitor_count, last_checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(asin) DO UPDATE SET
			is_owner = excluded.is_owner,
			owner_id = excluded.owner_id,
			owner_name = excluded.owner_name,
			buy_box_price = excluded.buy_box_price,
			own_price = excluded.own_price,
			competitor_count = excluded.competitor_count,
			last_checked_at = MAX(last_checked_at, excluded.last_checked_at)`,
		s.ASIN, s.IsOwner, s.OwnerID, s.OwnerName,
		s.BuyBoxPrice, s.OwnPrice, s.CompetitorCount, s.LastCheckedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert status: %w", err)
	}

	if t := mut.Transition; t != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO buy_box_transitions (asin, kind, previous_owner,
				new_owner, previous_price, new_price, occurred_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.ASIN, string(t.Kind), t.PreviousOwner, t.NewOwner,
			t.PreviousPrice, t.NewPrice, t.OccurredAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to append transition: %w", err)
		}
	}

	if len(mut.Offers) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO competitor_offers (asin, seller_id, seller_name, price,
				shipping_cost, fulfillment_type, is_buy_box_winner,
				item_condition, feedback_rating, feedback_count, collected_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare offer insert: %w", err)
		}
		defer stmt.Close()

		for _, o := range mut.Offers {
			_, err := stmt.ExecContext(ctx, o.ASIN, o.SellerID, o.SellerName,
				o.Price, o.ShippingCost, o.FulfillmentType, o.IsBuyBoxWinner,
				o.Condition, o.FeedbackRating, o.FeedbackCount, o.CollectedAt.UTC())
			if err != nil {
				return fmt.Errorf("failed to insert offer for %s: %w", o.ASIN, err)
			}
		}
	}

	if a := mut.OpenAlert; a != nil {
		// No duplicate: skipped when an alert is already active for
		// this exact (asin, hijacker) pair.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO hijacker_alerts (asin, hijacker_id, hijacker_name,
				own_price, hijacker_price, detected_at, is_active)
			SELECT ?, ?, ?, ?, ?, ?, 1
			WHERE NOT EXISTS (
				SELECT 1 FROM hijacker_alerts
				WHERE asin = ? AND hijacker_id = ? AND is_active = 1
			)`,
			a.ASIN, a.HijackerID, a.HijackerName, a.OwnPrice,
			a.HijackerPrice, a.DetectedAt.UTC(), a.ASIN, a.HijackerID)
		if err != nil {
			return fmt.Errorf("failed to open alert: %w", err)
		}
	}

	if mut.ResolveAlerts {
		_, err = tx.ExecContext(ctx, `
			UPDATE hijacker_alerts
			SET is_active = 0, resolved_at = ?
			WHERE asin = ? AND is_active = 1`,
			mut.ResolvedAt.UTC(), mut.Status.ASIN)
		if err != nil {
			return fmt.Errorf("failed to resolve alerts: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListTransitions returns history rows for an ASIN, newest first.
func (r *SQLiteTrackingRepository) ListTransitions(ctx context.Context, asin string, limit int) ([]model.BuyBoxTransition, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, asin, kind, previous_owner, new_owner, previous_price,
		       new_price, occurred_at
		FROM buy_box_transitions
		WHERE asin = ?
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, asin, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	defer rows.Close()

	var transitions []model.BuyBoxTransition
	for rows.Next() {
		var t model.BuyBoxTransition
		var kind string
		if err := rows.Scan(&t.ID, &t.ASIN, &kind, &t.PreviousOwner,
			&t.NewOwner, &t.PreviousPrice, &t.NewPrice, &t.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		t.Kind = model.TransitionKind(kind)
		transitions = append(transitions, t)
	}
	return transitions, rows.Err()
}

// DeleteOffersBefore removes competitor-offer rows older than the cutoff.
func (r *SQLiteTrackingRepository) DeleteOffersBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM competitor_offers WHERE collected_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old offers: %w", err)
	}
	return res.RowsAffected()
}

// FindActiveAlert returns the active alert for (asin, hijacker), or nil.
func (r *SQLiteTrackingRepository) FindActiveAlert(ctx context.Context, asin, hijackerID string) (*model.HijackAlert, error) {
	query := alertSelectSQLite + ` WHERE asin = ? AND hijacker_id = ? AND is_active = 1 LIMIT 1`

	row := r.db.QueryRowContext(ctx, query, asin, hijackerID)
	alert, err := scanAlertRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active alert: %w", err)
	}
	return alert, nil
}

// ListActiveAlerts returns all active alerts, newest first.
func (r *SQLiteTrackingRepository) ListActiveAlerts(ctx context.Context) ([]model.HijackAlert, error) {
	return r.listAlerts(ctx, alertSelectSQLite+` WHERE is_active = 1 ORDER BY detected_at DESC`)
}

// ListResolvedAlerts returns resolved alerts, newest first.
func (r *SQLiteTrackingRepository) ListResolvedAlerts(ctx context.Context) ([]model.HijackAlert, error) {
	return r.listAlerts(ctx, alertSelectSQLite+` WHERE is_active = 0 ORDER BY resolved_at DESC`)
}

const alertSelectSQLite = `
	SELECT id, asin, hijacker_id, hijacker_name, own_price, hijacker_price,
	       detected_at, resolved_at, is_active
	FROM hijacker_alerts`

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlertRow(row rowScanner) (*model.HijackAlert, error) {
	var a model.HijackAlert
	var resolvedAt sql.NullTime
	if err := row.Scan(&a.ID, &a.ASIN, &a.HijackerID, &a.HijackerName,
		&a.OwnPrice, &a.HijackerPrice, &a.DetectedAt, &resolvedAt, &a.IsActive); err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
	return &a, nil
}

func (r *SQLiteTrackingRepository) listAlerts(ctx context.Context, query string) ([]model.HijackAlert, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.HijackAlert
	for rows.Next() {
		alert, err := scanAlertRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *alert)
	}
	return alerts, rows.Err()
}

// CreateSyncRun inserts the run row at orchestration start.
func (r *SQLiteTrackingRepository) CreateSyncRun(ctx context.Context, run *model.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, trigger_type, status, started_at,
			items_total, items_succeeded, items_failed, error_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Trigger), run.Status, run.StartedAt.UTC(),
		run.ItemsTotal, run.ItemsSucceeded, run.ItemsFailed, run.Error)
	if err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}
	return nil
}

// FinishSyncRun records the run outcome.
func (r *SQLiteTrackingRepository) FinishSyncRun(ctx context.Context, run *model.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var completedAt any
	if run.CompletedAt != nil {
		completedAt = run.CompletedAt.UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE sync_runs
		SET status = ?, completed_at = ?, items_total = ?,
		    items_succeeded = ?, items_failed = ?, error_text = ?
		WHERE id = ?`,
		run.Status, completedAt, run.ItemsTotal,
		run.ItemsSucceeded, run.ItemsFailed, run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish sync run: %w", err)
	}
	return nil
}

// LastSyncRun returns the most recently started run, or nil.
func (r *SQLiteTrackingRepository) LastSyncRun(ctx context.Context) (*model.SyncRun, error) {
	query := `
		SELECT id, trigger_type, status, started_at, completed_at,
		       items_total, items_succeeded, items_failed, error_text
		FROM sync_runs ORDER BY started_at DESC LIMIT 1`

	var run model.SyncRun
	var trigger string
	var completedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query).Scan(&run.ID, &trigger, &run.Status,
		&run.StartedAt, &completedAt, &run.ItemsTotal, &run.ItemsSucceeded,
		&run.ItemsFailed, &run.Error)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last sync run: %w", err)
	}
	run.Trigger = model.SyncTrigger(trigger)
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return &run, nil
}

// GetCredential loads and decrypts the refresh credential.
func (r *SQLiteTrackingRepository) GetCredential(ctx context.Context, marketplace string) (*model.MarketplaceCredential, error) {
	if r.cipher == nil {
		return nil, fmt.Errorf("credential cipher not configured")
	}

	var cred model.MarketplaceCredential
	var encrypted string
	err := r.db.QueryRowContext(ctx, `
		SELECT marketplace, seller_id, refresh_token_enc, updated_at
		FROM marketplace_credentials WHERE marketplace = ?`, marketplace).Scan(
		&cred.Marketplace, &cred.SellerID, &encrypted, &cred.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no credential stored for marketplace %s", marketplace)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	cred.RefreshToken, err = r.cipher.Decrypt(encrypted)
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// SaveCredential encrypts and upserts the refresh credential.
func (r *SQLiteTrackingRepository) SaveCredential(ctx context.Context, cred *model.MarketplaceCredential) error {
	if r.cipher == nil {
		return fmt.Errorf("credential cipher not configured")
	}

	encrypted, err := r.cipher.Encrypt(cred.RefreshToken)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO marketplace_credentials (marketplace, seller_id, refresh_token_enc, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(marketplace) DO UPDATE SET
			seller_id = excluded.seller_id,
			refresh_token_enc = excluded.refresh_token_enc,
			updated_at = excluded.updated_at`,
		cred.Marketplace, cred.SellerID, encrypted, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (r *SQLiteTrackingRepository) Ping() error {
	return r.db.Ping()
}

// Close closes the repository connection.
func (r *SQLiteTrackingRepository) Close() error {
	return r.db.Close()
}

// Ensure SQLiteTrackingRepository implements the repository interfaces
var (
	_ TrackingRepository   = (*SQLiteTrackingRepository)(nil)
	_ CredentialRepository = (*SQLiteTrackingRepository)(nil)
)
