package repository

import (
	"database/sql"
	"time"

	"github.com/dripworks/leadflow-backend/internal/model"
)

// QueueRepositoryInterface exposes one method per legal queue-item state
// transition, so the engine's state machine can be tested without storage.
type QueueRepositoryInterface interface {
	Insert(q *model.QueuedEmail) error
	GetByID(id int) (*model.QueuedEmail, error)
	GetDueItems(limit int, now time.Time) ([]*model.QueuedEmail, error)
	ClaimPending(id int, now time.Time) (bool, error)
	MarkSent(id int) error
	MarkFailed(id int, errMsg string) error
	ReleaseForRetry(id int, errMsg string) error
	MarkSkipped(id int, reason string) error
	SkipPendingForCampaign(campaignID int, reason string) (int, error)
	SkipPendingForContact(contactID int, campaignID *int, reason string) (int, error)
	CountByStatus(campaignID int) (map[string]int, error)
	SweepTerminal(before time.Time) (int, error)
}

type QueueRepository struct {
	DB *sql.DB
}

const queuedEmailColumns = `id, campaign_id, contact_id, step_id, scheduled_at,
    status, attempts, last_attempt_at, error_message, created_at, updated_at`

func (r *QueueRepository) Insert(q *model.QueuedEmail) error {
	now := time.Now()
	q.CreatedAt = now
	q.UpdatedAt = now
	if q.Status == "" {
		q.Status = model.QueuePending
	}
	query := `
        INSERT INTO email_queue (campaign_id, contact_id, step_id, scheduled_at, status, attempts, error_message, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		q.CampaignID, q.ContactID, q.StepID, q.ScheduledAt, q.Status, q.Attempts, q.ErrorMessage, q.CreatedAt, q.UpdatedAt,
	).Scan(&q.ID)
}

func (r *QueueRepository) GetByID(id int) (*model.QueuedEmail, error) {
	query := `SELECT ` + queuedEmailColumns + ` FROM email_queue WHERE id=$1`
	var q model.QueuedEmail
	err := r.DB.QueryRow(query, id).Scan(
		&q.ID, &q.CampaignID, &q.ContactID, &q.StepID, &q.ScheduledAt,
		&q.Status, &q.Attempts, &q.LastAttemptAt, &q.ErrorMessage, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &q, nil
}

// GetDueItems returns pending items whose scheduled_at has passed and whose
// owning campaign is active, earliest first. Paused and archived campaigns
// drop out of the scan here.
func (r *QueueRepository) GetDueItems(limit int, now time.Time) ([]*model.QueuedEmail, error) {
	query := `
        SELECT ` + prefixColumns("q", queuedEmailColumns) + `
        FROM email_queue q
        JOIN campaigns c ON c.id = q.campaign_id
        WHERE q.status = $1 AND q.scheduled_at <= $2 AND c.status = $3
        ORDER BY q.scheduled_at ASC
        LIMIT $4
    `
	rows, err := r.DB.Query(query, model.QueuePending, now, model.CampaignActive, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*model.QueuedEmail{}
	for rows.Next() {
		q := &model.QueuedEmail{}
		if err := rows.Scan(
			&q.ID, &q.CampaignID, &q.ContactID, &q.StepID, &q.ScheduledAt,
			&q.Status, &q.Attempts, &q.LastAttemptAt, &q.ErrorMessage, &q.CreatedAt, &q.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, q)
	}
	return items, rows.Err()
}

// ClaimPending is the single compare-and-swap that moves pending -> sending.
// Two workers racing on the same item: exactly one sees a row affected.
func (r *QueueRepository) ClaimPending(id int, now time.Time) (bool, error) {
	query := `
        UPDATE email_queue
        SET status=$1, attempts=attempts+1, last_attempt_at=$2, updated_at=$2
        WHERE id=$3 AND status=$4
    `
	res, err := r.DB.Exec(query, model.QueueSending, now, id, model.QueuePending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *QueueRepository) MarkSent(id int) error {
	query := `UPDATE email_queue SET status=$1, error_message='', updated_at=NOW() WHERE id=$2 AND status=$3`
	_, err := r.DB.Exec(query, model.QueueSent, id, model.QueueSending)
	return err
}

func (r *QueueRepository) MarkFailed(id int, errMsg string) error {
	query := `UPDATE email_queue SET status=$1, error_message=$2, updated_at=NOW() WHERE id=$3 AND status=$4`
	_, err := r.DB.Exec(query, model.QueueFailed, errMsg, id, model.QueueSending)
	return err
}

// ReleaseForRetry reverts sending -> pending with the error recorded. The
// item becomes due again on the next scan; no backoff delay is applied.
func (r *QueueRepository) ReleaseForRetry(id int, errMsg string) error {
	query := `UPDATE email_queue SET status=$1, error_message=$2, updated_at=NOW() WHERE id=$3 AND status=$4`
	_, err := r.DB.Exec(query, model.QueuePending, errMsg, id, model.QueueSending)
	return err
}

// MarkSkipped cancels an item. Valid from pending (explicit cancel) and from
// sending (dispatch-time suppression or terminal-contact check).
func (r *QueueRepository) MarkSkipped(id int, reason string) error {
	query := `UPDATE email_queue SET status=$1, error_message=$2, updated_at=NOW() WHERE id=$3 AND status IN ($4, $5)`
	_, err := r.DB.Exec(query, model.QueueSkipped, reason, id, model.QueuePending, model.QueueSending)
	return err
}

func (r *QueueRepository) SkipPendingForCampaign(campaignID int, reason string) (int, error) {
	query := `UPDATE email_queue SET status=$1, error_message=$2, updated_at=NOW() WHERE campaign_id=$3 AND status=$4`
	res, err := r.DB.Exec(query, model.QueueSkipped, reason, campaignID, model.QueuePending)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *QueueRepository) SkipPendingForContact(contactID int, campaignID *int, reason string) (int, error) {
	query := `UPDATE email_queue SET status=$1, error_message=$2, updated_at=NOW() WHERE contact_id=$3 AND status=$4`
	args := []interface{}{model.QueueSkipped, reason, contactID, model.QueuePending}
	if campaignID != nil {
		query += " AND campaign_id=$5"
		args = append(args, *campaignID)
	}
	res, err := r.DB.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *QueueRepository) CountByStatus(campaignID int) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM email_queue WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// SweepTerminal is the explicit retention sweep: terminal rows older than the
// cutoff are deleted; everything else is retained for audit.
func (r *QueueRepository) SweepTerminal(before time.Time) (int, error) {
	query := `DELETE FROM email_queue WHERE status IN ($1, $2, $3) AND updated_at < $4`
	res, err := r.DB.Exec(query, model.QueueSent, model.QueueFailed, model.QueueSkipped, before)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

var _ QueueRepositoryInterface = (*QueueRepository)(nil)
