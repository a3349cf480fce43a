package repository

import (
	"database/sql"
	"fmt"
	"time"

	appErrors "github.com/dripworks/leadflow-backend/internal/errors"
	"github.com/dripworks/leadflow-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	// Campaign CRUD
	Create(c *model.Campaign) error
	GetByID(id int) (*model.Campaign, error)
	ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error)
	UpdateStatus(campaignID int, status string) error
	SetStartDate(campaignID int, t time.Time) error
	SetEndDate(campaignID int, t time.Time) error

	// Email steps
	CreateStep(s *model.EmailStep) error
	ListActiveSteps(campaignID int) ([]model.EmailStep, error)
	GetStep(stepID int) (*model.EmailStep, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	query := `
        INSERT INTO campaigns (name, campaign_ref, status, contact_list_id,
            sending_window_start, sending_window_end, sending_days,
            randomization_minutes, daily_send_limit, hourly_send_limit,
            step_delay_days, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		c.Name, c.CampaignRef, c.Status, c.ContactListID,
		c.SendingWindowStart, c.SendingWindowEnd, c.SendingDays,
		c.RandomizationMinutes, c.DailySendLimit, c.HourlySendLimit,
		c.StepDelayDays, c.CreatedAt,
	).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := `
        SELECT id, name, campaign_ref, status, contact_list_id,
               sending_window_start, sending_window_end, sending_days,
               randomization_minutes, daily_send_limit, hourly_send_limit,
               step_delay_days, start_date, end_date, created_at, updated_at
        FROM campaigns WHERE id=$1
    `
	var c model.Campaign
	err := r.DB.QueryRow(query, id).Scan(
		&c.ID, &c.Name, &c.CampaignRef, &c.Status, &c.ContactListID,
		&c.SendingWindowStart, &c.SendingWindowEnd, &c.SendingDays,
		&c.RandomizationMinutes, &c.DailySendLimit, &c.HourlySendLimit,
		&c.StepDelayDays, &c.StartDate, &c.EndDate, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `
        SELECT id, name, campaign_ref, status, contact_list_id,
               sending_window_start, sending_window_end, sending_days,
               randomization_minutes, daily_send_limit, hourly_send_limit,
               step_delay_days, start_date, end_date, created_at, updated_at
        FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c := &model.Campaign{}
		if err := rows.Scan(
			&c.ID, &c.Name, &c.CampaignRef, &c.Status, &c.ContactListID,
			&c.SendingWindowStart, &c.SendingWindowEnd, &c.SendingDays,
			&c.RandomizationMinutes, &c.DailySendLimit, &c.HourlySendLimit,
			&c.StepDelayDays, &c.StartDate, &c.EndDate, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	argsCount := []interface{}{}
	if status != "" {
		countQuery += " AND status=$1"
		argsCount = append(argsCount, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

func (r *CampaignRepository) UpdateStatus(campaignID int, status string) error {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, status, time.Now(), campaignID)
	return err
}

func (r *CampaignRepository) SetStartDate(campaignID int, t time.Time) error {
	query := `UPDATE campaigns SET start_date=$1, updated_at=NOW() WHERE id=$2 AND start_date IS NULL`
	_, err := r.DB.Exec(query, t, campaignID)
	return err
}

func (r *CampaignRepository) SetEndDate(campaignID int, t time.Time) error {
	query := `UPDATE campaigns SET end_date=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, t, campaignID)
	return err
}

// ====================== Email steps ======================

func (r *CampaignRepository) CreateStep(s *model.EmailStep) error {
	s.CreatedAt = time.Now()
	query := `
        INSERT INTO email_steps (campaign_id, step_number, subject_template, body_template, delay_days, active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		s.CampaignID, s.StepNumber, s.SubjectTemplate, s.BodyTemplate, s.DelayDays, s.Active, s.CreatedAt,
	).Scan(&s.ID)
}

func (r *CampaignRepository) ListActiveSteps(campaignID int) ([]model.EmailStep, error) {
	query := `
        SELECT id, campaign_id, step_number, subject_template, body_template, delay_days, active, created_at
        FROM email_steps
        WHERE campaign_id=$1 AND active=true
        ORDER BY step_number ASC
    `
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := []model.EmailStep{}
	for rows.Next() {
		var s model.EmailStep
		if err := rows.Scan(&s.ID, &s.CampaignID, &s.StepNumber, &s.SubjectTemplate, &s.BodyTemplate, &s.DelayDays, &s.Active, &s.CreatedAt); err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

func (r *CampaignRepository) GetStep(stepID int) (*model.EmailStep, error) {
	query := `
        SELECT id, campaign_id, step_number, subject_template, body_template, delay_days, active, created_at
        FROM email_steps WHERE id=$1
    `
	var s model.EmailStep
	err := r.DB.QueryRow(query, stepID).Scan(
		&s.ID, &s.CampaignID, &s.StepNumber, &s.SubjectTemplate, &s.BodyTemplate, &s.DelayDays, &s.Active, &s.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
