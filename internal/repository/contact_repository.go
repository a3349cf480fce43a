package repository

import (
	"database/sql"
	"strings"

	"github.com/dripworks/leadflow-backend/internal/model"
)

// ContactRepositoryInterface defines methods used by services
type ContactRepositoryInterface interface {
	GetByID(id int) (*model.Contact, error)
	GetByEmail(email string) (*model.Contact, error)
	ListByList(listID int) ([]model.Contact, error)
	Create(c *model.Contact) error
	CreateList(l *model.ContactList) error
}

// ContactRepository is the concrete implementation
type ContactRepository struct {
	DB *sql.DB
}

const contactColumns = `id, list_id, email, first_name, last_name, company, position, phone`

// GetByID fetches a contact by ID, nil if not found
func (r *ContactRepository) GetByID(id int) (*model.Contact, error) {
	row := r.DB.QueryRow(`SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id)
	return scanContact(row)
}

// GetByEmail fetches a contact by normalized (lowercased) email
func (r *ContactRepository) GetByEmail(email string) (*model.Contact, error) {
	row := r.DB.QueryRow(`SELECT `+contactColumns+` FROM contacts WHERE LOWER(email) = $1`,
		strings.ToLower(strings.TrimSpace(email)))
	return scanContact(row)
}

// ListByList fetches all contacts on a contact list
func (r *ContactRepository) ListByList(listID int) ([]model.Contact, error) {
	rows, err := r.DB.Query(`SELECT `+contactColumns+` FROM contacts WHERE list_id = $1 ORDER BY id`, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.ListID, &c.Email, &c.FirstName, &c.LastName, &c.Company, &c.Position, &c.Phone); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (r *ContactRepository) Create(c *model.Contact) error {
	query := `
        INSERT INTO contacts (list_id, email, first_name, last_name, company, position, phone)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	return r.DB.QueryRow(query, c.ListID, c.Email, c.FirstName, c.LastName, c.Company, c.Position, c.Phone).Scan(&c.ID)
}

func (r *ContactRepository) CreateList(l *model.ContactList) error {
	return r.DB.QueryRow(`INSERT INTO contact_lists (name) VALUES ($1) RETURNING id`, l.Name).Scan(&l.ID)
}

func scanContact(row *sql.Row) (*model.Contact, error) {
	var c model.Contact
	if err := row.Scan(&c.ID, &c.ListID, &c.Email, &c.FirstName, &c.LastName, &c.Company, &c.Position, &c.Phone); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	return &c, nil
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
