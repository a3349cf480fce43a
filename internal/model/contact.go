// internal/model/contact.go
package model

type ContactList struct {
	ID   int    `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

type Contact struct {
	ID        int    `db:"id" json:"id"`
	ListID    int    `db:"list_id" json:"list_id"`
	Email     string `db:"email" json:"email"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Company   string `db:"company" json:"company"`
	Position  string `db:"position" json:"position"`
	Phone     string `db:"phone" json:"phone"`
}
