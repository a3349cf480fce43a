// internal/errors/errors.go
package appErrors

import "fmt"

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ValidationError reports bad lifecycle input (e.g. activating a campaign
// with no active steps). Never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Msg
}

func NewValidation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// CampaignError reports an illegal campaign state transition.
type CampaignError struct {
	CampaignID int
	From       string
	To         string
}

func (e *CampaignError) Error() string {
	return fmt.Sprintf("campaign %d: cannot transition from %s to %s", e.CampaignID, e.From, e.To)
}

func NewIllegalTransition(campaignID int, from, to string) error {
	return &CampaignError{CampaignID: campaignID, From: from, To: to}
}

// TransportError wraps a mail transport send failure. Retried up to the
// attempt limit, then converted into a terminal failed queue item.
type TransportError struct {
	To  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: send to %s failed: %v", e.To, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func NewTransport(to string, err error) error {
	return &TransportError{To: to, Err: err}
}

// SuppressionError reports an invalid suppression operation, e.g. removing
// an address that was never suppressed.
type SuppressionError struct {
	Email string
	Msg   string
}

func (e *SuppressionError) Error() string {
	return fmt.Sprintf("suppression: %s: %s", e.Email, e.Msg)
}

func NewSuppression(email, msg string) error {
	return &SuppressionError{Email: email, Msg: msg}
}
