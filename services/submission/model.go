package submission

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is allowed out of s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected:
		return true
	case StatusPending:
		return false
	default:
		return false
	}
}

func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown submission status %q", v)
	}
	return s, nil
}

type Submission struct {
	ID         string     `gorm:"column:id;primaryKey" json:"id"`
	UserID     string     `gorm:"column:user_id;not null;index:idx_proof_submissions_user_created,priority:1" json:"user_id"`
	OfferID    string     `gorm:"column:offer_id;not null;index" json:"offer_id"`
	StorageKey string     `gorm:"column:storage_key;not null" json:"storage_key"`
	Note       *string    `gorm:"column:note" json:"note"`
	Status     Status     `gorm:"column:status;type:varchar(16);not null;index:idx_proof_submissions_status_created,priority:1" json:"status"`
	AdminNote  *string    `gorm:"column:admin_note" json:"admin_note"`
	ReviewedBy *string    `gorm:"column:reviewed_by" json:"reviewed_by"`
	ReviewedAt *time.Time `gorm:"column:reviewed_at" json:"reviewed_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;index:idx_proof_submissions_user_created,priority:2;index:idx_proof_submissions_status_created,priority:2" json:"created_at"`
}

func (Submission) TableName() string {
	return "proof_submissions"
}

type CreateParams struct {
	UserID     string
	OfferID    string
	StorageKey string
	Note       *string
}

type TransitionParams struct {
	ID         string
	From       Status
	To         Status
	AdminNote  *string
	ReviewedBy string
}
