package click

import (
	"encoding/json"
	"time"

	"taskora/pkg/task"
	"taskora/pkg/taskname"

	"github.com/hibiken/asynq"
)

// Click is the audit row written for every outbound offer visit.
type Click struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	UserID    string    `gorm:"column:user_id;type:varchar(64);not null;index:idx_clicks_user_created,priority:1" json:"user_id"`
	OfferID   string    `gorm:"column:offer_id;type:varchar(64);not null;index" json:"offer_id"`
	IP        string    `gorm:"column:ip;type:varchar(64)" json:"ip"`
	UserAgent string    `gorm:"column:user_agent;type:text" json:"user_agent"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_clicks_user_created,priority:2" json:"created_at"`
}

func (Click) TableName() string { return "clicks" }

type ClickParams struct {
	UserID    string
	OfferID   string
	IP        string
	UserAgent string
}

type ClickLogPayload struct {
	UserID    string    `json:"user_id"`
	OfferID   string    `json:"offer_id"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	ClickedAt time.Time `json:"clicked_at"`
}

func NewClickLogTask(p ClickLogPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.ClickLog, payload,
		asynq.Queue(task.QueueLow),
		asynq.MaxRetry(5)), nil
}
