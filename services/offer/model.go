package offer

import "time"

type Offer struct {
	ID           string    `gorm:"column:id;primaryKey" json:"id"`
	Title        string    `gorm:"column:title;not null" json:"title"`
	Description  string    `gorm:"column:description" json:"description"`
	URL          string    `gorm:"column:url;not null" json:"url"`
	PayoutPoints int64     `gorm:"column:payout_points;not null;check:chk_offers_payout_points,payout_points > 0" json:"payout_points"`
	IsActive     bool      `gorm:"column:is_active;not null;index" json:"is_active"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}
