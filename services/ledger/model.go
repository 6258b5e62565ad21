package ledger

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// GenesisHash is the previous_hash of a user's first entry.
const GenesisHash = "GENESIS"

var ErrAlreadyCredited = errors.New("ledger: submission already credited")

type Balance struct {
	ID        string    `gorm:"column:id;primaryKey" json:"-"`
	UserID    string    `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`
	Balance   int64     `gorm:"column:balance;not null;check:chk_balances_balance,balance >= 0" json:"balance"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

type LedgerEntry struct {
	ID            string         `gorm:"column:id;primaryKey" json:"id"`
	UserID        string         `gorm:"column:user_id;not null;index;uniqueIndex:idx_ledger_entries_user_seq,priority:1" json:"user_id"`
	Sequence      int64          `gorm:"column:sequence;not null;uniqueIndex:idx_ledger_entries_user_seq,priority:2" json:"sequence"`
	SubmissionID  string         `gorm:"column:submission_id;not null;uniqueIndex" json:"submission_id"`
	Amount        int64          `gorm:"column:amount;not null;check:chk_ledger_entries_amount,amount > 0" json:"amount"`
	TransactionID string         `gorm:"column:transaction_id;not null" json:"transaction_id"`
	Description   string         `gorm:"column:description" json:"description"`
	PreviousHash  string         `gorm:"column:previous_hash" json:"previous_hash"`
	Hash          string         `gorm:"column:hash" json:"hash"`
	Metadata      datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt     time.Time      `gorm:"column:created_at" json:"created_at"`
}

type CreditParams struct {
	UserID       string
	SubmissionID string
	Amount       int64
	Description  string
	Metadata     map[string]any
}

type Reconciliation struct {
	UserID        string `json:"user_id"`
	CachedBalance int64  `json:"cached_balance"`
	LedgerTotal   int64  `json:"ledger_total"`
	EntryCount    int64  `json:"entry_count"`
	Consistent    bool   `json:"consistent"`
	ChainValid    bool   `json:"chain_valid"`
}

type LedgerParams struct {
	LedgerID      string
	UserID        string
	Sequence      int64
	SubmissionID  string
	Amount        int64
	TransactionID string
	Description   string
	PreviousHash  string
	Metadata      datatypes.JSON
	CreatedAt     time.Time
}

func NewLedgerEntry(p LedgerParams) *LedgerEntry {
	return &LedgerEntry{
		ID:            p.LedgerID,
		UserID:        p.UserID,
		Sequence:      p.Sequence,
		SubmissionID:  p.SubmissionID,
		Amount:        p.Amount,
		TransactionID: p.TransactionID,
		Description:   p.Description,
		PreviousHash:  p.PreviousHash,
		Metadata:      p.Metadata,
		// millisecond precision survives every supported database
		CreatedAt: p.CreatedAt.UTC().Truncate(time.Millisecond),
	}
}

func (m *LedgerEntry) HashFields() map[string]string {
	return map[string]string{
		"id":             m.ID,
		"user_id":        m.UserID,
		"sequence":       fmt.Sprintf("%d", m.Sequence),
		"submission_id":  m.SubmissionID,
		"amount":         fmt.Sprintf("%d", m.Amount),
		"transaction_id": m.TransactionID,
		"description":    m.Description,
		"created_at":     m.CreatedAt.UTC().Format(time.RFC3339Nano),
		"previous_hash":  m.PreviousHash,
	}
}

func (m *LedgerEntry) GenerateHash() string {
	fields := m.HashFields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, fields[k]))
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])
}

// GenerateTransactionID returns a human readable id, YYYYMMDD-XXXXXX.
func GenerateTransactionID() (string, error) {
	datePart := time.Now().UTC().Format("20060102")

	r := make([]byte, 3)
	if _, err := rand.Read(r); err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%s", datePart, strings.ToUpper(hex.EncodeToString(r))), nil
}
