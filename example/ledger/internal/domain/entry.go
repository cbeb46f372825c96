// Package domain holds the ledger entities.
package domain

import "time"

// Entry is one signed movement on an account. A transfer writes two entries sharing a TransferID.
type Entry struct {
	ID         string    `gorm:"primaryKey;size:36"`
	TransferID string    `gorm:"index;size:36"`
	Account    string    `gorm:"index;size:64;not null"`
	Amount     int64     `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

// TableName pins the table created by the migrations.
func (Entry) TableName() string {
	return "ledger_entries"
}
