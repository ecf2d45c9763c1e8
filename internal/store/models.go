package store

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mkamau/receiptgen/internal/domain"
)

// ProfileRow is the stored form of a business profile.
type ProfileRow struct {
	ID         string `gorm:"primaryKey"`
	Name       string
	Phone      string
	TaxPIN     string
	ChargesVAT bool
	LogoPath   string
	CreatedAt  time.Time
}

func (ProfileRow) TableName() string { return "business_profiles" }

// TransactionRow is the stored form of a transaction record. The composite
// unique index on (business_id, code) is what makes CreateIfAbsent atomic:
// duplicate submissions fail at insert time instead of racing a prior
// existence check.
type TransactionRow struct {
	ID              string `gorm:"primaryKey"`
	BusinessID      string `gorm:"index;uniqueIndex:idx_business_code"`
	Code            string `gorm:"uniqueIndex:idx_business_code"`
	Amount          decimal.Decimal `gorm:"type:text"`
	TransactionDate time.Time
	CustomerName    string
	CustomerPhone   string
	RawText         string
	Status          string
	CreatedAt       time.Time `gorm:"index"`
}

func (TransactionRow) TableName() string { return "transactions" }

// LineItemRow is one billed entry belonging to a transaction.
type LineItemRow struct {
	ID          uint   `gorm:"primaryKey"`
	RecordID    string `gorm:"index"`
	Description string
	Cost        decimal.Decimal `gorm:"type:text"`
}

func (LineItemRow) TableName() string { return "line_items" }

func toProfileRow(p *domain.BusinessProfile) *ProfileRow {
	return &ProfileRow{
		ID:         p.ID,
		Name:       p.Name,
		Phone:      p.Phone,
		TaxPIN:     p.TaxPIN,
		ChargesVAT: p.ChargesVAT,
		LogoPath:   p.LogoPath,
		CreatedAt:  p.CreatedAt,
	}
}

func (r *ProfileRow) toDomain() *domain.BusinessProfile {
	return &domain.BusinessProfile{
		ID:         r.ID,
		Name:       r.Name,
		Phone:      r.Phone,
		TaxPIN:     r.TaxPIN,
		ChargesVAT: r.ChargesVAT,
		LogoPath:   r.LogoPath,
		CreatedAt:  r.CreatedAt,
	}
}

func toTransactionRow(rec *domain.TransactionRecord) *TransactionRow {
	return &TransactionRow{
		ID:              rec.ID,
		BusinessID:      rec.BusinessID,
		Code:            rec.Code,
		Amount:          rec.Amount,
		TransactionDate: rec.TransactionDate,
		CustomerName:    rec.CustomerName,
		CustomerPhone:   rec.CustomerPhone,
		RawText:         rec.RawText,
		Status:          string(rec.Status),
		CreatedAt:       rec.CreatedAt,
	}
}

func (r *TransactionRow) toDomain() *domain.TransactionRecord {
	return &domain.TransactionRecord{
		ID:              r.ID,
		BusinessID:      r.BusinessID,
		Code:            r.Code,
		Amount:          r.Amount,
		TransactionDate: r.TransactionDate,
		CustomerName:    r.CustomerName,
		CustomerPhone:   r.CustomerPhone,
		RawText:         r.RawText,
		Status:          domain.Status(r.Status),
		CreatedAt:       r.CreatedAt,
	}
}
