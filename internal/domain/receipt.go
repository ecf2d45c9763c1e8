package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the processing state of a transaction record.
// Pending is the creation state; Generated and Failed are terminal.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusGenerated Status = "GENERATED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether no further transition may leave this status.
func (s Status) Terminal() bool {
	return s == StatusGenerated || s == StatusFailed
}

// BusinessProfile holds the per-tenant settings that shape a receipt:
// display name, contact phone, optional tax PIN, VAT mode and an optional
// logo file reference.
type BusinessProfile struct {
	ID         string
	Name       string
	Phone      string
	TaxPIN     string
	ChargesVAT bool
	LogoPath   string
	CreatedAt  time.Time
}

// TransactionRecord is one parsed payment notification owned by exactly one
// business. The (BusinessID, Code) pair is unique; the repository enforces
// this atomically on insert.
type TransactionRecord struct {
	ID              string
	BusinessID      string
	Code            string
	Amount          decimal.Decimal
	TransactionDate time.Time
	CustomerName    string
	CustomerPhone   string
	RawText         string
	Status          Status
	CreatedAt       time.Time
}

// LineItem is one billed entry on a receipt.
type LineItem struct {
	Description string
	Cost        decimal.Decimal
}

// SyntheticItemDescription labels the line item materialized when a record
// is created without any explicit items.
const SyntheticItemDescription = "M-Pesa Payment"

// EnsureLineItems filters out blank manual items and, when none remain,
// materializes a single synthetic payment item equal to the transaction
// amount. Every stored record therefore has at least one line item, so
// totals logic never has to special-case the empty list.
func EnsureLineItems(items []LineItem, amount decimal.Decimal) []LineItem {
	kept := make([]LineItem, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Description) == "" {
			continue
		}
		kept = append(kept, LineItem{
			Description: strings.TrimSpace(it.Description),
			Cost:        it.Cost,
		})
	}
	if len(kept) == 0 {
		kept = append(kept, LineItem{
			Description: SyntheticItemDescription,
			Cost:        amount,
		})
	}
	return kept
}
