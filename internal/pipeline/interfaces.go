package pipeline

import (
	"context"
	"time"

	"github.com/mkamau/receiptgen/internal/domain"
	"github.com/mkamau/receiptgen/internal/parser"
	"github.com/mkamau/receiptgen/internal/render"
)

// NotificationParser extracts transaction fields from raw notification
// text. This interface enables testing the pipeline with canned parses.
type NotificationParser interface {
	Parse(text string) (*parser.Fields, error)
}

// Repository is the subset of the transaction repository the pipeline
// needs. The full interface lives in the store package.
type Repository interface {
	CreateIfAbsent(ctx context.Context, rec *domain.TransactionRecord, items []domain.LineItem) error
	GetByCode(ctx context.Context, businessID, code string) (*domain.TransactionRecord, []domain.LineItem, error)
	GetProfile(ctx context.Context, businessID string) (*domain.BusinessProfile, error)
	UpdateStatus(ctx context.Context, recordID string, status domain.Status) error
}

// ReceiptRenderer renders a receipt view into artifact bytes.
type ReceiptRenderer interface {
	Receipt(view render.ReceiptView) ([]byte, error)
}

// Clock supplies the current time; overridable in tests.
type Clock func() time.Time
