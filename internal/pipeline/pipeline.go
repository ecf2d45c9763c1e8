// Package pipeline wires the receipt flow together: parse the notification,
// persist the record atomically, dispatch asynchronous rendering, and drive
// the record to its terminal status. It is the only component with
// side-effecting control flow; parsing and computation stay pure.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mkamau/receiptgen/internal/artifact"
	"github.com/mkamau/receiptgen/internal/billing"
	"github.com/mkamau/receiptgen/internal/domain"
	"github.com/mkamau/receiptgen/internal/jobs"
	"github.com/mkamau/receiptgen/internal/render"
)

// Pipeline orchestrates ingestion and rendering.
type Pipeline struct {
	parser    NotificationParser
	repo      Repository
	artifacts artifact.Store
	publisher jobs.Publisher
	renderer  ReceiptRenderer
	log       zerolog.Logger
	now       Clock
}

// New creates a Pipeline.
func New(p NotificationParser, repo Repository, artifacts artifact.Store, publisher jobs.Publisher, renderer ReceiptRenderer, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		parser:    p,
		repo:      repo,
		artifacts: artifacts,
		publisher: publisher,
		renderer:  renderer,
		log:       log,
		now:       time.Now,
	}
}

// Ingest runs the synchronous half of the flow for one notification:
// parse, atomic dedupe-and-persist in PENDING, publish the render job.
//
// Parse failures surface as parser.ErrNoCode and duplicate submissions as
// the repository's duplicate error; in both cases no record is created (or
// no second record, for duplicates). Render failures are never reported
// here: once Ingest returns, the record's status is the only channel back.
func (p *Pipeline) Ingest(ctx context.Context, businessID, text string, manualItems []domain.LineItem) (*domain.TransactionRecord, error) {
	fields, err := p.parser.Parse(text)
	if err != nil {
		return nil, err
	}

	if fields.AmountDefaulted {
		// A zero-amount receipt is accepted but operationally significant.
		p.log.Warn().
			Str("business_id", businessID).
			Str("code", fields.Code).
			Msg("No amount matched in notification, defaulting to zero")
	}

	rec := &domain.TransactionRecord{
		ID:              uuid.NewString(),
		BusinessID:      businessID,
		Code:            fields.Code,
		Amount:          fields.Amount,
		TransactionDate: fields.Date,
		CustomerName:    fields.CustomerName,
		CustomerPhone:   fields.CustomerPhone,
		RawText:         fields.RawText,
		Status:          domain.StatusPending,
		CreatedAt:       p.now(),
	}
	items := domain.EnsureLineItems(manualItems, fields.Amount)

	if err := p.repo.CreateIfAbsent(ctx, rec, items); err != nil {
		return nil, err
	}

	job := &jobs.RenderReceiptJob{
		RecordID:   rec.ID,
		BusinessID: rec.BusinessID,
		Code:       rec.Code,
	}
	if err := p.publisher.PublishRenderReceipt(ctx, job); err != nil {
		// The record exists but will never render; mark it FAILED rather
		// than leaving it PENDING forever.
		p.markFailed(ctx, rec.ID, rec.Code, err)
		return nil, fmt.Errorf("Ingest: publishing render job: %w", err)
	}

	p.log.Info().
		Str("business_id", businessID).
		Str("code", rec.Code).
		Str("record_id", rec.ID).
		Msg("Transaction ingested, render scheduled")

	return rec, nil
}

// ProcessRenderJob runs the asynchronous half: fetch the record, compute
// the breakdown, render the artifact and store it, then transition the
// record to GENERATED. Any failure along the way transitions it to FAILED;
// both states are terminal.
func (p *Pipeline) ProcessRenderJob(ctx context.Context, job *jobs.RenderReceiptJob) error {
	rec, items, err := p.repo.GetByCode(ctx, job.BusinessID, job.Code)
	if err != nil {
		return fmt.Errorf("ProcessRenderJob: loading record %s: %w", job.Code, err)
	}

	profile, err := p.repo.GetProfile(ctx, job.BusinessID)
	if err != nil {
		p.markFailed(ctx, rec.ID, rec.Code, err)
		return fmt.Errorf("ProcessRenderJob: loading profile: %w", err)
	}

	breakdown := billing.Compute(rec.Amount, items, profile.ChargesVAT)

	pdfBytes, err := p.renderer.Receipt(render.ReceiptView{
		Business:  *profile,
		Record:    *rec,
		Items:     items,
		Breakdown: breakdown,
	})
	if err != nil {
		p.markFailed(ctx, rec.ID, rec.Code, err)
		return fmt.Errorf("ProcessRenderJob: rendering %s: %w", rec.Code, err)
	}

	if err := p.artifacts.Write(ctx, artifact.Key(rec.Code), pdfBytes); err != nil {
		p.markFailed(ctx, rec.ID, rec.Code, err)
		return fmt.Errorf("ProcessRenderJob: storing artifact for %s: %w", rec.Code, err)
	}

	if err := p.repo.UpdateStatus(ctx, rec.ID, domain.StatusGenerated); err != nil {
		return fmt.Errorf("ProcessRenderJob: marking %s generated: %w", rec.Code, err)
	}

	p.log.Info().
		Str("code", rec.Code).
		Str("record_id", rec.ID).
		Msg("Receipt generated")

	return nil
}

// markFailed transitions a record to FAILED, best effort. The render error
// itself is logged here since there is no caller left to report it to.
func (p *Pipeline) markFailed(ctx context.Context, recordID, code string, cause error) {
	p.log.Error().
		Err(cause).
		Str("code", code).
		Str("record_id", recordID).
		Msg("Receipt generation failed")

	if err := p.repo.UpdateStatus(ctx, recordID, domain.StatusFailed); err != nil {
		p.log.Error().
			Err(err).
			Str("record_id", recordID).
			Msg("Could not mark record failed")
	}
}
