// Package janitor enforces the 24-hour retention policy: once a record is
// older than the threshold it is purged together with its rendered
// artifact, regardless of status.
package janitor

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/mkamau/receiptgen/internal/artifact"
	"github.com/mkamau/receiptgen/internal/domain"
)

// DefaultRetention is the fixed age threshold after which records and
// artifacts are purged.
const DefaultRetention = 24 * time.Hour

// Schedule is the daily off-peak sweep time. A sub-hour cadence buys
// nothing against a 24h threshold.
const Schedule = "0 3 * * *"

// Repository is the subset of the store the janitor needs.
type Repository interface {
	FindOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.TransactionRecord, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Janitor deletes expired records and their artifacts.
type Janitor struct {
	repo      Repository
	artifacts artifact.Store
	retention time.Duration
	log       zerolog.Logger
}

// New creates a Janitor. retention <= 0 falls back to DefaultRetention.
func New(repo Repository, artifacts artifact.Store, retention time.Duration, log zerolog.Logger) *Janitor {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Janitor{
		repo:      repo,
		artifacts: artifacts,
		retention: retention,
		log:       log,
	}
}

// Sweep deletes every record with created_at at or before now minus the
// retention threshold, along with its artifact, and returns the number of
// records deleted. A missing artifact is not an error. Sweep is safe to
// run concurrently with ingestion: creation timestamps are immutable, so a
// record either matches the cutoff or it does not, and re-running a sweep
// is a no-op for already-deleted rows.
func (j *Janitor) Sweep(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-j.retention)

	expired, err := j.repo.FindOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	j.log.Info().Int("records", len(expired)).Time("cutoff", cutoff).Msg("Janitor: cleaning expired records")

	for _, rec := range expired {
		err := j.artifacts.Delete(ctx, artifact.Key(rec.Code))
		if err != nil && !errors.Is(err, artifact.ErrNotFound) {
			// Keep going: the record delete below still applies, and the
			// orphaned artifact is retried on the next sweep only if the
			// record survives, so log loudly.
			j.log.Error().Err(err).Str("code", rec.Code).Msg("Janitor: could not delete artifact")
		}
	}

	deleted, err := j.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	j.log.Info().Int64("deleted", deleted).Msg("Janitor: sweep complete")
	return deleted, nil
}

// Register adds the daily sweep to the scheduler. SkipIfStillRunning keeps
// a long sweep from overlapping the next scheduled one.
func (j *Janitor) Register(c *cron.Cron) (cron.EntryID, error) {
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		if _, err := j.Sweep(context.Background(), time.Now()); err != nil {
			j.log.Error().Err(err).Msg("Janitor: sweep failed")
		}
	}))
	return c.AddJob(Schedule, job)
}
