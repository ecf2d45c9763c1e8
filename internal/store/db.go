// Package store is the durable transaction repository, backed by SQLite via
// GORM. Every read and mutation is scoped by business identifier; no
// operation may touch another business's records.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mkamau/receiptgen/internal/domain"
)

var (
	// ErrDuplicate indicates a record with the same (business, code) pair
	// already exists.
	ErrDuplicate = errors.New("transaction already exists for this business")

	// ErrNotFound indicates the requested record does not exist, or an
	// update targeted a record no longer in its expected state.
	ErrNotFound = errors.New("record not found")
)

// Repository is the persistence interface consumed by the pipeline, the
// janitor and the HTTP handlers.
type Repository interface {
	SaveProfile(ctx context.Context, p *domain.BusinessProfile) error
	GetProfile(ctx context.Context, businessID string) (*domain.BusinessProfile, error)

	// CreateIfAbsent persists a record and its line items in one
	// transaction. It returns ErrDuplicate when the (business, code) pair
	// already exists; the check and the insert are a single atomic step.
	CreateIfAbsent(ctx context.Context, rec *domain.TransactionRecord, items []domain.LineItem) error

	ExistsByBusinessAndCode(ctx context.Context, businessID, code string) (bool, error)
	GetByCode(ctx context.Context, businessID, code string) (*domain.TransactionRecord, []domain.LineItem, error)
	FindByBusiness(ctx context.Context, businessID string, limit, offset int) ([]*domain.TransactionRecord, error)

	// UpdateStatus moves a PENDING record to a terminal status. It returns
	// ErrNotFound when the record is missing or already terminal.
	UpdateStatus(ctx context.Context, recordID string, status domain.Status) error

	FindOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.TransactionRecord, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteByBusiness removes all of one business's records and returns
	// their reference codes so callers can clean up artifacts.
	DeleteByBusiness(ctx context.Context, businessID string) ([]string, error)
}

// Database is the GORM-backed Repository implementation.
type Database struct {
	db *gorm.DB
}

// NewDatabase opens (or creates) the SQLite database at dbPath and migrates
// the schema. TranslateError is enabled so unique-constraint violations
// surface as gorm.ErrDuplicatedKey.
func NewDatabase(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("NewDatabase: connecting to %q: %w", dbPath, err)
	}
	if err := db.AutoMigrate(&ProfileRow{}, &TransactionRow{}, &LineItemRow{}); err != nil {
		return nil, fmt.Errorf("NewDatabase: migrating schema: %w", err)
	}
	return &Database{db: db}, nil
}

// SaveProfile inserts or updates a business profile.
func (d *Database) SaveProfile(ctx context.Context, p *domain.BusinessProfile) error {
	row := toProfileRow(p)
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	err := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("SaveProfile: %w", err)
	}
	return nil
}

// GetProfile returns the profile for a business, or ErrNotFound.
func (d *Database) GetProfile(ctx context.Context, businessID string) (*domain.BusinessProfile, error) {
	var row ProfileRow
	err := d.db.WithContext(ctx).First(&row, "id = ?", businessID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetProfile: %w", err)
	}
	return row.toDomain(), nil
}

// CreateIfAbsent implements the atomic dedupe-and-persist step.
func (d *Database) CreateIfAbsent(ctx context.Context, rec *domain.TransactionRecord, items []domain.LineItem) error {
	row := toTransactionRow(rec)
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
		rec.CreatedAt = row.CreatedAt
	}

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		for _, it := range items {
			itemRow := &LineItemRow{
				RecordID:    row.ID,
				Description: it.Description,
				Cost:        it.Cost,
			}
			if err := tx.Create(itemRow).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("CreateIfAbsent: %w", err)
	}
	return nil
}

// ExistsByBusinessAndCode reports whether a record exists for the pair.
// The pipeline does not rely on it for dedupe; CreateIfAbsent is the atomic
// operation. It exists for read-only callers.
func (d *Database) ExistsByBusinessAndCode(ctx context.Context, businessID, code string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&TransactionRow{}).
		Where("business_id = ? AND code = ?", businessID, code).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("ExistsByBusinessAndCode: %w", err)
	}
	return count > 0, nil
}

// GetByCode returns a record and its line items, scoped to one business.
func (d *Database) GetByCode(ctx context.Context, businessID, code string) (*domain.TransactionRecord, []domain.LineItem, error) {
	var row TransactionRow
	err := d.db.WithContext(ctx).
		First(&row, "business_id = ? AND code = ?", businessID, code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("GetByCode: %w", err)
	}

	var itemRows []LineItemRow
	if err := d.db.WithContext(ctx).Where("record_id = ?", row.ID).Order("id").Find(&itemRows).Error; err != nil {
		return nil, nil, fmt.Errorf("GetByCode: loading items: %w", err)
	}
	items := make([]domain.LineItem, 0, len(itemRows))
	for _, ir := range itemRows {
		items = append(items, domain.LineItem{Description: ir.Description, Cost: ir.Cost})
	}
	return row.toDomain(), items, nil
}

// FindByBusiness returns one business's records, newest first.
func (d *Database) FindByBusiness(ctx context.Context, businessID string, limit, offset int) ([]*domain.TransactionRecord, error) {
	var rows []TransactionRow
	q := d.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Order("created_at DESC").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("FindByBusiness: %w", err)
	}
	out := make([]*domain.TransactionRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// UpdateStatus transitions a PENDING record to a terminal status. The
// WHERE clause on the current status guarantees no transition ever leaves
// GENERATED or FAILED.
func (d *Database) UpdateStatus(ctx context.Context, recordID string, status domain.Status) error {
	res := d.db.WithContext(ctx).Model(&TransactionRow{}).
		Where("id = ? AND status = ?", recordID, string(domain.StatusPending)).
		Update("status", string(status))
	if res.Error != nil {
		return fmt.Errorf("UpdateStatus: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindOlderThan returns every record, across all businesses, created at or
// before the cutoff. Only the janitor uses it.
func (d *Database) FindOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.TransactionRecord, error) {
	var rows []TransactionRow
	if err := d.db.WithContext(ctx).Where("created_at <= ?", cutoff).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("FindOlderThan: %w", err)
	}
	out := make([]*domain.TransactionRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// DeleteOlderThan removes records and their line items at or before the
// cutoff and returns the number of records deleted. Creation timestamps are
// immutable, so running this concurrently with ingestion cannot delete a
// record that is younger than the cutoff.
func (d *Database) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := tx.Model(&TransactionRow{}).Select("id").Where("created_at <= ?", cutoff)
		if err := tx.Where("record_id IN (?)", sub).Delete(&LineItemRow{}).Error; err != nil {
			return err
		}
		res := tx.Where("created_at <= ?", cutoff).Delete(&TransactionRow{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("DeleteOlderThan: %w", err)
	}
	return deleted, nil
}

// DeleteByBusiness wipes one business's records and returns their codes.
func (d *Database) DeleteByBusiness(ctx context.Context, businessID string) ([]string, error) {
	var codes []string
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&TransactionRow{}).
			Where("business_id = ?", businessID).
			Pluck("code", &codes).Error; err != nil {
			return err
		}
		sub := tx.Model(&TransactionRow{}).Select("id").Where("business_id = ?", businessID)
		if err := tx.Where("record_id IN (?)", sub).Delete(&LineItemRow{}).Error; err != nil {
			return err
		}
		return tx.Where("business_id = ?", businessID).Delete(&TransactionRow{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("DeleteByBusiness: %w", err)
	}
	return codes, nil
}

var _ Repository = (*Database)(nil)
