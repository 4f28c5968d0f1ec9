package report

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/Jack-Gledhill/bugbot/internal/models"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists reports. Update must load, mutate and write a single row
// under an exclusive row lock, committing only if fn returns nil.
type Store interface {
	Create(ctx context.Context, r *Report) error
	Get(ctx context.Context, id int64) (*Report, error)
	List(ctx context.Context, filters ListFilters) ([]*Report, error)
	Update(ctx context.Context, id int64, fn func(*Report) error) error
}

// ListFilters holds optional filters for listing reports.
type ListFilters struct {
	State         *State
	BoardID       string
	ReporterID    string
	CreatedBefore time.Time
	Limit         int
}

// GormStore is the gorm-backed Store over the bug_reports table.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("report: store: db is required")
	}
	return &GormStore{db: db}, nil
}

// Create inserts r and assigns its ID and creation time.
func (s *GormStore) Create(ctx context.Context, r *Report) error {
	row, err := r.ToRow()
	if err != nil {
		return err
	}
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return storageErr("create", err)
	}
	r.ID = row.ID
	r.CreatedAt = row.CreatedAt
	return nil
}

// Get loads a report by id.
func (s *GormStore) Get(ctx context.Context, id int64) (*Report, error) {
	var row models.Report
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, rejected(id, ErrNotFound)
		}
		return nil, storageErr("get", err)
	}
	return FromRow(&row)
}

// List returns reports matching filters, oldest first.
func (s *GormStore) List(ctx context.Context, filters ListFilters) ([]*Report, error) {
	q := s.db.WithContext(ctx).Model(&models.Report{})
	if filters.State != nil {
		q = q.Where("stance = ?", int(*filters.State))
	}
	if filters.BoardID != "" {
		q = q.Where("board_id = ?", filters.BoardID)
	}
	if filters.ReporterID != "" {
		q = q.Where("reporter_id = ?", filters.ReporterID)
	}
	if !filters.CreatedBefore.IsZero() {
		q = q.Where("created_at < ?", filters.CreatedBefore)
	}
	if filters.Limit > 0 {
		q = q.Limit(filters.Limit)
	}

	var rows []models.Report
	if err := q.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, storageErr("list", err)
	}
	reports := make([]*Report, 0, len(rows))
	for i := range rows {
		r, err := FromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// Update runs fn against the latest committed state of the report inside a
// transaction holding SELECT ... FOR UPDATE on its row. The row is written
// back in full only if fn succeeds.
func (s *GormStore) Update(ctx context.Context, id int64, fn func(*Report) error) error {
	var passthrough error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.Report
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				passthrough = rejected(id, ErrNotFound)
				return passthrough
			}
			return storageErr("load", err)
		}

		r, err := FromRow(&row)
		if err != nil {
			passthrough = err
			return err
		}
		if err := fn(r); err != nil {
			passthrough = err
			return err
		}

		out, err := r.ToRow()
		if err != nil {
			passthrough = err
			return err
		}
		if err := tx.Model(&models.Report{}).Where("id = ?", id).Updates(rowColumns(out)).Error; err != nil {
			return storageErr("save", err)
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if passthrough != nil {
		return passthrough
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return storageErr("commit", err)
}

// rowColumns lists every mutable column explicitly so zero values (false,
// NULL issue fields) are written too.
func rowColumns(row *models.Report) map[string]interface{} {
	return map[string]interface{}{
		"message_id":         row.MessageID,
		"short_description":  row.ShortDescription,
		"steps_to_reproduce": row.StepsToReproduce,
		"expected_result":    row.ExpectedResult,
		"actual_result":      row.ActualResult,
		"software_version":   row.SoftwareVersion,
		"approves":           row.Approves,
		"denies":             row.Denies,
		"notes":              row.Notes,
		"attachments":        row.Attachments,
		"issue_url":          row.IssueURL,
		"issue_id":           row.IssueID,
		"stance":             row.Stance,
		"locked":             row.Locked,
	}
}

// storageErr wraps a driver error, classifying whether a retry could help.
func storageErr(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err, Transient: isTransient(err)}
}

// MySQL server error numbers that clear on retry.
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// isTransient reports whether err is worth one retry. Known-permanent MySQL
// errors (schema, syntax, constraint) are not; unknown driver errors are.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlLockWaitTimeout || myErr.Number == mysqlDeadlock
	}
	return true
}
