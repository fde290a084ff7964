package ingest

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tylerhslee/gw2tp/internal/models"
)

// SkippedRow identifies a row dropped from a committed batch.
type SkippedRow struct {
	Table  string `json:"table"`
	ItemID int    `json:"item_id"`
	Reason string `json:"reason"`
}

// PersistReport is the outcome of one committed batch. Skips are not run
// failures; they exist so operators can reconcile missing parent data.
type PersistReport struct {
	Written int
	Skipped []SkippedRow
}

// Persister writes a batch inside a single top-level transaction. Every
// row runs in its own savepoint: a referential-integrity violation rolls
// back only that row and the batch continues. Any other write failure
// aborts the whole batch with nothing committed.
type Persister struct {
	DB       *gorm.DB
	Progress Progress
	Log      *logrus.Entry
}

func (p *Persister) logger() *logrus.Entry {
	if p.Log != nil {
		return p.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// Persist commits batch and reports written and skipped rows.
func (p *Persister) Persist(ctx context.Context, batch Batch) (*PersistReport, error) {
	rows := batch.Rows()
	report := &PersistReport{}

	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, row := range rows {
			row := row
			err := tx.Transaction(func(sp *gorm.DB) error {
				return writeRow(sp, row)
			})
			if err != nil {
				if errors.Is(err, gorm.ErrForeignKeyViolated) {
					skip := SkippedRow{
						Table:  tableOf(row),
						ItemID: itemIDOf(row),
						Reason: "missing parent item",
					}
					report.Skipped = append(report.Skipped, skip)
					p.logger().WithFields(logrus.Fields{
						"table":   skip.Table,
						"item_id": skip.ItemID,
					}).Warn("integrity violation, skipping row")
					continue
				}
				return fmt.Errorf("write %s row (item %d): %w", tableOf(row), itemIDOf(row), err)
			}
			report.Written++
			if p.Progress != nil {
				p.Progress("persist", i+1, len(rows))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger().WithFields(logrus.Fields{
		"written": report.Written,
		"skipped": len(report.Skipped),
	}).Info("persist complete")
	return report, nil
}

// writeRow inserts listings as-is and merges everything else on item_id.
func writeRow(tx *gorm.DB, row any) error {
	if _, ok := row.(*models.Listing); ok {
		return tx.Create(row).Error
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_id"}},
		UpdateAll: true,
	}).Create(row).Error
}

func tableOf(row any) string {
	if t, ok := row.(interface{ TableName() string }); ok {
		return t.TableName()
	}
	return fmt.Sprintf("%T", row)
}

func itemIDOf(row any) int {
	v := reflect.Indirect(reflect.ValueOf(row)).FieldByName("ItemID")
	if v.IsValid() && v.Kind() == reflect.Int {
		return int(v.Int())
	}
	return 0
}
