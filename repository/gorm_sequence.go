package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Counter backs GormSequence. One row per sequence name.
type Counter struct {
	Name string `gorm:"type:varchar(50);primaryKey"`
	Seq  int64  `gorm:"not null"`
}

type GormSequence struct {
	db *gorm.DB
}

func NewGormSequence(db *gorm.DB) Sequence {
	return &GormSequence{db: db}
}

// NextID upserts the counter row and returns the incremented value in one statement.
func (s *GormSequence) NextID(ctx context.Context, name string) (int64, error) {
	var seq int64
	err := s.db.WithContext(ctx).
		Raw(`INSERT INTO counters (name, seq) VALUES (?, 1) ON CONFLICT (name) DO UPDATE SET seq = counters.seq + 1 RETURNING seq`, name).
		Scan(&seq).Error
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", name, err)
	}
	return seq, nil
}
