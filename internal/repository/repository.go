package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository aggregates every repository
type Repository struct {
	db *gorm.DB

	Schedule ScheduleRepository
	User     UserRepository
	Push     PushRepository
}

// NewRepository creates the aggregate
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:       db,
		Schedule: NewScheduleRepo(db),
		User:     NewUserRepo(db),
		Push:     NewPushRepo(db),
	}
}

// Ping checks the database connection (health endpoint)
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
