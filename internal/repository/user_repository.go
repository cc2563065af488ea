package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"guildstats/internal/models"
)

type UserRepository interface {
	Upsert(user models.User) error
	GetByID(id int64) (*models.User, error)
}

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// Upsert inserts the author or refreshes username/discriminator after a
// rename. Bot and system flags are first-seen-wins.
func (r *GormUserRepository) Upsert(user models.User) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "discriminator"}),
	}).Create(&user).Error
}

func (r *GormUserRepository) GetByID(id int64) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
