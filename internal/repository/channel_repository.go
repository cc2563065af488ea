package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"guildstats/internal/models"
)

type ChannelRepository interface {
	Upsert(channel models.Channel) error
	GetByID(id int64) (*models.Channel, error)
	ListByGuild(guildID int64) ([]models.Channel, error)
}

type GormChannelRepository struct {
	db *gorm.DB
}

func NewGormChannelRepository(db *gorm.DB) *GormChannelRepository {
	return &GormChannelRepository{db: db}
}

// Upsert inserts the channel or renames the stored row. Rows are never
// deleted, so channels removed on the platform side remain queryable.
func (r *GormChannelRepository) Upsert(channel models.Channel) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name"}),
	}).Create(&channel).Error
}

func (r *GormChannelRepository) GetByID(id int64) (*models.Channel, error) {
	var channel models.Channel
	err := r.db.First(&channel, id).Error
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

func (r *GormChannelRepository) ListByGuild(guildID int64) ([]models.Channel, error) {
	var channels []models.Channel
	err := r.db.Where("guild_id = ?", guildID).Order("id ASC").Find(&channels).Error
	return channels, err
}
