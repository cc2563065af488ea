package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"guildstats/internal/models"
)

type MessageRepository interface {
	Insert(message models.Message) (inserted bool, err error)
	IDBounds(channelID int64) (min, max int64, ok bool, err error)
	RandomID(channelID int64) (int64, bool, error)
	CountByChannel(channelID int64) (int64, error)
}

type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Insert persists a message exactly once. The primary key makes re-insertion
// of an already-known ID a no-op instead of an error, which is what keeps
// overlapping pages harmless. inserted reports whether the row was new.
func (r *GormMessageRepository) Insert(message models.Message) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&message)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// IDBounds returns the smallest and largest persisted message IDs for a
// channel. ok is false when the channel has no messages yet.
func (r *GormMessageRepository) IDBounds(channelID int64) (int64, int64, bool, error) {
	var bounds struct {
		Min *int64
		Max *int64
	}
	err := r.db.Model(&models.Message{}).
		Select("MIN(id) as min, MAX(id) as max").
		Where("channel_id = ?", channelID).
		Scan(&bounds).Error
	if err != nil {
		return 0, 0, false, err
	}
	if bounds.Min == nil || bounds.Max == nil {
		return 0, 0, false, nil
	}
	return *bounds.Min, *bounds.Max, true, nil
}

// RandomID picks one persisted message ID uniformly at random. Used by gap
// repair to probe for history the cursors have skipped over.
func (r *GormMessageRepository) RandomID(channelID int64) (int64, bool, error) {
	var id int64
	err := r.db.Model(&models.Message{}).
		Select("id").
		Where("channel_id = ?", channelID).
		Order("random()").
		Limit(1).
		Scan(&id).Error
	if err != nil {
		return 0, false, err
	}
	if id == 0 {
		return 0, false, nil
	}
	return id, true, nil
}

func (r *GormMessageRepository) CountByChannel(channelID int64) (int64, error) {
	var count int64
	err := r.db.Model(&models.Message{}).
		Where("channel_id = ?", channelID).
		Count(&count).Error
	return count, err
}
