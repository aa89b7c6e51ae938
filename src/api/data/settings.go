package data

import (
	"errors"

	"github.com/modelarena/arena/src/api/types"
	"gorm.io/gorm"
)

// GetSetting reads a named setting row, returning "" when absent.
func GetSetting(db *gorm.DB, name string) string {
	var s types.Setting
	if err := db.First(&s, "name = ?", name).Error; err != nil {
		return ""
	}
	return s.Value
}

// PutSetting creates or overwrites a named setting row.
func PutSetting(db *gorm.DB, name, value string) error {
	var s types.Setting
	err := db.First(&s, "name = ?", name).Error
	switch {
	case err == nil:
		s.Value = value
		return db.Save(&s).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		return db.Create(&types.Setting{Name: name, Value: value}).Error
	default:
		return err
	}
}
