package data

import (
	"log"

	"github.com/modelarena/arena/src/api/types"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func MustMySQL(dsn string) *gorm.DB {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	return db
}

// Migrate creates or updates the arena schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Model{},
		&types.Prompt{},
		&types.PromptLike{},
		&types.Match{},
		&types.Response{},
		&types.Vote{},
		&types.User{},
		&types.Achievement{},
		&types.UserAchievement{},
		&types.PaymentAuthorization{},
		&types.RewardVoucher{},
		&types.Setting{},
	)
}
