package webserver

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modelarena/arena/src/api/data"
	"github.com/modelarena/arena/src/api/types"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const leaderboardLimit = 50

type Leaderboard struct {
	db  *gorm.DB
	rdb *redis.Client
}

func NewLeaderboard(db *gorm.DB, rdb *redis.Client) Leaderboard {
	return Leaderboard{db: db, rdb: rdb}
}

// Models ranks the contestants by Elo rating.
func (l Leaderboard) Models(c *gin.Context) {
	if cached, err := data.GetLeaderboard(c.Request.Context(), l.rdb, "models"); err == nil {
		c.Data(http.StatusOK, "application/json", cached)
		return
	}

	var models []types.Model
	if err := l.db.Where("active = ?", true).
		Order("rating DESC").Limit(leaderboardLimit).Find(&models).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "internal error"})
		return
	}

	rows := make([]gin.H, 0, len(models))
	for i, m := range models {
		rows = append(rows, gin.H{
			"rank":        i + 1,
			"name":        m.Name,
			"provider":    m.Provider,
			"rating":      m.Rating,
			"gamesPlayed": m.GamesPlayed,
		})
	}
	l.respondAndCache(c, "models", gin.H{"models": rows})
}

// Users ranks voters by accumulated score.
func (l Leaderboard) Users(c *gin.Context) {
	if cached, err := data.GetLeaderboard(c.Request.Context(), l.rdb, "users"); err == nil {
		c.Data(http.StatusOK, "application/json", cached)
		return
	}

	var users []types.User
	if err := l.db.Order("score DESC").Limit(leaderboardLimit).Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "internal error"})
		return
	}

	rows := make([]gin.H, 0, len(users))
	for i, u := range users {
		rows = append(rows, gin.H{
			"rank":     i + 1,
			"wallet":   u.Wallet,
			"nickname": u.Nickname,
			"score":    u.Score,
		})
	}
	l.respondAndCache(c, "users", gin.H{"users": rows})
}

func (l Leaderboard) respondAndCache(c *gin.Context, kind string, body gin.H) {
	payload, err := json.Marshal(body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "internal error"})
		return
	}
	if err := data.CacheLeaderboard(c.Request.Context(), l.rdb, kind, payload); err != nil {
		log.Printf("leaderboard: cache %s failed: %v", kind, err)
	}
	c.Data(http.StatusOK, "application/json", payload)
}
