package webserver

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modelarena/arena/src/achievements"
	"github.com/modelarena/arena/src/api/types"
	"gorm.io/gorm"
)

type Users struct {
	db  *gorm.DB
	svc *achievements.Service
}

func NewUsers(db *gorm.DB, svc *achievements.Service) Users {
	return Users{db: db, svc: svc}
}

func (u Users) Get(c *gin.Context) {
	wallet := c.Param("wallet")
	var user types.User
	if err := u.db.First(&user, "wallet = ?", wallet).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "user not found"})
		return
	}

	var votes, shared int64
	u.db.Model(&types.Vote{}).Where("wallet = ?", wallet).Count(&votes)
	u.db.Model(&types.Prompt{}).Where("author = ? AND shared = ?", wallet, true).Count(&shared)

	c.JSON(http.StatusOK, gin.H{
		"wallet":        user.Wallet,
		"nickname":      user.Nickname,
		"score":         user.Score,
		"votes":         votes,
		"sharedPrompts": shared,
	})
}

// Achievements lists every definition with the user's unlock state.
func (u Users) Achievements(c *gin.Context) {
	wallet := c.Param("wallet")

	var defs []types.Achievement
	if err := u.db.Order("id").Find(&defs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "internal error"})
		return
	}
	var unlocked []types.UserAchievement
	if err := u.db.Where("wallet = ?", wallet).Find(&unlocked).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "internal error"})
		return
	}
	byID := map[uint64]types.UserAchievement{}
	for _, ua := range unlocked {
		byID[ua.AchievementID] = ua
	}

	rows := make([]gin.H, 0, len(defs))
	for _, d := range defs {
		row := gin.H{
			"id":           d.ID,
			"name":         d.Name,
			"description":  d.Description,
			"rewardAmount": d.RewardAmount,
			"achieved":     false,
			"claimed":      false,
		}
		if ua, ok := byID[d.ID]; ok {
			row["achieved"] = true
			row["achievedAt"] = ua.AchievedAt
			row["claimed"] = ua.Claimed
			if ua.Claimed {
				row["claimTxHash"] = ua.ClaimTxHash
			}
		}
		rows = append(rows, row)
	}
	c.JSON(http.StatusOK, gin.H{"achievements": rows})
}

// Evaluate re-checks the user's stats against every definition and
// reports newly unlocked achievements.
func (u Users) Evaluate(c *gin.Context) {
	wallet := c.Param("wallet")
	unlocked, err := u.svc.Evaluate(c.Request.Context(), wallet)
	if err != nil {
		log.Printf("achievements: evaluate %s failed: %v", wallet, err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "internal error"})
		return
	}
	names := make([]string, 0, len(unlocked))
	for _, a := range unlocked {
		names = append(names, a.Name)
	}
	c.JSON(http.StatusOK, gin.H{"unlocked": names})
}

func (u Users) Claim(c *gin.Context) {
	wallet := c.Param("wallet")
	id, ok := paramID(c)
	if !ok {
		return
	}

	res, err := u.svc.Claim(c.Request.Context(), wallet, id)
	switch {
	case errors.Is(err, achievements.ErrNotAchieved):
		c.JSON(http.StatusForbidden, gin.H{"err": "achievement not achieved"})
		return
	case errors.Is(err, achievements.ErrUnknownAchievement):
		c.JSON(http.StatusNotFound, gin.H{"err": "unknown achievement"})
		return
	case err != nil:
		log.Printf("achievements: claim %s/%d failed: %v", wallet, id, err)
		c.JSON(http.StatusBadGateway, gin.H{"err": "claim settlement failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"txHash":         res.TxHash,
		"alreadyClaimed": res.AlreadyClaimed,
	})
}

// Rewards lists the user's signed weekly vouchers, newest week first.
func (u Users) Rewards(c *gin.Context) {
	wallet := c.Param("wallet")
	var vouchers []types.RewardVoucher
	if err := u.db.Where("wallet = ?", wallet).Order("week DESC").Find(&vouchers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "internal error"})
		return
	}
	rows := make([]gin.H, 0, len(vouchers))
	for _, v := range vouchers {
		rows = append(rows, gin.H{
			"week":      v.Week,
			"rank":      v.Rank,
			"amount":    v.Amount,
			"nonce":     v.Nonce,
			"signature": v.Signature,
		})
	}
	c.JSON(http.StatusOK, gin.H{"rewards": rows})
}
