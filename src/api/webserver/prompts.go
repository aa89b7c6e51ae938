package webserver

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/modelarena/arena/src/api/types"
	"gorm.io/gorm"
)

// Score awarded to a prompt's author for each unique like.
const likeAuthorBonus = 1.0

type Prompts struct {
	db        *gorm.DB
	sanitizer *bluemonday.Policy
}

func NewPrompts(db *gorm.DB) Prompts {
	return Prompts{db: db, sanitizer: bluemonday.StrictPolicy()}
}

type promptRow struct {
	types.Prompt
	Likes int64 `json:"likes"`
}

func (p Prompts) List(c *gin.Context) {
	q := p.db.Model(&types.Prompt{}).
		Select("prompts.*, COUNT(prompt_likes.id) AS likes").
		Joins("LEFT JOIN prompt_likes ON prompt_likes.prompt_id = prompts.id").
		Where("prompts.shared = ?", true).
		Group("prompts.id")

	if cat := c.Query("category"); cat != "" {
		q = q.Where("prompts.category = ?", cat)
	}
	if wallet := c.Query("wallet"); wallet != "" {
		q = q.Where("prompts.author = ?", wallet)
	}

	var rows []promptRow
	if err := q.Order("likes DESC, prompts.created_at DESC").Limit(100).Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompts": rows})
}

type promptCreateRequest struct {
	Wallet   string `json:"wallet" binding:"required,min=3,max=64"`
	Title    string `json:"title" binding:"required,max=255"`
	Text     string `json:"text" binding:"required"`
	Category string `json:"category" binding:"max=64"`
	Shared   bool   `json:"shared"`
}

func (p Prompts) Create(c *gin.Context) {
	var req promptCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid request"})
		return
	}
	text := strings.TrimSpace(p.sanitizer.Sanitize(req.Text))
	if text == "" || len(text) > maxPromptLen {
		c.JSON(http.StatusBadRequest, gin.H{"err": "text empty or too long"})
		return
	}

	prompt := types.Prompt{
		Author:   req.Wallet,
		Title:    p.sanitizer.Sanitize(req.Title),
		Text:     text,
		Category: req.Category,
		Shared:   req.Shared,
	}
	if err := p.db.Create(&prompt).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": prompt.ID})
}

func (p Prompts) Get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var prompt types.Prompt
	if err := p.db.First(&prompt, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "prompt not found"})
		return
	}
	var likes int64
	p.db.Model(&types.PromptLike{}).Where("prompt_id = ?", id).Count(&likes)
	c.JSON(http.StatusOK, gin.H{"prompt": promptRow{Prompt: prompt, Likes: likes}})
}

type promptUpdateRequest struct {
	Wallet   string  `json:"wallet" binding:"required,min=3,max=64"`
	Title    *string `json:"title"`
	Text     *string `json:"text"`
	Category *string `json:"category"`
	Shared   *bool   `json:"shared"`
}

func (p Prompts) Update(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req promptUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid request"})
		return
	}
	prompt, ok := p.ownedPrompt(c, id, req.Wallet)
	if !ok {
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = p.sanitizer.Sanitize(*req.Title)
	}
	if req.Text != nil {
		text := strings.TrimSpace(p.sanitizer.Sanitize(*req.Text))
		if text == "" || len(text) > maxPromptLen {
			c.JSON(http.StatusBadRequest, gin.H{"err": "text empty or too long"})
			return
		}
		updates["text"] = text
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.Shared != nil {
		updates["shared"] = *req.Shared
	}
	if len(updates) == 0 {
		c.JSON(http.StatusOK, gin.H{"id": prompt.ID})
		return
	}
	if err := p.db.Model(&types.Prompt{}).Where("id = ?", prompt.ID).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": prompt.ID})
}

type promptOwnerRequest struct {
	Wallet string `json:"wallet" binding:"required,min=3,max=64"`
}

func (p Prompts) Delete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req promptOwnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid request"})
		return
	}
	prompt, ok := p.ownedPrompt(c, id, req.Wallet)
	if !ok {
		return
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("prompt_id = ?", prompt.ID).Delete(&types.PromptLike{}).Error; err != nil {
			return err
		}
		return tx.Delete(&types.Prompt{}, "id = ?", prompt.ID).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": prompt.ID})
}

// Like records one like per (prompt, wallet) and credits the author.
func (p Prompts) Like(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req promptOwnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid request"})
		return
	}
	var prompt types.Prompt
	if err := p.db.First(&prompt, "id = ? AND shared = ?", id, true).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "prompt not found"})
		return
	}
	if prompt.Author == req.Wallet {
		c.JSON(http.StatusBadRequest, gin.H{"err": "cannot like your own prompt"})
		return
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&types.PromptLike{PromptID: prompt.ID, Wallet: req.Wallet}).Error; err != nil {
			return err
		}
		return upsertUserScore(tx, prompt.Author, "", likeAuthorBonus)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"err": "already liked"})
			return
		}
		log.Printf("like: persist failed for prompt %d: %v", prompt.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"liked": prompt.ID})
}

func (p Prompts) ownedPrompt(c *gin.Context, id uint64, wallet string) (types.Prompt, bool) {
	var prompt types.Prompt
	if err := p.db.First(&prompt, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "prompt not found"})
		return prompt, false
	}
	if prompt.Author != wallet {
		c.JSON(http.StatusForbidden, gin.H{"err": "not the author"})
		return prompt, false
	}
	return prompt, true
}

func paramID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid id"})
		return 0, false
	}
	return id, true
}
