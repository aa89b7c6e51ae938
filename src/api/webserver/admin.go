package webserver

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modelarena/arena/src/consensus"
	"gorm.io/gorm"
)

type Admin struct {
	db *gorm.DB
}

func NewAdmin(db *gorm.DB) Admin {
	return Admin{db: db}
}

// RunConsensus triggers an immediate consensus recomputation pass. The
// scheduler runs the same job periodically; this endpoint exists for
// operators and tests.
func (a Admin) RunConsensus(c *gin.Context) {
	stats, err := consensus.Recompute(c.Request.Context(), consensus.NewGormStore(a.db))
	if err != nil {
		log.Printf("consensus: manual run failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"matches": stats.Matches,
		"updated": stats.Updated,
		"failed":  stats.Failed,
	})
}
