package webserver

import (
	"encoding/hex"
	"errors"
	"log"
	"math/big"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/modelarena/arena/src/treasury"
)

type Pay struct {
	treasury *treasury.Client
}

func NewPay(t *treasury.Client) Pay {
	return Pay{treasury: t}
}

type permitPayload struct {
	Deadline int64  `json:"deadline" binding:"required"`
	V        uint8  `json:"v" binding:"required"`
	R        string `json:"r" binding:"required"`
	S        string `json:"s" binding:"required"`
}

type payRequest struct {
	Wallet string         `json:"wallet" binding:"required,min=3,max=64"`
	Permit *permitPayload `json:"permit"`
}

// Charge runs an explicit pull payment against the treasury. Permit is
// optional: without one the user must have approved an allowance first.
func (p Pay) Charge(c *gin.Context) {
	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid request"})
		return
	}

	var permit *treasury.PermitSignature
	if req.Permit != nil {
		parsed, err := parsePermit(req.Permit)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"err": "invalid permit signature"})
			return
		}
		permit = parsed
	}

	res := p.treasury.Charge(c.Request.Context(), req.Wallet, permit)
	switch res.Kind {
	case treasury.Ok:
		c.JSON(http.StatusOK, gin.H{"status": res.Kind.String(), "txHash": res.TxHash})
	case treasury.AllowanceRequired:
		c.JSON(http.StatusPaymentRequired, gin.H{"error": res.Kind.String(), "detail": res.Reason})
	default:
		log.Printf("pay: charge failed for %s: %s", req.Wallet, res.Reason)
		c.JSON(http.StatusBadGateway, gin.H{"err": res.Reason})
	}
}

func parsePermit(p *permitPayload) (*treasury.PermitSignature, error) {
	r, err := hex32(p.R)
	if err != nil {
		return nil, err
	}
	s, err := hex32(p.S)
	if err != nil {
		return nil, err
	}
	return &treasury.PermitSignature{
		Deadline: big.NewInt(p.Deadline),
		V:        p.V,
		R:        r,
		S:        s,
	}, nil
}

func hex32(raw string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, errors.New("expected 32 bytes")
	}
	copy(out[:], b)
	return out, nil
}
