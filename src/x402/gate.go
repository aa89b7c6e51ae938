package x402

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modelarena/arena/src/treasury"
)

// Request/response headers of the protocol.
const (
	HeaderSessionToken  = "X-Session-Token"
	HeaderPaymentAuth   = "X-Payment-Authorization"
	payerContextKey     = "payer"
	anonymousSubject    = "anonymous"
	settlementQueueSize = 256
)

// RouteConfig prices one protected path. Paths without a config bypass
// the gate entirely.
type RouteConfig struct {
	PriceUSD    string
	Network     string
	Description string
}

// Settler is the settlement side of the gate; implemented by the
// treasury client.
type Settler interface {
	AttemptPayment(ctx context.Context, payer string, amount *big.Int, nonce string) (treasury.Receipt, error)
}

// Authorization is the client-signed proof-of-payment bundle carried on
// first use.
type Authorization struct {
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
	Address   string `json:"address"`
	Timestamp int64  `json:"timestamp"`
}

type settleJob struct {
	payer  string
	amount *big.Int
	nonce  string
}

// Gate is the x402 payment gate: a per-request state machine deciding
// whether a priced endpoint may proceed, issuing and validating session
// credentials, and handing settlement to a background worker so a payment
// hiccup never blocks paying traffic.
type Gate struct {
	routes   map[string]RouteConfig
	amounts  map[string]*big.Int // precomputed minor units per path
	sessions *SessionManager
	settler  Settler

	chainID        int64
	tokenAddress   string
	payToAddress   string
	facilitatorURL string

	queue chan settleJob
	now   func() time.Time
}

// GateConfig wires a Gate.
type GateConfig struct {
	Routes         map[string]RouteConfig
	Sessions       *SessionManager
	Settler        Settler
	ChainID        int64
	TokenAddress   string
	PayToAddress   string
	FacilitatorURL string
}

func NewGate(cfg GateConfig) (*Gate, error) {
	amounts := make(map[string]*big.Int, len(cfg.Routes))
	for path, rc := range cfg.Routes {
		amount, err := treasury.USDToMinorUnits(rc.PriceUSD)
		if err != nil {
			return nil, fmt.Errorf("x402: route %s: %w", path, err)
		}
		amounts[path] = amount
	}
	return &Gate{
		routes:         cfg.Routes,
		amounts:        amounts,
		sessions:       cfg.Sessions,
		settler:        cfg.Settler,
		chainID:        cfg.ChainID,
		tokenAddress:   cfg.TokenAddress,
		payToAddress:   cfg.PayToAddress,
		facilitatorURL: cfg.FacilitatorURL,
		queue:          make(chan settleJob, settlementQueueSize),
		now:            time.Now,
	}, nil
}

// Start runs the settlement worker until ctx is done.
func (g *Gate) Start(ctx context.Context) {
	go g.settleLoop(ctx)
}

func (g *Gate) settleLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-g.queue:
			g.settle(ctx, job)
		}
	}
}

func (g *Gate) settle(ctx context.Context, job settleJob) {
	const attempts = 3
	for i := 0; i < attempts; i++ {
		callCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		receipt, err := g.settler.AttemptPayment(callCtx, job.payer, job.amount, job.nonce)
		cancel()
		if err == nil {
			if receipt.TxHash != "" {
				log.Printf("x402: settled %s for %s tx %s", job.amount, job.payer, receipt.TxHash)
			}
			return
		}
		if errors.Is(err, treasury.ErrNonceReused) {
			log.Printf("x402: settlement rejected for %s: %v", job.payer, err)
			return
		}
		log.Printf("x402: settlement attempt %d for %s failed: %v", i+1, job.payer, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(i+1) * 2 * time.Second):
		}
	}
}

// enqueueSettle hands a settlement to the worker without ever blocking
// the request path.
func (g *Gate) enqueueSettle(payer string, amount *big.Int, nonce string) {
	select {
	case g.queue <- settleJob{payer: payer, amount: amount, nonce: nonce}:
	default:
		log.Printf("x402: settlement queue full, dropping job for %s", payer)
	}
}

// Payer returns the authenticated payer identity set by the gate.
func Payer(c *gin.Context) string {
	return c.GetString(payerContextKey)
}

// Middleware evaluates the gate state machine for each request.
func (g *Gate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route, priced := g.routes[c.Request.URL.Path]
		if !priced {
			c.Next()
			return
		}
		amount := g.amounts[c.Request.URL.Path]

		if tokenStr := c.GetHeader(HeaderSessionToken); tokenStr != "" {
			sess, err := g.sessions.Decode(tokenStr)
			switch {
			case err == nil:
				// SessionActive: settlement is best-effort and async.
				g.enqueueSettle(sess.Subject, amount, sess.AuthHash)
				c.Set(payerContextKey, sess.Subject)
				c.Next()
				return
			case errors.Is(err, ErrSessionExpired):
				g.paymentRequired(c, route, amount, gin.H{"sessionExpired": true})
				return
			default:
				// Forged or malformed token: fall through to the NoAuth path.
			}
		}

		raw := c.GetHeader(HeaderPaymentAuth)
		if raw == "" {
			g.paymentRequired(c, route, amount, gin.H{"requiresSignature": true})
			return
		}

		auth, err := decodeAuthorization(raw)
		if err != nil {
			log.Printf("x402: bad payment authorization: %v", err)
			g.paymentRequired(c, route, amount, gin.H{"requiresSignature": true})
			return
		}
		subject := auth.Address
		if subject == "" {
			subject = anonymousSubject
		}

		authHash := AuthorizationHash(raw)
		sessionToken, err := g.sessions.Mint(subject, authHash)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"err": "failed to mint session"})
			return
		}
		c.Header(HeaderSessionToken, sessionToken)

		g.enqueueSettle(subject, amount, authHash)
		c.Set(payerContextKey, subject)
		c.Next()
	}
}

func (g *Gate) paymentRequired(c *gin.Context, route RouteConfig, amount *big.Int, extra gin.H) {
	body := gin.H{
		"error": "payment required",
		"x402": gin.H{
			"chainId":         g.chainID,
			"token":           g.tokenAddress,
			"pay_to_address":  g.payToAddress,
			"amount":          amount.String(),
			"price":           route.PriceUSD,
			"network":         route.Network,
			"description":     route.Description,
			"timestamp":       g.now().UnixMilli(),
			"facilitator_url": g.facilitatorURL,
		},
	}
	for k, v := range extra {
		body[k] = v
	}
	c.AbortWithStatusJSON(http.StatusPaymentRequired, body)
}

func decodeAuthorization(raw string) (*Authorization, error) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	var auth Authorization
	if err := json.Unmarshal(decoded, &auth); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if auth.Signature == "" {
		return nil, errors.New("missing signature")
	}
	return &auth, nil
}
