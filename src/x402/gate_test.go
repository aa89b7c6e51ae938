package x402

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modelarena/arena/src/treasury"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSettler struct {
	calls atomic.Int64
	err   error
}

func (f *fakeSettler) AttemptPayment(ctx context.Context, payer string, amount *big.Int, nonce string) (treasury.Receipt, error) {
	f.calls.Add(1)
	if f.err != nil {
		return treasury.Receipt{}, f.err
	}
	return treasury.Receipt{Success: true, Mode: treasury.ModeSimulated}, nil
}

func newTestGate(t *testing.T, settler Settler) *Gate {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gate, err := NewGate(GateConfig{
		Routes: map[string]RouteConfig{
			"/arena/chat": {PriceUSD: "0.01", Network: "base-sepolia", Description: "one arena chat"},
		},
		Sessions:       NewSessionManager([]byte("test-secret"), time.Hour),
		Settler:        settler,
		ChainID:        84532,
		TokenAddress:   "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		PayToAddress:   "0x1111111111111111111111111111111111111111",
		FacilitatorURL: "https://x402.org/facilitator",
	})
	require.NoError(t, err)
	return gate
}

func newTestRouter(gate *Gate, handled *atomic.Int64) *gin.Engine {
	r := gin.New()
	r.Use(gate.Middleware())
	handler := func(c *gin.Context) {
		handled.Add(1)
		c.JSON(http.StatusOK, gin.H{"payer": Payer(c)})
	}
	r.POST("/arena/chat", handler)
	r.POST("/free", handler)
	return r
}

func encodeAuth(t *testing.T, auth Authorization) string {
	t.Helper()
	b, err := json.Marshal(auth)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(b)
}

func TestGateNoAuthReturns402(t *testing.T) {
	var handled atomic.Int64
	gate := newTestGate(t, &fakeSettler{})
	r := newTestRouter(gate, &handled)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/arena/chat", nil))

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Zero(t, handled.Load())

	var body struct {
		Error             string `json:"error"`
		RequiresSignature bool   `json:"requiresSignature"`
		X402              struct {
			ChainID     int64  `json:"chainId"`
			Token       string `json:"token"`
			PayTo       string `json:"pay_to_address"`
			Amount      string `json:"amount"`
			Price       string `json:"price"`
			Network     string `json:"network"`
			Description string `json:"description"`
			Timestamp   int64  `json:"timestamp"`
			Facilitator string `json:"facilitator_url"`
		} `json:"x402"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.RequiresSignature)
	assert.Equal(t, int64(84532), body.X402.ChainID)
	assert.Equal(t, "10000", body.X402.Amount, "0.01 USD in USDC minor units")
	assert.Equal(t, "0.01", body.X402.Price)
	assert.Equal(t, "base-sepolia", body.X402.Network)
	assert.NotZero(t, body.X402.Timestamp)
}

func TestGateUnpricedRouteBypasses(t *testing.T) {
	var handled atomic.Int64
	gate := newTestGate(t, &fakeSettler{})
	r := newTestRouter(gate, &handled)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/free", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), handled.Load())
}

func TestGateFirstAuthorizationMintsSession(t *testing.T) {
	var handled atomic.Int64
	settler := &fakeSettler{}
	gate := newTestGate(t, settler)
	r := newTestRouter(gate, &handled)

	req := httptest.NewRequest(http.MethodPost, "/arena/chat", nil)
	req.Header.Set(HeaderPaymentAuth, encodeAuth(t, Authorization{
		Payload:   "pay 0.01",
		Signature: "0xsig",
		Address:   "0xabc",
		Timestamp: time.Now().UnixMilli(),
	}))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), handled.Load())

	token := w.Header().Get(HeaderSessionToken)
	require.NotEmpty(t, token, "response must carry a fresh session credential")
	sess, err := gate.sessions.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", sess.Subject)
}

func TestGateValidSessionProceedsEvenIfSettlementFails(t *testing.T) {
	var handled atomic.Int64
	settler := &fakeSettler{err: errors.New("chain down")}
	gate := newTestGate(t, settler)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gate.Start(ctx)
	r := newTestRouter(gate, &handled)

	token, err := gate.sessions.Mint("0xabc", "h")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/arena/chat", nil)
	req.Header.Set(HeaderSessionToken, token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), handled.Load())
	assert.Contains(t, w.Body.String(), "0xabc")
}

func TestGateExpiredSessionReturns402(t *testing.T) {
	var handled atomic.Int64
	gate := newTestGate(t, &fakeSettler{})
	r := newTestRouter(gate, &handled)

	sm := gate.sessions
	sm.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := sm.Mint("0xabc", "h")
	require.NoError(t, err)
	sm.now = time.Now

	req := httptest.NewRequest(http.MethodPost, "/arena/chat", nil)
	req.Header.Set(HeaderSessionToken, token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Zero(t, handled.Load())

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["sessionExpired"])
	assert.NotContains(t, body, "requiresSignature")
}

func TestGateForgedSessionFallsToNoAuth(t *testing.T) {
	var handled atomic.Int64
	gate := newTestGate(t, &fakeSettler{})
	r := newTestRouter(gate, &handled)

	req := httptest.NewRequest(http.MethodPost, "/arena/chat", nil)
	req.Header.Set(HeaderSessionToken, "not-a-real-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["requiresSignature"])
}

func TestGateMalformedAuthorization(t *testing.T) {
	var handled atomic.Int64
	gate := newTestGate(t, &fakeSettler{})
	r := newTestRouter(gate, &handled)

	req := httptest.NewRequest(http.MethodPost, "/arena/chat", nil)
	req.Header.Set(HeaderPaymentAuth, "%%%not-base64%%%")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Zero(t, handled.Load())
}

func TestGateAnonymousSubject(t *testing.T) {
	var handled atomic.Int64
	gate := newTestGate(t, &fakeSettler{})
	r := newTestRouter(gate, &handled)

	req := httptest.NewRequest(http.MethodPost, "/arena/chat", nil)
	req.Header.Set(HeaderPaymentAuth, encodeAuth(t, Authorization{Payload: "p", Signature: "s"}))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	token := w.Header().Get(HeaderSessionToken)
	sess, err := gate.sessions.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "anonymous", sess.Subject)
}

func TestGateSettlementWorkerDelivers(t *testing.T) {
	var handled atomic.Int64
	settler := &fakeSettler{}
	gate := newTestGate(t, settler)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gate.Start(ctx)
	r := newTestRouter(gate, &handled)

	token, err := gate.sessions.Mint("0xabc", "h")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/arena/chat", nil)
	req.Header.Set(HeaderSessionToken, token)
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Eventually(t, func() bool { return settler.calls.Load() == 1 },
		2*time.Second, 10*time.Millisecond)
}
