package webserver

import (
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/modelarena/arena/src/api/config"
	"github.com/modelarena/arena/src/treasury"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	simulated := treasury.NewClient(nil, treasury.NewMemoryAuthStore(), nil, big.NewInt(10_000))
	return New(config.Config{}, Deps{Treasury: simulated})
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := testRouter(t)
	w := do(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}

func TestPaySimulatedOK(t *testing.T) {
	r := testRouter(t)
	w := do(r, http.MethodPost, "/arena/pay", `{"wallet":"0x1111111111111111111111111111111111111111"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"OK"`)
}

func TestPayRejectsMissingWallet(t *testing.T) {
	r := testRouter(t)
	w := do(r, http.MethodPost, "/arena/pay", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPayRejectsMalformedPermit(t *testing.T) {
	r := testRouter(t)
	body := `{"wallet":"0x1111111111111111111111111111111111111111","permit":{"deadline":1893456000,"v":27,"r":"nothex","s":"nothex"}}`
	w := do(r, http.MethodPost, "/arena/pay", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVoteRejectsBadChoice(t *testing.T) {
	r := testRouter(t)
	body := `{"matchId":1,"wallet":"0x1111111111111111111111111111111111111111","choice":"C"}`
	w := do(r, http.MethodPost, "/arena/vote", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "choice")
}

func TestVoteRejectsMissingBody(t *testing.T) {
	r := testRouter(t)
	w := do(r, http.MethodPost, "/arena/vote", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPromptRejectsNonNumericID(t *testing.T) {
	r := testRouter(t)
	w := do(r, http.MethodGet, "/prompts/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHex32(t *testing.T) {
	_, err := hex32("0x" + strings.Repeat("ab", 32))
	assert.NoError(t, err)
	_, err = hex32(strings.Repeat("ab", 32))
	assert.NoError(t, err)
	_, err = hex32("0xdead")
	assert.Error(t, err)
	_, err = hex32("zz")
	assert.Error(t, err)
}
