package webserver

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modelarena/arena/src/ai/core"
	"github.com/modelarena/arena/src/ai/providers"
	"github.com/modelarena/arena/src/api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var slowCallFinished atomic.Bool

type slowTestClient struct{}

func (slowTestClient) Respond(ctx context.Context, input string, opts core.Options) (string, error) {
	time.Sleep(30 * time.Millisecond)
	slowCallFinished.Store(true)
	return "slow answer", nil
}

type failTestClient struct{}

func (failTestClient) Respond(ctx context.Context, input string, opts core.Options) (string, error) {
	return "", errors.New("provider down")
}

func init() {
	core.RegisterProvider("testslow", func(core.FactoryConfig) (core.Client, error) {
		return slowTestClient{}, nil
	})
	core.RegisterProvider("testfail", func(core.FactoryConfig) (core.Client, error) {
		return failTestClient{}, nil
	})
}

// A fast failure on one side must not let generate return while the other
// model call is still writing its answer.
func TestGenerateWaitsForBothModelCalls(t *testing.T) {
	slowCallFinished.Store(false)
	a := NewArena(nil, providers.NewPool(core.FactoryConfig{}), nil)
	contestants := [2]types.Model{
		{ID: 1, Name: "down", Provider: "testfail", ModelKey: "down"},
		{ID: 2, Name: "slow", Provider: "testslow", ModelKey: "slow"},
	}

	_, err := a.generate(context.Background(), contestants, "ping")
	require.Error(t, err)
	assert.True(t, slowCallFinished.Load(), "generate returned before the slower call completed")
}

func TestGenerateBothSucceed(t *testing.T) {
	a := NewArena(nil, providers.NewPool(core.FactoryConfig{}), nil)
	contestants := [2]types.Model{
		{ID: 1, Name: "alpha", Provider: "mock", ModelKey: "mock-alpha"},
		{ID: 2, Name: "beta", Provider: "mock", ModelKey: "mock-beta"},
	}

	answers, err := a.generate(context.Background(), contestants, "ping")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), answers[0].model.ID)
	assert.Equal(t, uint64(2), answers[1].model.ID)
	assert.NotEmpty(t, answers[0].content)
	assert.NotEqual(t, answers[0].content, answers[1].content)
}

func TestGenerateUnknownProvider(t *testing.T) {
	a := NewArena(nil, providers.NewPool(core.FactoryConfig{}), nil)
	contestants := [2]types.Model{
		{ID: 1, Name: "ghost", Provider: "no-such-provider", ModelKey: "x"},
		{ID: 2, Name: "alpha", Provider: "mock", ModelKey: "mock-alpha"},
	}

	_, err := a.generate(context.Background(), contestants, "ping")
	assert.Error(t, err)
}
