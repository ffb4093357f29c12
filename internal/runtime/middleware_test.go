package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orangebook/internal/observability/mocks"
	"orangebook/internal/pipeline"
)

func TestChain_Order(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next Runner) Runner {
			return RunnerFunc(func(ctx context.Context) (*pipeline.Result, error) {
				order = append(order, name)
				return next.Run(ctx)
			})
		}
	}

	r := Chain(RunnerFunc(func(ctx context.Context) (*pipeline.Result, error) {
		order = append(order, "run")
		return &pipeline.Result{}, nil
	}), tag("outer"), tag("inner"))

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "run"}, order)
}

func TestRecovery(t *testing.T) {
	metrics := mocks.NewQuietMetrics()
	r := Recovery(mocks.NewQuietLogger(), metrics)(RunnerFunc(func(ctx context.Context) (*pipeline.Result, error) {
		panic("nil map write")
	}))

	result, err := r.Run(context.Background())
	assert.Nil(t, result)
	assert.EqualError(t, err, "panic recovered: nil map write")
	metrics.AssertCalled(t, "IncrementCounter", "runtime.panics", map[string]string(nil))
}

func TestTimeout(t *testing.T) {
	slow := RunnerFunc(func(ctx context.Context) (*pipeline.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := Timeout(10 * time.Millisecond)(slow).Run(context.Background())
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	fast := RunnerFunc(func(ctx context.Context) (*pipeline.Result, error) {
		_, hasDeadline := ctx.Deadline()
		assert.False(t, hasDeadline)
		return &pipeline.Result{}, nil
	})
	_, err = Timeout(0)(fast).Run(context.Background())
	assert.NoError(t, err)
}
