package runtime

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"orangebook/internal/observability"
	"orangebook/internal/pipeline"
)

// RunnerFunc adapts a function to Runner
type RunnerFunc func(ctx context.Context) (*pipeline.Result, error)

func (f RunnerFunc) Run(ctx context.Context) (*pipeline.Result, error) { return f(ctx) }

// Middleware wraps a Runner
type Middleware func(next Runner) Runner

// Chain applies middlewares so that the first one is the outermost
func Chain(r Runner, middlewares ...Middleware) Runner {
	for i := len(middlewares) - 1; i >= 0; i-- {
		r = middlewares[i](r)
	}
	return r
}

// Recovery turns a panic inside a run into an error
func Recovery(logger observability.Logger, metrics observability.Metrics) Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context) (result *pipeline.Result, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Panic recovered",
						"panic", fmt.Sprintf("%v", r),
						"stack", string(debug.Stack()))
					metrics.IncrementCounter("runtime.panics", nil)
					result, err = nil, fmt.Errorf("panic recovered: %v", r)
				}
			}()
			return next.Run(ctx)
		})
	}
}

// Timeout bounds a run; zero disables it
func Timeout(d time.Duration) Middleware {
	return func(next Runner) Runner {
		if d <= 0 {
			return next
		}
		return RunnerFunc(func(ctx context.Context) (*pipeline.Result, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.Run(ctx)
		})
	}
}
