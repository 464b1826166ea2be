package content

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Failover chains LLM backends. Every call walks the chain in order and
// moves to the next backend when the current one errors; the chain fails
// only when every backend has. A cancelled context stops the walk.
type Failover struct {
	names    []string
	backends []LLM
}

// NewFailover builds a chain from ordered backends. names label the
// backends in logs and errors.
func NewFailover(names []string, backends []LLM) (*Failover, error) {
	if len(backends) == 0 {
		return nil, fmt.Errorf("at least one backend required")
	}
	if len(backends) != len(names) {
		return nil, fmt.Errorf("backend count (%d) does not match name count (%d)", len(backends), len(names))
	}
	return &Failover{names: names, backends: backends}, nil
}

// GenerateText implements LLM.
func (f *Failover) GenerateText(ctx context.Context, intent, prompt string) (string, error) {
	var text string
	err := f.execute(ctx, intent, func(b LLM) error {
		var err error
		text, err = b.GenerateText(ctx, intent, prompt)
		return err
	})
	return text, err
}

// GenerateJSON implements LLM.
func (f *Failover) GenerateJSON(ctx context.Context, intent, prompt string, target any) error {
	return f.execute(ctx, intent, func(b LLM) error {
		return b.GenerateJSON(ctx, intent, prompt, target)
	})
}

func (f *Failover) execute(ctx context.Context, intent string, call func(b LLM) error) error {
	var errs []string
	for i, b := range f.backends {
		err := call(b)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Sprintf("%s: %v", f.names[i], err))
		if ctx.Err() != nil {
			break
		}
		if i+1 < len(f.backends) {
			slog.Warn("Content: backend failed, falling back",
				"intent", intent, "backend", f.names[i], "next", f.names[i+1], "error", err)
		}
	}
	return fmt.Errorf("all backends failed: %s", strings.Join(errs, "; "))
}

// HealthCheck passes when any backend that exposes a health check passes.
func (f *Failover) HealthCheck(ctx context.Context) error {
	var errs []string
	for i, b := range f.backends {
		hc, ok := b.(interface {
			HealthCheck(ctx context.Context) error
		})
		if !ok {
			return nil
		}
		if err := hc.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", f.names[i], err))
			continue
		}
		return nil
	}
	return fmt.Errorf("no healthy backend: %s", strings.Join(errs, "; "))
}
