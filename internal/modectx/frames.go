package modectx

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/switchpoint/pkg/types"
)

// Frame is one scoped override. A frame overrides the mode, the name, or
// both; the two axes resolve independently.
type Frame struct {
	SwitchPoint string
	Mode        types.Mode // zero when the frame does not override the mode
	Name        string     // empty when the frame does not override the name
	Depth       int

	parent *Frame
}

type frameKey struct{}

func top(ctx context.Context) *Frame {
	f, _ := ctx.Value(frameKey{}).(*Frame)
	return f
}

func push(ctx context.Context, f Frame) context.Context {
	parent := top(ctx)
	f.parent = parent
	if parent != nil {
		f.Depth = parent.Depth + 1
	}
	return context.WithValue(ctx, frameKey{}, &f)
}

// PushMode returns a context in which switchPoint runs in mode.
func PushMode(ctx context.Context, switchPoint string, mode types.Mode) (context.Context, error) {
	if !mode.Valid() {
		return ctx, fmt.Errorf("%w: %s", types.ErrInvalidMode, mode)
	}
	return push(ctx, Frame{SwitchPoint: switchPoint, Mode: mode}), nil
}

// PushName returns a context in which switchPoint resolves the definition
// registered under name.
func PushName(ctx context.Context, switchPoint, name string) context.Context {
	return push(ctx, Frame{SwitchPoint: switchPoint, Name: name})
}

// WithMode runs fn with switchPoint scoped to mode. The scope ends when fn
// returns or panics; errors from fn are returned unchanged.
func WithMode(ctx context.Context, switchPoint string, mode types.Mode, fn func(context.Context) error) error {
	scoped, err := PushMode(ctx, switchPoint, mode)
	if err != nil {
		return err
	}
	return fn(scoped)
}

// WithName runs fn with switchPoint scoped to the definition named name.
func WithName(ctx context.Context, switchPoint, name string, fn func(context.Context) error) error {
	return fn(PushName(ctx, switchPoint, name))
}

// ScopedMode returns the innermost scoped mode of switchPoint.
func ScopedMode(ctx context.Context, switchPoint string) (types.Mode, bool) {
	for f := top(ctx); f != nil; f = f.parent {
		if f.SwitchPoint == switchPoint && f.Mode != 0 {
			return f.Mode, true
		}
	}
	return 0, false
}

// ScopedName returns the innermost scoped name of switchPoint.
func ScopedName(ctx context.Context, switchPoint string) (string, bool) {
	for f := top(ctx); f != nil; f = f.parent {
		if f.SwitchPoint == switchPoint && f.Name != "" {
			return f.Name, true
		}
	}
	return "", false
}

// Frames returns the active frames of switchPoint, innermost first.
func Frames(ctx context.Context, switchPoint string) []Frame {
	var frames []Frame
	for f := top(ctx); f != nil; f = f.parent {
		if f.SwitchPoint == switchPoint {
			c := *f
			c.parent = nil
			frames = append(frames, c)
		}
	}
	return frames
}
