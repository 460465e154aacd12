package modectx

import (
	"context"

	"github.com/mesh-intelligence/switchpoint/pkg/types"
)

// Mode returns the effective mode of switchPoint: the innermost scoped frame,
// then the global override, then DefaultMode.
func Mode(ctx context.Context, switchPoint string, globals *Globals) types.Mode {
	if m, ok := ScopedMode(ctx, switchPoint); ok {
		return m
	}
	if globals != nil {
		if m, ok := globals.Get(switchPoint); ok {
			return m
		}
	}
	return types.DefaultMode
}

// Name returns the effective definition name of switchPoint: the innermost
// scoped frame, then persistent (a process-wide override, empty if none),
// then switchPoint itself.
func Name(ctx context.Context, switchPoint, persistent string) string {
	if n, ok := ScopedName(ctx, switchPoint); ok {
		return n
	}
	if persistent != "" {
		return persistent
	}
	return switchPoint
}

// Effective resolves both axes at once.
func Effective(ctx context.Context, switchPoint, persistent string, globals *Globals) (types.Mode, string) {
	return Mode(ctx, switchPoint, globals), Name(ctx, switchPoint, persistent)
}
