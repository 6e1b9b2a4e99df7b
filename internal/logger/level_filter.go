package logger

import (
	"go.uber.org/zap/zapcore"
)

// levelFilterCore wraps a zapcore.Core and rejects entries below level.
type levelFilterCore struct {
	zapcore.Core
	level zapcore.Level
}

// Enabled reports whether lvl meets this core's configured minimum.
func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.level
}

// Check overrides the embedded Core's Check, which otherwise calls the
// embedded type's own Enabled rather than the override above.
func (c *levelFilterCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

var (
	_ zapcore.Core         = (*levelFilterCore)(nil)
	_ zapcore.LevelEnabler = (*levelFilterCore)(nil)
)
