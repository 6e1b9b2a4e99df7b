package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

// levelCache memoizes the resolved level per logger name.
var levelCache sync.Map

var (
	levelConfigMu  sync.RWMutex
	levelConfigMap map[string]string
	globalLevel    zapcore.Level
)

// InitLevelConfig sets the hierarchical level overrides and clears the cache.
func InitLevelConfig(levels map[string]string, defaultLevel zapcore.Level) {
	levelConfigMu.Lock()
	defer levelConfigMu.Unlock()
	levelConfigMap = levels
	globalLevel = defaultLevel
	levelCache = sync.Map{}
}

// GetLevelForName resolves the effective level for a dotted logger name,
// walking up the dotted path toward the global default on a miss.
func GetLevelForName(name string) zapcore.Level {
	if cached, ok := levelCache.Load(name); ok {
		return cached.(zapcore.Level)
	}
	level := computeLevelForName(name)
	levelCache.Store(name, level)
	return level
}

func computeLevelForName(name string) zapcore.Level {
	levelConfigMu.RLock()
	defer levelConfigMu.RUnlock()

	if len(levelConfigMap) == 0 || name == "" {
		return globalLevel
	}

	if levelStr, ok := levelConfigMap[name]; ok {
		if level, err := ParseLevel(levelStr); err == nil {
			return level
		}
	}

	parts := strings.Split(name, ".")
	for i := len(parts) - 1; i > 0; i-- {
		prefix := strings.Join(parts[:i], ".")
		if levelStr, ok := levelConfigMap[prefix]; ok {
			if level, err := ParseLevel(levelStr); err == nil {
				return level
			}
		}
	}

	return globalLevel
}

// ParseLevel parses a case-insensitive level name.
func ParseLevel(levelStr string) (zapcore.Level, error) {
	var level zapcore.Level
	err := level.UnmarshalText([]byte(strings.ToLower(levelStr)))
	return level, err
}
