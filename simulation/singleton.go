package simulation

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ErwanAndreo/HospitalAi/config"
	"github.com/ErwanAndreo/HospitalAi/store"
)

var (
	defaultMu     sync.Mutex
	defaultEngine *Engine
)

// Default returns the process-wide engine, creating it on first use
// with the given collaborators. Later calls ignore the arguments and
// return the same instance.
func Default(cfg *config.SimulationConfig, st store.Store, logger *zap.Logger) *Engine {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultEngine == nil {
		defaultEngine = NewEngine(cfg, st, logger)
	}
	return defaultEngine
}

// ResetDefault discards the process-wide engine so the next Default
// call builds a fresh one. Intended for tests.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultEngine = nil
}
