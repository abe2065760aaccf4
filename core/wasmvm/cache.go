package wasmvm

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/wasmerio/wasmer-go/wasmer"

	"grugchain/core/gtypes"
)

// compiled pairs a Module with the Engine it was compiled against — the
// two must always travel together, since a Module can only be
// instantiated with an Engine (and Store) derived from the one that
// compiled it.
type compiled struct {
	engine *wasmer.Engine
	module *wasmer.Module
}

// ModuleCache is the LRU cache named in §4.6 step 1, keyed by code hash
// (§5 "the module cache is shared across calls; it is internally
// synchronized... its unit of work is get_or_build(code_hash, builder)").
// golang-lru/v2 is already internally mutex-guarded, so ModuleCache adds
// no locking of its own beyond what GetOrBuild needs to avoid a cache
// stampede recompiling the same code hash concurrently.
type ModuleCache struct {
	cache *lru.Cache[gtypes.Hash, *compiled]

	mu      sync.Mutex
	pending map[gtypes.Hash]*sync.WaitGroup
}

// NewModuleCache creates a cache holding up to capacity compiled modules
// (§6 "wasm_cache_capacity: NonZero<usize>").
func NewModuleCache(capacity int) (*ModuleCache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("wasmvm: wasm_cache_capacity must be non-zero")
	}
	c, err := lru.New[gtypes.Hash, *compiled](capacity)
	if err != nil {
		return nil, fmt.Errorf("wasmvm: create module cache: %w", err)
	}
	return &ModuleCache{cache: c, pending: make(map[gtypes.Hash]*sync.WaitGroup)}, nil
}

// GetOrBuild resolves codeHash from the cache, compiling code with
// wasmer's default engine on a miss and caching the (Module, Engine) pair
// (§4.6 step 1). No single-pass compiler is selected and no gas-metering
// middleware is attached at compile time. Concurrent misses on the same code hash block behind one
// another rather than compiling the same module twice.
func (c *ModuleCache) GetOrBuild(codeHash gtypes.Hash, code []byte) (*wasmer.Engine, *wasmer.Module, error) {
	if hit, ok := c.cache.Get(codeHash); ok {
		return hit.engine, hit.module, nil
	}

	c.mu.Lock()
	if wg, building := c.pending[codeHash]; building {
		c.mu.Unlock()
		wg.Wait()
		if hit, ok := c.cache.Get(codeHash); ok {
			return hit.engine, hit.module, nil
		}
		return nil, nil, fmt.Errorf("wasmvm: concurrent compile of %s failed", codeHash)
	}
	wg := &sync.WaitGroup{}
	wg.Add(1)
	c.pending[codeHash] = wg
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, codeHash)
		c.mu.Unlock()
		wg.Done()
	}()

	engine := wasmer.NewEngine()
	store := wasmer.NewStore(engine)
	module, err := wasmer.NewModule(store, code)
	if err != nil {
		return nil, nil, fmt.Errorf("wasmvm: compile module %s: %w", codeHash, err)
	}
	c.cache.Add(codeHash, &compiled{engine: engine, module: module})
	return engine, module, nil
}

// Len reports how many compiled modules are currently cached.
func (c *ModuleCache) Len() int { return c.cache.Len() }

// Purge evicts codeHash, forcing the next GetOrBuild to recompile — used
// when a Code record is deleted (orphan sweep, §4.4 step 6).
func (c *ModuleCache) Purge(codeHash gtypes.Hash) {
	c.cache.Remove(codeHash)
}
