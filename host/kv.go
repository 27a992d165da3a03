package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/exorun/exorun/engine"
)

// KVCapability is the interface name KV must be linked under.
const KVCapability = "exorun:host/kv"

// KV is the `exorun:host/kv` capability: an in-memory string-to-string
// map, exposing "get(key) -> option<string>" and "set(key, val)".
type KV struct {
	mu    sync.Mutex
	store map[string]string
}

// NewKV returns an empty KV store.
func NewKV() *KV { return &KV{store: make(map[string]string)} }

// Capability reports the interface name this provider must be linked
// under.
func (k *KV) Capability() string { return KVCapability }

// Snapshot returns a copy of the store's current contents.
func (k *KV) Snapshot() map[string]string {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make(map[string]string, len(k.store))
	for key, val := range k.store {
		out[key] = val
	}
	return out
}

// Install defines "get(key: string) -> option<string>" and
// "set(key: string, val: string)" against linker.
func (k *KV) Install(linker engine.Linker) error {
	if err := linker.DefineFunc(KVCapability, "get", k.get); err != nil {
		return err
	}
	return linker.DefineFunc(KVCapability, "set", k.set)
}

func (k *KV) get(_ context.Context, args []engine.Value) ([]engine.Value, error) {
	if len(args) != 1 || args[0].Kind != engine.KindString {
		return nil, fmt.Errorf("host/kv: get expects (key: string)")
	}
	k.mu.Lock()
	val, ok := k.store[args[0].Str]
	k.mu.Unlock()
	if !ok {
		return []engine.Value{engine.OptionVal(nil)}, nil
	}
	some := engine.StringVal(val)
	return []engine.Value{engine.OptionVal(&some)}, nil
}

func (k *KV) set(_ context.Context, args []engine.Value) ([]engine.Value, error) {
	if len(args) != 2 || args[0].Kind != engine.KindString || args[1].Kind != engine.KindString {
		return nil, fmt.Errorf("host/kv: set expects (key: string, val: string)")
	}
	k.mu.Lock()
	k.store[args[0].Str] = args[1].Str
	k.mu.Unlock()
	return nil, nil
}
