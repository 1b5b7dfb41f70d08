package rpc

import (
	"reflect"
	"sync"
)

// AuthTokenStore lets ObjectData delegate auth-token storage to something
// shared across process replicas (see internal/store.RedisTokenStore)
// instead of keeping it purely in memory. A nil store keeps the token
// in-process only, which is the default and sufficient for a single server.
type AuthTokenStore interface {
	Get(key string) (string, bool, error)
	Set(key string, token string) error
}

// ObjectData is the process-wide, address-keyed record shared by every
// Connection serving the same underlying target: its property bag and its
// auth token. Multiple Connections accepted for the same object share one
// ObjectData, exactly as the original's weak-reference registry in
// RPCObjectData.h ensures every Connection over a given target sees the
// same property map and auth state.
type ObjectData struct {
	mu         sync.Mutex
	properties map[string]Any
	authToken  string
	refs       int
	store      AuthTokenStore
	storeKey   string
}

// registry is the process-wide map from served-object identity to its
// shared ObjectData, with simple manual ref-counting: Acquire increments,
// Release decrements and removes the entry once no Connection references
// it anymore.
type registry struct {
	mu      sync.Mutex
	objects map[uintptr]*ObjectData
}

var globalRegistry = &registry{objects: make(map[uintptr]*ObjectData)}

// objectIdentity returns the pointer identity of a served target. Per
// SPEC_FULL.md's resolution of the "object address identity" open
// question, served objects must be pointer-typed.
func objectIdentity(target any) (uintptr, bool) {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return 0, false
	}
	return v.Pointer(), true
}

// AcquireObjectData returns the shared ObjectData for target, creating one
// on first use. Every acquire must be matched by a Release when the
// Connection serving target closes.
func AcquireObjectData(target any) (*ObjectData, error) {
	id, ok := objectIdentity(target)
	if !ok {
		return nil, &Exception{Message: "rpc: served target must be a non-nil pointer"}
	}
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	od, ok := globalRegistry.objects[id]
	if !ok {
		od = &ObjectData{properties: make(map[string]Any)}
		globalRegistry.objects[id] = od
	}
	od.mu.Lock()
	od.refs++
	od.mu.Unlock()
	return od, nil
}

// Release drops one reference; once the last Connection serving this
// object releases it, its ObjectData is removed from the registry.
func Release(target any, od *ObjectData) {
	id, ok := objectIdentity(target)
	if !ok {
		return
	}
	od.mu.Lock()
	od.refs--
	remaining := od.refs
	od.mu.Unlock()
	if remaining <= 0 {
		globalRegistry.mu.Lock()
		delete(globalRegistry.objects, id)
		globalRegistry.mu.Unlock()
	}
}

// UseAuthTokenStore wires a shared backing store (e.g. Redis) for the auth
// token under storeKey; reads/writes fall through in-memory on store error.
func (od *ObjectData) UseAuthTokenStore(store AuthTokenStore, storeKey string) {
	od.mu.Lock()
	defer od.mu.Unlock()
	od.store = store
	od.storeKey = storeKey
}

// SetAuthToken sets the token gating non-__auth calls. An empty token
// disables gating entirely.
func (od *ObjectData) SetAuthToken(token string) {
	od.mu.Lock()
	od.authToken = token
	store, key := od.store, od.storeKey
	od.mu.Unlock()
	if store != nil {
		_ = store.Set(key, token)
	}
}

// CheckAuthToken reports whether token gating is disabled (empty token) or
// the supplied candidate matches.
func (od *ObjectData) CheckAuthToken(candidate string) bool {
	od.mu.Lock()
	token, store, key := od.authToken, od.store, od.storeKey
	od.mu.Unlock()
	if store != nil {
		if remote, ok, err := store.Get(key); err == nil && ok {
			token = remote
		}
	}
	if token == "" {
		return true
	}
	return candidate == token
}

// RequiresAuth reports whether any auth token has been set.
func (od *ObjectData) RequiresAuth() bool {
	od.mu.Lock()
	defer od.mu.Unlock()
	return od.authToken != ""
}

// GetProperty implements the backing store for the __getProperty generic
// call.
func (od *ObjectData) GetProperty(name string) (Any, bool) {
	od.mu.Lock()
	defer od.mu.Unlock()
	v, ok := od.properties[name]
	return v, ok
}

// SetProperty implements the backing store for the __setProperty generic
// call.
func (od *ObjectData) SetProperty(name string, v Any) {
	od.mu.Lock()
	defer od.mu.Unlock()
	od.properties[name] = v
}
