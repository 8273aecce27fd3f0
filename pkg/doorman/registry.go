// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package doorman

import (
	"sync"

	"github.com/samber/oops"
)

// Registry hands out process-wide instances by configuration name.
// Instances are constructed lazily, at most once per name.
type Registry struct {
	deps        Deps
	configs     map[string]Config
	defaultName string

	mu        sync.RWMutex
	instances map[string]*Instance
}

// NewRegistry creates a registry over named configurations. defaultName
// may be empty when callers always name instances explicitly.
func NewRegistry(configs map[string]Config, defaultName string, deps Deps) (*Registry, error) {
	if defaultName != "" {
		if _, ok := configs[defaultName]; !ok {
			return nil, oops.In("doorman").Code("CONFIG_NOT_FOUND").
				With("instance", defaultName).
				Errorf("default instance has no configuration")
		}
	}
	return &Registry{
		deps:        deps,
		configs:     configs,
		defaultName: defaultName,
		instances:   make(map[string]*Instance),
	}, nil
}

// Instance returns the instance for name, constructing it on first use.
// An empty name selects the default instance. Unknown names fail with
// CONFIG_NOT_FOUND.
func (r *Registry) Instance(name string) (*Instance, error) {
	if name == "" {
		name = r.defaultName
	}

	r.mu.RLock()
	inst, ok := r.instances[name]
	r.mu.RUnlock()
	if ok {
		return inst, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the write lock: another goroutine may have built it.
	if inst, ok := r.instances[name]; ok {
		return inst, nil
	}

	cfg, ok := r.configs[name]
	if !ok {
		return nil, oops.In("doorman").Code("CONFIG_NOT_FOUND").
			With("instance", name).
			Errorf("no configuration for instance")
	}

	inst, err := NewInstance(cfg, r.deps)
	if err != nil {
		return nil, err
	}
	r.instances[name] = inst
	return inst, nil
}
