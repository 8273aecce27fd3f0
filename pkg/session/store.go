// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package session binds a process-external session to a verified identity.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/samber/oops"
)

// Store is the narrow contract a session backend must satisfy. One Store
// represents one client session; implementations are I/O boundaries and
// surface failures instead of retrying.
type Store interface {
	// Get returns the value for key, with ok=false on absence.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set writes a key.
	Set(ctx context.Context, key, value string) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Rotate regenerates the session token while preserving bound data.
	// Defeats session fixation after privilege-changing events.
	Rotate(ctx context.Context) error
}

// tokenBytes is the session token length before hex encoding.
const tokenBytes = 32

// NewToken returns a fresh random session token in hex.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("SESSION_TOKEN_FAILED").Wrap(err)
	}
	return hex.EncodeToString(b), nil
}

// MemoryStore is an in-process Store. It backs tests and single-process
// deployments; the postgres store is the shared-backend implementation.
type MemoryStore struct {
	mu     sync.Mutex
	token  string
	values map[string]string
}

// NewMemoryStore creates an empty MemoryStore with a fresh token.
func NewMemoryStore() (*MemoryStore, error) {
	token, err := NewToken()
	if err != nil {
		return nil, err
	}
	return &MemoryStore{token: token, values: make(map[string]string)}, nil
}

// Token returns the current session token.
func (s *MemoryStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Get returns the value for key.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set writes a key.
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Delete removes a key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Rotate regenerates the token, preserving values.
func (s *MemoryStore) Rotate(_ context.Context) error {
	token, err := NewToken()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)
