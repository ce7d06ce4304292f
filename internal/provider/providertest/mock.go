// Package providertest provides test helpers for the provider package.
package providertest

import (
	"context"
	"sync"

	"github.com/inkonio/doppelbot/internal/provider"
)

// MockGenerator is a configurable test double for provider.Generator.
// Set GenerateFunc to control behavior; an unset func panics on call.
// Safe for concurrent use.
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, req provider.Request) (string, error)

	mu            sync.Mutex
	generateCalls int
	lastRequest   provider.Request
}

// Generate delegates to GenerateFunc and tracks the call.
func (m *MockGenerator) Generate(ctx context.Context, req provider.Request) (string, error) {
	m.mu.Lock()
	m.generateCalls++
	m.lastRequest = req
	m.mu.Unlock()
	return m.GenerateFunc(ctx, req)
}

// ModelName implements provider.Generator.
func (m *MockGenerator) ModelName() string { return "mock" }

// GenerateCalls returns how many times Generate was invoked.
func (m *MockGenerator) GenerateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generateCalls
}

// LastRequest returns the most recent request passed to Generate.
func (m *MockGenerator) LastRequest() provider.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}
