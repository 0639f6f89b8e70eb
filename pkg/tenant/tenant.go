// Package tenant maps dialed numbers to the tenant that owns them.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var ErrTenantNotFound = errors.New("tenant not found for number")

// Resolver finds the tenant owning the called number.
type Resolver interface {
	Resolve(ctx context.Context, calleeNumber string) (string, error)
}

// StaticResolver resolves numbers from an in-memory table.
type StaticResolver struct {
	mu       sync.RWMutex
	numbers  map[string]string
	fallback string
}

func NewStaticResolver(fallback string) *StaticResolver {
	return &StaticResolver{numbers: make(map[string]string), fallback: fallback}
}

func (r *StaticResolver) Assign(number, tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.numbers[Normalize(number)] = tenantID
}

func (r *StaticResolver) Resolve(_ context.Context, calleeNumber string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if tenantID, ok := r.numbers[Normalize(calleeNumber)]; ok {
		return tenantID, nil
	}

	if r.fallback != "" {
		return r.fallback, nil
	}

	return "", fmt.Errorf("%w: %q", ErrTenantNotFound, calleeNumber)
}

// Normalize keeps digits and a leading plus sign.
func Normalize(number string) string {
	var b strings.Builder

	for i, r := range strings.TrimSpace(number) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}

	return b.String()
}

type fileFormat struct {
	Default string `yaml:"default"`
	Tenants []struct {
		ID      string   `yaml:"id"`
		Numbers []string `yaml:"numbers"`
	} `yaml:"tenants"`
}

// LoadFile reads a YAML tenant table:
//
//	default: acme
//	tenants:
//	  - id: acme
//	    numbers: ["+15550100"]
func LoadFile(path string) (*StaticResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tenants file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*StaticResolver, error) {
	var file fileFormat
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tenants file: %w", err)
	}

	resolver := NewStaticResolver(file.Default)

	for _, tenant := range file.Tenants {
		if tenant.ID == "" {
			return nil, errors.New("tenant without id")
		}

		for _, number := range tenant.Numbers {
			resolver.Assign(number, tenant.ID)
		}
	}

	return resolver, nil
}
