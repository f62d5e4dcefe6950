package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Errors
var (
	ErrUnsupportedLocator = errors.New("unsupported locator scheme")
	ErrInvalidLocator     = errors.New("invalid locator")
)

// Backend reads and removes the resources behind locators of one scheme.
type Backend interface {
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
	Delete(ctx context.Context, locator string) error
}

// Mux resolves locators by dispatching them to the backend registered for
// their scheme. Locators without a scheme are treated as "file".
type Mux struct {
	backends map[string]Backend
}

// NewMux creates an empty Mux.
func NewMux() *Mux {
	return &Mux{backends: make(map[string]Backend)}
}

// Handle registers b for scheme. It must not be called concurrently with Open or Delete.
func (m *Mux) Handle(scheme string, b Backend) {
	m.backends[strings.ToLower(scheme)] = b
}

// Open opens the resource identified by locator.
func (m *Mux) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	b, err := m.backend(locator)
	if err != nil {
		return nil, err
	}

	return b.Open(ctx, locator)
}

// Delete removes the resource identified by locator.
func (m *Mux) Delete(ctx context.Context, locator string) error {
	b, err := m.backend(locator)
	if err != nil {
		return err
	}

	return b.Delete(ctx, locator)
}

func (m *Mux) backend(locator string) (Backend, error) {
	scheme, err := Scheme(locator)
	if err != nil {
		return nil, err
	}

	b, ok := m.backends[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLocator, scheme)
	}

	return b, nil
}

// Scheme returns the lowercased scheme of locator, or "file" for plain paths.
func Scheme(locator string) (string, error) {
	if strings.TrimSpace(locator) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidLocator)
	}

	if !strings.Contains(locator, "://") {
		return "file", nil
	}

	u, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}

	return strings.ToLower(u.Scheme), nil
}
