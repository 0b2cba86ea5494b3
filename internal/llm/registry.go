package llm

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/opencode-ai/mermaid-agent/internal/config"
)

// Factory builds a Generator from configuration.
type Factory func(cfg config.LLMConfig) (Generator, error)

// Registry maps backend names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Names are case-insensitive.
// Returns an error if the name is already registered.
func (r *Registry) Register(name string, factory Factory) error {
	key := normalizeName(name)
	if key == "" {
		return fmt.Errorf("backend name is required")
	}
	if factory == nil {
		return fmt.Errorf("backend %q has no factory", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[key]; exists {
		return fmt.Errorf("backend %q already registered", key)
	}
	r.factories[key] = factory
	return nil
}

// MustRegister adds a factory, panicking on error.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// New builds the generator named by cfg.Backend.
func (r *Registry) New(cfg config.LLMConfig) (Generator, error) {
	key := normalizeName(cfg.Backend)

	r.mu.RLock()
	factory, ok := r.factories[key]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown backend %q (available: %s)", cfg.Backend, strings.Join(r.Names(), ", "))
	}
	return factory(cfg)
}

// Names returns the registered backend names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// DefaultRegistry holds the builtin backends.
var DefaultRegistry = NewRegistry()

// New builds a generator from the default registry.
func New(cfg config.LLMConfig) (Generator, error) {
	return DefaultRegistry.New(cfg)
}

func init() {
	DefaultRegistry.MustRegister("gemini", newGemini)
	DefaultRegistry.MustRegister("command", newCommand)
	DefaultRegistry.MustRegister("echo", func(config.LLMConfig) (Generator, error) {
		return EchoGenerator{}, nil
	})
}

func newGemini(cfg config.LLMConfig) (Generator, error) {
	client := NewGeminiClient(cfg.APIKey, cfg.Model)
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		client.Client = &http.Client{Timeout: cfg.Timeout}
	}
	return client, nil
}

func newCommand(cfg config.LLMConfig) (Generator, error) {
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("command backend requires llm.command")
	}
	return &CommandGenerator{
		Command: append([]string(nil), cfg.Command...),
		Timeout: cfg.Timeout,
	}, nil
}
