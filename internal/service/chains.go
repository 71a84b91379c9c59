package service

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Strob0t/RepoWarden/internal/domain/chain"
)

// ChainService manages the chain catalog (built-in presets + loaded
// custom chains).
type ChainService struct {
	mu     sync.RWMutex
	chains map[string]chain.Chain
}

// NewChainService creates a ChainService pre-loaded with the built-in
// chains.
func NewChainService() *ChainService {
	s := &ChainService{chains: make(map[string]chain.Chain)}
	for _, c := range chain.BuiltinChains() {
		s.chains[c.Name] = c
	}
	return s
}

// List returns all registered chains, ordered by name.
func (s *ChainService) List() []chain.Chain {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]chain.Chain, 0, len(s.chains))
	for _, c := range s.chains {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Get returns a chain by name.
func (s *ChainService) Get(name string) (*chain.Chain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chains[name]
	if !ok {
		return nil, fmt.Errorf("chain %q not found", name)
	}
	return &c, nil
}

// Register adds a custom chain. Built-in chains cannot be overwritten.
func (s *ChainService) Register(c *chain.Chain) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validate chain: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.chains[c.Name]; ok && existing.Builtin {
		return fmt.Errorf("cannot overwrite built-in chain %q", c.Name)
	}
	s.chains[c.Name] = *c
	return nil
}

// LoadDirectory registers every chain defined under dir. A missing
// directory is not an error; an invalid chain is.
func (s *ChainService) LoadDirectory(dir string) error {
	chains, err := chain.LoadFromDirectory(dir)
	if err != nil {
		return fmt.Errorf("load chains: %w", err)
	}
	for i := range chains {
		if err := s.Register(&chains[i]); err != nil {
			return fmt.Errorf("chain %s: %w", chains[i].Name, err)
		}
	}
	return nil
}
