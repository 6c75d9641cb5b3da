package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

type RouteDefinition struct {
	Input string `json:"input"`
}

// Store is the persisted {"streams": {route: {"input": ...}}} document.
// Other top-level keys found on load are written back untouched.
type Store struct {
	path string

	mu      sync.Mutex
	streams map[string]RouteDefinition
	extra   map[string]json.RawMessage
}

// OpenStore loads path. A missing file yields an empty store.
func OpenStore(path string) (*Store, error) {
	s := &Store{
		path:    path,
		streams: make(map[string]RouteDefinition),
		extra:   make(map[string]json.RawMessage),
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(b, &s.extra); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if raw, ok := s.extra["streams"]; ok {
		delete(s.extra, "streams")
		if err := json.Unmarshal(raw, &s.streams); err != nil {
			return nil, fmt.Errorf("parse %s streams: %w", path, err)
		}
		if s.streams == nil {
			s.streams = make(map[string]RouteDefinition)
		}
	}
	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Has(route string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.streams[route]
	return ok
}

func (s *Store) Put(route, input string) {
	s.mu.Lock()
	s.streams[route] = RouteDefinition{Input: input}
	s.mu.Unlock()
}

func (s *Store) Delete(route string) {
	s.mu.Lock()
	delete(s.streams, route)
	s.mu.Unlock()
}

// Routes returns the persisted route names in sorted order.
func (s *Store) Routes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	routes := make([]string, 0, len(s.streams))
	for r := range s.streams {
		routes = append(routes, r)
	}
	sort.Strings(routes)
	return routes
}

func (s *Store) Get(route string) (RouteDefinition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.streams[route]
	return d, ok
}

// Save rewrites the whole document through a temp file and rename.
func (s *Store) Save() error {
	s.mu.Lock()
	doc := make(map[string]interface{}, len(s.extra)+1)
	for k, v := range s.extra {
		doc[k] = v
	}
	streams := make(map[string]RouteDefinition, len(s.streams))
	for k, v := range s.streams {
		streams[k] = v
	}
	doc["streams"] = streams
	s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "streams-*.tmp")
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(doc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
