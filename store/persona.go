package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"assistant/types"

	bolt "go.etcd.io/bbolt"
	"gopkg.in/yaml.v3"
)

// PersonaStorer holds the admin-settable persona.
type PersonaStorer interface {
	GetPersona(ctx context.Context) (types.Persona, error)
	SetPersona(ctx context.Context, p types.Persona) error
}

var (
	personaBucket = []byte("settings")
	personaKey    = []byte("persona")
)

// BoltPersonaStore persists the persona as a JSON value in a bbolt file.
// Until a persona is set, GetPersona returns the configured fallback.
type BoltPersonaStore struct {
	db       *bolt.DB
	fallback types.Persona
}

func NewBoltPersonaStore(path string, fallback types.Persona) (*BoltPersonaStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open persona db %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(personaBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltPersonaStore{db: db, fallback: fallback}, nil
}

func (s *BoltPersonaStore) GetPersona(context.Context) (types.Persona, error) {
	p := s.fallback
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(personaBucket).Get(personaKey)
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &p)
	})
	return p, err
}

func (s *BoltPersonaStore) SetPersona(_ context.Context, p types.Persona) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(personaBucket).Put(personaKey, data)
	})
}

func (s *BoltPersonaStore) Close() error {
	return s.db.Close()
}

type MemoryPersonaStore struct {
	mu      sync.RWMutex
	persona types.Persona
}

func NewMemoryPersonaStore(p types.Persona) *MemoryPersonaStore {
	return &MemoryPersonaStore{persona: p}
}

func (s *MemoryPersonaStore) GetPersona(context.Context) (types.Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persona, nil
}

func (s *MemoryPersonaStore) SetPersona(_ context.Context, p types.Persona) error {
	s.mu.Lock()
	s.persona = p
	s.mu.Unlock()
	return nil
}

// LoadPersonaFile reads a YAML persona seed and fills unset fields from
// the defaults. An empty path returns the defaults.
func LoadPersonaFile(path string) (types.Persona, error) {
	p := types.DefaultPersona()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	var seed types.Persona
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return p, fmt.Errorf("parse persona file %s: %w", path, err)
	}
	return p.Merge(seed), nil
}
