// Package localstore implements the repository interfaces over an in-memory
// snapshot that is written through to a JSON file. It backs the terminal when
// the database is unreachable and doubles as the test repository.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"vendapos/internal/model"
	"vendapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type snapshot struct {
	Orders     map[uuid.UUID]*model.Order               `json:"orders"`
	Tables     map[uuid.UUID]*model.Table               `json:"tables"`
	Sessions   map[uuid.UUID]*model.TableSession        `json:"sessions"`
	Registers  map[uuid.UUID]*model.CashRegisterSession `json:"registers"`
	Movements  []model.CashMovement                     `json:"movements"`
	Accounts   map[string]*model.CashbackAccount        `json:"accounts"`
	CashbackTx []model.CashbackTransaction              `json:"cashback_transactions"`
	Products   map[uuid.UUID]*model.Product             `json:"products"`
}

func newSnapshot() *snapshot {
	return &snapshot{
		Orders:    make(map[uuid.UUID]*model.Order),
		Tables:    make(map[uuid.UUID]*model.Table),
		Sessions:  make(map[uuid.UUID]*model.TableSession),
		Registers: make(map[uuid.UUID]*model.CashRegisterSession),
		Accounts:  make(map[string]*model.CashbackAccount),
		Products:  make(map[uuid.UUID]*model.Product),
	}
}

// Store is the shared state behind every local repository.
type Store struct {
	mu   sync.RWMutex
	path string
	data *snapshot
	last time.Time

	// now is replaceable in tests.
	now func() time.Time
}

// Open loads path if it exists. An empty path keeps everything in memory.
func Open(path string) (*Store, error) {
	s := &Store{path: path, data: newSnapshot(), now: time.Now}
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("localstore: read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, s.data); err != nil {
		return nil, fmt.Errorf("localstore: decode %s: %w", path, err)
	}
	s.data.fill()
	log.Info().Str("path", path).Int("orders", len(s.data.Orders)).Msg("Local store loaded")
	return s, nil
}

// NewMemory returns a store that never touches the disk.
func NewMemory() *Store {
	s, _ := Open("")
	return s
}

// NewSet wires every repository to s.
func NewSet(s *Store) repository.Set {
	return repository.Set{
		Orders:   &orderRepo{s},
		Tables:   &tableRepo{s},
		Caja:     &cajaRepo{s},
		Cashback: &cashbackRepo{s},
		Products: &productRepo{s},
	}
}

func (d *snapshot) fill() {
	if d.Orders == nil {
		d.Orders = make(map[uuid.UUID]*model.Order)
	}
	if d.Tables == nil {
		d.Tables = make(map[uuid.UUID]*model.Table)
	}
	if d.Sessions == nil {
		d.Sessions = make(map[uuid.UUID]*model.TableSession)
	}
	if d.Registers == nil {
		d.Registers = make(map[uuid.UUID]*model.CashRegisterSession)
	}
	if d.Accounts == nil {
		d.Accounts = make(map[string]*model.CashbackAccount)
	}
	if d.Products == nil {
		d.Products = make(map[uuid.UUID]*model.Product)
	}
}

// tick returns a timestamp strictly after the previous one so updated-since
// queries never miss a write made within the same clock tick.
func (s *Store) tick() time.Time {
	t := s.now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func (s *Store) view(fn func(d *snapshot) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.data)
}

// update runs fn under the write lock. If fn fails or the snapshot cannot be
// written, the in-memory state is rolled back, so every call is one unit.
func (s *Store) update(fn func(d *snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("localstore: snapshot: %w", err)
	}
	last := s.last
	rollback := func() {
		d := newSnapshot()
		if err := json.Unmarshal(before, d); err == nil {
			d.fill()
			s.data = d
		}
		s.last = last
	}

	if err := fn(s.data); err != nil {
		rollback()
		return err
	}
	if err := s.flush(); err != nil {
		rollback()
		return err
	}
	return nil
}

func (s *Store) flush() error {
	if s.path == "" {
		return nil
	}
	raw, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("localstore: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("localstore: mkdir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("localstore: write: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// clone deep-copies v so callers never alias store state.
func clone[T any](v T) T {
	var out T
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("localstore: clone: %v", err))
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("localstore: clone: %v", err))
	}
	return out
}
