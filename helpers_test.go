package authcore

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// memPrincipalStore is the in-memory PrincipalStore used across engine
// tests.
type memPrincipalStore struct {
	mu    sync.Mutex
	byID  map[string]Principal
	byIdt map[string]string
	next  int

	failReads bool
}

func newMemPrincipalStore() *memPrincipalStore {
	return &memPrincipalStore{
		byID:  map[string]Principal{},
		byIdt: map[string]string{},
	}
}

func (s *memPrincipalStore) GetByIdentifier(_ context.Context, identifier string) (Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads {
		return Principal{}, ErrStoreUnavailable
	}
	id, ok := s.byIdt[identifier]
	if !ok {
		return Principal{}, ErrPrincipalNotFound
	}
	return s.byID[id], nil
}

func (s *memPrincipalStore) GetByID(_ context.Context, id string) (Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads {
		return Principal{}, ErrStoreUnavailable
	}
	p, ok := s.byID[id]
	if !ok {
		return Principal{}, ErrPrincipalNotFound
	}
	return p, nil
}

func (s *memPrincipalStore) Create(_ context.Context, input CreatePrincipalInput) (Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byIdt[input.Identifier]; taken {
		return Principal{}, ErrDuplicateIdentifier
	}
	s.next++
	p := Principal{
		ID:         "p-" + strconv.Itoa(s.next),
		Identifier: input.Identifier,
		SecretHash: input.SecretHash,
		Role:       input.Role,
		Status:     input.Status,
		CreatedAt:  time.Now().UTC(),
	}
	s.byID[p.ID] = p
	s.byIdt[p.Identifier] = p.ID
	return p, nil
}

func (s *memPrincipalStore) UpdateSecretHash(_ context.Context, id, secretHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrPrincipalNotFound
	}
	p.SecretHash = secretHash
	s.byID[id] = p
	return nil
}

func (s *memPrincipalStore) UpdateStatus(_ context.Context, id string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrPrincipalNotFound
	}
	p.Status = status
	s.byID[id] = p
	return nil
}

func (s *memPrincipalStore) hashFor(t *testing.T, id string) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		t.Fatalf("principal %s not found", id)
	}
	return p.SecretHash
}

// fastPassword lowers the argon2 cost so engine tests stay quick while
// keeping parameters above the hasher's floor.
func fastPassword(cfg *Config) {
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte("engine-test-secret-0123456789abc")
	fastPassword(&cfg)
	return cfg
}

type engineHarness struct {
	engine *Engine
	store  *memPrincipalStore
	redis  *miniredis.Miniredis
	client *redis.Client
}

func newTestEngine(t *testing.T, cfg Config) *engineHarness {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := newMemPrincipalStore()

	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithPrincipalStore(store).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		client.Close()
		mr.Close()
	})

	return &engineHarness{
		engine: engine,
		store:  store,
		redis:  mr,
		client: client,
	}
}

func (h *engineHarness) createAccount(t *testing.T, identifier, secret string) Principal {
	t.Helper()
	result, err := h.engine.CreateAccount(context.Background(), identifier, secret)
	if err != nil {
		t.Fatalf("CreateAccount(%s): %v", identifier, err)
	}
	return result.Principal
}

func (h *engineHarness) login(t *testing.T, identifier, secret string) *TokenPair {
	t.Helper()
	pair, err := h.engine.Login(context.Background(), identifier, secret)
	if err != nil {
		t.Fatalf("Login(%s): %v", identifier, err)
	}
	return pair
}
