package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"authcore"
)

type memStore struct {
	mu    sync.Mutex
	byID  map[string]authcore.Principal
	byIdt map[string]string
	next  int
}

func newMemStore() *memStore {
	return &memStore{
		byID:  map[string]authcore.Principal{},
		byIdt: map[string]string{},
	}
}

func (s *memStore) GetByIdentifier(_ context.Context, identifier string) (authcore.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byIdt[identifier]
	if !ok {
		return authcore.Principal{}, authcore.ErrPrincipalNotFound
	}
	return s.byID[id], nil
}

func (s *memStore) GetByID(_ context.Context, id string) (authcore.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return authcore.Principal{}, authcore.ErrPrincipalNotFound
	}
	return p, nil
}

func (s *memStore) Create(_ context.Context, input authcore.CreatePrincipalInput) (authcore.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byIdt[input.Identifier]; taken {
		return authcore.Principal{}, authcore.ErrDuplicateIdentifier
	}
	s.next++
	p := authcore.Principal{
		ID:         "p-" + strconv.Itoa(s.next),
		Identifier: input.Identifier,
		SecretHash: input.SecretHash,
		Role:       input.Role,
		Status:     input.Status,
	}
	s.byID[p.ID] = p
	s.byIdt[p.Identifier] = p.ID
	return p, nil
}

func (s *memStore) UpdateSecretHash(_ context.Context, id, secretHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return authcore.ErrPrincipalNotFound
	}
	p.SecretHash = secretHash
	s.byID[id] = p
	return nil
}

func (s *memStore) UpdateStatus(_ context.Context, id string, status authcore.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return authcore.ErrPrincipalNotFound
	}
	p.Status = status
	s.byID[id] = p
	return nil
}

func newGuardTestEngine(t *testing.T) (*authcore.Engine, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := authcore.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("middleware-test-key-0123456789ab")

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithPrincipalStore(newMemStore()).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	return engine, func() {
		engine.Close()
		rdb.Close()
		mr.Close()
	}
}

func loginToken(t *testing.T, engine *authcore.Engine) string {
	t.Helper()
	if _, err := engine.CreateAccount(context.Background(), "guard@example.com", "guard-password"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	pair, err := engine.Login(context.Background(), "guard@example.com", "guard-password")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return pair.AccessToken
}

func TestGuardAcceptsValidToken(t *testing.T) {
	engine, done := newGuardTestEngine(t)
	defer done()

	token := loginToken(t, engine)

	var gotSubject string
	handler := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			t.Error("claims missing from context")
			return
		}
		gotSubject = claims.Subject
	}))

	req := httptest.NewRequest(http.MethodGet, "/contacts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotSubject == "" {
		t.Fatal("handler did not observe subject")
	}
}

func TestGuardRejectsMissingAndBadTokens(t *testing.T) {
	engine, done := newGuardTestEngine(t)
	defer done()

	handler := Guard(engine)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler reached without valid token")
	}))

	for name, header := range map[string]string{
		"missing": "",
		"scheme":  "Basic abc",
		"empty":   "Bearer ",
		"garbage": "Bearer not-a-token",
	} {
		req := httptest.NewRequest(http.MethodGet, "/contacts", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d, want 401", name, rec.Code)
		}
	}
}

func TestGuardRejectsRefreshTokenOnAccessPath(t *testing.T) {
	engine, done := newGuardTestEngine(t)
	defer done()

	if _, err := engine.CreateAccount(context.Background(), "scope@example.com", "scope-password"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	pair, err := engine.Login(context.Background(), "scope@example.com", "scope-password")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	handler := Guard(engine)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler reached with refresh token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/contacts", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestDenyBannedIPs(t *testing.T) {
	handler := DenyBannedIPs([]string{"203.0.113.7"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("banned address: status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/login", nil)
	req.RemoteAddr = "198.51.100.4:51234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("clean address: status = %d, want 204", rec.Code)
	}
}

func TestAttachClientIPFeedsEngineBanList(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := authcore.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("middleware-test-key-0123456789ab")
	cfg.Security.BannedIPs = []string{"203.0.113.7"}

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithPrincipalStore(newMemStore()).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	token := loginToken(t, engine)

	handler := AttachClientIP(Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	req := httptest.NewRequest(http.MethodGet, "/contacts", nil)
	req.RemoteAddr = "203.0.113.7:40000"
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("banned address through engine: status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/contacts", nil)
	req.RemoteAddr = "198.51.100.4:40000"
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("clean address: status = %d, want 200", rec.Code)
	}
}
