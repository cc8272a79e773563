package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"authcore"
)

// Principals decorates a [authcore.PrincipalStore] with a Redis cache.
// Entries are keyed both by ID and by identifier and expire after the
// configured TTL.
type Principals struct {
	store  authcore.PrincipalStore
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

var _ authcore.PrincipalStore = (*Principals)(nil)

type cachedPrincipal struct {
	ID         string          `json:"id"`
	Identifier string          `json:"identifier"`
	SecretHash string          `json:"secret_hash"`
	Role       string          `json:"role"`
	Status     authcore.Status `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewPrincipals wraps store with a cache. A nil logger discards degradation
// warnings.
func NewPrincipals(store authcore.PrincipalStore, client redis.UniversalClient, prefix string, ttl time.Duration, logger *slog.Logger) *Principals {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Principals{
		store:  store,
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

func (p *Principals) idKey(id string) string {
	return p.prefix + ":pc:id:" + id
}

func (p *Principals) identifierKey(identifier string) string {
	return p.prefix + ":pc:idt:" + identifier
}

func (p *Principals) GetByIdentifier(ctx context.Context, identifier string) (authcore.Principal, error) {
	if principal, ok := p.lookup(ctx, p.identifierKey(identifier)); ok {
		return principal, nil
	}

	principal, err := p.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		return authcore.Principal{}, err
	}

	p.fill(ctx, principal)
	return principal, nil
}

func (p *Principals) GetByID(ctx context.Context, id string) (authcore.Principal, error) {
	if principal, ok := p.lookup(ctx, p.idKey(id)); ok {
		return principal, nil
	}

	principal, err := p.store.GetByID(ctx, id)
	if err != nil {
		return authcore.Principal{}, err
	}

	p.fill(ctx, principal)
	return principal, nil
}

func (p *Principals) Create(ctx context.Context, input authcore.CreatePrincipalInput) (authcore.Principal, error) {
	principal, err := p.store.Create(ctx, input)
	if err != nil {
		return authcore.Principal{}, err
	}

	p.fill(ctx, principal)
	return principal, nil
}

func (p *Principals) UpdateSecretHash(ctx context.Context, id, secretHash string) error {
	if err := p.store.UpdateSecretHash(ctx, id, secretHash); err != nil {
		return err
	}
	p.invalidate(ctx, id)
	return nil
}

func (p *Principals) UpdateStatus(ctx context.Context, id string, status authcore.Status) error {
	if err := p.store.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	p.invalidate(ctx, id)
	return nil
}

func (p *Principals) lookup(ctx context.Context, key string) (authcore.Principal, bool) {
	data, err := p.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			p.logger.WarnContext(ctx, "principal cache read failed", "error", err)
		}
		return authcore.Principal{}, false
	}

	var cached cachedPrincipal
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupt entry; drop it and fall through to the store.
		p.redis.Del(ctx, key)
		return authcore.Principal{}, false
	}

	return authcore.Principal{
		ID:         cached.ID,
		Identifier: cached.Identifier,
		SecretHash: cached.SecretHash,
		Role:       cached.Role,
		Status:     cached.Status,
		CreatedAt:  cached.CreatedAt,
	}, true
}

func (p *Principals) fill(ctx context.Context, principal authcore.Principal) {
	data, err := json.Marshal(cachedPrincipal{
		ID:         principal.ID,
		Identifier: principal.Identifier,
		SecretHash: principal.SecretHash,
		Role:       principal.Role,
		Status:     principal.Status,
		CreatedAt:  principal.CreatedAt,
	})
	if err != nil {
		return
	}

	pipe := p.redis.Pipeline()
	pipe.Set(ctx, p.idKey(principal.ID), data, p.ttl)
	pipe.Set(ctx, p.identifierKey(principal.Identifier), data, p.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		p.logger.WarnContext(ctx, "principal cache write failed", "error", err)
	}
}

func (p *Principals) invalidate(ctx context.Context, id string) {
	// The identifier key is found via the cached ID entry; if the ID entry is
	// already gone the identifier entry expires on its own TTL.
	principal, ok := p.lookup(ctx, p.idKey(id))
	keys := []string{p.idKey(id)}
	if ok {
		keys = append(keys, p.identifierKey(principal.Identifier))
	}
	if err := p.redis.Del(ctx, keys...).Err(); err != nil {
		p.logger.WarnContext(ctx, "principal cache invalidation failed", "error", err)
	}
}
