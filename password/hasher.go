package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minSecretBytes        = 10
	algorithmID           = "argon2id"
)

// ErrMalformedHash reports a stored hash that is neither a valid PHC argon2id
// string nor a bcrypt hash. Verification against such a hash always fails.
var ErrMalformedHash = errors.New("malformed credential hash")

// Config holds the Argon2id cost parameters. Memory is in KB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Hasher hashes and verifies credentials. Immutable after NewHasher; safe
// for concurrent use.
type Hasher struct {
	config Config
}

// NewHasher rejects cost parameters below the security floor.
func NewHasher(cfg Config) (*Hasher, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, fmt.Errorf("memory must be >= %d KB", minMemoryKB)
	case cfg.Time < minTimeCost:
		return nil, fmt.Errorf("time cost must be >= %d", minTimeCost)
	case cfg.Parallelism < minParallelism:
		return nil, fmt.Errorf("parallelism must be >= %d", minParallelism)
	case cfg.SaltLength < minSaltLength:
		return nil, fmt.Errorf("salt length must be >= %d bytes", minSaltLength)
	case cfg.KeyLength < minKeyLength:
		return nil, fmt.Errorf("key length must be >= %d bytes", minKeyLength)
	}

	return &Hasher{config: cfg}, nil
}

// Hash derives an Argon2id hash with a fresh random salt and returns it in
// PHC string format. The secret is used byte-for-byte as provided; no
// Unicode normalization is applied.
func (h *Hasher) Hash(secret string) (string, error) {
	if len(secret) < minSecretBytes {
		return "", fmt.Errorf("secret must be at least %d bytes", minSecretBytes)
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(
		[]byte(secret),
		salt,
		h.config.Time,
		h.config.Memory,
		h.config.Parallelism,
		h.config.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.config.Memory,
		h.config.Time,
		h.config.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify checks the secret against a stored hash, dispatching on the hash
// scheme. Argon2id comparison is constant time; bcrypt comparison is
// constant time inside the bcrypt implementation. A malformed hash returns
// (false, ErrMalformedHash) and never authenticates.
func (h *Hasher) Verify(secret, encodedHash string) (bool, error) {
	if isBcrypt(encodedHash) {
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(secret))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
		}
	}

	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(secret),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		parsed.keyLength,
	)

	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}

// NeedsUpgrade reports whether a stored hash should be regenerated with the
// current parameters. Bcrypt hashes always need upgrading; argon2id hashes
// need it when any cost parameter is below the configured value.
func (h *Hasher) NeedsUpgrade(encodedHash string) (bool, error) {
	if isBcrypt(encodedHash) {
		return true, nil
	}

	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	if h.config.Memory > parsed.memory {
		return true, nil
	}
	if h.config.Time > parsed.time {
		return true, nil
	}
	if h.config.Parallelism > parsed.parallelism {
		return true, nil
	}
	if h.config.KeyLength != parsed.keyLength {
		return true, nil
	}

	return false, nil
}

func isBcrypt(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$2a$") ||
		strings.HasPrefix(encodedHash, "$2b$") ||
		strings.HasPrefix(encodedHash, "$2y$")
}

type parsedPHC struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
	keyLength   uint32
}

func parsePHC(encodedHash string) (*parsedPHC, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, ErrMalformedHash
	}
	if parts[1] != algorithmID {
		return nil, fmt.Errorf("%w: unsupported algorithm", ErrMalformedHash)
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if !strings.HasPrefix(parts[2], "v=") || err != nil || version != argon2.Version {
		return nil, fmt.Errorf("%w: bad argon2 version", ErrMalformedHash)
	}

	params, err := parseParams(parts[3])
	if err != nil {
		return nil, err
	}

	salt, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < int(minSaltLength) {
		return nil, fmt.Errorf("%w: bad salt", ErrMalformedHash)
	}

	hash, err := base64.StdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 {
		return nil, fmt.Errorf("%w: bad hash", ErrMalformedHash)
	}

	return &parsedPHC{
		memory:      params.memory,
		time:        params.time,
		parallelism: params.parallelism,
		salt:        salt,
		hash:        hash,
		keyLength:   uint32(len(hash)),
	}, nil
}

type parsedParams struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

func parseParams(part string) (*parsedParams, error) {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return nil, fmt.Errorf("%w: bad parameter block", ErrMalformedHash)
	}

	var (
		seenM, seenT, seenP bool
		params              parsedParams
	)

	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("%w: bad parameter entry", ErrMalformedHash)
		}

		switch kv[0] {
		case "m":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return nil, fmt.Errorf("%w: bad memory parameter", ErrMalformedHash)
			}
			params.memory = uint32(v)
			seenM = true
		case "t":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return nil, fmt.Errorf("%w: bad time parameter", ErrMalformedHash)
			}
			params.time = uint32(v)
			seenT = true
		case "p":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return nil, fmt.Errorf("%w: bad parallelism parameter", ErrMalformedHash)
			}
			params.parallelism = uint8(v)
			seenP = true
		default:
			return nil, fmt.Errorf("%w: unknown parameter", ErrMalformedHash)
		}
	}

	if !seenM || !seenT || !seenP {
		return nil, fmt.Errorf("%w: missing parameters", ErrMalformedHash)
	}

	return &params, nil
}
