package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"zerodb/models"
)

// ErrUnknownKey is returned when an API key matches no principal.
var ErrUnknownKey = errors.New("unknown api key")

// Principal is the authenticated caller behind an API key.
type Principal struct {
	OwnerID string      `yaml:"owner"`
	Tier    models.Tier `yaml:"tier"`
}

// Authenticator resolves an API key to its principal.
type Authenticator interface {
	Authenticate(ctx context.Context, apiKey string) (Principal, error)
}

type credential struct {
	key       []byte
	principal Principal
}

// Keyring is a static, in-process Authenticator.
type Keyring struct {
	mu          sync.RWMutex
	credentials []credential
}

func NewKeyring() *Keyring {
	return &Keyring{}
}

// Add registers apiKey for principal. Re-adding a key replaces its principal.
func (k *Keyring) Add(apiKey string, principal Principal) error {
	if apiKey == "" {
		return errors.New("api key must not be empty")
	}
	if principal.OwnerID == "" {
		return fmt.Errorf("api key %s: owner must not be empty", redact(apiKey))
	}
	tier, err := models.ParseTier(string(principal.Tier))
	if err != nil {
		return fmt.Errorf("api key %s: %w", redact(apiKey), err)
	}
	principal.Tier = tier

	k.mu.Lock()
	defer k.mu.Unlock()

	for i, c := range k.credentials {
		if subtle.ConstantTimeCompare(c.key, []byte(apiKey)) == 1 {
			k.credentials[i].principal = principal
			return nil
		}
	}
	k.credentials = append(k.credentials, credential{key: []byte(apiKey), principal: principal})
	return nil
}

// Len returns the number of registered keys.
func (k *Keyring) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.credentials)
}

// Authenticate compares apiKey against every registered key in constant time.
func (k *Keyring) Authenticate(_ context.Context, apiKey string) (Principal, error) {
	if apiKey == "" {
		return Principal{}, ErrUnknownKey
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	var (
		found     Principal
		matched   int
		candidate = []byte(apiKey)
	)
	for _, c := range k.credentials {
		if subtle.ConstantTimeCompare(c.key, candidate) == 1 {
			found = c.principal
			matched = 1
		}
	}
	if matched == 0 {
		return Principal{}, ErrUnknownKey
	}
	return found, nil
}

// ParseKeyList adds comma-separated "key=owner:tier" entries to the keyring.
// The tier may be omitted and defaults to free.
func (k *Keyring) ParseKeyList(list string) error {
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		key, rest, ok := strings.Cut(item, "=")
		if !ok {
			return fmt.Errorf("invalid api key entry %s: expected key=owner:tier", redact(item))
		}
		owner, tier, hasTier := strings.Cut(rest, ":")
		if !hasTier {
			tier = string(models.TierFree)
		}

		principal := Principal{OwnerID: strings.TrimSpace(owner), Tier: models.Tier(strings.TrimSpace(tier))}
		if err := k.Add(strings.TrimSpace(key), principal); err != nil {
			return err
		}
	}
	return nil
}

type keyringFile struct {
	Keys []struct {
		Key       string `yaml:"key"`
		Principal `yaml:",inline"`
	} `yaml:"keys"`
}

// LoadKeyringFile adds the keys listed in a YAML file of the form:
//
//	keys:
//	  - key: sk-live-123
//	    owner: user-1
//	    tier: starter
func (k *Keyring) LoadKeyringFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read keyring file: %w", err)
	}

	var file keyringFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse keyring file %s: %w", path, err)
	}

	for _, entry := range file.Keys {
		principal := entry.Principal
		if principal.Tier == "" {
			principal.Tier = models.TierFree
		}
		if err := k.Add(entry.Key, principal); err != nil {
			return fmt.Errorf("keyring file %s: %w", path, err)
		}
	}
	return nil
}

func redact(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
