package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zerodb/models"
)

func TestKeyring_Authenticate(t *testing.T) {
	k := NewKeyring()
	require.NoError(t, k.Add("key-1", Principal{OwnerID: "user-1", Tier: "free"}))
	require.NoError(t, k.Add("key-2", Principal{OwnerID: "user-2", Tier: "pro"}))

	p, err := k.Authenticate(context.Background(), "key-2")
	require.NoError(t, err)
	assert.Equal(t, Principal{OwnerID: "user-2", Tier: models.TierProfessional}, p)

	_, err = k.Authenticate(context.Background(), "key-3")
	assert.ErrorIs(t, err, ErrUnknownKey)

	_, err = k.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestKeyring_AddRejectsBadEntries(t *testing.T) {
	k := NewKeyring()

	assert.Error(t, k.Add("", Principal{OwnerID: "user-1", Tier: "free"}))
	assert.Error(t, k.Add("key-1", Principal{Tier: "free"}))
	assert.Error(t, k.Add("key-1", Principal{OwnerID: "user-1", Tier: "gold"}))
	assert.Equal(t, 0, k.Len())
}

func TestKeyring_AddReplaces(t *testing.T) {
	k := NewKeyring()
	require.NoError(t, k.Add("key-1", Principal{OwnerID: "user-1", Tier: "free"}))
	require.NoError(t, k.Add("key-1", Principal{OwnerID: "user-1", Tier: "starter"}))

	p, err := k.Authenticate(context.Background(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, models.TierStarter, p.Tier)
	assert.Equal(t, 1, k.Len())
}

func TestKeyring_ParseKeyList(t *testing.T) {
	tests := []struct {
		name    string
		list    string
		wantLen int
		wantErr bool
	}{
		{name: "empty", list: "", wantLen: 0},
		{name: "single", list: "k1=user-1:free", wantLen: 1},
		{name: "default tier", list: "k1=user-1", wantLen: 1},
		{name: "multiple with spaces", list: " k1=user-1:free , k2=user-2:enterprise ,", wantLen: 2},
		{name: "missing owner separator", list: "k1", wantErr: true},
		{name: "invalid tier", list: "k1=user-1:gold", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := NewKeyring()
			err := k.ParseKeyList(tt.list)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, k.Len())
		})
	}
}

func TestKeyring_ParseKeyListDefaultsToFree(t *testing.T) {
	k := NewKeyring()
	require.NoError(t, k.ParseKeyList("k1=user-1"))

	p, err := k.Authenticate(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, p.Tier)
}

func TestKeyring_LoadKeyringFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")
	content := `
keys:
  - key: sk-one
    owner: user-1
    tier: starter
  - key: sk-two
    owner: user-2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	k := NewKeyring()
	require.NoError(t, k.LoadKeyringFile(path))
	assert.Equal(t, 2, k.Len())

	p, err := k.Authenticate(context.Background(), "sk-one")
	require.NoError(t, err)
	assert.Equal(t, Principal{OwnerID: "user-1", Tier: models.TierStarter}, p)

	p, err = k.Authenticate(context.Background(), "sk-two")
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, p.Tier)
}

func TestKeyring_LoadKeyringFileErrors(t *testing.T) {
	k := NewKeyring()
	assert.Error(t, k.LoadKeyringFile(filepath.Join(t.TempDir(), "missing.yaml")))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keys: [::"), 0o600))
	assert.Error(t, k.LoadKeyringFile(path))
}
