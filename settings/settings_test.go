package settings

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreSetAndGet(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	value, err := s.String(ctx, PreferredSimIconIndex)
	require.NoError(t, err)
	assert.Equal(t, "", value, "unset key should read empty")

	require.NoError(t, s.Set(ctx, PreferredSimIconIndex, "1,3"))
	value, err = s.String(ctx, PreferredSimIconIndex)
	require.NoError(t, err)
	assert.Equal(t, "1,3", value)

	require.NoError(t, s.Set(ctx, PreferredSimIconIndex, "2,0"))
	value, err = s.String(ctx, PreferredSimIconIndex)
	require.NoError(t, err)
	assert.Equal(t, "2,0", value, "set should replace the previous value")

	require.NoError(t, s.Delete(ctx, PreferredSimIconIndex))
	value, err = s.String(ctx, PreferredSimIconIndex)
	require.NoError(t, err)
	assert.Equal(t, "", value)
}

func TestStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, PropertyRCSEnabled, "true"))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, Bool(ctx, s, PropertyRCSEnabled, false))
}

type failingReader struct{}

func (failingReader) String(context.Context, string) (string, error) {
	return "", errors.New("settings unavailable")
}

func TestBool(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"off", true, false},
		{"", false, false},
		{"", true, true},
		{"maybe", false, false},
	}

	for _, tt := range tests {
		m := Map{PropertyRCSEnabled: tt.value}
		assert.Equal(t, tt.want, Bool(ctx, m, PropertyRCSEnabled, tt.def), "value %q default %v", tt.value, tt.def)
	}

	assert.False(t, Bool(ctx, Map{}, PropertyRCSEnabled, false))
	assert.True(t, Bool(ctx, failingReader{}, PropertyRCSEnabled, true))
	assert.False(t, Bool(ctx, nil, PropertyRCSEnabled, false))
}
