// FILE: state_test.go
package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestStateStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewStateStore(path)

	_, fresh, err := store.Load()
	require.NoError(t, err)
	require.True(t, fresh)

	st := freshState()
	st.BasePrice = decimal.NewFromInt(1234)
	st.Positions = append(st.Positions, Position{Entry: decimal.NewFromInt(100), Qty: decimal.NewFromFloat(0.01)})
	require.NoError(t, store.Save(st))

	loaded, fresh, err := store.Load()
	require.NoError(t, err)
	require.False(t, fresh)
	require.True(t, loaded.BasePrice.Equal(decimal.NewFromInt(1234)))
	require.Len(t, loaded.Positions, 1)
}

func TestStateStoreQuarantinesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	store := NewStateStore(path)

	loaded, fresh, err := store.Load()
	require.NoError(t, err)
	require.True(t, fresh)
	require.True(t, loaded.BasePrice.IsZero())

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr), "corrupt file should have been moved aside")

	matches, _ := filepath.Glob(path + ".corrupt.*.bak")
	require.Len(t, matches, 1)
}

func TestStateStoreQuarantinesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(""), 0644))
	store := NewStateStore(path)

	_, fresh, err := store.Load()
	require.NoError(t, err)
	require.True(t, fresh)

	matches, _ := filepath.Glob(path + ".empty.*.bak")
	require.Len(t, matches, 1)
}
