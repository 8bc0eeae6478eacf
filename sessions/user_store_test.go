package sessions_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-finadmin-client/sessions"
	"github.com/stretchr/testify/require"
)

func TestUserStores(t *testing.T) {
	stores := map[string]sessions.UserStore{
		"memory": sessions.NewMemoryUserStore(),
		"file":   sessions.NewFileUserStore(filepath.Join(t.TempDir(), "nested", "user.json")),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.Load()
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, store.Save([]byte(`{"id":"u-1"}`)))
			data, ok, err := store.Load()
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, `{"id":"u-1"}`, string(data))

			require.NoError(t, store.Clear())
			require.NoError(t, store.Clear())
			_, ok, err = store.Load()
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestFileBus_ReportsChangesFromOtherWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.json")
	bus, err := sessions.NewFileBus(path)
	require.NoError(t, err)
	defer bus.Close()

	events := make(chan sessions.Event, 16)
	bus.Subscribe(func(ev sessions.Event) { events <- ev })

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.txt"), []byte("x"), 0o600))
	require.NoError(t, sessions.NewFileUserStore(path).Save([]byte(`{"id":"u-1"}`)))

	select {
	case ev := <-events:
		require.Equal(t, sessions.UserKey, ev.Key)
	case <-time.After(2 * time.Second):
		t.Fatal("no event for user file change")
	}
}
