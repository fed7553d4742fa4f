package mailer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmontanari/screenops/internal/config"
)

func TestRender(t *testing.T) {
	assert.Equal(t, "Ciao Ada,\nthanks.", Render("Ciao {name},\nthanks.", "Ada"))
	assert.Equal(t, "no placeholder", Render("no placeholder", "Ada"))
	assert.Equal(t, "Ada and Ada", Render("{name} and {name}", "Ada"))
}

func TestEnabled(t *testing.T) {
	assert.False(t, New(config.SMTP{}).Enabled())
	assert.False(t, New(config.SMTP{User: "u"}).Enabled())
	assert.True(t, New(config.SMTP{User: "u", AppPassword: "p"}).Enabled())
}

func TestTemplateStore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "drop.txt"), []byte("Ciao {name}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "invite.txt"), []byte("Hi {name}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("not a template"), 0o644))

	store := NewTemplateStore(dir)

	t.Run("list only txt", func(t *testing.T) {
		names, err := store.List()
		require.NoError(t, err)
		assert.Equal(t, []string{"drop.txt", "invite.txt"}, names)
	})

	t.Run("read", func(t *testing.T) {
		content, err := store.Read("drop.txt")
		require.NoError(t, err)
		assert.Equal(t, "Ciao {name}", content)
	})

	t.Run("write then read back", func(t *testing.T) {
		require.NoError(t, store.Write("drop.txt", "updated {name}"))
		content, err := store.Read("drop.txt")
		require.NoError(t, err)
		assert.Equal(t, "updated {name}", content)
	})

	t.Run("path traversal rejected", func(t *testing.T) {
		for _, name := range []string{"../drop.txt", "sub/drop.txt", "..", "", "/etc/passwd"} {
			_, err := store.Read(name)
			assert.Error(t, err, name)
			assert.Error(t, store.Write(name, "x"), name)
		}
	})

	t.Run("non txt rejected", func(t *testing.T) {
		_, err := store.Read("notes.md")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := store.Read("absent.txt")
		assert.Error(t, err)
	})
}
