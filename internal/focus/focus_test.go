package focus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgsSubstitutesPID(t *testing.T) {
	c := New([]string{"focus-term", "--pid={pid}", "{pid}"})
	assert.Equal(t, []string{"focus-term", "--pid=42", "42"}, c.Args(42))
}

func TestFocusRunsCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "pid")
	c := New([]string{"sh", "-c", "echo {pid} > " + out})

	require.NoError(t, c.Focus(context.Background(), 314))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "314\n", string(data))
}

func TestFocusFailure(t *testing.T) {
	c := New([]string{"sh", "-c", "exit 3"})
	assert.Error(t, c.Focus(context.Background(), 1))
}

func TestFocusNotConfigured(t *testing.T) {
	assert.ErrorIs(t, New(nil).Focus(context.Background(), 1), ErrNotConfigured)
}
