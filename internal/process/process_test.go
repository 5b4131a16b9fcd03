package process

import (
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAliveSelf(t *testing.T) {
	assert.True(t, Alive(os.Getpid()))
	assert.True(t, OS.Alive(os.Getpid()))
}

func TestAliveRejectsNonPositive(t *testing.T) {
	assert.False(t, Alive(0))
	assert.False(t, Alive(-1))
}

func TestAliveExitedChild(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 0")
	require.NoError(t, cmd.Run())

	// The child has been waited on, so its pid is no longer in the table
	// unless the OS recycled it in between.
	assert.False(t, Alive(cmd.Process.Pid))
}

func TestProberFunc(t *testing.T) {
	p := ProberFunc(func(pid int) bool { return pid == 7 })
	assert.True(t, p.Alive(7))
	assert.False(t, p.Alive(8))
}
