package logger_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/robalyx/sentinel/internal/setup/telemetry/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBuffer(t *testing.T) {
	t.Parallel()

	rb := logger.NewRingBuffer(3)
	assert.Nil(t, rb.Lines())

	for i := range 5 {
		rb.Add(fmt.Sprintf("line %d", i))
	}

	assert.Equal(t, 3, rb.Len())
	assert.Equal(t, []string{"line 2", "line 3", "line 4"}, rb.Lines())
}

func TestLogRotatorCompacts(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "main.log")

	w, err := logger.Open(path, 2)
	require.NoError(t, err)

	for i := range 4 {
		_, err := fmt.Fprintf(w, "entry %d\n", i)
		require.NoError(t, err)
	}

	_, err = w.Write([]byte("entry 4\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, []string{"entry 2", "entry 3", "entry 4"}, lines)
}

func TestLogRotatorUnbounded(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "main.log")

	w, err := logger.Open(path, 0)
	require.NoError(t, err)

	for i := range 10 {
		_, err := fmt.Fprintf(w, "entry %d\n", i)
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 10)
}
