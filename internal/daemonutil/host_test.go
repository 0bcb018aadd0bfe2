package daemonutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

func TestListenAndServeStopsOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "admin.sock")
	pidPath := filepath.Join(dir, "admin.pid")

	gs := grpc.NewServer()
	h := NewHost(socketPath, pidPath, gs)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, time.Second, 10*time.Millisecond)

	pid, err := ReadPID(pidPath)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndServe did not return after context cancellation")
	}

	_, err = os.Stat(socketPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(pidPath)
	assert.True(t, os.IsNotExist(err))
}

func TestListenAndServeRejectsSecondInstance(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "admin.sock")
	pidPath := filepath.Join(dir, "admin.pid")

	require.NoError(t, os.WriteFile(pidPath, []byte("1"), 0644))
	// PID 1 always exists, so Acquire must refuse to clobber it.

	gs := grpc.NewServer()
	h := NewHost(socketPath, pidPath, gs)

	err := h.ListenAndServe(context.Background())
	assert.Error(t, err)
}
