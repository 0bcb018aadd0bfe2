package daemonutil

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"google.golang.org/grpc"
)

// Host serves one grpc.Server over a Unix socket under a PID file,
// the shared shape of the Controller and Agent's long-running
// processes once the per-tick loop is also running.
type Host struct {
	SocketPath string
	PIDPath    string
	Server     *grpc.Server

	pidFile *PIDFile
}

// NewHost builds a Host. server should already have its services
// registered (e.g. adminrpc.RegisterAdminServiceServer).
func NewHost(socketPath, pidPath string, server *grpc.Server) *Host {
	return &Host{SocketPath: socketPath, PIDPath: pidPath, Server: server, pidFile: NewPIDFile(pidPath)}
}

// ListenAndServe acquires the PID file, binds the socket, and serves
// until ctx is cancelled or the server errors, then gracefully stops
// (falling back to a hard stop after 5s) and cleans up the PID file
// and socket.
func (h *Host) ListenAndServe(ctx context.Context) error {
	if err := h.pidFile.Acquire(); err != nil {
		return err
	}
	defer h.pidFile.Release()

	if err := os.Remove(h.SocketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("daemonutil: failed to remove stale socket %s: %w", h.SocketPath, err)
	}
	lis, err := net.Listen("unix", h.SocketPath)
	if err != nil {
		return fmt.Errorf("daemonutil: failed to listen on %s: %w", h.SocketPath, err)
	}
	if err := os.Chmod(h.SocketPath, 0600); err != nil {
		lis.Close()
		return fmt.Errorf("daemonutil: failed to chmod socket %s: %w", h.SocketPath, err)
	}
	defer os.Remove(h.SocketPath)

	errCh := make(chan error, 1)
	go func() { errCh <- h.Server.Serve(lis) }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	stopped := make(chan struct{})
	go func() {
		h.Server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		h.Server.Stop()
	}
	return nil
}
