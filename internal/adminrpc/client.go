package adminrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client wraps a gRPC connection to a controller or agent daemon's
// admin socket, grounded on the teacher's internal/client.Client.
type Client struct {
	conn *grpc.ClientConn
	rpc  AdminServiceClient
}

// Dial connects to the daemon Unix socket at socketPath. The connection
// uses insecure transport credentials since Unix sockets are protected
// by filesystem permissions (mode 0600, see daemonutil.Host), and negotiates
// the hand-registered JSON codec in place of the default proto codec.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn: conn,
		rpc:  NewAdminServiceClient(conn),
	}, nil
}

// Close releases the underlying gRPC connection. Safe to call multiple
// times.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Status reports the daemon's health and current load.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	return c.rpc.Status(ctx, &StatusRequest{})
}

// Shutdown requests graceful daemon termination. If waitForJobs is true
// the daemon waits (up to timeoutSeconds) for active jobs to finish
// before exiting; otherwise it force-stops them.
func (c *Client) Shutdown(ctx context.Context, waitForJobs bool, timeoutSeconds int32) (*ShutdownResponse, error) {
	return c.rpc.Shutdown(ctx, &ShutdownRequest{
		WaitForJobs:    waitForJobs,
		TimeoutSeconds: timeoutSeconds,
	})
}

// ListActiveJobs lists non-terminal jobs, optionally scoped to one
// backend (pass "" for all).
func (c *Client) ListActiveJobs(ctx context.Context, backend string) ([]JobSummaryDTO, error) {
	resp, err := c.rpc.ListActiveJobs(ctx, &ListActiveJobsRequest{Backend: backend})
	if err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// ListActiveTasks lists active tasks, optionally scoped to one backend
// (pass "" for all).
func (c *Client) ListActiveTasks(ctx context.Context, backend string) ([]TaskSummaryDTO, error) {
	resp, err := c.rpc.ListActiveTasks(ctx, &ListActiveTasksRequest{Backend: backend})
	if err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// PrepareForReboot pauses every known backend and waits (up to
// timeoutSeconds) for RUNNING jobs to drain.
func (c *Client) PrepareForReboot(ctx context.Context, timeoutSeconds int32) (*PrepareForRebootResponse, error) {
	return c.rpc.PrepareForReboot(ctx, &PrepareForRebootRequest{TimeoutSeconds: timeoutSeconds})
}

// GetFlag reads a single (name, backend) flag.
func (c *Client) GetFlag(ctx context.Context, name, backend string) (*FlagDTO, error) {
	resp, err := c.rpc.GetFlag(ctx, &GetFlagRequest{Name: name, Backend: backend})
	if err != nil {
		return nil, err
	}
	return resp.Flag, nil
}

// SetFlag writes a single (name, backend) flag; a nil value clears it.
func (c *Client) SetFlag(ctx context.Context, name, backend string, value *string) error {
	_, err := c.rpc.SetFlag(ctx, &SetFlagRequest{Name: name, Backend: backend, Value: value})
	return err
}

// ListFlags lists every flag set for a backend.
func (c *Client) ListFlags(ctx context.Context, backend string) ([]FlagDTO, error) {
	resp, err := c.rpc.ListFlags(ctx, &ListFlagsRequest{Backend: backend})
	if err != nil {
		return nil, err
	}
	return resp.Flags, nil
}

// ShowManifest fetches and returns the raw project.yaml text at commit.
func (c *Client) ShowManifest(ctx context.Context, repoURL, commit string) (string, error) {
	resp, err := c.rpc.ShowManifest(ctx, &ShowManifestRequest{RepoURL: repoURL, Commit: commit})
	if err != nil {
		return "", err
	}
	return resp.YAML, nil
}

// DiffWorkspace previews what CreateJobs would schedule for req, without
// inserting anything.
func (c *Client) DiffWorkspace(ctx context.Context, req DiffWorkspaceRequest) ([]JobSummaryDTO, error) {
	resp, err := c.rpc.DiffWorkspace(ctx, &req)
	if err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}
