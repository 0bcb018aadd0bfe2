package executor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrNoRuntime is returned when neither docker nor podman is on PATH.
var ErrNoRuntime = errors.New("executor: no container runtime found (need docker or podman)")

// DetectRuntime finds an available container runtime binary, preferring
// docker over podman, verifying it actually responds to `<bin> version`.
func DetectRuntime() (string, error) {
	for _, bin := range []string{"docker", "podman"} {
		if _, err := exec.LookPath(bin); err != nil {
			continue
		}
		if err := exec.Command(bin, "version").Run(); err != nil {
			continue
		}
		return bin, nil
	}
	return "", ErrNoRuntime
}

// runner abstracts one `<runtime> <args...>` invocation so DockerExecutor
// can be tested without a real docker/podman binary on PATH.
type runner func(ctx context.Context, args ...string) (stdout string, err error)

// execRunner shells out to the named runtime binary.
func execRunner(runtime string) runner {
	return func(ctx context.Context, args ...string) (string, error) {
		cmd := exec.CommandContext(ctx, runtime, args...)
		out, err := cmd.Output()
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return "", fmt.Errorf("%s %s: %s", runtime, strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
			}
			return "", fmt.Errorf("%s %s: %w", runtime, strings.Join(args, " "), err)
		}
		return strings.TrimSpace(string(out)), nil
	}
}

func parseExitCode(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
