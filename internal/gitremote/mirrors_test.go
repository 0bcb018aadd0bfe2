package gitremote

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	dir  string
	args []string
}

type fakeRunner struct {
	calls   []call
	outputs map[string]string
	codes   map[string]int
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{outputs: make(map[string]string), codes: make(map[string]int)}
}

func (f *fakeRunner) key(args []string) string { return strings.Join(args, " ") }

func (f *fakeRunner) Run(ctx context.Context, dir string, args ...string) (string, int, error) {
	f.calls = append(f.calls, call{dir: dir, args: args})
	k := f.key(args)
	for prefix, out := range f.outputs {
		if strings.HasPrefix(k, prefix) {
			return out, f.codes[prefix], nil
		}
	}
	for prefix, code := range f.codes {
		if strings.HasPrefix(k, prefix) {
			return "", code, nil
		}
	}
	return "", 0, nil
}

func TestFetchProjectYAMLClonesThenShowsCommit(t *testing.T) {
	fr := newFakeRunner()
	fr.outputs["show"] = "actions: []\n"
	fr.codes["show"] = 0

	m := NewMirrors(t.TempDir())
	m.Runner = fr

	data, err := m.FetchProjectYAML("https://github.com/acme/repo.git", "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "actions: []\n", string(data))

	var sawClone, sawShow bool
	for _, c := range fr.calls {
		if c.args[0] == "clone" {
			sawClone = true
		}
		if c.args[0] == "show" {
			sawShow = true
			assert.Equal(t, "deadbeef:project.yaml", c.args[1])
		}
	}
	assert.True(t, sawClone, "expected a mirror clone before show")
	assert.True(t, sawShow)
}

func TestFetchProjectYAMLReusesMirrorOnSecondCall(t *testing.T) {
	fr := newFakeRunner()
	fr.outputs["show"] = "actions: []\n"

	m := NewMirrors(t.TempDir())
	m.Runner = fr

	_, err := m.FetchProjectYAML("https://github.com/acme/repo.git", "c1")
	require.NoError(t, err)
	_, err = m.FetchProjectYAML("https://github.com/acme/repo.git", "c2")
	require.NoError(t, err)

	cloneCount := 0
	updateCount := 0
	for _, c := range fr.calls {
		switch c.args[0] {
		case "clone":
			cloneCount++
		case "remote":
			updateCount++
		}
	}
	assert.Equal(t, 1, cloneCount)
	assert.Equal(t, 1, updateCount)
}

func TestFetchProjectYAMLMissingFileIsError(t *testing.T) {
	fr := newFakeRunner()
	fr.outputs["show"] = ""
	fr.codes["show"] = 128

	m := NewMirrors(t.TempDir())
	m.Runner = fr

	_, err := m.FetchProjectYAML("https://github.com/acme/repo.git", "c1")
	assert.Error(t, err)
}

func TestCommitReachableFromBranchTrue(t *testing.T) {
	fr := newFakeRunner()
	fr.codes["merge-base"] = 0

	m := NewMirrors(t.TempDir())
	m.Runner = fr

	ok, err := m.CommitReachableFromBranch("https://github.com/acme/repo.git", "c1", "main")
	require.NoError(t, err)
	assert.True(t, ok)

	for _, c := range fr.calls {
		if c.args[0] == "merge-base" {
			assert.Equal(t, []string{"merge-base", "--is-ancestor", "c1", "refs/heads/main"}, c.args)
		}
	}
}

func TestCommitReachableFromBranchFalse(t *testing.T) {
	fr := newFakeRunner()
	fr.codes["merge-base"] = 1

	m := NewMirrors(t.TempDir())
	m.Runner = fr

	ok, err := m.CommitReachableFromBranch("https://github.com/acme/repo.git", "c1", "main")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCommitReachableFromBranchUnexpectedExitIsError(t *testing.T) {
	fr := newFakeRunner()
	fr.codes["merge-base"] = 2

	m := NewMirrors(t.TempDir())
	m.Runner = fr

	_, err := m.CommitReachableFromBranch("https://github.com/acme/repo.git", "c1", "main")
	assert.Error(t, err)
}
