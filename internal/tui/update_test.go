package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFetchTracksNewJobsAsActive(t *testing.T) {
	m := NewModel("rap-1", nil, time.Second)

	m.applyFetch(FetchedMsg{Jobs: []JobView{
		{ID: "j1", Backend: "tpp", Action: "extract", State: "running", StatusCode: "executing"},
	}})

	require.Len(t, m.ActiveJobs, 1)
	assert.Equal(t, "executing", m.ActiveJobs["j1"].StatusCode)
	assert.Equal(t, 1, m.TotalJobs)
}

func TestApplyFetchRecordsCompletionOnce(t *testing.T) {
	m := NewModel("rap-1", nil, time.Second)

	m.applyFetch(FetchedMsg{Jobs: []JobView{
		{ID: "j1", Backend: "tpp", Action: "extract", State: "running", StatusCode: "executing"},
	}})
	m.applyFetch(FetchedMsg{Jobs: []JobView{
		{ID: "j1", Backend: "tpp", Action: "extract", State: "succeeded", StatusCode: "succeeded"},
	}})
	// A later poll still lists the now-terminal job; it must not be recounted.
	m.applyFetch(FetchedMsg{Jobs: []JobView{
		{ID: "j1", Backend: "tpp", Action: "extract", State: "succeeded", StatusCode: "succeeded"},
	}})

	assert.Empty(t, m.ActiveJobs)
	assert.Equal(t, 1, m.CompletedJobs)
	assert.Equal(t, 0, m.FailedJobs)
}

func TestApplyFetchMarksDoneWhenAllJobsTerminal(t *testing.T) {
	m := NewModel("rap-1", nil, time.Second)

	m.applyFetch(FetchedMsg{Jobs: []JobView{
		{ID: "j1", State: "succeeded", StatusCode: "succeeded"},
		{ID: "j2", State: "failed", StatusCode: "nonzero_exit"},
	}})

	assert.True(t, m.Done)
	assert.Equal(t, 1, m.CompletedJobs)
	assert.Equal(t, 1, m.FailedJobs)
}

func TestApplyFetchSurfacesPollError(t *testing.T) {
	m := NewModel("rap-1", nil, time.Second)

	m.applyFetch(FetchedMsg{Err: assertErr("connection refused")})

	require.Error(t, m.Err)
	assert.Contains(t, m.LogLines[len(m.LogLines)-1], "connection refused")
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
