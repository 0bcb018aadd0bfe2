// Package tui implements ragctl watch's live view of one rap's Jobs,
// adapted from the teacher's internal/cli/tui: the same bubbletea
// Model/Update/View split and lipgloss styling, driven by periodic
// polling of the client REST status endpoint instead of an in-process
// event bus (a watch process is a separate CLI invocation with no
// access to the Controller's event stream).
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// JobView is the subset of a Job rendered in the watch view.
type JobView struct {
	ID         string
	RapID      string
	Backend    string
	Workspace  string
	Action     string
	State      string
	StatusCode string
	Cancelled  bool
	CreatedAt  int64
	UpdatedAt  int64
}

// Fetcher retrieves the current Jobs for the rap being watched.
type Fetcher interface {
	FetchJobs(ctx context.Context) ([]JobView, error)
}

// JobState tracks one Job's display state across polls.
type JobState struct {
	ID         string
	Backend    string
	Action     string
	State      string
	StatusCode string
	Icon       string
}

const (
	iconWaiting = "⏳"
	iconRunning = "▶"
)

func iconFor(state string) string {
	if state == "running" {
		return iconRunning
	}
	return iconWaiting
}

// Model is the bubbletea model for ragctl watch.
type Model struct {
	RapID    string
	Fetcher  Fetcher
	Interval time.Duration
	Styles   Styles

	TotalJobs     int
	ActiveJobs    map[string]*JobState
	finalized     map[string]bool
	CompletedJobs int
	FailedJobs    int
	StartTime     time.Time
	LogLines      []string
	LogLimit      int
	ShowLogs      bool
	Width         int
	Height        int

	Err      error
	Quitting bool
	Done     bool
}

// NewModel builds a Model that polls fetcher every interval for rapID's
// Jobs. interval defaults to one second when zero.
func NewModel(rapID string, fetcher Fetcher, interval time.Duration) *Model {
	if interval <= 0 {
		interval = time.Second
	}
	return &Model{
		RapID:      rapID,
		Fetcher:    fetcher,
		Interval:   interval,
		Styles:     DefaultStyles(),
		ActiveJobs: make(map[string]*JobState),
		finalized:  make(map[string]bool),
		StartTime:  time.Now(),
		LogLimit:   500,
		ShowLogs:   true,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.fetchCmd())
}

// TickMsg is sent every second to update the timer. Polls are scheduled
// separately, by pollCmd after each FetchedMsg.
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// FetchedMsg carries one poll's result.
type FetchedMsg struct {
	Jobs []JobView
	Err  error
}

func (m *Model) fetchCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		jobs, err := m.Fetcher.FetchJobs(ctx)
		return FetchedMsg{Jobs: jobs, Err: err}
	}
}

func pollCmd(d time.Duration, fetcher Fetcher) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		jobs, err := fetcher.FetchJobs(ctx)
		return FetchedMsg{Jobs: jobs, Err: err}
	})
}
