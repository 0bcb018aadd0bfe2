package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// terminal reports whether a Job state never transitions further.
func terminal(state string) bool {
	return state == "succeeded" || state == "failed"
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.Quitting = true
			return m, tea.Quit
		case "l":
			m.ShowLogs = !m.ShowLogs
		}

	case TickMsg:
		return m, tickCmd()

	case FetchedMsg:
		m.applyFetch(msg)
		if m.Done {
			return m, tea.Quit
		}
		return m, pollCmd(m.Interval, m.Fetcher)
	}

	return m, nil
}

func (m *Model) applyFetch(msg FetchedMsg) {
	if msg.Err != nil {
		m.Err = msg.Err
		m.appendLog(fmt.Sprintf("poll error: %s", msg.Err))
		return
	}
	m.Err = nil
	m.TotalJobs = len(msg.Jobs)

	seen := make(map[string]bool, len(msg.Jobs))
	allTerminal := len(msg.Jobs) > 0

	for _, j := range msg.Jobs {
		seen[j.ID] = true
		if !terminal(j.State) {
			allTerminal = false
		}

		prev, tracked := m.ActiveJobs[j.ID]
		if !tracked {
			if terminal(j.State) {
				m.recordCompletion(j)
				continue
			}
			m.ActiveJobs[j.ID] = &JobState{
				ID: j.ID, Backend: j.Backend, Action: j.Action,
				State: j.State, StatusCode: j.StatusCode, Icon: iconFor(j.State),
			}
			m.appendLog(fmt.Sprintf("%s %s: %s/%s", j.Backend, j.Action, j.State, j.StatusCode))
			continue
		}

		if prev.StatusCode != j.StatusCode || prev.State != j.State {
			prev.State = j.State
			prev.StatusCode = j.StatusCode
			prev.Icon = iconFor(j.State)
			m.appendLog(fmt.Sprintf("%s %s: %s/%s", j.Backend, j.Action, j.State, j.StatusCode))
		}

		if terminal(j.State) {
			m.recordCompletion(j)
		}
	}

	for id := range m.ActiveJobs {
		if !seen[id] {
			delete(m.ActiveJobs, id)
		}
	}

	if allTerminal {
		m.Done = true
	}
}

func (m *Model) recordCompletion(j JobView) {
	delete(m.ActiveJobs, j.ID)
	if m.finalized[j.ID] {
		return
	}
	m.finalized[j.ID] = true
	if j.State == "succeeded" {
		m.CompletedJobs++
	} else {
		m.FailedJobs++
	}
	m.appendLog(fmt.Sprintf("%s %s: %s (%s)", j.Backend, j.Action, j.State, j.StatusCode))
}

func (m *Model) appendLog(line string) {
	m.LogLines = append(m.LogLines, line)
	if m.LogLimit > 0 && len(m.LogLines) > m.LogLimit {
		m.LogLines = m.LogLines[len(m.LogLines)-m.LogLimit:]
	}
}
