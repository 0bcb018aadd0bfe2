package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.Done || m.Quitting {
		return ""
	}

	showLogs := m.ShowLogs && len(m.LogLines) > 0
	if m.Height <= 0 || !showLogs {
		return m.renderBaseView()
	}
	logHeight := m.Height / 2
	if logHeight < 3 {
		return m.renderBaseView()
	}
	topHeight := m.Height - logHeight

	top := m.renderTopArea(topHeight)
	logs := m.renderLogArea(logHeight)
	if logs == "" {
		return top
	}
	return top + "\n" + logs
}

func (m *Model) renderBaseView() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderActiveJobs())
	b.WriteString(m.renderStatusLine())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m *Model) renderTopArea(height int) string {
	if height <= 0 {
		return ""
	}

	header := m.renderHeader()
	status := m.renderStatusLine()
	footer := m.renderFooter()
	active := strings.TrimRight(m.renderActiveJobs(), "\n")
	var activeLines []string
	if active != "" {
		activeLines = strings.Split(active, "\n")
	}

	lines := []string{header}
	if height >= 4 {
		lines = append(lines, "")
	}

	reserved := 2
	remaining := height - len(lines) - reserved
	if remaining < 0 {
		remaining = 0
	}
	if len(activeLines) > remaining {
		activeLines = activeLines[:remaining]
	}
	lines = append(lines, activeLines...)
	lines = append(lines, status, footer)

	return padOrTrim(lines, height)
}

func (m *Model) renderLogArea(height int) string {
	if height <= 0 {
		return ""
	}

	lines := make([]string, 0, height)
	lines = append(lines, m.renderLogHeader())

	visible := height - 1
	for _, line := range m.tailLogLines(visible) {
		lines = append(lines, m.Styles.LogLine.Render(m.truncateLine(line)))
	}

	return padOrTrim(lines, height)
}

func (m *Model) renderLogHeader() string {
	width := m.Width
	if width <= 0 {
		return m.Styles.LogTitle.Render("Logs")
	}
	title := " Logs "
	if len(title) >= width {
		return m.Styles.LogTitle.Render(title)
	}
	left := (width - len(title)) / 2
	right := width - len(title) - left
	return m.Styles.LogTitle.Render(strings.Repeat("─", left) + title + strings.Repeat("─", right))
}

func (m *Model) tailLogLines(max int) []string {
	if max <= 0 {
		return nil
	}
	if len(m.LogLines) == 0 {
		return []string{"(no events yet)"}
	}
	if len(m.LogLines) <= max {
		return m.LogLines
	}
	return m.LogLines[len(m.LogLines)-max:]
}

func (m *Model) truncateLine(line string) string {
	if m.Width <= 0 || len(line) <= m.Width {
		return line
	}
	if m.Width <= 3 {
		return line[:m.Width]
	}
	return line[:m.Width-3] + "..."
}

func padOrTrim(lines []string, height int) string {
	if height <= 0 {
		return ""
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderHeader() string {
	elapsed := time.Since(m.StartTime).Round(time.Second)
	timer := fmt.Sprintf("[%s]", formatDuration(elapsed))
	rap := fmt.Sprintf("rap: %s", m.RapID)
	return fmt.Sprintf("%s  %s  %s",
		m.Styles.Title.Render("ragctl watch"),
		m.Styles.Timer.Render(timer),
		m.Styles.RapID.Render(rap),
	)
}

func (m *Model) renderActiveJobs() string {
	if m.Err != nil {
		return m.Styles.ErrLine.Render("  "+m.Err.Error()) + "\n\n"
	}
	if len(m.ActiveJobs) == 0 {
		return "  No active jobs\n\n"
	}

	var b strings.Builder
	ids := make([]string, 0, len(m.ActiveJobs))
	for id := range m.ActiveJobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		b.WriteString(m.renderJob(m.ActiveJobs[id]))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderJob(j *JobState) string {
	icon := m.Styles.JobActive.Render(j.Icon)
	name := m.Styles.JobName.Render(fmt.Sprintf("%s/%s", j.Backend, j.Action))
	phase := m.Styles.PhaseText.Render(fmt.Sprintf("%s/%s", j.State, j.StatusCode))
	return fmt.Sprintf("  %s %s %s %s", icon, name, m.Styles.PhaseIcon.Render("→"), phase)
}

func (m *Model) renderStatusLine() string {
	complete := m.Styles.StatusComplete.Render(fmt.Sprintf("%d %s", m.CompletedJobs, iconComplete))
	failed := m.Styles.StatusFailed.Render(fmt.Sprintf("%d %s", m.FailedJobs, iconFailed))
	active := m.Styles.StatusActive.Render(fmt.Sprintf("%d active", len(m.ActiveJobs)))

	return fmt.Sprintf("  Jobs: %d/%d | %s | %s | %s",
		m.CompletedJobs+m.FailedJobs, m.TotalJobs, complete, failed, active)
}

func (m *Model) renderFooter() string {
	quit := m.Styles.FooterKey.Render("q")
	toggle := m.Styles.FooterKey.Render("l")
	return m.Styles.Footer.Render(fmt.Sprintf("  Press %s to quit, %s to toggle logs", quit, toggle))
}

func formatDuration(d time.Duration) string {
	h := d / time.Hour
	d -= h * time.Hour
	mins := d / time.Minute
	d -= mins * time.Minute
	s := d / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, mins, s)
}
