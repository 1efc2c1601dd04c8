package watchui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/shiftsense/client-core/internal/attendance"
	"github.com/shiftsense/client-core/internal/domain"
)

// Snapshot is the read-only view of the runtime the watch screen renders.
type Snapshot struct {
	SessionUserID string
	Role          domain.Role
	TrackerState  attendance.State
	Status        domain.AttendanceStatus
	LastSample    *domain.LocationSample
	Channel       domain.ChannelState
}

type tickMsg time.Time

// NotificationMsg is sent into the program by the channel listener.
type NotificationMsg struct {
	Notification domain.Notification
}

const maxRecent = 8

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("57")).Padding(0, 1)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	sectionStyle = lipgloss.NewStyle().Bold(true).MarginTop(1)
)

type Model struct {
	fetch  func() Snapshot
	snap   Snapshot
	recent []domain.Notification
}

func NewModel(fetch func() Snapshot) Model {
	return Model{fetch: fetch, snap: fetch()}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		m.snap = m.fetch()
		return m, tick()
	case NotificationMsg:
		m.recent = append([]domain.Notification{msg.Notification}, m.recent...)
		if len(m.recent) > maxRecent {
			m.recent = m.recent[:maxRecent]
		}
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("shiftsense watch"))
	b.WriteString("\n\n")

	if m.snap.SessionUserID == "" {
		b.WriteString(labelStyle.Render("session") + errStyle.Render("unauthenticated") + "\n")
	} else {
		role := string(m.snap.Role)
		if role == "" {
			role = "?"
		}
		b.WriteString(labelStyle.Render("session") + okStyle.Render(m.snap.SessionUserID) + dimStyle.Render(" ("+role+")") + "\n")
	}

	b.WriteString(labelStyle.Render("tracking") + trackerLine(m.snap.TrackerState) + "\n")
	b.WriteString(labelStyle.Render("status") + statusLine(m.snap.Status) + "\n")
	if s := m.snap.LastSample; s != nil {
		b.WriteString(labelStyle.Render("last fix") +
			dimStyle.Render(fmt.Sprintf("%.5f, %.5f (±%.0fm) %s", s.Latitude, s.Longitude, s.AccuracyMeters, s.CapturedAt.Format("15:04:05"))) + "\n")
	}
	b.WriteString(labelStyle.Render("channel") + channelLine(m.snap.Channel) + "\n")

	b.WriteString(sectionStyle.Render("notifications") + "\n")
	if len(m.recent) == 0 {
		b.WriteString(dimStyle.Render("  none yet") + "\n")
	}
	for _, n := range m.recent {
		b.WriteString("  " + noticeStyle.Render(n.Title) + dimStyle.Render(" - "+n.Message) + "\n")
	}

	b.WriteString("\n" + dimStyle.Render("q to quit"))
	return b.String()
}

func trackerLine(state attendance.State) string {
	switch state {
	case attendance.StateSampling:
		return okStyle.Render("sampling")
	case attendance.StateUnavailable:
		return errStyle.Render("unavailable (permission denied)")
	default:
		return dimStyle.Render("idle")
	}
}

func statusLine(status domain.AttendanceStatus) string {
	switch status {
	case domain.StatusCheckedIn, domain.StatusAutoCheckedIn:
		return okStyle.Render(string(status))
	case domain.StatusOutside, domain.StatusAbsent:
		return warnStyle.Render(string(status))
	case domain.StatusError:
		return errStyle.Render(string(status))
	case "":
		return dimStyle.Render("unknown")
	default:
		return string(status)
	}
}

func channelLine(state domain.ChannelState) string {
	if state.Phase == domain.PhaseOpen {
		return okStyle.Render("open") + dimStyle.Render(" -> "+state.TargetUserID)
	}
	return dimStyle.Render("closed")
}
