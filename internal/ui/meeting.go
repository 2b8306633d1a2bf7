package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/meetmesh/meetmesh/internal/media"
	"github.com/meetmesh/meetmesh/internal/models"
	"github.com/meetmesh/meetmesh/internal/session"
)

type noticeMsg session.Notice

// MeetingUI runs the live in-meeting terminal view on top of a
// session: chat log, roster state and slash commands for device
// toggles and screen share.
type MeetingUI struct {
	session *session.Session
}

// NewMeetingUI creates the live view for a joined session.
func NewMeetingUI(s *session.Session) *MeetingUI {
	return &MeetingUI{session: s}
}

// Run blocks until the user leaves or the session dies.
func (ui *MeetingUI) Run() error {
	model := newMeetingModel(ui.session)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}

type meetingModel struct {
	session *session.Session

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	lines    []string
	width    int
	height   int
	ready    bool
	quitting bool
}

func newMeetingModel(s *session.Session) *meetingModel {
	input := textinput.New()
	input.Placeholder = "message, or /mic /cam /share <file> /stop /who /quit"
	input.CharLimit = 500
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	m := &meetingModel{
		session: s,
		input:   input,
		spinner: sp,
	}

	for _, msg := range s.Chat() {
		m.lines = append(m.lines, renderChatLine(msg))
	}
	m.lines = append(m.lines, MutedStyle.Render(fmt.Sprintf("%s joined meeting %s", IconMeeting, s.MeetingID())))
	return m
}

func (m *meetingModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink, m.listenForNotices())
}

func (m *meetingModel) listenForNotices() tea.Cmd {
	return func() tea.Msg {
		return noticeMsg(<-m.session.Notices())
	}
}

func (m *meetingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m.leave()
		case "enter":
			if cmd := m.submit(); cmd != nil {
				return m, cmd
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := msg.Height - 6
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width-2, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 2
			m.viewport.Height = vpHeight
		}
		m.refresh()

	case noticeMsg:
		m.appendNotice(session.Notice(msg))
		if msg.Kind == session.NoticeClosed {
			m.quitting = true
			return m, tea.Quit
		}
		cmds = append(cmds, m.listenForNotices())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *meetingModel) leave() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.session.Leave()
	return m, tea.Quit
}

func (m *meetingModel) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")
	if text == "" {
		return nil
	}

	if strings.HasPrefix(text, "/") {
		return m.runCommand(text)
	}

	msg := m.session.SendChat(text)
	m.addLine(renderChatLine(msg))
	return nil
}

func (m *meetingModel) runCommand(text string) tea.Cmd {
	fields := strings.Fields(text)
	switch fields[0] {
	case "/quit":
		_, cmd := m.leave()
		return cmd

	case "/mic":
		on := m.session.ToggleAudio()
		m.addLine(statusLine(IconMic, "microphone", on))

	case "/cam":
		on := m.session.ToggleVideo()
		m.addLine(statusLine(IconCam, "camera", on))

	case "/share":
		if len(fields) < 2 {
			m.addLine(ErrorStyle.Render("usage: /share <video.ivf>"))
			return nil
		}
		if err := m.session.StartScreenShare(media.Source{VideoPath: fields[1]}); err != nil {
			m.addLine(ErrorStyle.Render("share failed: " + err.Error()))
			return nil
		}
		m.addLine(MutedStyle.Render(IconScreen + " screen share started"))

	case "/stop":
		if err := m.session.StopScreenShare(); err != nil {
			m.addLine(ErrorStyle.Render("stop failed: " + err.Error()))
			return nil
		}
		m.addLine(MutedStyle.Render(IconScreen + " screen share stopped"))

	case "/who":
		for _, line := range strings.Split(RosterTableView(m.session.Roster()), "\n") {
			m.addLine(line)
		}

	default:
		m.addLine(ErrorStyle.Render("unknown command " + fields[0]))
	}
	return nil
}

func (m *meetingModel) appendNotice(n session.Notice) {
	switch n.Kind {
	case session.NoticeChat:
		m.addLine(renderChatLine(*n.Chat))
	case session.NoticeJoined:
		m.addLine(MutedStyle.Render(fmt.Sprintf("%s %s joined", IconPeer, n.Participant.Name)))
	case session.NoticeLeft:
		m.addLine(MutedStyle.Render(fmt.Sprintf("%s %s left", IconLeave, n.Participant.Name)))
	case session.NoticeUpdated:
		m.addLine(MutedStyle.Render(fmt.Sprintf("%s %s: mic %s, camera %s",
			IconPeer, n.Participant.Name,
			onOff(n.Participant.IsAudioOn), onOff(n.Participant.IsVideoOn))))
	case session.NoticeTrack:
		m.addLine(SubtitleStyle.Render(n.Text))
	case session.NoticeError:
		m.addLine(WarningStyle.Render(IconWarning + " " + n.Text))
	case session.NoticeReconnected:
		m.addLine(SuccessStyle.Render(n.Text))
	case session.NoticeClosed:
		m.addLine(ErrorStyle.Render(n.Text))
	}
}

func renderChatLine(msg models.ChatMessage) string {
	stamp := MutedStyle.Render(msg.Timestamp.Local().Format("15:04"))
	sender := BoldStyle.Foreground(Secondary).Render(msg.Sender)
	if msg.IsPrivate {
		sender += MutedStyle.Render(" (private)")
	}
	return fmt.Sprintf("%s %s: %s", stamp, sender, msg.Text)
}

func statusLine(icon, device string, on bool) string {
	return MutedStyle.Render(fmt.Sprintf("%s %s %s", icon, device, onOff(on)))
}

func (m *meetingModel) addLine(line string) {
	m.lines = append(m.lines, line)
	m.refresh()
}

func (m *meetingModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func (m *meetingModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return fmt.Sprintf("\n %s connecting...", m.spinner.View())
	}

	self := m.session.Self()
	header := TitleStyle.Render(fmt.Sprintf("%s Meeting %s", IconMeeting, m.session.MeetingID())) +
		MutedStyle.Render(fmt.Sprintf("  %d participants  %s %s  %s %s",
			len(m.session.Roster()),
			micIcon(self.IsAudioOn), onOff(self.IsAudioOn),
			camIcon(self.IsVideoOn), onOff(self.IsVideoOn)))

	footer := MutedStyle.Render(time.Now().Local().Format("15:04") + "  esc to leave")

	return fmt.Sprintf("%s\n%s\n\n%s %s\n%s",
		header,
		m.viewport.View(),
		IconChat, m.input.View(),
		footer,
	)
}

func micIcon(on bool) string {
	if on {
		return IconMic
	}
	return IconMicOff
}

func camIcon(on bool) string {
	if on {
		return IconCam
	}
	return IconCamOff
}
