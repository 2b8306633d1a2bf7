package ui

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/meetmesh/meetmesh/internal/models"
)

// RosterTableView renders a roster snapshot as a table.
func RosterTableView(participants []models.Participant) string {
	if len(participants) == 0 {
		return MutedStyle.Render("No one is here yet")
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatTitle

	t.AppendHeader(table.Row{"#", "Name", "Role", "Audio", "Video", "Joined"})
	for i, p := range participants {
		role := "guest"
		if p.IsHost {
			role = "host " + IconHost
		}
		t.AppendRow(table.Row{
			i + 1,
			p.Name,
			role,
			onOff(p.IsAudioOn),
			onOff(p.IsVideoOn),
			p.JoinedAt.Local().Format(time.Kitchen),
		})
	}

	return t.Render()
}

// RenderRosterTable outputs the roster table directly to stdout.
func RenderRosterTable(participants []models.Participant) {
	fmt.Println(RosterTableView(participants))
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// MeetingInfo holds the fields shown after hosting or looking up a
// meeting.
type MeetingInfo struct {
	ID        string
	Title     string
	HostName  string
	CreatedAt time.Time
	Protected bool
}

// View renders the meeting summary box.
func (m *MeetingInfo) View() string {
	access := "open"
	if m.Protected {
		access = "password protected"
	}

	content := fmt.Sprintf("%s %s\n\n%s Meeting ID:  %s\n%s Host:        %s\n%s Created:     %s\n%s Access:      %s",
		IconMeeting, BoldStyle.Render(m.Title),
		IconCopy, BoldStyle.Foreground(Primary).Render(m.ID),
		IconHost, m.HostName,
		IconWaiting, m.CreatedAt.Local().Format(time.RFC1123),
		IconInfo, access,
	)

	return SuccessBoxStyle.Render(content)
}
