package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/meetmesh/meetmesh/internal/client"
	"github.com/meetmesh/meetmesh/internal/registry"
	"github.com/meetmesh/meetmesh/internal/ui"
)

var infoCmd = &cobra.Command{
	Use:     "info <meeting-id>",
	Aliases: []string{"i"},
	Short:   "Show a meeting and its current roster",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showInfo(args[0])
	},
}

func showInfo(meetingID string) error {
	if !registry.ValidMeetingID(meetingID) {
		return fmt.Errorf("%q is not a valid meeting id (9 digits)", meetingID)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	api := client.NewAPI(cfg.APIBaseURL)

	meeting, err := api.GetMeeting(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("meeting %s: %w", meetingID, err)
	}

	participants, err := api.ListParticipants(ctx, meetingID)
	if err != nil {
		return err
	}

	fmt.Println((&ui.MeetingInfo{
		ID:        meeting.ID,
		Title:     meeting.Title,
		HostName:  meeting.HostName,
		CreatedAt: meeting.CreatedAt,
		Protected: meeting.Password != "",
	}).View())
	fmt.Println()
	ui.RenderRosterTable(participants)
	return nil
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
