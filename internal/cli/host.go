package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/meetmesh/meetmesh/internal/client"
	"github.com/meetmesh/meetmesh/internal/media"
	"github.com/meetmesh/meetmesh/internal/session"
	"github.com/meetmesh/meetmesh/internal/ui"
)

var (
	flagTitle    string
	flagPassword string
	flagVideo    string
	flagAudio    string
)

var hostCmd = &cobra.Command{
	Use:     "host",
	Aliases: []string{"h"},
	Short:   "Create a meeting and join it as host",
	Long: `Create a new meeting on the coordinator and join it.

Examples:
  meetmesh host
  meetmesh host --title "Standup" --password s3cret
  meetmesh host --video clip.ivf --audio clip.ogg`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return hostMeeting()
	},
}

func hostMeeting() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sess := session.New(cfg, displayName())
	sess.SetHost()

	stopSpinner := ui.NewConnectionSpinner("Creating meeting...")
	stopSpinner.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	api := client.NewAPI(cfg.APIBaseURL)
	meeting, err := api.CreateMeeting(ctx, sess.Self().ID, displayName(), flagTitle, flagPassword)
	if err != nil {
		stopSpinner.Error("Could not create meeting")
		return err
	}
	stopSpinner.Stop()

	fmt.Println((&ui.MeetingInfo{
		ID:        meeting.ID,
		Title:     meeting.Title,
		HostName:  meeting.HostName,
		CreatedAt: meeting.CreatedAt,
		Protected: meeting.Password != "",
	}).View())

	return joinAndRun(sess, meeting.ID, flagPassword)
}

// joinAndRun attaches the session and hands control to the live view.
func joinAndRun(sess *session.Session, meetingID, password string) error {
	source := media.Source{VideoPath: flagVideo, AudioPath: flagAudio}

	spinner := ui.NewConnectionSpinner("Joining meeting...")
	spinner.Start()
	if err := sess.Join(meetingID, password, source); err != nil {
		spinner.Error("Could not join meeting")
		return err
	}
	spinner.Stop()
	defer sess.Leave()

	return ui.NewMeetingUI(sess).Run()
}

func init() {
	hostCmd.Flags().StringVar(&flagTitle, "title", "", "Meeting title (defaults to \"<name>'s Meeting\")")
	hostCmd.Flags().StringVar(&flagPassword, "password", "", "Require a password to join")
	hostCmd.Flags().StringVar(&flagVideo, "video", "", "IVF file used as the outgoing video track")
	hostCmd.Flags().StringVar(&flagAudio, "audio", "", "Ogg file used as the outgoing audio track")
	rootCmd.AddCommand(hostCmd)
}
