package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meetmesh/meetmesh/internal/registry"
	"github.com/meetmesh/meetmesh/internal/session"
)

var joinCmd = &cobra.Command{
	Use:     "join <meeting-id>",
	Aliases: []string{"j"},
	Short:   "Join an existing meeting",
	Long: `Join a meeting by its 9-digit id.

Examples:
  meetmesh join 123456789
  meetmesh join 123456789 --password s3cret --name Alice`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinMeeting(args[0])
	},
}

func joinMeeting(meetingID string) error {
	if !registry.ValidMeetingID(meetingID) {
		return fmt.Errorf("%q is not a valid meeting id (9 digits)", meetingID)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sess := session.New(cfg, displayName())
	return joinAndRun(sess, meetingID, flagPassword)
}

func init() {
	joinCmd.Flags().StringVar(&flagPassword, "password", "", "Meeting password")
	joinCmd.Flags().StringVar(&flagVideo, "video", "", "IVF file used as the outgoing video track")
	joinCmd.Flags().StringVar(&flagAudio, "audio", "", "Ogg file used as the outgoing audio track")
	rootCmd.AddCommand(joinCmd)
}
