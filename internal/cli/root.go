// Package cli defines the meetmesh commands.
package cli

import (
	"os"
	"os/signal"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/meetmesh/meetmesh/internal/config"
	"github.com/meetmesh/meetmesh/internal/ui"
	"github.com/meetmesh/meetmesh/internal/version"
)

var (
	flagServer   string
	flagName     string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagInsecure bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "meetmesh",
	Short:   "Terminal meeting client with direct peer-to-peer media and chat",
	Long:    `MeetMesh is a command-line meeting client. A lightweight coordinator tracks who is in which meeting and relays connection setup; audio, video and direct messages flow peer to peer over WebRTC without touching the server.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "Coordinator host:port")
	rootCmd.PersistentFlags().StringVar(&flagName, "name", "", "Display name (defaults to the OS username)")
	rootCmd.PersistentFlags().StringVar(&flagSTUN, "stun", "", "Custom STUN server URL")
	rootCmd.PersistentFlags().StringVar(&flagTURN, "turn", "", "Custom TURN server")
	rootCmd.PersistentFlags().StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	rootCmd.PersistentFlags().StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
	rootCmd.PersistentFlags().BoolVar(&flagInsecure, "insecure", false, "Use ws/http instead of wss/https")
}

func loadConfig() (*config.ClientConfig, error) {
	return config.Load(config.Options{
		Server:     flagServer,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		Insecure:   flagInsecure,
	})
}

func displayName() string {
	if flagName != "" {
		return flagName
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "guest"
}
