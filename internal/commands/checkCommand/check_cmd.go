package checkcommand

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/draftware/stampkit/internal/config"
	"github.com/draftware/stampkit/internal/update/resolver"
)

// NewCheckCommand creates the 'check' command: a resolver-only run that
// reports whether a newer release is published, without downloading or
// deploying anything.
func NewCheckCommand() *cobra.Command {
	var feedURL string
	var allowPrerelease bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the release feed for a newer stampkit version",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := config.FeedSettings{
				URL:             feedURL,
				AllowPrerelease: allowPrerelease,
				Timeout:         30 * time.Second,
			}
			if feedURL == "" {
				resolved, err := config.Resolve()
				if err != nil {
					return err
				}
				settings = resolved.Feed
			}

			r := resolver.New(settings)
			fmt.Fprintln(cmd.ErrOrStderr(), "Checking for latest release...")

			desc, err := r.CheckForUpdate(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Current version:", r.CurrentVersion())
			if desc == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "stampkit is up to date.")
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Latest version: ", desc.Version)
			fmt.Fprintln(cmd.OutOrStdout(), "Run the launcher without arguments to install it.")
			return nil
		},
	}

	// Register flags
	cmd.Flags().StringVar(&feedURL, "feed-url", "", "Override the configured release feed endpoint")
	cmd.Flags().BoolVar(&allowPrerelease, "allow-prerelease", false, "Consider prerelease entries")

	return cmd
}
