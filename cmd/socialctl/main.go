// socialctl is a command-line client for a social-front deployment. It
// exercises the same SDK the web app's backend-for-frontend uses.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/postboard/social-front/pkg/client"
)

var (
	serverURL string
	timeout   time.Duration
)

// sessionFromEnv builds the SDK session from SOCIAL_FRONT_TOKEN and
// SOCIAL_FRONT_USER. Returns nil when either is unset; the SDK then fails
// operations that need authentication.
func sessionFromEnv() client.Session {
	token := os.Getenv("SOCIAL_FRONT_TOKEN")
	user := os.Getenv("SOCIAL_FRONT_USER")
	if token == "" || user == "" {
		return nil
	}
	return &client.StaticSession{User: user, AccessToken: token}
}

func newClient() *client.Client {
	return client.New(serverURL, sessionFromEnv(), client.WithTimeout(timeout))
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "socialctl",
		Short: "CLI for the social-front integrations service",
		Long: `socialctl drives a social-front deployment from the command line:
connect social accounts, check and remove connections, and publish posts.

Credentials come from the environment:
  SOCIAL_FRONT_TOKEN  bearer token minted by the identity tier
  SOCIAL_FRONT_USER   user id matching the token subject`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&serverURL, "server", envOr("SOCIAL_FRONT_URL", "http://localhost:8080"), "social-front base URL")
	root.PersistentFlags().DurationVar(&timeout, "timeout", client.DefaultTimeout, "request timeout")

	root.AddCommand(
		newConnectCmd(),
		newStatusCmd(),
		newDisconnectCmd(),
		newPostCmd(),
		newRefineCmd(),
		newPreviewCmd(),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect <platform>",
		Short: "Start connecting a social account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initiation, err := newClient().Platform(args[0]).Authenticate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Open this URL in your browser to connect %s:\n\n  %s\n", initiation.Platform, initiation.AuthURL)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [platform...]",
		Short: "Show connection status for all or selected platforms",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := newClient().AllStatuses(cmd.Context(), args...)

			platforms := args
			if len(platforms) == 0 {
				platforms = client.Platforms
			}
			for _, platform := range platforms {
				status := statuses[platform]
				if status == nil {
					continue
				}
				line := fmt.Sprintf("%-10s disconnected", platform)
				if status.Connected {
					line = fmt.Sprintf("%-10s connected", platform)
					if status.Username != "" {
						line += " as " + status.Username
					}
					if status.ConnectedAt != nil {
						line += " since " + status.ConnectedAt.Format("2006-01-02")
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

func newDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <platform>",
		Short: "Remove a social account connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().Platform(args[0]).Disconnect(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s disconnected\n", args[0])
			return nil
		},
	}
}

func newPostCmd() *cobra.Command {
	var imagePath string
	cmd := &cobra.Command{
		Use:   "post <platform> <content>",
		Short: "Publish a post",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := client.PostInput{Content: strings.Join(args[1:], " ")}
			if imagePath != "" {
				data, err := os.ReadFile(imagePath)
				if err != nil {
					return fmt.Errorf("reading image: %w", err)
				}
				input.ImageData = data
				input.ImageMIME = mimeForPath(imagePath)
			}

			ack, err := newClient().Platform(args[0]).Post(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Posted to %s (id %s)\n", ack.Platform, ack.PostID)
			if ack.URL != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", ack.URL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "path to an image to attach")
	return cmd
}

func mimeForPath(path string) string {
	switch {
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".gif"):
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

func newRefineCmd() *cobra.Command {
	var platform, tone, instructions string
	var alternatives bool
	cmd := &cobra.Command{
		Use:   "refine <content>",
		Short: "Polish draft content with the configured model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := newClient().Refine(cmd.Context(), client.RefineInput{
				OriginalContent:      strings.Join(args, " "),
				Instructions:         instructions,
				Platform:             platform,
				Tone:                 tone,
				GenerateAlternatives: alternatives,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.RefinedContent)
			for _, suggestion := range result.Suggestions {
				fmt.Fprintf(cmd.OutOrStdout(), "  suggestion: %s\n", suggestion)
			}
			for _, alt := range result.Alternatives {
				fmt.Fprintf(cmd.OutOrStdout(), "  alternative: %s\n", alt)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&platform, "platform", "", "target platform")
	cmd.Flags().StringVar(&tone, "tone", "", "desired tone")
	cmd.Flags().StringVar(&instructions, "instructions", "", "refinement instructions")
	cmd.Flags().BoolVar(&alternatives, "alternatives", false, "request alternate versions")
	return cmd
}

func newPreviewCmd() *cobra.Command {
	var platforms []string
	cmd := &cobra.Command{
		Use:   "preview <content>",
		Short: "Check content against each platform's limits",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(platforms) == 0 {
				platforms = client.Platforms
			}
			previews, err := newClient().Preview(cmd.Context(), client.PreviewInput{
				Content:   strings.Join(args, " "),
				Platforms: platforms,
			})
			if err != nil {
				return err
			}
			for _, p := range previews {
				line := p.Platform + ": ok"
				if !p.CanPost {
					line = p.Platform + ": cannot post"
				}
				if p.Warning != "" {
					line += " (" + p.Warning + ")"
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&platforms, "platforms", nil, "platforms to preview against (default: all)")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
