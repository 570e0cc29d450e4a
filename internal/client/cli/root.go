// Package cli is the terminal front end of the dream journal.
package cli

import (
	"context"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iudanet/dreamjournal/internal/client/api"
	"github.com/iudanet/dreamjournal/internal/client/iocli"
)

// NewRootCmd builds the dreamjournal command tree. Output and prompts go
// through stdio, logs go to logOut.
func NewRootCmd(stdio iocli.IO, logOut io.Writer, version string) *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:           "dreamjournal",
		Short:         "Shared dream journal client",
		Long:          `Read the shared dream journal, add entries, comment on them. Writes need a signed-in account.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(stdio)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ServerURL, "server", "http://localhost:8080", "Server URL")
	flags.StringVar(&opts.DBPath, "db", "dreamjournal-client.db", "Path to local database")
	flags.StringVar(&opts.Nickname, "nickname", "", "Nickname attached to new entries and comments")
	flags.DurationVar(&opts.Timeout, "timeout", api.DefaultTimeout, "Timeout of one server request")
	flags.BoolVar(&opts.Debug, "debug", false, "Verbose logging to stderr")
	flags.StringVar(&opts.Policy, "policy", "refetch", "How to update the list after adding an entry: refetch or patch")
	flags.BoolVar(&opts.Anonymous, "anonymous", false, "Write without signing in (the server must allow anonymous writes)")

	// run открывает App на время одной команды
	run := func(fn func(ctx context.Context, app *App, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := Open(ctx, stdio, logOut, *opts)
			if err != nil {
				return err
			}
			defer func() {
				if err := app.Close(); err != nil {
					app.logger.WarnContext(ctx, "failed to close local database", "error", err)
				}
			}()
			return fn(ctx, app, args)
		}
	}

	var displayName string
	registerCmd := &cobra.Command{
		Use:   "register [username]",
		Short: "Create an account",
		Args:  cobra.MaximumNArgs(1),
		RunE: run(func(ctx context.Context, app *App, args []string) error {
			return app.Register(ctx, firstArg(args), displayName)
		}),
	}
	registerCmd.Flags().StringVar(&displayName, "display-name", "", "Display name (defaults to the username)")

	loginCmd := &cobra.Command{
		Use:   "login [username]",
		Short: "Sign in",
		Args:  cobra.MaximumNArgs(1),
		RunE: run(func(ctx context.Context, app *App, args []string) error {
			return app.Login(ctx, firstArg(args))
		}),
	}

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the local session",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, app *App, _ []string) error {
			return app.Logout(ctx)
		}),
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show who is signed in",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, app *App, _ []string) error {
			return app.Status(ctx)
		}),
	}

	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show all entries with their comments",
		Args:    cobra.NoArgs,
		RunE: run(func(ctx context.Context, app *App, _ []string) error {
			if err := app.Start(ctx); err != nil {
				return err
			}
			app.show()
			return nil
		}),
	}

	var title, description string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add an entry (prompts for missing fields)",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, app *App, _ []string) error {
			if err := app.Start(ctx); err != nil {
				return err
			}
			return app.AddEntry(ctx, title, description)
		}),
	}
	addCmd.Flags().StringVarP(&title, "title", "t", "", "Entry title")
	addCmd.Flags().StringVarP(&description, "description", "d", "", "Entry description")

	deleteCmd := &cobra.Command{
		Use:   "delete <entry>",
		Short: "Delete an entry by number or id",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, app *App, args []string) error {
			if err := app.Start(ctx); err != nil {
				return err
			}
			return app.DeleteEntry(ctx, args[0])
		}),
	}

	commentCmd := &cobra.Command{
		Use:   "comment <entry> [text...]",
		Short: "Comment on an entry (prompts when text is missing)",
		Args:  cobra.MinimumNArgs(1),
		RunE: run(func(ctx context.Context, app *App, args []string) error {
			if err := app.Start(ctx); err != nil {
				return err
			}
			return app.AddComment(ctx, args[0], strings.Join(args[1:], " "))
		}),
	}

	uncommentCmd := &cobra.Command{
		Use:   "uncomment <entry> <comment>",
		Short: "Delete a comment by number or id",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, app *App, args []string) error {
			if err := app.Start(ctx); err != nil {
				return err
			}
			return app.DeleteComment(ctx, args[0], args[1])
		}),
	}

	shellCmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive session",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, app *App, _ []string) error {
			return app.Shell(ctx)
		}),
	}

	cmd.AddCommand(registerCmd, loginCmd, logoutCmd, statusCmd,
		listCmd, addCmd, deleteCmd, commentCmd, uncommentCmd, shellCmd)

	return cmd
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
