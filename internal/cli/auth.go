package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newSignupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup <email> <handle>",
		Short: "Create an account and profile",
		Args:  cobra.ExactArgs(2),
		RunE:  runSignup,
	}
	cmd.Flags().String("name", "", "Full display name")
	return cmd
}

func runSignup(cmd *cobra.Command, args []string) error {
	app, err := setupApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	fullName, _ := cmd.Flags().GetString("name")
	profile, err := app.service.SignUp(cmd.Context(), args[0], password, args[1], fullName)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s! You are signed in.\n", profile.DisplayName())
	return nil
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in with email and password",
		Args:  cobra.ExactArgs(1),
		RunE:  runLogin,
	}
}

func runLogin(cmd *cobra.Command, args []string) error {
	app, err := setupApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	userID, err := app.service.SignIn(cmd.Context(), args[0], password)
	if err != nil {
		return err
	}

	profile, err := app.service.Profile(cmd.Context(), userID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", profile.DisplayName())
	return nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out of the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := setupApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.service.SignOut(cmd.Context()); err != nil {
				// The remote sign-out failed; the local session is
				// cleared regardless.
				app.service.SignOutLocal()
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := setupApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			userID, err := app.requireUser(cmd)
			if err != nil {
				return err
			}
			profile, err := app.service.Profile(cmd.Context(), userID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (@%s)\n", profile.DisplayName(), profile.Handle)
			if profile.City != "" {
				fmt.Fprintf(out, "City: %s\n", profile.City)
			}
			if profile.Bio != "" {
				fmt.Fprintf(out, "Bio: %s\n", profile.Bio)
			}
			return nil
		},
	}
}

func newLinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "One-time login links",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "issue <email>",
			Short: "Issue a one-time login link token",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := setupApp(cmd)
				if err != nil {
					return err
				}
				defer app.Close()

				token, err := app.service.IssueLink(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			},
		},
		&cobra.Command{
			Use:   "redeem <token>",
			Short: "Sign in with a one-time login link token",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := setupApp(cmd)
				if err != nil {
					return err
				}
				defer app.Close()

				userID, err := app.service.SignInWithLink(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				profile, err := app.service.Profile(cmd.Context(), userID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", profile.DisplayName())
				return nil
			},
		},
	)
	return cmd
}

// promptPassword reads a password without echo when stdin is a terminal,
// falling back to a plain line read otherwise (tests, pipes).
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(raw), nil
	}

	var line string
	if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}
