package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tablee/tablee/internal/store"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "View and edit your profile",
	}
	cmd.AddCommand(newProfileShowCmd(), newProfileSetCmd())
	return cmd
}

func newProfileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [@handle]",
		Short: "Show a profile (defaults to your own)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runProfileShow,
	}
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	app, err := setupApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	profiles := store.NewProfileRepository(app.db)

	var profileID string
	if len(args) > 0 {
		handle := args[0]
		if len(handle) > 0 && handle[0] == '@' {
			handle = handle[1:]
		}
		profile, err := profiles.GetByHandle(cmd.Context(), handle)
		if err != nil {
			return fmt.Errorf("unknown user %s", args[0])
		}
		profileID = profile.ID
	} else {
		userID, err := app.requireUser(cmd)
		if err != nil {
			return err
		}
		profileID = userID
	}

	profile, err := profiles.Get(cmd.Context(), profileID)
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
	if profile.Contributor {
		fmt.Fprintln(out, "Contributor")
	}
	return nil
}

func newProfileSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update your profile fields",
		Args:  cobra.NoArgs,
		RunE:  runProfileSet,
	}
	cmd.Flags().String("name", "", "Full display name")
	cmd.Flags().String("bio", "", "Profile bio")
	cmd.Flags().String("city", "", "Home city")
	cmd.Flags().String("avatar", "", "Avatar URL")
	return cmd
}

func runProfileSet(cmd *cobra.Command, _ []string) error {
	app, err := setupApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	userID, err := app.requireUser(cmd)
	if err != nil {
		return err
	}

	profiles := store.NewProfileRepository(app.db)
	profile, err := profiles.Get(cmd.Context(), userID)
	if err != nil {
		return err
	}

	changed := false
	if name, _ := cmd.Flags().GetString("name"); cmd.Flags().Changed("name") {
		profile.FullName = name
		changed = true
	}
	if bio, _ := cmd.Flags().GetString("bio"); cmd.Flags().Changed("bio") {
		profile.Bio = bio
		changed = true
	}
	if city, _ := cmd.Flags().GetString("city"); cmd.Flags().Changed("city") {
		profile.City = city
		changed = true
	}
	if avatar, _ := cmd.Flags().GetString("avatar"); cmd.Flags().Changed("avatar") {
		profile.AvatarURL = avatar
		changed = true
	}
	if !changed {
		return fmt.Errorf("nothing to update; pass --name, --bio, --city, or --avatar")
	}

	if err := profiles.Update(cmd.Context(), profile); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Profile updated.")
	return nil
}
