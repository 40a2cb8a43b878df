package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tablee/tablee/internal/messaging"
	"github.com/tablee/tablee/internal/store"
)

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <@handle> <message...>",
		Short: "Send a direct message to another user",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runSend,
	}
}

func runSend(cmd *cobra.Command, args []string) error {
	app, err := setupApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	userID, err := app.requireUser(cmd)
	if err != nil {
		return err
	}

	handle := strings.TrimPrefix(args[0], "@")
	profiles := store.NewProfileRepository(app.db)
	recipient, err := profiles.GetByHandle(cmd.Context(), handle)
	if err != nil {
		return fmt.Errorf("unknown user @%s", handle)
	}
	if recipient.ID == userID {
		return fmt.Errorf("cannot message yourself")
	}

	inbox := messaging.NewInbox(app.db, app.feed, userID)
	defer inbox.Detach()

	conversationID, err := inbox.StartConversation(cmd.Context(), recipient.ID)
	if err != nil {
		return err
	}

	text := strings.Join(args[1:], " ")
	message, err := inbox.Composer.Send(cmd.Context(), conversationID, userID, text)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Sent to @%s (%s)\n", handle, message.ID)
	return nil
}
