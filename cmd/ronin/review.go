package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wmarzella/ronin/internal/common"
)

var reviewCmd = &cobra.Command{
	Use:   "review [message-id application-id]",
	Short: "List or resolve ambiguous message matches",
	Long: `Without arguments, lists messages waiting for manual review with
their ranked candidates. With a message id and an application id,
confirms that match and applies the message's outcome.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runReview,
}

func runReview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	application, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer application.Close()

	if len(args) == 2 {
		messageID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return common.ValidationError("message-id", "must be an integer")
		}
		applicationID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return common.ValidationError("application-id", "must be an integer")
		}
		if err := application.OutcomeService.ConfirmMatch(ctx, messageID, applicationID); err != nil {
			return err
		}
		fmt.Printf("Message %d confirmed against application %d\n", messageID, applicationID)
		return nil
	}
	if len(args) == 1 {
		return common.ValidationError("arguments", "confirm takes a message id and an application id")
	}

	pending, err := application.StorageManager.Messages().ListManualReview(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("No messages awaiting review")
		return nil
	}

	for _, msg := range pending {
		fmt.Printf("message %d  %s  %s\n  %q\n", msg.ID, msg.ReceivedAt.Format("2006-01-02"), msg.Sender, msg.Subject)
		for _, candidate := range msg.Candidates {
			fmt.Printf("    application %d  %.2f  %s at %s\n",
				candidate.ApplicationID, candidate.Score, candidate.Title, candidate.Company)
		}
	}
	return nil
}
