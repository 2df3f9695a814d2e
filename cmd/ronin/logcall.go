package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/models"
)

var (
	callEntity  string
	callNumber  string
	callName    string
	callNotes   string
	callOutcome string
	callWhen    string
)

var logCallCmd = &cobra.Command{
	Use:   "log-call",
	Short: "Record a recruiter phone call",
	Long: `Records a phone contact and runs it through the matching cascade
against open applications. Ambiguous matches are queued for review.`,
	RunE: runLogCall,
}

func init() {
	logCallCmd.Flags().StringVar(&callEntity, "entity", "", "Company or agency named on the call (required)")
	logCallCmd.Flags().StringVar(&callNumber, "number", "", "Caller phone number")
	logCallCmd.Flags().StringVar(&callName, "name", "", "Caller name")
	logCallCmd.Flags().StringVar(&callNotes, "notes", "", "Free-form notes, fed to the matcher")
	logCallCmd.Flags().StringVar(&callOutcome, "outcome", "", "Outcome stage conveyed on the call, e.g. interview_request")
	logCallCmd.Flags().StringVar(&callWhen, "at", "", "Call time, RFC 3339 (defaults to now)")
	logCallCmd.MarkFlagRequired("entity")
}

func runLogCall(cmd *cobra.Command, args []string) error {
	call := &models.CallLog{
		CallerNumber: callNumber,
		CallerName:   callName,
		Entity:       callEntity,
		Notes:        callNotes,
		Outcome:      models.OutcomeStage(callOutcome),
	}
	if callWhen != "" {
		occurred, err := time.Parse(time.RFC3339, callWhen)
		if err != nil {
			return common.ValidationError("at", "must be RFC 3339")
		}
		call.OccurredAt = occurred.UTC()
	}

	application, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.OutcomeService.LogCall(cmd.Context(), call); err != nil {
		return err
	}

	switch {
	case call.ApplicationID != nil:
		fmt.Printf("Call %d matched application %d\n", call.ID, *call.ApplicationID)
	case call.RequiresManualReview:
		fmt.Printf("Call %d is ambiguous, queued for review\n", call.ID)
	default:
		fmt.Printf("Call %d recorded, no matching application\n", call.ID)
	}
	return nil
}
