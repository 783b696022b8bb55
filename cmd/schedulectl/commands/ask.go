package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/benvon/smart-schedule/internal/app"
	"github.com/benvon/smart-schedule/internal/planner"
	"github.com/spf13/cobra"
)

func newAskCmd(env *environment) *cobra.Command {
	var sessionID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask <text>",
		Short: "Send one message to the planner",
		Long: "Run the planner in-process against the configured database. Reuse --session " +
			"to continue a conversation; the printed session ID can be passed back in. " +
			"Without REDIS_URL the history only lives for this invocation.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, deps, log, closeFn, err := env.open(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			completer, err := app.NewCompleter(cfg, log, *env.debug)
			if err != nil {
				return fmt.Errorf("failed to create AI provider: %w", err)
			}
			orchestrator, err := app.NewOrchestrator(cfg, deps, completer, log)
			if err != nil {
				return fmt.Errorf("failed to create planner: %w", err)
			}

			if sessionID == "" {
				sessionID = planner.NewSessionID()
			}
			resp := orchestrator.Handle(ctx, strings.Join(args, " "), sessionID)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			printResponse(out, resp)
			if !resp.Success {
				return fmt.Errorf("planner did not complete the request")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Conversation session ID (generated when empty)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw response as JSON")
	return cmd
}

func printResponse(w io.Writer, resp *planner.Response) {
	fmt.Fprintln(w, resp.Reply)
	for _, action := range resp.Actions {
		fmt.Fprintf(w, "  + %s\n", action)
	}
	for _, conflict := range resp.Conflicts {
		fmt.Fprintf(w, "  ! %s\n", conflict)
	}
	if resp.PendingConfirmation != nil {
		for i, draft := range resp.PendingConfirmation.SuggestedTasks {
			fmt.Fprintf(w, "  %d. [%s] %s\n", i+1, draft.Type, draft.Title)
		}
		fmt.Fprintln(w, "Reply with a confirmation to create these tasks.")
	}
	fmt.Fprintf(w, "session: %s\n", resp.SessionID)
}
