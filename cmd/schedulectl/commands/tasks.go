package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/benvon/smart-schedule/internal/app"
	"github.com/benvon/smart-schedule/internal/database"
	"github.com/benvon/smart-schedule/internal/models"
	"github.com/benvon/smart-schedule/internal/planner"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newTasksCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and maintain stored tasks",
	}
	cmd.AddCommand(newTasksListCmd(env))
	cmd.AddCommand(newTasksDeleteCmd(env))
	cmd.AddCommand(newTasksCleanupCmd(env))
	cmd.AddCommand(newTasksRescheduleCmd(env))
	return cmd
}

func newTasksListCmd(env *environment) *cobra.Command {
	var taskType string
	var requiredOnly bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks ordered by scheduled time",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter database.TaskFilter
			if taskType != "" {
				t, ok := models.ParseTaskType(taskType)
				if !ok {
					return fmt.Errorf("invalid --type %q", taskType)
				}
				filter.Type = &t
			}
			if requiredOnly {
				filter.Required = &requiredOnly
			}

			_, deps, _, closeFn, err := env.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			tasks, err := deps.Tasks.List(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("failed to list tasks: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(tasks)
			}
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks")
				return nil
			}
			return printTasks(out, tasks)
		},
	}

	cmd.Flags().StringVar(&taskType, "type", "", "Filter by type (course, trivial, work, learning)")
	cmd.Flags().BoolVar(&requiredOnly, "required", false, "Only show required tasks")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print tasks as JSON")
	return cmd
}

func printTasks(w io.Writer, tasks []*models.Task) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tTITLE\tSCHEDULED\tDEADLINE\tMINUTES\tFLAGS")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Type, t.Title,
			formatTime(t.ScheduledTime), formatTime(t.Deadline),
			formatMinutes(t.EstimatedDuration), taskFlags(t),
		)
	}
	return tw.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

func formatMinutes(m *int) string {
	if m == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *m)
}

func taskFlags(t *models.Task) string {
	flags := ""
	if t.IsRequired {
		flags += "R"
	}
	if t.IsFixedTime {
		flags += "F"
	}
	if t.IsCompleted {
		flags += "C"
	}
	if flags == "" {
		return "-"
	}
	return flags
}

func newTasksDeleteCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid task ID %q", args[0])
			}

			_, deps, _, closeFn, err := env.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			existed, err := deps.Tasks.Delete(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to delete task: %w", err)
			}
			if existed {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s not found\n", id)
			}
			return nil
		},
	}
}

func newTasksCleanupCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete completed tasks and tasks past their deadline",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, deps, log, closeFn, err := env.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := planner.NewCleaner(deps.Tasks, log).Clean(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d completed and %d expired tasks\n", report.Completed, report.Expired)
			return nil
		},
	}
}

func newTasksRescheduleCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "reschedule",
		Short: "Rebuild the schedule for all required tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, deps, log, closeFn, err := env.open(cmd.Context())
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

			outcome, err := orchestrator.Synthesizer().Reschedule(cmd.Context(), time.Now().In(cfg.Location))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, outcome.Summary)
			for _, msg := range planner.IssueMessages(outcome.Issues) {
				fmt.Fprintf(out, "  ! %s\n", msg)
			}
			if !outcome.Success {
				return fmt.Errorf("schedule not applied after %d attempts", outcome.Attempts)
			}
			return nil
		},
	}
}
