package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для управления runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage runs",
	}

	cmd.AddCommand(
		newRunListCmd(clientFn, outputFn),
		newRunStartCmd(clientFn, outputFn),
		newRunStartToolCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
		newRunCancelCmd(clientFn, outputFn),
		newRunStepsCmd(clientFn, outputFn),
	)

	return cmd
}

func runRow(r *RunResponse) []string {
	ref := r.PipelineID
	if r.Kind == "TOOL_RUN" {
		ref = r.ToolID
	}
	return []string{
		r.ID,
		r.Kind,
		ref,
		r.Status,
		fmt.Sprintf("%.0f%%", r.Progress*100),
		r.CreatedAt,
	}
}

var runHeaders = []string{"ID", "KIND", "TARGET", "STATUS", "PROGRESS", "CREATED"}

// parseInputs разбирает повторяемые флаги --input KEY=VALUE в map.
func parseInputs(kvs []string) (map[string]any, error) {
	if len(kvs) == 0 {
		return nil, nil
	}

	input := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid input %q, expected KEY=VALUE", kv)
		}
		input[parts[0]] = parts[1]
	}
	return input, nil
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListRunsOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(opts)
			if err != nil {
				return err
			}

			rows := make([][]string, len(runs))
			for i := range runs {
				rows[i] = runRow(&runs[i])
			}

			out.Print(runHeaders, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.OrganizationID, "org-id", "", "Filter by organization ID")
	cmd.Flags().StringVar(&opts.PipelineID, "pipeline-id", "", "Filter by pipeline ID")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (QUEUED, PROCESSING, COMPLETE, ERROR)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of runs")

	return cmd
}

func newRunStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var inputs []string
	var idempotencyKey string

	cmd := &cobra.Command{
		Use:   "start PIPELINE_ID",
		Short: "Start a pipeline run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			input, err := parseInputs(inputs)
			if err != nil {
				return err
			}

			run, err := client.StartPipelineRun(args[0], CreateRunRequest{
				Input:          input,
				IdempotencyKey: idempotencyKey,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run started: %s", run.ID))
			out.Print(runHeaders, [][]string{runRow(run)}, run)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Run input as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency key")

	return cmd
}

func newRunStartToolCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var inputs []string
	var idempotencyKey string

	cmd := &cobra.Command{
		Use:   "start-tool TOOL_ID",
		Short: "Start a single-tool run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			input, err := parseInputs(inputs)
			if err != nil {
				return err
			}

			run, err := client.StartToolRun(args[0], CreateRunRequest{
				Input:          input,
				IdempotencyKey: idempotencyKey,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run started: %s", run.ID))
			out.Print(runHeaders, [][]string{runRow(run)}, run)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Run input as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency key")

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(run)
				return nil
			}

			out.Table(runHeaders, [][]string{runRow(run)})
			if run.Output != "" {
				fmt.Printf("\noutput: %s\n", run.Output)
			}
			if run.Error != "" {
				fmt.Printf("\nerror: %s\n", run.Error)
			}
			return nil
		},
	}
}

func newRunCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.CancelRun(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Cancel requested: %s", run.ID))
			out.Print(runHeaders, [][]string{runRow(run)}, run)
			return nil
		},
	}
}

func newRunStepsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "steps RUN_ID",
		Short: "List step runs of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			steps, err := client.ListRunSteps(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "BASE", "ATTEMPT", "STATUS", "JOB", "ERROR"}
			rows := make([][]string, len(steps))
			for i, s := range steps {
				rows[i] = []string{
					s.ID,
					s.Base,
					fmt.Sprintf("%d", s.Attempt),
					s.Status,
					s.JobID,
					s.Error,
				}
			}

			out.Print(headers, rows, steps)
			return nil
		},
	}
}
