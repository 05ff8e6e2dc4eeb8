package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewPipelineCmd создаёт группу команд для управления pipelines.
func NewPipelineCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Manage pipelines",
	}

	cmd.AddCommand(
		newPipelineListCmd(clientFn, outputFn),
		newPipelineCreateCmd(clientFn, outputFn),
		newPipelineShowCmd(clientFn, outputFn),
		newPipelineDeleteCmd(clientFn, outputFn),
		newPipelineActivateCmd(clientFn, outputFn),
		newPipelineValidateCmd(clientFn, outputFn),
	)

	return cmd
}

func pipelineRow(p *PipelineResponse) []string {
	return []string{p.ID, p.Name, p.Status, strconv.Itoa(len(p.Steps)), p.CreatedAt}
}

var pipelineHeaders = []string{"ID", "NAME", "STATUS", "STEPS", "CREATED"}

func newPipelineListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var orgID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pipelines of an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipelines, err := client.ListPipelines(orgID)
			if err != nil {
				return err
			}

			rows := make([][]string, len(pipelines))
			for i := range pipelines {
				rows[i] = pipelineRow(&pipelines[i])
			}

			out.Print(pipelineHeaders, rows, pipelines)
			return nil
		},
	}

	cmd.Flags().StringVar(&orgID, "org-id", "", "Organization ID (required)")
	cmd.MarkFlagRequired("org-id")

	return cmd
}

func newPipelineCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var orgID string
	var name string
	var description string
	var stepsFile string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pipeline (DRAFT)",
		Long: `Create a pipeline in DRAFT status.

Steps are read from a JSON file (--steps-file), an array of objects:

  [
    {"tool_id": "...", "name": "transcribe"},
    {"tool_id": "...", "name": "summarize", "prerequisites": ["<step id>"]}
  ]

A pipeline without steps can be created and filled in later via the API.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var steps []PipelineStepRequest
			if stepsFile != "" {
				data, err := os.ReadFile(stepsFile)
				if err != nil {
					return fmt.Errorf("failed to read steps file: %w", err)
				}
				if err := json.Unmarshal(data, &steps); err != nil {
					return fmt.Errorf("failed to parse steps file: %w", err)
				}
			}

			pipeline, err := client.CreatePipeline(orgID, CreatePipelineRequest{
				Name:        name,
				Description: description,
				Steps:       steps,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline created: %s", pipeline.ID))
			out.Print(pipelineHeaders, [][]string{pipelineRow(pipeline)}, pipeline)
			return nil
		},
	}

	cmd.Flags().StringVar(&orgID, "org-id", "", "Organization ID (required)")
	cmd.Flags().StringVar(&name, "name", "", "Pipeline name (required)")
	cmd.Flags().StringVar(&description, "description", "", "Pipeline description")
	cmd.Flags().StringVar(&stepsFile, "steps-file", "", "JSON file with pipeline steps")
	cmd.MarkFlagRequired("org-id")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newPipelineShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show pipeline details with steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipeline, err := client.GetPipeline(args[0])
			if err != nil {
				return err
			}

			stepHeaders := []string{"STEP ID", "NAME", "TOOL", "PREREQUISITES"}
			stepRows := make([][]string, len(pipeline.Steps))
			for i, s := range pipeline.Steps {
				stepRows[i] = []string{s.ID, s.Name, s.ToolID, strings.Join(s.Prerequisites, ",")}
			}

			if out.jsonMode {
				out.JSON(pipeline)
				return nil
			}

			out.Table(pipelineHeaders, [][]string{pipelineRow(pipeline)})
			if len(stepRows) > 0 {
				fmt.Println()
				out.Table(stepHeaders, stepRows)
			}
			return nil
		},
	}
}

func newPipelineDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeletePipeline(args[0]); err != nil {
				return err
			}

			out.Success("Pipeline deleted")
			return nil
		},
	}
}

func newPipelineActivateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "activate ID",
		Short: "Validate the graph and mark the pipeline ACTIVE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipeline, err := client.ActivatePipeline(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline activated: %s", pipeline.ID))
			out.Print(pipelineHeaders, [][]string{pipelineRow(pipeline)}, pipeline)
			return nil
		},
	}
}

func newPipelineValidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate ID",
		Short: "Validate the pipeline graph without activating it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			result, err := client.ValidatePipeline(args[0])
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(result)
				return nil
			}

			if !result.Valid {
				out.Error(result.Error)
				return nil
			}

			out.Success("Pipeline is valid")
			for i, level := range result.Levels {
				fmt.Printf("level %d: %s\n", i, strings.Join(level, ", "))
			}
			return nil
		},
	}
}
