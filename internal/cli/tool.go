package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewToolCmd создаёт группу команд для управления tools.
func NewToolCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "Manage tools",
	}

	cmd.AddCommand(
		newToolListCmd(clientFn, outputFn),
		newToolCreateCmd(clientFn, outputFn),
		newToolShowCmd(clientFn, outputFn),
		newToolDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

func toolRow(t *ToolResponse) []string {
	return []string{t.ID, t.Name, t.Base, t.InputKind, t.OutputKind, t.CreatedAt}
}

var toolHeaders = []string{"ID", "NAME", "BASE", "INPUT", "OUTPUT", "CREATED"}

func newToolListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var orgID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tools of an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tools, err := client.ListTools(orgID)
			if err != nil {
				return err
			}

			rows := make([][]string, len(tools))
			for i := range tools {
				rows[i] = toolRow(&tools[i])
			}

			out.Print(toolHeaders, rows, tools)
			return nil
		},
	}

	cmd.Flags().StringVar(&orgID, "org-id", "", "Organization ID (required)")
	cmd.MarkFlagRequired("org-id")

	return cmd
}

func newToolCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var orgID string
	var name string
	var base string
	var inputKind string
	var outputKind string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tool in an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tool, err := client.CreateTool(orgID, CreateToolRequest{
				Name:       name,
				Base:       base,
				InputKind:  inputKind,
				OutputKind: outputKind,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Tool created: %s", tool.ID))
			out.Print(toolHeaders, [][]string{toolRow(tool)}, tool)
			return nil
		},
	}

	cmd.Flags().StringVar(&orgID, "org-id", "", "Organization ID (required)")
	cmd.Flags().StringVar(&name, "name", "", "Tool name (required)")
	cmd.Flags().StringVar(&base, "base", "", "Tool base, e.g. SUMMARIZE (required)")
	cmd.Flags().StringVar(&inputKind, "input", "", "Input kind (TEXT, AUDIO, VIDEO, IMAGE)")
	cmd.Flags().StringVar(&outputKind, "output", "", "Output kind (TEXT, AUDIO, VIDEO, IMAGE)")
	cmd.MarkFlagRequired("org-id")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("base")

	return cmd
}

func newToolShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show tool details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tool, err := client.GetTool(args[0])
			if err != nil {
				return err
			}

			out.Print(toolHeaders, [][]string{toolRow(tool)}, tool)
			return nil
		},
	}
}

func newToolDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteTool(args[0]); err != nil {
				return err
			}

			out.Success("Tool deleted")
			return nil
		},
	}
}
