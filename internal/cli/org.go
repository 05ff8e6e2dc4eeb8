package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewOrgCmd создаёт группу команд для управления организациями.
func NewOrgCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage organizations",
	}

	cmd.AddCommand(
		newOrgListCmd(clientFn, outputFn),
		newOrgCreateCmd(clientFn, outputFn),
		newOrgShowCmd(clientFn, outputFn),
		newOrgAddCreditsCmd(clientFn, outputFn),
		newOrgSetPlanCmd(clientFn, outputFn),
		newOrgProvisionCmd(clientFn, outputFn),
	)

	return cmd
}

func orgRow(o *OrganizationResponse) []string {
	return []string{o.ID, o.Name, o.Plan, strconv.Itoa(o.Credits), o.CreatedAt}
}

var orgHeaders = []string{"ID", "NAME", "PLAN", "CREDITS", "CREATED"}

func newOrgListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all organizations",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			orgs, err := client.ListOrganizations()
			if err != nil {
				return err
			}

			rows := make([][]string, len(orgs))
			for i := range orgs {
				rows[i] = orgRow(&orgs[i])
			}

			out.Print(orgHeaders, rows, orgs)
			return nil
		},
	}
}

func newOrgCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var plan string
	var creditsAmount int

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			org, err := client.CreateOrganization(CreateOrganizationRequest{
				Name:    name,
				Plan:    plan,
				Credits: creditsAmount,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Organization created: %s", org.ID))
			out.Print(orgHeaders, [][]string{orgRow(org)}, org)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Organization name (required)")
	cmd.Flags().StringVar(&plan, "plan", "", "Plan (FREE, PRO, UNLIMITED)")
	cmd.Flags().IntVar(&creditsAmount, "credits", 0, "Initial credit balance")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newOrgShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show organization details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			org, err := client.GetOrganization(args[0])
			if err != nil {
				return err
			}

			out.Print(orgHeaders, [][]string{orgRow(org)}, org)
			return nil
		},
	}
}

func newOrgAddCreditsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var amount int

	cmd := &cobra.Command{
		Use:   "add-credits ID",
		Short: "Add credits to an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			org, err := client.AddCredits(args[0], amount)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Credits added, new balance: %d", org.Credits))
			out.Print(orgHeaders, [][]string{orgRow(org)}, org)
			return nil
		},
	}

	cmd.Flags().IntVar(&amount, "amount", 0, "Amount of credits to add (required)")
	cmd.MarkFlagRequired("amount")

	return cmd
}

func newOrgSetPlanCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "set-plan ID PLAN",
		Short: "Change organization plan (FREE, PRO, UNLIMITED)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			org, err := client.SetPlan(args[0], args[1])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Plan changed to %s", org.Plan))
			out.Print(orgHeaders, [][]string{orgRow(org)}, org)
			return nil
		},
	}
}

func newOrgProvisionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "provision ID",
		Short: "Provision the built-in tool catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			org, err := client.ProvisionOrganization(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Organization provisioned: %s", org.ID))
			return nil
		},
	}
}
