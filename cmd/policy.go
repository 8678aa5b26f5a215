package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"sensor-dashboard/internal/access"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect the role permission table",
}

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active permission table",
	Run: func(cmd *cobra.Command, args []string) {
		policy, err := loadPolicy(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			if err := enc.Encode(policy); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			enc.Close()
			return
		}

		printPolicy(policy)
	},
}

var policyCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Validate a policy file without starting the server",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		policy, err := access.LoadPolicy(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", args[0], err)
			os.Exit(1)
		}
		printPolicy(policy)
		fmt.Printf("\n%s is valid\n", args[0])
	},
}

func printPolicy(policy access.Policy) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprint(w, "CAPABILITY")
	for _, role := range access.Roles {
		fmt.Fprintf(w, "\t%s", role)
	}
	fmt.Fprintln(w)

	for _, capability := range access.Capabilities {
		fmt.Fprint(w, capability)
		for _, role := range access.Roles {
			mark := "-"
			if policy.HasPermission(role, capability) {
				mark = "yes"
			}
			fmt.Fprintf(w, "\t%s", mark)
		}
		fmt.Fprintln(w)
	}
	w.Flush()
}

func init() {
	policyShowCmd.Flags().Bool("yaml", false, "Print the table in policy file format")

	policyCmd.AddCommand(policyShowCmd)
	policyCmd.AddCommand(policyCheckCmd)
	rootCmd.AddCommand(policyCmd)
}
