package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"sensor-dashboard/internal/access"

	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage dashboard accounts and their roles",
}

var listUsersCmd = &cobra.Command{
	Use:   "list",
	Short: "List all accounts with their roles",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		users, err := provider.ListUsers(ctx)
		if err != nil {
			slog.Error("Failed to list users", "error", err)
			os.Exit(1)
		}
		if len(users) == 0 {
			fmt.Println("No users have signed up")
			return
		}

		policy, err := loadPolicy(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "UID\tEMAIL\tNAME\tROLE\tCREATED\tLAST LOGIN\tCAPABILITIES")
		for _, u := range users {
			lastLogin := "-"
			if u.LastLogin != nil {
				lastLogin = u.LastLogin.Local().Format(time.DateTime)
			}
			session := access.Session{UserID: u.UID, Role: access.Role(u.Role)}
			caps := make([]string, 0, len(access.Capabilities))
			for _, c := range policy.Allowed(session.EffectiveRole()) {
				caps = append(caps, string(c))
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				u.UID, u.Email, u.Name, u.Role,
				u.CreatedAt.Local().Format(time.DateTime), lastLogin,
				strings.Join(caps, ", "),
			)
		}
		w.Flush()
		fmt.Printf("\nTotal users: %d\n", len(users))
	},
}

var setRoleCmd = &cobra.Command{
	Use:   "set-role <email> <role>",
	Short: "Change the role of an account",
	Long: `Change the role of an account. Valid roles are guest, user and admin.
A signed-in account with the guest role keeps guest permissions.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		role, err := access.ParseRole(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid role %q: use guest, user or admin\n", args[1])
			os.Exit(1)
		}

		user, err := provider.GetUserByEmail(ctx, args[0])
		if err != nil {
			slog.Error("Failed to find user", "email", args[0], "error", err)
			os.Exit(1)
		}
		if user.Role == role.String() {
			fmt.Printf("%s already has role %s\n", user.Email, role)
			return
		}

		if err := provider.UpdateUserRole(ctx, user.UID, role.String()); err != nil {
			slog.Error("Failed to update role", "email", user.Email, "error", err)
			os.Exit(1)
		}
		fmt.Printf("%s: %s -> %s (by %s)\n", user.Email, user.Role, role, getActiveUser())
	},
}

func init() {
	usersCmd.AddCommand(listUsersCmd)
	usersCmd.AddCommand(setRoleCmd)
	rootCmd.AddCommand(usersCmd)
}
