package commands

import (
	"github.com/spf13/cobra"

	"github.com/isometry/ldapctl/internal/cli/prompt"
)

var (
	modifyUserAttrs []string

	passwdNew     string
	passwdCurrent string
	passwdAsUser  bool
)

var modifyUserCmd = &cobra.Command{
	Use:   "modify-user <user-id>",
	Short: "Reconcile attributes of a user",
	Long: `Look up cn=<user-id> in the users container and bring the given
attributes to the desired values. name= removes an attribute. Nothing is
written when the entry already matches.

Examples:
  ldapctl modify-user bob --attr mail=bob@example.com --attr description=`,
	Args: cobra.ExactArgs(1),
	RunE: runModifyUser,
}

var passwdCmd = &cobra.Command{
	Use:   "passwd <user-dn>",
	Short: "Change a user's password",
	Long: `Change a user's password.

Over a secure connection (ldaps:// or StartTLS) the password modify extended
operation is used and a server-generated password is printed when issued.
Otherwise the password attribute is replaced.

With --as-user the session binds as the user with the current password;
otherwise the configured service credentials are used.`,
	Args: cobra.ExactArgs(1),
	RunE: runPasswd,
}

func init() {
	modifyUserCmd.Flags().StringArrayVar(&modifyUserAttrs, "attr", nil, "desired value as name=value, name= to remove (repeatable)")
	_ = modifyUserCmd.MarkFlagRequired("attr")

	passwdCmd.Flags().StringVarP(&passwdNew, "password", "p", "", "new password (prompts if not provided)")
	passwdCmd.Flags().StringVar(&passwdCurrent, "current-password", "", "current password (prompts with --as-user if not provided)")
	passwdCmd.Flags().BoolVar(&passwdAsUser, "as-user", false, "bind as the user with the current password")
}

func runModifyUser(cmd *cobra.Command, args []string) error {
	changes, err := parseChanges(modifyUserAttrs)
	if err != nil {
		return err
	}

	dir, err := loadDirectory()
	if err != nil {
		return err
	}

	if err := dir.ModifyUser(cmd.Context(), args[0], changes); err != nil {
		return err
	}

	printSuccess("User %s is up to date", args[0])
	return nil
}

func runPasswd(cmd *cobra.Command, args []string) error {
	userDN := args[0]

	current := passwdCurrent
	if passwdAsUser && current == "" {
		var err error
		if current, err = prompt.Password("Current password"); err != nil {
			return err
		}
	}

	newPassword := passwdNew
	if newPassword == "" {
		var err error
		if newPassword, err = prompt.PasswordWithConfirmation("New password", "Confirm password"); err != nil {
			return err
		}
	}

	dir, err := loadDirectory()
	if err != nil {
		return err
	}

	effective, err := dir.ChangePassword(cmd.Context(), userDN, newPassword, current)
	if err != nil {
		return err
	}

	if effective != newPassword {
		return printResult(map[string]string{"dn": userDN, "generated_password": effective})
	}

	printSuccess("Password changed for %s", userDN)
	return nil
}
