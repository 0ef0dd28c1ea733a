package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/isometry/ldapctl/internal/cli/prompt"
)

var (
	addAttrs []string

	modifyAdds     []string
	modifyReplaces []string
	modifyDeletes  []string

	deleteForce bool

	setAppend bool
)

var addCmd = &cobra.Command{
	Use:   "add <dn>",
	Short: "Create an entry",
	Long: `Create an entry from repeated --attr name=value flags.

Examples:
  ldapctl add cn=bob,cn=users,dc=example,dc=com \
    --attr objectClass=top --attr objectClass=person --attr sn=Bob`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

var modifyCmd = &cobra.Command{
	Use:   "modify <dn>",
	Short: "Apply modifications to an entry",
	Long: `Apply --add, --replace and --delete modifications in a single request.

Examples:
  ldapctl modify cn=bob,cn=users,dc=example,dc=com \
    --replace mail=bob@example.com --delete description`,
	Args: cobra.ExactArgs(1),
	RunE: runModify,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <dn>",
	Short: "Delete an entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var setCmd = &cobra.Command{
	Use:   "set <dn> <attribute> [value]",
	Short: "Set or remove a single attribute value",
	Long: `Set an attribute to value, writing only when it differs from the current
first value. Without a value the attribute is removed. With --append the
value is added to the existing ones instead.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runSet,
}

func init() {
	addCmd.Flags().StringArrayVar(&addAttrs, "attr", nil, "attribute as name=value (repeatable)")
	_ = addCmd.MarkFlagRequired("attr")

	modifyCmd.Flags().StringArrayVar(&modifyAdds, "add", nil, "add a value, name=value (repeatable)")
	modifyCmd.Flags().StringArrayVar(&modifyReplaces, "replace", nil, "replace values, name=value (repeatable)")
	modifyCmd.Flags().StringArrayVar(&modifyDeletes, "delete", nil, "delete an attribute (repeatable)")

	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "do not ask for confirmation")

	setCmd.Flags().BoolVar(&setAppend, "append", false, "add the value instead of reconciling")
}

func runAdd(cmd *cobra.Command, args []string) error {
	attrs, err := parseAttributes(addAttrs)
	if err != nil {
		return err
	}

	dir, err := loadDirectory()
	if err != nil {
		return err
	}

	if err := dir.Add(cmd.Context(), args[0], attrs); err != nil {
		return err
	}

	printSuccess("Added %s", args[0])
	return nil
}

func runModify(cmd *cobra.Command, args []string) error {
	mods, err := parseModifications(modifyAdds, modifyReplaces, modifyDeletes)
	if err != nil {
		return err
	}
	if len(mods) == 0 {
		return fmt.Errorf("no modifications given: use --add, --replace or --delete")
	}

	dir, err := loadDirectory()
	if err != nil {
		return err
	}

	if err := dir.Modify(cmd.Context(), args[0], mods); err != nil {
		return err
	}

	printSuccess("Modified %s (%d changes)", args[0], len(mods))
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if !deleteForce {
		ok, err := prompt.Confirm(fmt.Sprintf("Delete %s", args[0]))
		if err != nil {
			return err
		}
		if !ok {
			printSuccess("Aborted")
			return nil
		}
	}

	dir, err := loadDirectory()
	if err != nil {
		return err
	}

	if err := dir.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}

	printSuccess("Deleted %s", args[0])
	return nil
}

func runSet(cmd *cobra.Command, args []string) error {
	dn, attr := args[0], args[1]

	var value []byte
	if len(args) == 3 && args[2] != "" {
		value = []byte(args[2])
	}
	if setAppend && value == nil {
		return fmt.Errorf("--append requires a value")
	}

	dir, err := loadDirectory()
	if err != nil {
		return err
	}

	if setAppend {
		err = dir.AddValue(cmd.Context(), dn, attr, value)
	} else {
		err = dir.SetValue(cmd.Context(), dn, attr, value)
	}
	if err != nil {
		return err
	}

	printSuccess("Updated %s on %s", attr, dn)
	return nil
}
