package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/isometry/ldapctl/internal/ldap"
)

var batchStopOnError bool

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Run operations from a YAML file",
	Long: `Run a list of operations from a YAML file ("-" reads stdin). Every
operation runs in its own session. Failures are collected and reported
together at the end; with --stop-on-error the first failure ends the run.

Example file:

  operations:
    - op: add
      dn: cn=bob,cn=users,dc=example,dc=com
      attributes:
        objectClass: [top, person]
        sn: [Bob]
    - op: modify-user
      user_id: bob
      changes:
        - attribute: mail
          value: bob@example.com
    - op: modify
      dn: cn=bob,cn=users,dc=example,dc=com
      changes:
        - op: delete
          attribute: description
    - op: delete
      dn: cn=alice,cn=users,dc=example,dc=com`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().BoolVar(&batchStopOnError, "stop-on-error", false, "stop at the first failed operation")
}

// batchFile is the YAML document read by the batch command.
type batchFile struct {
	Operations []batchOperation `yaml:"operations"`
}

type batchOperation struct {
	Op              string              `yaml:"op"`
	DN              string              `yaml:"dn"`
	UserID          string              `yaml:"user_id"`
	Attribute       string              `yaml:"attribute"`
	Value           string              `yaml:"value"`
	Attributes      map[string][]string `yaml:"attributes"`
	Changes         []batchChange       `yaml:"changes"`
	NewPassword     string              `yaml:"new_password"`
	CurrentPassword string              `yaml:"current_password"`
}

type batchChange struct {
	Op        string `yaml:"op"`
	Attribute string `yaml:"attribute"`
	Value     string `yaml:"value"`
}

// parseBatch decodes a batch document, rejecting unknown fields.
func parseBatch(r io.Reader) (*batchFile, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var file batchFile
	if err := decoder.Decode(&file); err != nil {
		if err == io.EOF {
			return &file, nil
		}
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}
	return &file, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	var r io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open batch file: %w", err)
		}
		defer f.Close()
		r = f
	}

	file, err := parseBatch(r)
	if err != nil {
		return err
	}

	dir, err := loadDirectory()
	if err != nil {
		return err
	}

	errs := executeBatch(cmd.Context(), dir, file.Operations, batchStopOnError)
	printSuccess("%d operations, %d failed", len(file.Operations), errs.Len())
	return errs.Err()
}

// executeBatch runs ops in order and collects every failure. With stop set
// the run ends at the first failure.
func executeBatch(ctx context.Context, dir directory, ops []batchOperation, stop bool) *ldap.ErrorList {
	errs := &ldap.ErrorList{}

	for i, op := range ops {
		err := executeOperation(ctx, dir, op)
		if err == nil {
			continue
		}

		tflog.SubsystemWarn(ctx, ldap.LogSubsystem, "Batch operation failed", map[string]any{
			"index": i,
			"op":    op.Op,
			"error": err.Error(),
		})
		errs.Addf("operation %d (%s): %v", i+1, op.Op, err)
		if stop {
			break
		}
	}

	return errs
}

func executeOperation(ctx context.Context, dir directory, op batchOperation) error {
	switch strings.ToLower(op.Op) {
	case "add":
		attrs := make(ldap.Attributes, len(op.Attributes))
		for name, values := range op.Attributes {
			for _, v := range values {
				attrs[name] = append(attrs[name], []byte(v))
			}
		}
		return dir.Add(ctx, op.DN, attrs)

	case "modify":
		mods := make([]ldap.Modification, 0, len(op.Changes))
		for _, c := range op.Changes {
			kind, err := ldap.ParseModOp(c.Op)
			if err != nil {
				return err
			}
			mod := ldap.Modification{Op: kind, Attribute: c.Attribute}
			if kind != ldap.ModDelete {
				mod.Value = []byte(c.Value)
			}
			mods = append(mods, mod)
		}
		return dir.Modify(ctx, op.DN, mods)

	case "delete":
		return dir.Delete(ctx, op.DN)

	case "set":
		return dir.SetValue(ctx, op.DN, op.Attribute, optionalValue(op.Value))

	case "add-value":
		return dir.AddValue(ctx, op.DN, op.Attribute, []byte(op.Value))

	case "modify-user":
		changes := make([]ldap.AttributeChange, 0, len(op.Changes))
		for _, c := range op.Changes {
			changes = append(changes, ldap.AttributeChange{Attribute: c.Attribute, Value: optionalValue(c.Value)})
		}
		return dir.ModifyUser(ctx, op.UserID, changes)

	case "passwd":
		_, err := dir.ChangePassword(ctx, op.DN, op.NewPassword, op.CurrentPassword)
		return err

	default:
		return fmt.Errorf("unknown operation %q", op.Op)
	}
}

func optionalValue(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}
