package commands

import (
	"github.com/spf13/cobra"

	"github.com/isometry/ldapctl/internal/ldap"
)

var (
	searchScope     string
	searchFilter    string
	searchAttrs     string
	searchTypesOnly bool
	searchSizeLimit int

	getAll bool
)

var searchCmd = &cobra.Command{
	Use:   "search <base-dn>",
	Short: "Search the directory",
	Long: `Search entries under a base DN.

The scope defaults to the base object and the filter to (objectClass=*).

Examples:
  # Read a single entry
  ldapctl search cn=bob,cn=users,dc=example,dc=com

  # List users with selected attributes
  ldapctl search cn=users,dc=example,dc=com --scope one --attrs cn,mail`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var getCmd = &cobra.Command{
	Use:   "get <dn> <attribute>...",
	Short: "Read attribute values of an entry",
	Long: `Read the first value of each attribute, or every value with --all.

Absent attributes are reported as absent rather than as an error.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runGet,
}

func init() {
	searchCmd.Flags().StringVarP(&searchScope, "scope", "s", "base", "search scope (base, one, sub)")
	searchCmd.Flags().StringVarP(&searchFilter, "filter", "f", "", "search filter (default (objectClass=*))")
	searchCmd.Flags().StringVarP(&searchAttrs, "attrs", "a", "", "comma separated attributes to return")
	searchCmd.Flags().BoolVar(&searchTypesOnly, "types-only", false, "return attribute names without values")
	searchCmd.Flags().IntVar(&searchSizeLimit, "size-limit", 0, "maximum number of entries (0 for server default)")

	getCmd.Flags().BoolVar(&getAll, "all", false, "return every value of each attribute")
}

func runSearch(cmd *cobra.Command, args []string) error {
	scope, err := ldap.ParseSearchScope(searchScope)
	if err != nil {
		return err
	}

	dir, err := loadDirectory()
	if err != nil {
		return err
	}

	entries, err := dir.Search(cmd.Context(), ldap.SearchRequest{
		BaseDN:     args[0],
		Scope:      scope,
		Filter:     searchFilter,
		Attributes: parseAttributeList(searchAttrs),
		TypesOnly:  searchTypesOnly,
		SizeLimit:  searchSizeLimit,
	})
	if err != nil {
		return err
	}

	return printResult(newEntryList(entries))
}

func runGet(cmd *cobra.Command, args []string) error {
	dn, attrs := args[0], args[1:]

	dir, err := loadDirectory()
	if err != nil {
		return err
	}

	var lists [][][]byte
	if getAll {
		lists, err = dir.GetValuesLists(cmd.Context(), dn, attrs)
	} else {
		var values [][]byte
		values, err = dir.GetValues(cmd.Context(), dn, attrs)
		if values != nil {
			lists = make([][][]byte, len(values))
			for i, v := range values {
				if v != nil {
					lists[i] = [][]byte{v}
				}
			}
		}
	}
	if err != nil {
		return err
	}

	result := attributeValues{DN: dn, Attributes: make(map[string][]string, len(attrs)), order: attrs}
	for i, attr := range attrs {
		if lists == nil || lists[i] == nil {
			result.Attributes[attr] = nil
			continue
		}
		result.Attributes[attr] = formatValues(attr, lists[i])
	}

	return printResult(result)
}
