package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kalbasit/sqltmpl/fileio"
	"github.com/kalbasit/sqltmpl/schema"
	"github.com/kalbasit/sqltmpl/sqlerr"
)

func newTypesCmd(a *app) *cobra.Command {
	var force, current bool

	cmd := &cobra.Command{
		Use:   "types [path]",
		Short: "Write the SQL to Go type mapping as YAML",
		Long: `Write the default SQL to Go type mapping, ready to be edited and passed
with --types. Without a path the mapping is printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := schema.DefaultTypeMapping()
			if current {
				m = a.newSchema().Mapping()
			}

			if len(args) == 0 {
				return schema.EncodeTypeMapping(cmd.OutOrStdout(), m)
			}

			path := args[0]
			if fileio.Exists(path) && !force {
				return sqlerr.File(path, nil, "file exists, use --force to overwrite it")
			}

			if err := schema.WriteTypesFile(path, m); err != nil {
				return err
			}

			a.logger.Info("wrote type mapping", "path", path, "types", len(m))
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.Flags().BoolVar(&current, "current", false, "write the mapping in use (--types) instead of the default one")

	return cmd
}
