// Package cli implements the sqltmpl command.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kalbasit/sqltmpl/config"
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	return newRootCmd(version, commit, date).Execute()
}

// app is the state shared by the commands of one run.
type app struct {
	cfgFile string
	// flagKeys maps flag names to the configuration keys they override.
	flagKeys map[string]string

	v      *viper.Viper
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd(version, commit, date string) *cobra.Command {
	a := &app{
		flagKeys: map[string]string{
			"types":      config.KeyTypesFile,
			"encoding":   config.KeyEncoding,
			"log-level":  config.KeyLogLevel,
			"log-format": config.KeyLogFormat,
		},
	}

	cmd := &cobra.Command{
		Use:   "sqltmpl",
		Short: "Generate Go data-access code from SQL templates",
		Long: `sqltmpl turns SQL template files into Go code.

A template starts with a "# ClassName" comment and holds one statement per
"# method_name" section. Named parameters (:user_id) become typed method
arguments, their types inferred from the CREATE TABLE statements of a
companion .schema file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./sqltmpl.yaml)")
	cmd.PersistentFlags().StringP("types", "t", "", "SQL to Go type mapping file (default is ./sql-types.yaml)")
	cmd.PersistentFlags().String("encoding", "", "encoding of the template and schema files (default is utf-8)")
	cmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error (default is info)")
	cmd.PersistentFlags().String("log-format", "", "log format: text or json (default is text)")

	cmd.AddCommand(newGenerateCmd(a))
	cmd.AddCommand(newInspectCmd(a))
	cmd.AddCommand(newTypesCmd(a))
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}

// init loads the configuration, letting the flags set on the command line
// override every other source.
func (a *app) init(cmd *cobra.Command) error {
	v, err := config.NewViper(a.cfgFile)
	if err != nil {
		return err
	}

	var bindErr error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := a.flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}

		bindErr = v.BindPFlag(key, f)
	})

	if bindErr != nil {
		return bindErr
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	a.v = v
	a.cfg = cfg
	a.logger = cfg.NewLogger(cmd.ErrOrStderr())

	a.logger.Debug("configuration loaded", "file", v.ConfigFileUsed(), "config", cfg.String())

	return nil
}

// bind registers the configuration key a command flag overrides.
func (a *app) bind(flag, key string) {
	a.flagKeys[flag] = key
}
