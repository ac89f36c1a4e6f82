package cli

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalbasit/sqltmpl/config"
	"github.com/kalbasit/sqltmpl/fileio"
	"github.com/kalbasit/sqltmpl/generator"
	"github.com/kalbasit/sqltmpl/schema"
	"github.com/kalbasit/sqltmpl/sqlerr"
)

func newGenerateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <file|dir>...",
		Short: "Generate Go code from SQL templates",
		Long: `Generate one Go file per SQL template.

Directories are searched recursively for .sql files. Without --output, or
with --dry-run, the generated code is printed instead of written; a single
template without --output is printed on its own, with the DBTX interface.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGenerate(cmd, args)
		},
	}

	cmd.Flags().StringP("output", "o", "", "output directory for the generated files")
	cmd.Flags().StringP("schema", "s", "", "schema file used for every template (default: companion or *.schema files)")
	cmd.Flags().StringP("package", "p", "", "package name of the generated files (default is queries)")
	cmd.Flags().StringP("dialect", "d", "", "placeholder dialect: sqlite, mysql, postgres or sqlserver (default is sqlite)")
	cmd.Flags().Bool("validate", false, "require every parameter to name a column of the tables it refers to")
	cmd.Flags().Bool("strict", false, "treat warnings (non-.sql inputs, empty directories, no schema) as errors")
	cmd.Flags().Bool("dry-run", false, "print the generated code instead of writing it")
	cmd.Flags().IntP("concurrency", "j", 0, "number of files generated at once (default is the number of CPUs)")

	a.bind("output", config.KeyOutputDir)
	a.bind("schema", config.KeySchemaFile)
	a.bind("package", config.KeyPackage)
	a.bind("dialect", config.KeyDialect)
	a.bind("validate", config.KeyValidateParameters)
	a.bind("strict", config.KeyStrict)
	a.bind("dry-run", config.KeyDryRun)
	a.bind("concurrency", config.KeyConcurrency)

	return cmd
}

func (a *app) runGenerate(cmd *cobra.Command, args []string) error {
	files, err := a.expandPaths(args)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return nil
	}

	schemaFile, err := a.schemaFile(files)
	if err != nil {
		return err
	}

	opts := append(a.cfg.GeneratorOptions(),
		generator.WithSchemaFile(schemaFile),
		generator.WithSchema(a.newSchema()),
		generator.WithLogger(a.logger),
	)

	writing := a.cfg.OutputDir != "" && !a.cfg.DryRun
	if writing {
		opts = append(opts, generator.WithOutputDir(a.cfg.OutputDir))
	}

	g, err := generator.New(opts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if len(files) == 1 && a.cfg.OutputDir == "" {
		src, err := g.GenerateClass(files[0])
		if err != nil {
			return err
		}

		_, err = out.Write(src)

		return err
	}

	outputs, err := g.GenerateAll(cmd.Context(), files)
	if err != nil {
		return err
	}

	if !writing {
		return printOutputs(out, outputs)
	}

	fmt.Fprintf(out, "Generated %d files:\n", len(outputs))

	for _, o := range outputs {
		name := o.ClassName
		if name == "" {
			name = "DBTX"
		}

		fmt.Fprintf(out, "    - %s: %s\n", name, filepath.Join(a.cfg.OutputDir, o.FileName))
	}

	return nil
}

func printOutputs(w io.Writer, outputs []generator.Output) error {
	for _, o := range outputs {
		if _, err := fmt.Fprintf(w, "// ==> %s\n%s\n", o.FileName, o.Source); err != nil {
			return err
		}
	}

	return nil
}

// newSchema returns a schema parser using the configured type mapping. A
// missing default types file is skipped silently; any other types file that
// cannot be loaded is logged and replaced by the default mapping.
func (a *app) newSchema() *schema.Parser {
	p := schema.New(schema.WithLogger(a.logger), schema.WithEncoding(a.cfg.Encoding))

	typesFile := a.cfg.TypesFile
	if typesFile == "" || (typesFile == config.DefaultTypesFile && !fileio.Exists(typesFile)) {
		return p
	}

	p.LoadTypeMapping(typesFile)

	return p
}

// warn logs msg, or fails with it in strict mode.
func (a *app) warn(path, msg string) error {
	if a.cfg.Strict {
		return sqlerr.Configuration(path, nil, "%s", msg)
	}

	a.logger.Warn(msg, "path", path)

	return nil
}

// expandPaths replaces directories with the .sql files they contain, in
// lexical order, and checks that every path exists.
func (a *app) expandPaths(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, sqlerr.File(arg, err, "SQL file not found")
		}

		if !info.IsDir() {
			if !strings.EqualFold(filepath.Ext(arg), ".sql") {
				if err := a.warn(arg, "file does not have a .sql extension"); err != nil {
					return nil, err
				}
			}

			files = append(files, arg)

			continue
		}

		found, err := findTemplates(arg)
		if err != nil {
			return nil, err
		}

		if len(found) == 0 {
			if err := a.warn(arg, "no .sql files found in directory"); err != nil {
				return nil, err
			}
		}

		files = append(files, found...)
	}

	return files, nil
}

func findTemplates(dir string) ([]string, error) {
	var found []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".sql") {
			found = append(found, path)
		}

		return nil
	})
	if err != nil {
		return nil, sqlerr.File(dir, err, "cannot list directory")
	}

	sort.Strings(found)

	return found, nil
}

// schemaFile returns the schema every template is generated against: the
// configured one, or "" when some template has a companion schema, or else
// the first *.schema file of the current directory or of a template
// directory.
func (a *app) schemaFile(files []string) (string, error) {
	if a.cfg.SchemaFile != "" {
		return a.cfg.SchemaFile, nil
	}

	for _, f := range files {
		for _, candidate := range schema.CompanionPaths(f) {
			if fileio.Exists(candidate) {
				return "", nil
			}
		}
	}

	dirs := []string{"."}
	seen := map[string]struct{}{".": {}}

	for _, f := range files {
		dir := filepath.Dir(f)
		if _, ok := seen[dir]; !ok {
			seen[dir] = struct{}{}
			dirs = append(dirs, dir)
		}
	}

	for _, dir := range dirs {
		matches, err := filepath.Glob(filepath.Join(dir, "*.schema"))
		if err != nil {
			return "", sqlerr.Configuration(dir, err, "cannot search for schema files")
		}

		if len(matches) > 0 {
			sort.Strings(matches)
			a.logger.Info("using discovered schema file", "path", matches[0])

			return matches[0], nil
		}
	}

	return "", a.warn(".", "no schema file found, parameter types are guessed from their names")
}
