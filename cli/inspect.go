package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kalbasit/sqltmpl/config"
	"github.com/kalbasit/sqltmpl/infer"
	"github.com/kalbasit/sqltmpl/sqlerr"
	"github.com/kalbasit/sqltmpl/sqlfile"
)

// Inspect output formats.
const (
	formatText = "text"
	formatYAML = "yaml"
	formatDump = "dump"
)

// report describes how a template is understood.
type report struct {
	ClassName string         `yaml:"class_name"`
	Path      string         `yaml:"path"`
	Schema    string         `yaml:"schema,omitempty"`
	Methods   []methodReport `yaml:"methods"`
}

type methodReport struct {
	Name         string        `yaml:"name"`
	Statement    string        `yaml:"statement"`
	Kind         string        `yaml:"kind"`
	HasReturning bool          `yaml:"has_returning,omitempty"`
	SQL          string        `yaml:"sql"`
	Parameters   []paramReport `yaml:"parameters,omitempty"`
}

type paramReport struct {
	Name         string `yaml:"name"`
	infer.Result `yaml:",inline"`
}

func newInspectCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show the methods of a SQL template and the inferred parameter types",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInspect(cmd.OutOrStdout(), args[0], format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, yaml or dump")
	cmd.Flags().StringP("schema", "s", "", "schema file (default is the companion .schema file)")

	a.bind("schema", config.KeySchemaFile)

	return cmd
}

func (a *app) runInspect(w io.Writer, path, format string) error {
	format = strings.ToLower(format)

	switch format {
	case formatText, formatYAML, formatDump:
	default:
		return sqlerr.Configuration("", nil, "invalid format %q (expected %s, %s or %s)",
			format, formatText, formatYAML, formatDump)
	}

	f, err := sqlfile.ParseFile(path, sqlfile.WithEncoding(a.cfg.Encoding), sqlfile.WithLogger(a.logger))
	if err != nil {
		return err
	}

	p := a.newSchema()

	schemaPath, err := p.LoadSchemaForTemplate(path, a.cfg.SchemaFile)
	if err != nil {
		return err
	}

	r := newReport(f, infer.New(p))
	r.Schema = schemaPath

	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2) //nolint:mnd

		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}

		return enc.Close()
	case formatDump:
		cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true, SortKeys: true}
		cfg.Fdump(w, r)

		return nil
	default:
		return r.writeText(w)
	}
}

func newReport(f *sqlfile.File, inferrer *infer.Inferrer) report {
	r := report{ClassName: f.ClassName, Path: f.Path}

	for _, m := range f.Methods {
		mr := methodReport{
			Name:         m.Name,
			Statement:    m.Statement.String(),
			Kind:         m.Kind.String(),
			HasReturning: m.HasReturning,
			SQL:          m.SQL,
		}

		for _, name := range m.Parameters {
			mr.Parameters = append(mr.Parameters, paramReport{Name: name, Result: inferrer.Resolve(m.SQL, name)})
		}

		r.Methods = append(r.Methods, mr)
	}

	return r
}

func (r report) writeText(w io.Writer) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Class:  %s\n", r.ClassName)
	fmt.Fprintf(&sb, "File:   %s\n", r.Path)

	if r.Schema != "" {
		fmt.Fprintf(&sb, "Schema: %s\n", r.Schema)
	} else {
		sb.WriteString("Schema: none\n")
	}

	for _, m := range r.Methods {
		fmt.Fprintf(&sb, "\n%s (%s, %s)\n", m.Name, m.Statement, m.Kind)

		for _, line := range strings.Split(m.SQL, "\n") {
			fmt.Fprintf(&sb, "    %s\n", line)
		}

		for _, p := range m.Parameters {
			fmt.Fprintf(&sb, "  :%s %s (%s", p.Name, p.Type, p.Source)

			if p.Column != "" {
				fmt.Fprintf(&sb, " %s.%s", p.Table, p.Column)
			}

			sb.WriteString(")\n")
		}
	}

	_, err := io.WriteString(w, sb.String())

	return err
}
