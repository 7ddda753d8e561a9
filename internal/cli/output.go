package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/relicta-tech/shipgate/internal/config"
	sgerrors "github.com/relicta-tech/shipgate/internal/errors"
	"github.com/relicta-tech/shipgate/internal/fileutil"
	"github.com/relicta-tech/shipgate/internal/infrastructure/ci"
)

// outputDelimiter terminates multi-line values in $GITHUB_OUTPUT.
const outputDelimiter = "SHIPGATE_EOF"

// title capitalises an identifier such as an environment name for display.
func title(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
}

// output is one step output of the github format.
type output struct {
	Key   string
	Value string
}

// view is a command result in every supported format.
type view struct {
	// data is encoded for json, yaml and toml. It must be a struct or map.
	data any
	// text renders the human readable form.
	text func(p *printer)
	// outputs are written as key=value step outputs.
	outputs []output
	// summary renders markdown for the job summary, if any.
	summary func(w io.Writer)
}

// render writes v to w in the configured format.
func render(w io.Writer, format string, env *ci.Env, v view) error {
	const op = "cli.render"

	switch format {
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v.data)

	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v.data); err != nil {
			return sgerrors.InternalWrap(err, op, "failed to encode yaml")
		}
		return enc.Close()

	case config.FormatTOML:
		enc := toml.NewEncoder(w)
		enc.SetIndentTables(true)
		if err := enc.Encode(v.data); err != nil {
			return sgerrors.InternalWrap(err, op, "failed to encode toml")
		}
		return nil

	case config.FormatGitHub:
		return writeGitHub(w, env, v)

	case config.FormatText, "":
		if v.text != nil {
			v.text(newPrinter(w))
		}
		return nil

	default:
		return sgerrors.Validation(op, fmt.Sprintf("unsupported output format %q", format))
	}
}

// writeGitHub appends the step outputs to $GITHUB_OUTPUT, or writes them to
// w outside GitHub Actions. The job summary is appended when available.
func writeGitHub(w io.Writer, env *ci.Env, v view) error {
	const op = "cli.writeGitHub"

	data := formatOutputs(v.outputs)
	if path := env.OutputFile(); path != "" {
		if err := fileutil.AppendFile(path, data, 0o644); err != nil {
			return sgerrors.IOWrap(err, op, "failed to write step outputs")
		}
	} else if _, err := w.Write(data); err != nil {
		return sgerrors.IOWrap(err, op, "failed to write step outputs")
	}

	if path := env.StepSummaryFile(); path != "" && v.summary != nil {
		var buf bytes.Buffer
		v.summary(&buf)
		if err := fileutil.AppendFile(path, buf.Bytes(), 0o644); err != nil {
			return sgerrors.IOWrap(err, op, "failed to write job summary")
		}
	}
	return nil
}

// formatOutputs encodes outputs in the workflow command file syntax.
// Multi-line values use the heredoc form.
func formatOutputs(outputs []output) []byte {
	var b bytes.Buffer
	for _, o := range outputs {
		if strings.ContainsAny(o.Value, "\r\n") {
			fmt.Fprintf(&b, "%s<<%s\n%s\n%s\n", o.Key, outputDelimiter, o.Value, outputDelimiter)
			continue
		}
		fmt.Fprintf(&b, "%s=%s\n", o.Key, o.Value)
	}
	return b.Bytes()
}

// orNone renders an empty value as "none" in text output.
func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
