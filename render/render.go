// Package render performs strict placeholder substitution of wizard
// decisions into the lambda configuration template. A placeholder with no
// corresponding value is fatal: a silently incomplete artifact would be
// packaged and deployed otherwise.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"text/template"
	"text/template/parse"

	"gitlab.com/z0mbie42/rz-go/v2"
	"gitlab.com/z0mbie42/rz-go/v2/log"
)

// ErrMissingPlaceholder is returned when the template references a
// placeholder absent from the variable map.
var ErrMissingPlaceholder = errors.New("missing template placeholder")

// placeholders walks the parsed template and collects every {{.NAME}}
// reference.
func placeholders(
	tree *parse.Tree,
) []string {
	var names []string
	for _, node := range tree.Root.Nodes {
		action, ok := node.(*parse.ActionNode)
		if !ok {
			continue
		}
		for _, cmd := range action.Pipe.Cmds {
			for _, arg := range cmd.Args {
				if field, ok := arg.(*parse.FieldNode); ok && len(field.Ident) > 0 {
					names = append(names, field.Ident[0])
				}
			}
		}
	}
	return names
}

// Render substitutes vars into the template text. Every placeholder the
// template references must be present in vars.
func Render(
	name string,
	templateText string,
	vars map[string]string,
) (
	[]byte,
	error,
) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(templateText)
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", name, err)
	}

	for _, ph := range placeholders(tmpl.Tree) {
		if _, ok := vars[ph]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingPlaceholder, ph)
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return nil, fmt.Errorf("rendering template %s: %w", name, err)
	}

	return buf.Bytes(), nil
}

// File renders the template at templatePath and writes the result to
// outPath. On any error nothing is written.
func File(
	templatePath string,
	outPath string,
	vars map[string]string,
) error {
	templateText, err := os.ReadFile(templatePath)
	if err != nil {
		log.Error(
			"Error reading configuration template",
			rz.Err(err),
			rz.String("template_path", templatePath),
		)
		return err
	}

	rendered, err := Render(templatePath, string(templateText), vars)
	if err != nil {
		log.Error(
			"Error rendering configuration template",
			rz.Err(err),
			rz.String("template_path", templatePath),
		)
		return err
	}

	if err := os.WriteFile(outPath, rendered, 0o644); err != nil {
		log.Error(
			"Error writing rendered configuration",
			rz.Err(err),
			rz.String("output_path", outPath),
		)
		return err
	}

	log.Debug(
		"Wrote rendered configuration",
		rz.String("template_path", templatePath),
		rz.String("output_path", outPath),
		rz.Int("size_bytes", len(rendered)),
	)

	return nil
}
