package chain

import (
	"fmt"
	"strings"
	"text/template"
)

// Default action delimiters for conditional fragments. They differ from the
// {{ }} placeholder syntax so that expansion leaves placeholders untouched.
const (
	DefaultLeftDelim  = "[~"
	DefaultRightDelim = "~]"
)

// Expander expands conditional fragments in a step template before its
// placeholders are resolved.
type Expander interface {
	Expand(tmpl string, vars Context) (string, error)
}

// ExpanderFunc adapts a function to the Expander interface.
type ExpanderFunc func(tmpl string, vars Context) (string, error)

// Expand calls f.
func (f ExpanderFunc) Expand(tmpl string, vars Context) (string, error) {
	return f(tmpl, vars)
}

// NopExpander returns templates unchanged.
type NopExpander struct{}

// Expand returns tmpl.
func (NopExpander) Expand(tmpl string, vars Context) (string, error) {
	return tmpl, nil
}

// TemplateExpander expands text/template actions written with custom
// delimiters, e.g.
//
//	[~ if .file_content ~]<file-content>{{file_content}}</file-content>[~ end ~]
//
// Template data is the string form of the context, so a key is truthy only
// when its value is non-empty.
type TemplateExpander struct {
	LeftDelim  string
	RightDelim string
}

// Expand renders the conditional actions in tmpl.
func (e TemplateExpander) Expand(tmpl string, vars Context) (string, error) {
	left, right := e.delims()
	if !strings.Contains(tmpl, left) {
		return tmpl, nil
	}

	parsed, err := template.New("prompt").
		Delims(left, right).
		Funcs(template.FuncMap{"default": defaultValue}).
		Option("missingkey=zero").
		Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: parse: %w", ErrTemplateExpand, err)
	}

	var out strings.Builder
	if err := parsed.Execute(&out, vars.Strings()); err != nil {
		return "", fmt.Errorf("%w: render: %w", ErrTemplateExpand, err)
	}

	return out.String(), nil
}

func (e TemplateExpander) delims() (string, string) {
	left, right := e.LeftDelim, e.RightDelim
	if left == "" {
		left = DefaultLeftDelim
	}
	if right == "" {
		right = DefaultRightDelim
	}
	return left, right
}

func defaultValue(def string, value any) string {
	if value == nil {
		return def
	}

	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return def
		}
		return v
	default:
		text := strings.TrimSpace(fmt.Sprint(v))
		if text == "" {
			return def
		}
		return text
	}
}
