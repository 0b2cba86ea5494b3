package chain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	placeholderOpen  = "{{"
	placeholderClose = "}}"
	outputRefPrefix  = "output["
)

// Resolve substitutes the placeholders in tmpl.
//
// Named placeholders ({{key}}) take the string form of vars[key] and are left
// untouched when the key is absent. Output references ({{output[N]}}) take
// outputs[N]; negative N counts from the end. A reference outside outputs is
// an error wrapping ErrUnresolvedReference. Resolve never mutates its inputs.
func Resolve(tmpl string, vars Context, outputs []string) (string, error) {
	if !strings.Contains(tmpl, placeholderOpen) {
		return tmpl, nil
	}

	var out strings.Builder
	out.Grow(len(tmpl))

	rest := tmpl
	for {
		start := strings.Index(rest, placeholderOpen)
		if start < 0 {
			break
		}
		end := strings.Index(rest[start+len(placeholderOpen):], placeholderClose)
		if end < 0 {
			break
		}
		end += start + len(placeholderOpen)
		// A stray "{{" before the real placeholder is literal text.
		start = strings.LastIndex(rest[:end], placeholderOpen)

		raw := rest[start : end+len(placeholderClose)]
		inner := strings.TrimSpace(rest[start+len(placeholderOpen) : end])

		out.WriteString(rest[:start])
		value, err := resolvePlaceholder(raw, inner, vars, outputs)
		if err != nil {
			return "", err
		}
		out.WriteString(value)
		rest = rest[end+len(placeholderClose):]
	}
	out.WriteString(rest)

	return out.String(), nil
}

func resolvePlaceholder(raw, inner string, vars Context, outputs []string) (string, error) {
	if strings.HasPrefix(inner, outputRefPrefix) {
		ref, err := parseOutputRef(raw, inner)
		if err != nil {
			return "", err
		}
		return ref.resolve(outputs)
	}

	if value, ok := vars.Lookup(inner); ok {
		return value, nil
	}
	return raw, nil
}

type outputRef struct {
	raw   string
	index int
	field string
}

// parseOutputRef parses "output[N]" or "output[N].field".
func parseOutputRef(raw, inner string) (outputRef, error) {
	ref := outputRef{raw: raw}

	body := inner[len(outputRefPrefix):]
	closeIdx := strings.IndexByte(body, ']')
	if closeIdx < 0 {
		return ref, &ReferenceError{Placeholder: raw, Reason: "missing closing bracket"}
	}

	index, err := strconv.Atoi(strings.TrimSpace(body[:closeIdx]))
	if err != nil {
		return ref, &ReferenceError{Placeholder: raw, Reason: fmt.Sprintf("invalid index %q", body[:closeIdx])}
	}
	ref.index = index

	suffix := body[closeIdx+1:]
	switch {
	case suffix == "":
	case strings.HasPrefix(suffix, ".") && len(suffix) > 1:
		ref.field = suffix[1:]
	default:
		return ref, &ReferenceError{Placeholder: raw, Index: index, Reason: fmt.Sprintf("unexpected trailing text %q", suffix)}
	}

	return ref, nil
}

func (r outputRef) resolve(outputs []string) (string, error) {
	pos := r.index
	if pos < 0 {
		pos += len(outputs)
	}
	if pos < 0 || pos >= len(outputs) {
		return "", &ReferenceError{
			Placeholder: r.raw,
			Index:       r.index,
			Field:       r.field,
			Available:   len(outputs),
			Reason:      fmt.Sprintf("index %d out of range with %d outputs", r.index, len(outputs)),
		}
	}

	output := outputs[pos]
	if r.field == "" {
		return output, nil
	}

	var object map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &object); err != nil || object == nil {
		return "", &ReferenceError{
			Placeholder: r.raw,
			Index:       r.index,
			Field:       r.field,
			Available:   len(outputs),
			Reason:      fmt.Sprintf("output %d is not a JSON object", pos),
		}
	}
	value, ok := object[r.field]
	if !ok {
		return "", &ReferenceError{
			Placeholder: r.raw,
			Index:       r.index,
			Field:       r.field,
			Available:   len(outputs),
			Reason:      fmt.Sprintf("output %d has no field %q", pos, r.field),
		}
	}
	return stringify(value), nil
}
