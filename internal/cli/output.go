package cli

import (
	"encoding/json"
	"io"
	"reflect"
)

// WriteOutput encodes value as indented JSON, or as one JSON object per line
// when --jsonl is set and value is a slice.
func WriteOutput(out io.Writer, value any) error {
	if IsJSONLOutput() {
		return writeJSONL(out, value)
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func writeJSONL(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		for i := 0; i < rv.Len(); i++ {
			if err := encoder.Encode(rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		return nil
	}
	return encoder.Encode(value)
}
