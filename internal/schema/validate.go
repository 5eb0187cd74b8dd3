package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Validate checks a materialized document against the JSON schema it was
// generated from.
func Validate(raw json.RawMessage, document []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(raw),
		gojsonschema.NewBytesLoader(document),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		var errs []string
		for _, err := range result.Errors() {
			errs = append(errs, err.String())
		}
		return fmt.Errorf("document does not match schema: %s", strings.Join(errs, "; "))
	}
	return nil
}
