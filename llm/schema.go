package llm

import (
	"strings"

	"github.com/xeipuuv/gojsonschema"

	fderrors "github.com/Tekstrive/fashionDeck/errors"
)

// Response schemas for completion output. The API is untrusted; every
// response is validated before it is decoded into a domain type.

const parseResponseSchema = `{
	"type": "object",
	"required": ["aesthetic"],
	"properties": {
		"aesthetic": {"type": "string", "minLength": 1},
		"budget": {"type": ["integer", "null"], "minimum": 0},
		"size": {"type": ["string", "null"]},
		"gender": {"type": ["string", "null"]},
		"occasion": {"type": ["string", "null"]},
		"categories": {
			"type": "array",
			"items": {"type": "string"}
		}
	}
}`

const planResponseSchema = `{
	"type": "object",
	"required": ["items"],
	"properties": {
		"items": {
			"type": "array",
			"minItems": 1,
			"items": {"type": "string", "minLength": 1}
		},
		"reasoning": {"type": "string"}
	}
}`

const scoreResponseSchema = `{
	"type": "object",
	"required": ["scores"],
	"properties": {
		"scores": {
			"type": "array",
			"items": {"type": "number"}
		}
	}
}`

var (
	parseSchema = gojsonschema.NewStringLoader(parseResponseSchema)
	planSchema  = gojsonschema.NewStringLoader(planResponseSchema)
	scoreSchema = gojsonschema.NewStringLoader(scoreResponseSchema)
)

// validateJSON checks a raw completion response against a schema.
// Returns ErrMalformedResponse with the collected violations on
// failure.
func validateJSON(schema gojsonschema.JSONLoader, raw string) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return fderrors.WrapInvalid(fderrors.ErrMalformedResponse, "llm", "validate",
			"response is not valid json: "+err.Error())
	}
	if result.Valid() {
		return nil
	}

	var violations []string
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return fderrors.WrapInvalid(fderrors.ErrMalformedResponse, "llm", "validate",
		"response violates schema: "+strings.Join(violations, "; "))
}
