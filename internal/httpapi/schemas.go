// internal/httpapi/schemas.go
package httpapi

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	stderrors "rooftrust-engine/internal/common/errors"
)

// Request-body schemas, compiled once at startup. Validation failures map to
// the engine's validation error code so HTTP callers see one error shape.
var (
	onboardingSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"registrationNumber": {"type": "string", "minLength": 1},
			"insuranceExpiry": {"type": "string", "format": "date-time"}
		},
		"required": ["name", "registrationNumber"],
		"additionalProperties": false
	}`)

	verificationSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"approved": {"type": "boolean"}
		},
		"required": ["approved"],
		"additionalProperties": false
	}`)

	credentialSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"imageUrl": {"type": "string", "minLength": 1}
		},
		"required": ["imageUrl"],
		"additionalProperties": false
	}`)

	surveyInputSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"key": {"type": "string", "minLength": 1},
			"value": {}
		},
		"required": ["key", "value"],
		"additionalProperties": false
	}`)

	windZoneSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"postcode": {"type": "string", "minLength": 1}
		},
		"required": ["postcode"],
		"additionalProperties": false
	}`)

	weatherSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"rainMMPerHour": {"type": "number", "minimum": 0},
			"windMPH": {"type": "number", "minimum": 0},
			"tempCelsius": {"type": "number"}
		},
		"required": ["rainMMPerHour", "windMPH", "tempCelsius"],
		"additionalProperties": false
	}`)

	checklistSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"checked": {"type": "boolean"}
		},
		"required": ["checked"],
		"additionalProperties": false
	}`)

	variationSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"reason": {"type": "string", "minLength": 1},
			"extraCost": {"type": "number"},
			"daysAdded": {"type": "integer"},
			"proofPhotoUrl": {"type": "string", "minLength": 1}
		},
		"required": ["reason", "extraCost", "daysAdded", "proofPhotoUrl"],
		"additionalProperties": false
	}`)

	variationDecisionSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"status": {"type": "string", "enum": ["approved", "rejected"]},
			"message": {"type": "string"}
		},
		"required": ["status"],
		"additionalProperties": false
	}`)

	scaffoldCertSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"certRef": {"type": "string", "minLength": 1}
		},
		"required": ["certRef"],
		"additionalProperties": false
	}`)

	dailyLogSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"tag": {"type": "string"}
		},
		"additionalProperties": false
	}`)

	handoverSendSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"recipient": {"type": "string", "minLength": 1}
		},
		"required": ["recipient"],
		"additionalProperties": false
	}`)
)

func mustSchema(raw string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid request schema: %v", err))
	}
	return schema
}

// validateBody checks raw JSON against the compiled schema and folds the
// per-field failures into one validation error.
func validateBody(schema *gojsonschema.Schema, raw []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return stderrors.NewValidationError("request body is not valid JSON")
	}
	if result.Valid() {
		return nil
	}

	descs := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		descs[i] = desc.String()
	}
	return stderrors.NewValidationError(strings.Join(descs, "; "))
}
