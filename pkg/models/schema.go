package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// flowDefinitionSchema validates the JSON shape the flow editor pushes before
// it is persisted. Semantic checks (edge targets existing, start node present)
// are the interpreter's concern at execution time.
const flowDefinitionSchema = `{
	"type": "object",
	"required": ["id", "nodes", "edges"],
	"properties": {
		"id":   {"type": "string", "minLength": 1},
		"name": {"type": "string"},
		"nodes": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "type"],
				"properties": {
					"id":   {"type": "string", "minLength": 1},
					"type": {"type": "string", "minLength": 1},
					"data": {
						"type": "object",
						"properties": {
							"text":          {"type": "string"},
							"media_url":     {"type": "string"},
							"variable_name": {"type": "string"},
							"delay_seconds": {"type": "integer", "minimum": 0},
							"buttons": {
								"type": "array",
								"items": {
									"type": "object",
									"required": ["title"],
									"properties": {
										"title":     {"type": "string", "minLength": 1},
										"next_node": {"type": "string"}
									}
								}
							},
							"condition": {
								"type": "object",
								"required": ["field", "operator"],
								"properties": {
									"field":      {"type": "string", "minLength": 1},
									"operator":   {"type": "string", "enum": ["equals", "not_equals", "contains", "not_contains", "starts_with", "ends_with"]},
									"value":      {"type": "string"},
									"true_node":  {"type": "string"},
									"false_node": {"type": "string"}
								}
							}
						}
					}
				}
			}
		},
		"edges": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["source", "target"],
				"properties": {
					"source": {"type": "string", "minLength": 1},
					"target": {"type": "string", "minLength": 1}
				}
			}
		}
	}
}`

// ValidateFlowDefinition checks a raw flow definition document against the
// schema and returns an error listing every violation.
func ValidateFlowDefinition(raw []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(flowDefinitionSchema)
	documentLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate flow definition: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return errors.New("invalid flow definition: " + strings.Join(details, "; "))
	}

	return nil
}
