// Package openapi embeds the REST API description served at
// /api/openapi.yaml.
package openapi

import _ "embed"

// Spec is the OpenAPI 3 document for the HTTP API.
//
//go:embed openapi.yaml
var Spec []byte
