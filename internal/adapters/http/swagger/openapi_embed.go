package swagger

import _ "embed"

// OpenAPI is the gateway's API description, served verbatim.
//
//go:embed openapi.yaml
var OpenAPI []byte
