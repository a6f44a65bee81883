package rest

var initiateSchemaBytes = []byte(`
{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"$id": "github.com/trackdle/trackdle/auth-initiate.schema.json",

	"title": "InitiateRequest",
	"type": "object",
	"required": ["state", "nonce"],
	"additionalProperties": false,
	"properties": {
		"state": {
			"type": "string",
			"minLength": 8,
			"maxLength": 256,
			"description": "Opaque client-generated correlation token"
		},
		"nonce": {
			"type": "string",
			"minLength": 8,
			"maxLength": 256,
			"description": "Opaque client-generated anti-replay value"
		}
	}
}
`)

var callbackSchemaBytes = []byte(`
{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"$id": "github.com/trackdle/trackdle/auth-callback.schema.json",

	"title": "CallbackRequest",
	"type": "object",
	"required": ["code", "state", "nonce", "code_verifier"],
	"additionalProperties": false,
	"properties": {
		"code": {
			"type": "string",
			"minLength": 1,
			"maxLength": 4096,
			"description": "Single-use authorization code from the identity provider"
		},
		"state": {
			"type": "string",
			"minLength": 8,
			"maxLength": 256,
			"description": "Correlation token registered at initiation"
		},
		"nonce": {
			"type": "string",
			"minLength": 8,
			"maxLength": 256,
			"description": "Anti-replay value registered at initiation"
		},
		"code_verifier": {
			"type": "string",
			"minLength": 43,
			"maxLength": 128,
			"description": "PKCE code verifier matching the challenge sent at authorization"
		}
	}
}
`)
