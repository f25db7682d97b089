// Package docs holds the OpenAPI document served by the Swagger UI.
// Regenerate with: swag init -g cmd/api/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["probes"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/images": {
            "get": {
                "produces": ["application/json"],
                "tags": ["images"],
                "summary": "List gallery images",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.CatalogListResult"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}, {"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["images"],
                "summary": "Report a completed upload",
                "parameters": [
                    {
                        "description": "uploaded object",
                        "name": "entry",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/model.CatalogEntryInput"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/model.CatalogEntry"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/upload-authorization": {
            "post": {
                "security": [{"BearerAuth": []}, {"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["images"],
                "summary": "Authorize a direct upload",
                "parameters": [
                    {
                        "description": "file to upload",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/model.CredentialRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/model.UploadCredential"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        }
    },
    "definitions": {
        "handler.errorPayload": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "error": {"type": "string"},
                "request_id": {"type": "string"}
            }
        },
        "model.CatalogEntry": {
            "type": "object",
            "properties": {
                "createdAt": {"type": "string"},
                "fileUrl": {"type": "string"},
                "folder": {"type": "string"}
            }
        },
        "model.CatalogEntryInput": {
            "type": "object",
            "properties": {
                "createdAt": {"type": "string"},
                "fileUrl": {"type": "string"},
                "folder": {"type": "string"},
                "objectKey": {"type": "string"}
            }
        },
        "model.CredentialRequest": {
            "type": "object",
            "properties": {
                "contentType": {"type": "string"},
                "filename": {"type": "string"},
                "folder": {"type": "string"}
            }
        },
        "model.UploadCredential": {
            "type": "object",
            "properties": {
                "expiresAt": {"type": "string"},
                "objectKey": {"type": "string"},
                "uploadUrl": {"type": "string"}
            }
        },
        "service.CatalogListResult": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/model.CatalogEntry"}}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "name": "X-API-Key", "in": "header"},
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Gallery API",
	Description:      "Direct-upload authorization and image catalog.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
