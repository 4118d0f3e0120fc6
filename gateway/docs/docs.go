// Package docs holds the swagger document served at /swagger/index.html.
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
        "/api/sessions": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["agent"],
                "summary": "Open the order for a new conversation",
                "parameters": [
                    {"description": "Session", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/gateway.startSessionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Order"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/gateway.errorResponse"}}
                }
            }
        },
        "/api/sessions/{id}/order": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["agent"],
                "summary": "Replace the order content with the agent's current state",
                "parameters": [
                    {"type": "string", "description": "Session ID", "name": "id", "in": "path", "required": true},
                    {"description": "Full order state", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/gateway.orderStateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Order"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/gateway.errorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/gateway.errorResponse"}}
                }
            }
        },
        "/api/order": {
            "post": {
                "description": "Without sessionId the update goes to the most recent in-progress order, or a new one. A sessionId that is not on the board is rejected with 404.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["agent"],
                "summary": "Accept an order update from an agent that does not track sessions",
                "parameters": [
                    {"description": "Full order state", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/gateway.orderStateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/gateway.receiveOrderResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/gateway.errorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/gateway.errorResponse"}}
                }
            }
        },
        "/api/orders": {
            "get": {
                "produces": ["application/json"],
                "tags": ["kitchen"],
                "summary": "Active orders, oldest first",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Order"}}}
                }
            }
        },
        "/api/orders/latest": {
            "get": {
                "produces": ["application/json"],
                "tags": ["kitchen"],
                "summary": "Most recently updated order",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Order"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/gateway.errorResponse"}}
                }
            }
        },
        "/api/orders/stream": {
            "get": {
                "description": "Same events as /ws/kitchen. The SSE event name is the event type and the id is its seq.",
                "produces": ["text/event-stream"],
                "tags": ["kitchen"],
                "summary": "Kitchen display feed over Server-Sent Events",
                "responses": {}
            }
        },
        "/api/orders/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["kitchen"],
                "summary": "Get one order",
                "parameters": [
                    {"type": "string", "description": "Session ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Order"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/gateway.errorResponse"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["kitchen"],
                "summary": "Remove an order from the board, undoable for a short window",
                "parameters": [
                    {"type": "string", "description": "Session ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/gateway.deleteResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/gateway.errorResponse"}}
                }
            }
        },
        "/api/orders/{id}/status": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["kitchen"],
                "summary": "Move an order to another kitchen status",
                "parameters": [
                    {"type": "string", "description": "Session ID", "name": "id", "in": "path", "required": true},
                    {"description": "New status", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/gateway.kitchenStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Order"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/gateway.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/gateway.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/gateway.errorResponse"}}
                }
            }
        },
        "/api/orders/{id}/undo": {
            "post": {
                "produces": ["application/json"],
                "tags": ["kitchen"],
                "summary": "Restore an order deleted within the undo window",
                "parameters": [
                    {"type": "string", "description": "Session ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Order"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/gateway.errorResponse"}}
                }
            }
        },
        "/api/orders/{id}/history": {
            "get": {
                "produces": ["application/json"],
                "tags": ["history"],
                "summary": "Archived records of a session",
                "parameters": [
                    {"type": "string", "description": "Session ID", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "default": 20, "description": "Max records", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Order"}}}
                }
            }
        },
        "/api/orders/{id}/audit": {
            "get": {
                "produces": ["application/json"],
                "tags": ["history"],
                "summary": "Lifecycle log of a session",
                "parameters": [
                    {"type": "string", "description": "Session ID", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "default": 20, "description": "Max entries", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/repository.AuditLog"}}}
                }
            }
        },
        "/ws/kitchen": {
            "get": {
                "description": "Sends orders:init first, then order:new, order:update and order:delete as JSON text frames.\nAccepts {\"type\":\"status\"|\"delete\"|\"undo\",\"sessionId\":\"...\",\"kitchenStatus\":\"...\"}.",
                "tags": ["kitchen"],
                "summary": "Kitchen display feed",
                "responses": {}
            }
        }
    },
    "definitions": {
        "gateway.deleteResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "orderNumber": {"type": "integer"},
                "undoWindowMs": {"type": "integer"}
            }
        },
        "gateway.errorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
            }
        },
        "gateway.kitchenStatusRequest": {
            "type": "object",
            "required": ["kitchenStatus"],
            "properties": {
                "kitchenStatus": {"type": "string", "enum": ["waiting", "preparing", "ready", "completed"]}
            }
        },
        "gateway.lineItemRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "quantity": {"type": "integer"},
                "price": {"type": "number"},
                "unitPrice": {"type": "number"},
                "size": {"type": "string"},
                "modifiers": {"type": "array", "items": {"type": "string"}}
            }
        },
        "gateway.orderStateRequest": {
            "type": "object",
            "properties": {
                "sessionId": {"type": "string"},
                "items": {"type": "array", "items": {"$ref": "#/definitions/gateway.lineItemRequest"}},
                "total": {"type": "number"},
                "status": {"type": "string", "enum": ["in_progress", "complete"]}
            }
        },
        "gateway.receiveOrderResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "order_id": {"type": "integer"},
                "order": {"$ref": "#/definitions/models.Order"}
            }
        },
        "gateway.startSessionRequest": {
            "type": "object",
            "required": ["sessionId"],
            "properties": {
                "sessionId": {"type": "string"}
            }
        },
        "models.LineItem": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "quantity": {"type": "integer"},
                "unitPrice": {"type": "number"},
                "size": {"type": "string"},
                "modifiers": {"type": "array", "items": {"type": "string"}}
            }
        },
        "models.Order": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "orderNumber": {"type": "integer"},
                "items": {"type": "array", "items": {"$ref": "#/definitions/models.LineItem"}},
                "total": {"type": "number"},
                "conversationStatus": {"type": "string", "enum": ["in_progress", "complete"]},
                "kitchenStatus": {"type": "string", "enum": ["waiting", "preparing", "ready", "completed"]},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"},
                "completedAt": {"type": "string"},
                "kitchenCompletedAt": {"type": "string"}
            }
        },
        "repository.AuditLog": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "service": {"type": "string"},
                "action": {"type": "string"},
                "entityId": {"type": "string"},
                "seq": {"type": "integer"},
                "data": {"type": "object"},
                "createdAt": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Drive-thru kiosk API",
	Description:      "Order board for the drive-thru voice kiosk: agent callbacks, kitchen display commands and live feeds.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
