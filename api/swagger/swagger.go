package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Batchpass API",
        "description": "Batch purchase, payment settlement and content entitlement for the learning portal.",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "in": "header", "name": "Authorization"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Orders", "description": "Checkout order issuing"},
        {"name": "Payments", "description": "Settlement, history and receipts"},
        {"name": "Entitlements", "description": "Access decisions and batch pages"},
        {"name": "Admin", "description": "Support tooling"}
    ],
    "paths": {
        "/orders": {
            "post": {
                "tags": ["Orders"],
                "summary": "Create a gateway order for a batch",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateOrderRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Batch not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already enrolled or batch not purchasable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Gateway refused the order", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Gateway unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments/verify": {
            "post": {
                "tags": ["Payments"],
                "summary": "Verify a gateway callback and activate the enrollment",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/VerifyPaymentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Verification failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Payment record not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Gateway payment already used", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Payment received, access pending", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments": {
            "get": {
                "tags": ["Payments"],
                "summary": "List own payments",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["pending", "success", "failed", "refunded"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments/export": {
            "get": {
                "tags": ["Payments"],
                "summary": "Download own payment history as CSV",
                "produces": ["text/csv"],
                "responses": {
                    "200": {"description": "CSV file"}
                }
            }
        },
        "/payments/{id}": {
            "get": {
                "tags": ["Payments"],
                "summary": "Get one own payment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments/{id}/receipt": {
            "get": {
                "tags": ["Payments"],
                "summary": "Get a signed receipt download link",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Payment not successful", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/receipts/{token}": {
            "get": {
                "tags": ["Payments"],
                "summary": "Download a receipt PDF by signed token",
                "security": [],
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF file"},
                    "403": {"description": "Link expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Receipt not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/entitlement": {
            "get": {
                "tags": ["Entitlements"],
                "summary": "Check access to a batch, subject or chapter",
                "parameters": [
                    {"name": "studentId", "in": "query", "type": "string", "description": "Staff only, defaults to the caller"},
                    {"name": "batchId", "in": "query", "required": true, "type": "string"},
                    {"name": "subjectId", "in": "query", "type": "string"},
                    {"name": "chapterId", "in": "query", "type": "string", "description": "Requires subjectId"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Resource not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/batches/{batchId}/content": {
            "get": {
                "tags": ["Entitlements"],
                "summary": "Batch page with chapter locks for the caller",
                "parameters": [
                    {"name": "batchId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/reconciliations": {
            "get": {
                "tags": ["Admin"],
                "summary": "List open reconciliation tickets",
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/catalog/{batchId}/cache": {
            "delete": {
                "tags": ["Admin"],
                "summary": "Drop the cached outline of a batch",
                "parameters": [
                    {"name": "batchId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Invalidated"}
                }
            }
        }
    },
    "definitions": {
        "BillingInfo": {
            "type": "object",
            "required": ["name", "email", "phone"],
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"}
            }
        },
        "CreateOrderRequest": {
            "type": "object",
            "required": ["batch_id", "billing"],
            "properties": {
                "batch_id": {"type": "string"},
                "billing": {"$ref": "#/definitions/BillingInfo"}
            }
        },
        "VerifyPaymentRequest": {
            "type": "object",
            "required": ["payment_record_id", "gateway_order_id", "gateway_payment_id", "gateway_signature"],
            "properties": {
                "payment_record_id": {"type": "string"},
                "gateway_order_id": {"type": "string"},
                "gateway_payment_id": {"type": "string"},
                "gateway_signature": {"type": "string", "description": "Hex HMAC-SHA256"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
