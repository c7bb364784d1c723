// Package docs registers the admin API swagger spec. Regenerate with
// `swag init -g internal/app/app.go`.
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
        "/healthz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Liveness / readiness",
                "responses": {
                    "200": {"description": "OK"},
                    "503": {"description": "Service Unavailable"}
                }
            }
        },
        "/admin/login": {
            "post": {
                "description": "Проверяет логин/пароль из конфига и возвращает JWT",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Вход в admin API",
                "parameters": [
                    {
                        "description": "Данные для входа",
                        "name": "login",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/models.LoginRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/api/users/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Пользователь бота по Telegram id",
                "parameters": [
                    {"type": "integer", "description": "Telegram user id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.User"}},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/api/users/{id}/deals": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Сделки пользователя (создатель или участник), новые первыми",
                "parameters": [
                    {"type": "integer", "description": "Telegram user id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Deal"}}}
                }
            }
        },
        "/api/users/{id}/ban": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Users"],
                "summary": "Заблокировать пользователя",
                "parameters": [
                    {"type": "integer", "description": "Telegram user id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {"204": {"description": "No Content"}}
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Users"],
                "summary": "Разблокировать пользователя",
                "parameters": [
                    {"type": "integer", "description": "Telegram user id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/api/deals/{code}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Deals"],
                "summary": "Сделка по коду",
                "parameters": [
                    {"type": "string", "description": "Код сделки", "name": "code", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Deal"}},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/api/deals/{code}/receipt": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/pdf"],
                "tags": ["Deals"],
                "summary": "PDF-квитанция по сделке",
                "parameters": [
                    {"type": "string", "description": "Код сделки", "name": "code", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/integrations/telegram/webhook": {
            "post": {
                "consumes": ["application/json"],
                "tags": ["Integrations"],
                "summary": "Telegram webhook",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized"}
                }
            }
        }
    },
    "definitions": {
        "models.LoginRequest": {
            "type": "object",
            "required": ["password", "username"],
            "properties": {
                "password": {"type": "string"},
                "username": {"type": "string"}
            }
        },
        "models.User": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "username": {"type": "string"},
                "first_name": {"type": "string"},
                "last_name": {"type": "string"},
                "is_verified": {"type": "boolean"},
                "verified_at": {"type": "string"},
                "deals_count": {"type": "integer"},
                "successful_deals": {"type": "integer"},
                "rating": {"type": "number"},
                "is_banned": {"type": "boolean"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "models.Deal": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "deal_code": {"type": "string"},
                "creator_id": {"type": "integer"},
                "participant_id": {"type": "integer"},
                "creator_role": {"type": "string", "enum": ["buyer", "seller"]},
                "amount_usd": {"type": "number"},
                "deal_conditions": {"type": "string"},
                "status": {"type": "string", "enum": ["created", "joined", "payment_pending", "completed", "cancelled", "disputed"]},
                "payment_method": {"type": "string", "enum": ["TRC20", "TON"]},
                "payment_proof": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"},
                "completed_at": {"type": "string"},
                "expires_at": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "OZER GARANT admin API",
	Description:      "Read access to bot users and deals, PDF receipts, Telegram webhook.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
