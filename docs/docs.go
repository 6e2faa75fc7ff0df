// Package docs holds the OpenAPI description of the HTTP API, registered with
// swag so the Swagger UI can serve it at /swagger/doc.json.
//
// Regenerate with: swag init -g cmd/replymode/main.go -o docs
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
        "/v1/replies": {
            "post": {
                "description": "Accepts a JSON message, or raw voice-note bytes with the message fields in headers.\nVoice notes are transcribed, the session's TTS rules decide between audio and text,\nand the reply parts are returned (and forwarded to reply_to when set).",
                "consumes": ["application/json", "audio/ogg", "audio/mpeg"],
                "produces": ["application/json"],
                "tags": ["replies"],
                "summary": "Build the reply for a customer message",
                "parameters": [
                    {
                        "description": "Message (JSON). For raw audio, POST the bytes with the audio Content-Type.",
                        "name": "message",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/message.Message"}
                    },
                    {"type": "string", "description": "Session id (raw audio uploads)", "name": "X-Replymode-Session", "in": "header"},
                    {"type": "string", "description": "Customer address (raw audio uploads)", "name": "X-Replymode-Remote-Jid", "in": "header"},
                    {"type": "string", "description": "Assistant reply, URL-encoded (raw audio uploads)", "name": "X-Replymode-Response-Text", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "Reply parts", "schema": {"$ref": "#/definitions/message.Reply"}},
                    "400": {"description": "Invalid request body or headers", "schema": {"type": "string"}},
                    "413": {"description": "Audio larger than 25 MiB", "schema": {"type": "string"}},
                    "500": {"description": "Internal processing error", "schema": {"type": "string"}}
                }
            }
        },
        "/v1/decisions": {
            "post": {
                "description": "Returns whether the reply should be audio and the rule that decided.\nA contact id enables start/stop phrase handling and updates the contact's voice mode.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["decisions"],
                "summary": "Evaluate TTS rules",
                "parameters": [
                    {
                        "description": "Decision input",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/message.DecisionRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "Decision", "schema": {"$ref": "#/definitions/message.DecisionResponse"}},
                    "400": {"description": "Invalid request", "schema": {"type": "string"}}
                }
            }
        },
        "/v1/sessions/{id}/config": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Get a session's TTS configuration",
                "parameters": [
                    {"type": "string", "description": "Session id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Configuration", "schema": {"$ref": "#/definitions/session.Config"}}
                }
            },
            "put": {
                "description": "Fields left out of the body keep their current value.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Update a session's TTS configuration",
                "parameters": [
                    {"type": "string", "description": "Session id", "name": "id", "in": "path", "required": true},
                    {
                        "description": "Partial configuration",
                        "name": "update",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/session.Update"}
                    }
                ],
                "responses": {
                    "200": {"description": "Updated configuration", "schema": {"$ref": "#/definitions/session.Config"}},
                    "400": {"description": "Invalid request", "schema": {"type": "string"}}
                }
            }
        },
        "/v1/contacts/{id}/audio-mode": {
            "get": {
                "produces": ["application/json"],
                "tags": ["contacts"],
                "summary": "Get a contact's voice mode",
                "parameters": [
                    {"type": "string", "description": "Contact id (sessionId:remoteJid)", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Voice mode", "schema": {"$ref": "#/definitions/message.AudioModeState"}},
                    "500": {"description": "Mode store unavailable", "schema": {"type": "string"}}
                }
            }
        }
    },
    "definitions": {
        "message.AudioModeState": {
            "type": "object",
            "properties": {
                "contact_id": {"type": "string"},
                "enabled": {"type": "boolean"}
            }
        },
        "message.DecisionRequest": {
            "type": "object",
            "properties": {
                "contact_id": {"type": "string"},
                "incoming_type": {"type": "string", "enum": ["text", "audio"]},
                "last_user_message": {"type": "string"},
                "response_text": {"type": "string"},
                "rules": {"description": "TTS rule configuration: an object, a JSON-encoded string, or null.", "type": "object"}
            }
        },
        "message.DecisionResponse": {
            "type": "object",
            "properties": {
                "audio": {"type": "boolean"},
                "reason": {"type": "string"}
            }
        },
        "message.Message": {
            "type": "object",
            "properties": {
                "audio": {"description": "Raw voice note, base64 in JSON.", "type": "string"},
                "channel": {"type": "string", "enum": ["whatsapp", "instagram"]},
                "contact_id": {"type": "string"},
                "content_type": {"type": "string"},
                "id": {"type": "string"},
                "remote_jid": {"type": "string"},
                "reply_to": {"$ref": "#/definitions/message.Target"},
                "response_text": {"type": "string"},
                "session_id": {"type": "string"},
                "text": {"type": "string"},
                "timestamp": {"type": "string"},
                "type": {"type": "string", "enum": ["text", "audio"]}
            }
        },
        "message.Part": {
            "type": "object",
            "properties": {
                "audio": {"type": "string"},
                "content_type": {"type": "string"},
                "kind": {"type": "string", "enum": ["text", "audio"]},
                "text": {"type": "string"}
            }
        },
        "message.Reply": {
            "type": "object",
            "properties": {
                "contact_id": {"type": "string"},
                "error": {"type": "string"},
                "local_time": {"type": "string"},
                "message_id": {"type": "string"},
                "mode": {"type": "string", "enum": ["text", "audio"]},
                "parts": {"type": "array", "items": {"$ref": "#/definitions/message.Part"}},
                "reason": {"type": "string"},
                "routed_to": {"type": "array", "items": {"type": "string"}},
                "transcript": {"type": "string"}
            }
        },
        "message.Target": {
            "type": "object",
            "properties": {
                "endpoint": {"type": "string"},
                "protocol": {"type": "string"},
                "service_name": {"type": "string"}
            }
        },
        "session.Config": {
            "type": "object",
            "properties": {
                "tts_enabled": {"type": "boolean"},
                "tts_rules": {"type": "object"},
                "tts_voice": {"type": "string"}
            }
        },
        "session.Update": {
            "type": "object",
            "properties": {
                "tts_enabled": {"type": "boolean"},
                "tts_rules": {"type": "object"},
                "tts_voice": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "replymode API",
	Description:      "Decides whether assistant replies are sent as audio or text and builds the reply parts.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
