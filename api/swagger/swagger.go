package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Clinic Scheduler API",
        "description": "Provider availability, slot ranking, conflict-free booking and schedule optimization.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {
            "name": "Scheduling",
            "description": "Slot search and booking"
        },
        {
            "name": "Bookings",
            "description": "Booking lifecycle and agenda"
        },
        {
            "name": "Optimizer",
            "description": "Schedule optimization proposals"
        },
        {
            "name": "Availability",
            "description": "Provider working hours"
        }
    ],
    "paths": {
        "/optimal-slots": {
            "post": {
                "tags": [
                    "Scheduling"
                ],
                "summary": "Rank the best free slots for a provider",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Provider not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "429": {
                        "description": "Rate limited",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/OptimalSlotsRequest"
                        }
                    }
                ]
            }
        },
        "/schedule": {
            "post": {
                "tags": [
                    "Scheduling"
                ],
                "summary": "Book a slot",
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Provider not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Slot conflict",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "503": {
                        "description": "Provider lock timeout",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ScheduleRequest"
                        }
                    }
                ]
            }
        },
        "/optimize/{providerId}": {
            "post": {
                "tags": [
                    "Optimizer"
                ],
                "summary": "Generate an optimization proposal",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Provider not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "providerId",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Provider ID"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/optimize/{providerId}/proposals/{proposalId}": {
            "get": {
                "tags": [
                    "Optimizer"
                ],
                "summary": "Fetch a stored proposal",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Proposal not found or expired",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "providerId",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Provider ID"
                    },
                    {
                        "name": "proposalId",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Proposal ID"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/optimize/{providerId}/proposals/{proposalId}/apply": {
            "post": {
                "tags": [
                    "Optimizer"
                ],
                "summary": "Apply a stored proposal",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Proposal not found or expired",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Proposal already being applied",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "providerId",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Provider ID"
                    },
                    {
                        "name": "proposalId",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Proposal ID"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/bookings/{id}": {
            "get": {
                "tags": [
                    "Bookings"
                ],
                "summary": "Get a booking",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Booking not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Booking ID"
                    }
                ]
            }
        },
        "/bookings/{id}/cancel": {
            "post": {
                "tags": [
                    "Bookings"
                ],
                "summary": "Cancel a booking",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Booking not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Booking not scheduled",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Booking ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": false,
                        "schema": {
                            "$ref": "#/definitions/CancelRequest"
                        }
                    }
                ]
            }
        },
        "/bookings/{id}/complete": {
            "post": {
                "tags": [
                    "Bookings"
                ],
                "summary": "Mark a booking completed",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Booking not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Booking not scheduled",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Booking ID"
                    }
                ]
            }
        },
        "/bookings/{id}/reschedule": {
            "post": {
                "tags": [
                    "Bookings"
                ],
                "summary": "Move a booking to a new start",
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Slot conflict",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "503": {
                        "description": "Provider lock timeout",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Booking ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/RescheduleRequest"
                        }
                    }
                ]
            }
        },
        "/providers/{providerId}/bookings": {
            "get": {
                "tags": [
                    "Bookings"
                ],
                "summary": "List a provider's bookings",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "providerId",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Provider ID"
                    },
                    {
                        "name": "status",
                        "in": "query",
                        "type": "array",
                        "items": {
                            "type": "string"
                        },
                        "collectionFormat": "multi"
                    },
                    {
                        "name": "from",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "First date (YYYY-MM-DD)"
                    },
                    {
                        "name": "to",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "Last date (YYYY-MM-DD)"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "required": false,
                        "type": "integer",
                        "description": "Page"
                    },
                    {
                        "name": "pageSize",
                        "in": "query",
                        "required": false,
                        "type": "integer",
                        "description": "Page size"
                    },
                    {
                        "name": "sortOrder",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "asc or desc"
                    }
                ]
            }
        },
        "/providers/{providerId}/bookings/export": {
            "get": {
                "tags": [
                    "Bookings"
                ],
                "summary": "Export a provider agenda",
                "produces": [
                    "text/csv",
                    "application/pdf"
                ],
                "parameters": [
                    {
                        "name": "providerId",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Provider ID"
                    },
                    {
                        "name": "from",
                        "in": "query",
                        "required": true,
                        "type": "string",
                        "description": "First date (YYYY-MM-DD)"
                    },
                    {
                        "name": "to",
                        "in": "query",
                        "required": true,
                        "type": "string",
                        "description": "Last date (YYYY-MM-DD)"
                    },
                    {
                        "name": "format",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "csv (default) or pdf"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Agenda document",
                        "schema": {
                            "type": "file"
                        }
                    }
                }
            }
        },
        "/providers/{providerId}/availability": {
            "get": {
                "tags": [
                    "Availability"
                ],
                "summary": "Resolve open intervals",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "providerId",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Provider ID"
                    },
                    {
                        "name": "from",
                        "in": "query",
                        "required": true,
                        "type": "string",
                        "description": "First date (YYYY-MM-DD)"
                    },
                    {
                        "name": "to",
                        "in": "query",
                        "required": true,
                        "type": "string",
                        "description": "Last date (YYYY-MM-DD)"
                    }
                ]
            }
        },
        "/providers/{providerId}/availability/templates": {
            "put": {
                "tags": [
                    "Availability"
                ],
                "summary": "Replace the weekly template",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "providerId",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Provider ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ReplaceTemplatesRequest"
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/providers/{providerId}/availability/exceptions/{date}": {
            "put": {
                "tags": [
                    "Availability"
                ],
                "summary": "Override one date",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "providerId",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Provider ID"
                    },
                    {
                        "name": "date",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Date (YYYY-MM-DD)"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpsertExceptionRequest"
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        }
    },
    "definitions": {
        "Window": {
            "type": "object",
            "properties": {
                "start": {
                    "type": "string",
                    "format": "date-time"
                },
                "end": {
                    "type": "string",
                    "format": "date-time"
                }
            }
        },
        "OptimalSlotsRequest": {
            "type": "object",
            "required": [
                "providerId",
                "durationMinutes",
                "priority"
            ],
            "properties": {
                "providerId": {
                    "type": "string"
                },
                "durationMinutes": {
                    "type": "integer"
                },
                "priority": {
                    "type": "string",
                    "enum": [
                        "low",
                        "medium",
                        "high",
                        "urgent"
                    ]
                },
                "requiredEquipment": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "preferredWindows": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/Window"
                    }
                },
                "from": {
                    "type": "string",
                    "format": "date-time"
                }
            }
        },
        "ScheduleRequest": {
            "type": "object",
            "required": [
                "providerId",
                "requesterId",
                "startTime",
                "durationMinutes",
                "priority"
            ],
            "properties": {
                "providerId": {
                    "type": "string"
                },
                "requesterId": {
                    "type": "string"
                },
                "startTime": {
                    "type": "string",
                    "format": "date-time"
                },
                "durationMinutes": {
                    "type": "integer"
                },
                "priority": {
                    "type": "string",
                    "enum": [
                        "low",
                        "medium",
                        "high",
                        "urgent"
                    ]
                },
                "requiredEquipment": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "preferredWindows": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/Window"
                    }
                },
                "appointmentType": {
                    "type": "string"
                },
                "notes": {
                    "type": "string"
                }
            }
        },
        "RescheduleRequest": {
            "type": "object",
            "required": [
                "startTime"
            ],
            "properties": {
                "startTime": {
                    "type": "string",
                    "format": "date-time"
                },
                "reason": {
                    "type": "string"
                }
            }
        },
        "CancelRequest": {
            "type": "object",
            "properties": {
                "reason": {
                    "type": "string"
                }
            }
        },
        "TemplateDay": {
            "type": "object",
            "properties": {
                "dayOfWeek": {
                    "type": "integer"
                },
                "startTime": {
                    "type": "string",
                    "example": "09:00"
                },
                "endTime": {
                    "type": "string",
                    "example": "17:00"
                },
                "breakStart": {
                    "type": "string"
                },
                "breakEnd": {
                    "type": "string"
                },
                "isAvailable": {
                    "type": "boolean"
                },
                "maxBookingsPerDay": {
                    "type": "integer"
                }
            }
        },
        "ReplaceTemplatesRequest": {
            "type": "object",
            "properties": {
                "days": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/TemplateDay"
                    }
                }
            }
        },
        "UpsertExceptionRequest": {
            "type": "object",
            "properties": {
                "isAvailable": {
                    "type": "boolean"
                },
                "startTime": {
                    "type": "string"
                },
                "endTime": {
                    "type": "string"
                },
                "breakStart": {
                    "type": "string"
                },
                "breakEnd": {
                    "type": "string"
                },
                "maxBookingsPerDay": {
                    "type": "integer"
                },
                "reason": {
                    "type": "string"
                }
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {
                    "type": "integer"
                },
                "page_size": {
                    "type": "integer"
                },
                "total_count": {
                    "type": "integer"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "pagination": {
                    "$ref": "#/definitions/Pagination"
                },
                "meta": {
                    "type": "object"
                }
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
