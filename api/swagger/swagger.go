package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Timetable API",
        "description": "Greedy course timetable generation over faculty, classroom and cohort constraints.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "in": "header", "name": "Authorization"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Timetable", "description": "Generation, listing and export of the weekly timetable"},
        {"name": "System", "description": "Probes and metrics, served outside the API prefix"}
    ],
    "paths": {
        "/timetables/generate": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Generate a new timetable",
                "description": "Replaces the stored timetable with a new generation. With async=true the run is queued.",
                "parameters": [
                    {"name": "async", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "Generated", "schema": {"$ref": "#/definitions/GenerateEnvelope"}},
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "A generation is already running", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "No schedulable courses", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/jobs/{id}": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Get the state of a queued generation",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown job", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables": {
            "get": {
                "tags": ["Timetable"],
                "summary": "List timetable entries",
                "parameters": [
                    {"name": "generation", "in": "query", "type": "integer"},
                    {"name": "department", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Timetable"],
                "summary": "Delete every timetable entry",
                "responses": {
                    "200": {"description": "Cleared", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "A generation is running", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/groups": {
            "get": {
                "tags": ["Timetable"],
                "summary": "List entries grouped by department and semester",
                "parameters": [
                    {"name": "generation", "in": "query", "type": "integer"},
                    {"name": "department", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/conflicts": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Check a generation for double bookings",
                "parameters": [
                    {"name": "generation", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/generations": {
            "get": {
                "tags": ["Timetable"],
                "summary": "List generation history, newest first",
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/export": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Download the timetable as CSV or PDF",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "generation", "in": "query", "type": "integer"},
                    {"name": "department", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "integer"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}}
                }
            }
        }
    },
    "definitions": {
        "Outcome": {
            "type": "object",
            "properties": {
                "courseId": {"type": "string"},
                "status": {"type": "string", "enum": ["PLACED", "NO_FACULTY", "NO_AVAILABILITY", "NO_FEASIBLE_SLOT"]}
            }
        },
        "GenerateTimetableResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "generation": {"type": "integer"},
                "placed": {"type": "integer"},
                "dropped": {"type": "integer"},
                "moved": {"type": "integer"},
                "outcomes": {"type": "array", "items": {"$ref": "#/definitions/Outcome"}},
                "duration": {"type": "string"}
            }
        },
        "TimetableEntry": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "generation": {"type": "integer"},
                "seq": {"type": "integer"},
                "course_id": {"type": "string"},
                "faculty_id": {"type": "string"},
                "classroom_id": {"type": "string"},
                "day": {"type": "string"},
                "start_hour": {"type": "integer"},
                "end_hour": {"type": "integer"},
                "department": {"type": "string"},
                "semester": {"type": "integer"}
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
                "meta": {"type": "object"}
            }
        },
        "GenerateEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/GenerateTimetableResponse"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
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
