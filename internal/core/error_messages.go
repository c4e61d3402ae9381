// Package core provides the document rules and shared domain types of the
// distributor registration service.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support
// reference. When users encounter errors, they can quote the error code to
// support staff for faster diagnosis.
//
// # Document Errors (DOC001-DOC099)
//
//	DOC001 - Unknown document type: The document type is not configured
//	         Action: Reload the registration page; contact support if it persists
//	         Patterns: "unknown document type"
//
//	DOC002 - File too large: The file exceeds the upload limit
//	         Action: Reduce the file size or scan at a lower resolution
//	         Patterns: "file too large", "request body too large"
//
//	DOC003 - No file: No file was selected
//	         Action: Select a file to upload
//	         Patterns: "no file provided"
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session not found: The registration session expired or never existed
//	         Action: Start the registration again
//	         Patterns: "session not found", "session closed"
//
//	SES002 - Too many sessions: The server is handling too many registrations
//	         Action: Please try again in a few minutes
//	         Patterns: "too many sessions"
//
// # Wizard Errors (WIZ001-WIZ099)
//
//	WIZ001 - Submission in progress: The registration is already being sent
//	         Action: Wait for the current submission to finish
//	         Patterns: "submission already in progress"
//
//	WIZ002 - Invalid step: The action is not available on the current step
//	         Action: Return to the current step and try again
//	         Patterns: "invalid wizard transition", "not at the review step"
//
//	WIZ003 - Reference limit: References must stay between 3 and 5
//	         Action: Edit an existing reference instead
//	         Patterns: "reference limit"
//
//	WIZ004 - Unknown field: The submitted field does not exist
//	         Action: Reload the registration page
//	         Patterns: "unknown field"
//
// # Submission Errors (SUB001-SUB099)
//
//	SUB001 - Transport failure: The registration service rejected or did not answer the request
//	         Action: Please try again
//	         Patterns: "graphql transport"
//
//	SUB002 - System busy: Too many submissions in progress
//	         Action: Please wait a moment and try again
//	         Patterns: "too many concurrent submissions"
//
//	SUB003 - Request cancelled / timeout
//	         Action: Please try again
//	         Patterns: "context canceled", "context deadline exceeded"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//	          Patterns: "rate limit"
//
// # Request Errors (REQ001)
//
//	REQ001 - Malformed request: A JSON body could not be decoded
//	         Patterns: "invalid request body"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Support staff should check the
// application logs for the original technical error.
//
// # Pattern Matching
//
// Patterns are matched case-insensitively using strings.Contains; the first
// matching pattern wins, so more specific patterns come first.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Document Errors (DOC001-DOC003)
	// =========================================================================
	{
		pattern: "unknown document type",
		msg: UserMessage{
			Message: "El tipo de documento no está configurado",
			Action:  "Recargue la página de registro; si persiste, contacte a soporte",
			Code:    "DOC001",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "El archivo excede el límite de carga",
			Action:  "Reduzca el tamaño del archivo o escanee con menor resolución",
			Code:    "DOC002",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "El archivo excede el límite de carga",
			Action:  "Reduzca el tamaño del archivo o escanee con menor resolución",
			Code:    "DOC002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No se seleccionó ningún archivo",
			Action:  "Seleccione un archivo para cargar",
			Code:    "DOC003",
		},
	},

	// =========================================================================
	// Session Errors (SES001-SES002)
	// =========================================================================
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "La sesión de registro expiró o no existe",
			Action:  "Inicie el registro nuevamente",
			Code:    "SES001",
		},
	},
	{
		pattern: "session closed",
		msg: UserMessage{
			Message: "La sesión de registro expiró o no existe",
			Action:  "Inicie el registro nuevamente",
			Code:    "SES001",
		},
	},
	{
		pattern: "too many sessions",
		msg: UserMessage{
			Message: "El servidor está atendiendo demasiados registros",
			Action:  "Intente nuevamente en unos minutos",
			Code:    "SES002",
		},
	},

	// =========================================================================
	// Wizard Errors (WIZ001-WIZ004)
	// =========================================================================
	{
		pattern: "submission already in progress",
		msg: UserMessage{
			Message: "El registro ya se está enviando",
			Action:  "Espere a que termine el envío actual",
			Code:    "WIZ001",
		},
	},
	{
		pattern: "invalid wizard transition",
		msg: UserMessage{
			Message: "La acción no está disponible en este paso",
			Action:  "Regrese al paso actual e intente de nuevo",
			Code:    "WIZ002",
		},
	},
	{
		pattern: "not at the review step",
		msg: UserMessage{
			Message: "La acción no está disponible en este paso",
			Action:  "Complete los pasos anteriores antes de finalizar",
			Code:    "WIZ002",
		},
	},
	{
		pattern: "reference limit",
		msg: UserMessage{
			Message: "Debe registrar entre 3 y 5 referencias",
			Action:  "Edite una referencia existente",
			Code:    "WIZ003",
		},
	},
	{
		pattern: "unknown field",
		msg: UserMessage{
			Message: "El campo enviado no existe",
			Action:  "Recargue la página de registro",
			Code:    "WIZ004",
		},
	},

	// =========================================================================
	// Submission Errors (SUB001-SUB003)
	// =========================================================================
	{
		pattern: "graphql transport",
		msg: UserMessage{
			Message: "No se pudo completar el registro",
			Action:  "Intente nuevamente",
			Code:    "SUB001",
		},
	},
	{
		pattern: "too many concurrent submissions",
		msg: UserMessage{
			Message: "El sistema está procesando otros registros",
			Action:  "Espere un momento e intente de nuevo",
			Code:    "SUB002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "La solicitud fue cancelada",
			Action:  "Intente nuevamente",
			Code:    "SUB003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "La solicitud tardó demasiado",
			Action:  "Verifique su conexión e intente nuevamente",
			Code:    "SUB003",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Demasiadas solicitudes",
			Action:  "Espere un momento antes de intentar de nuevo",
			Code:    "RATE001",
		},
	},

	// =========================================================================
	// Request Errors (REQ001)
	// =========================================================================
	{
		pattern: "invalid request body",
		msg: UserMessage{
			Message: "La solicitud no tiene el formato esperado",
			Action:  "Revise los datos enviados",
			Code:    "REQ001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "Ocurrió un error inesperado",
	Action:  "Intente nuevamente o contacte a soporte",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first matching pattern (case-insensitive), or the generic
// ERR000 message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
