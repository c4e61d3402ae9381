// Package core provides the document rules and shared domain types of the
// distributor registration service.
//
// The package is independent of any transport or UI. The wizard, the HTTP
// layer and the operator CLI all use it unchanged.
//
// # Document Registry
//
// Each [DocumentTypeID] has a [DocumentConfig] describing its maximum size,
// accepted MIME types, label and whether it is required. The set of types is
// closed ([DocumentTypes]); rules are loaded from YAML:
//
//	documentos:
//	  dpi_frontal:
//	    label: DPI (frente)
//	    maxSizeBytes: 5242880
//	    acceptedMimeTypes: [image/jpeg, image/png]
//	    required: true
//
// # Validation
//
// [Registry.Validate] and [Registry.ValidateDocumentSet] never return Go
// errors. Every failure is a message in [ValidationResult.Errors]. Only
// [Registry.ConfigFor] reports [ErrUnknownDocumentType].
//
// # Previews
//
// [PreviewTable] hands out revocable references for staged images. The
// owner must release a reference when the file is replaced or the session
// ends; [PreviewTable.Live] exposes leaks to tests.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with [MapError]. See
// error_messages.go for the code reference.
package core
