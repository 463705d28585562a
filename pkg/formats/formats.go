// Package formats provides decoders for external 3D model file formats.
// Every decoder produces the same scene.Model tree; missing normals and
// tangents are derived during a final pass before the model is returned.
package formats

import "errors"

// Decode errors shared across formats. All of them are fatal: a failed load
// never returns a partial model.
var (
	ErrMalformedContainer = errors.New("malformed container")
	ErrInvalidReference   = errors.New("invalid reference")
	ErrSchemaViolation    = errors.New("schema violation")
	ErrUnknownChunk       = errors.New("unrecognized chunk")
	ErrMalformedChunk     = errors.New("malformed chunk")
	ErrUnknownDirective   = errors.New("unrecognized directive")
	ErrUnsupported        = errors.New("unsupported feature")
)
