package farm

import "errors"

var (
	// ErrValidation is returned when a mutator receives an empty required field or an unusable cycle.
	ErrValidation = errors.New("validation failed")
	// ErrImportParse is returned when an import payload is not an array of records.
	ErrImportParse = errors.New("import payload could not be parsed")
)
