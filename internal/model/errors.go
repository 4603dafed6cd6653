package model

import "fmt"

// PathNotFoundError reports a path whose section, entry or leaf does not
// exist in the model. Segment names the first missing level.
type PathNotFoundError struct {
	Path    Path
	Segment string
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("path %q: segment %q not found", e.Path, e.Segment)
}

// TypeMismatchError reports an attempt to read or write the numeric value
// of a field that holds free text instead of a number.
type TypeMismatchError struct {
	Path Path
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("path %q: field is not numeric", e.Path)
}
