package errs

import "fmt"

// Error is a coded engine error. Code ranges:
//
//	1-199     generic (files, json, buckets, allocation)
//	200-299   sprite and tileset data
//	300-499   entities
//	500-599   executor
//	600-699   level data
//	700-799   path sandbox
//	800-899   input
//	2000+     scripting
type Error struct {
	Code        int
	Description string
	Details     string
}

func New(code int, description string) *Error {
	return &Error{Code: code, Description: description}
}

func (e *Error) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("error #%d: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("error #%d: %s (%s)", e.Code, e.Description, e.Details)
}

// Is matches any error carrying the same code, so detailed copies still
// compare equal to their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Detailed returns a copy of base with formatted details attached.
func Detailed(base *Error, format string, args ...any) *Error {
	return &Error{
		Code:        base.Code,
		Description: base.Description,
		Details:     fmt.Sprintf(format, args...),
	}
}

// Generic errors shared across subsystems.
var (
	CannotOpenFile      = New(1, "File could not be opened")
	IncompleteFileRead  = New(2, "Did not get all the bytes expected from a read")
	InvalidJson         = New(10, "Json is not well-formed")
	BadAlloc            = New(20, "Memory pool is exhausted")
	BucketFull          = New(40, "Bucket is full and cannot hold any more")
	BucketIllegalRemove = New(41, "Attempt to remove element from bucket that cannot be removed")
	Unknown             = New(99, "Unknown error")
)
