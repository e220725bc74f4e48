package format

import "errors"

var (
	// ErrTruncated indicates the buffer lacked the bytes required for a header.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrBadTag indicates the tag byte did not match BlockTag.
	ErrBadTag = errors.New("format: bad block tag")
	// ErrBadFlags indicates unknown flag bits were set.
	ErrBadFlags = errors.New("format: unknown flag bits")
)
