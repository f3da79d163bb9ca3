package compose

import (
	"errors"
	"fmt"
)

// FileAttachmentError reports a local attachment that could not be read.
type FileAttachmentError struct {
	Path string
	Err  error
}

func (e *FileAttachmentError) Error() string {
	return fmt.Sprintf("attach file %s: %v", e.Path, e.Err)
}

func (e *FileAttachmentError) Unwrap() error {
	return e.Err
}

// IsFileAttachmentError checks if an error is a FileAttachmentError.
func IsFileAttachmentError(err error) bool {
	var fe *FileAttachmentError
	return errors.As(err, &fe)
}
