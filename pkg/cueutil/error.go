// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// ErrTooLarge is the sentinel wrapped by TooLargeError.
var ErrTooLarge = errors.New("document too large")

type (
	// FieldError is one problem found in a document. Path is empty for
	// problems that are not tied to a field, such as syntax errors.
	FieldError struct {
		// Path is written as dependencies[0].scopes.
		Path    string
		Message string
	}

	// DocumentError reports every problem CUE found in one document.
	DocumentError struct {
		File   string
		Fields []FieldError
	}

	// TooLargeError rejects a document before it is compiled.
	TooLargeError struct {
		File  string
		Size  int64
		Limit int64
	}
)

func (e *DocumentError) Error() string {
	lines := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		if f.Path == "" {
			lines[i] = f.Message
		} else {
			lines[i] = f.Path + ": " + f.Message
		}
	}
	if len(lines) == 1 {
		return e.File + ": " + lines[0]
	}
	return fmt.Sprintf("%s: %d problems:\n  %s", e.File, len(lines), strings.Join(lines, "\n  "))
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("%s: %d bytes exceeds the %d byte limit", e.File, e.Size, e.Limit)
}

func (e *TooLargeError) Unwrap() error { return ErrTooLarge }

// newDocumentError collects the CUE errors in err under file. Errors that
// do not come from CUE are only prefixed with the file name.
func newDocumentError(err error, file string) error {
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return fmt.Errorf("%s: %w", file, err)
	}
	doc := &DocumentError{File: file}
	for _, e := range list {
		path := fieldPath(cueerrors.Path(e))
		msg := e.Error()
		// CUE repeats the path at the start of some messages.
		if rest, ok := strings.CutPrefix(msg, path); ok && path != "" {
			msg = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
		}
		doc.Fields = append(doc.Fields, FieldError{Path: path, Message: msg})
	}
	return doc
}

// fieldPath renders ["dependencies", "0", "module"] as
// dependencies[0].module.
func fieldPath(selectors []string) string {
	var b strings.Builder
	for i, sel := range selectors {
		if _, err := strconv.ParseUint(sel, 10, 64); err == nil && i > 0 {
			b.WriteString("[" + sel + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(sel)
	}
	return b.String()
}
