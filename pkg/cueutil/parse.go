// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Decode checks data against the definition named in schema (for example
// "#Build") and decodes the unified document into a new T. Schema
// violations come back as a *DocumentError.
func Decode[T any](schema, data []byte, definition string, opts ...Option) (*T, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	doc, err := unify(schema, data, definition, o)
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err := doc.Decode(out); err != nil {
		return nil, newDocumentError(err, o.filename)
	}
	return out, nil
}

func unify(schema, data []byte, definition string, o parseOptions) (cue.Value, error) {
	if size := int64(len(data)); size > o.maxFileSize {
		return cue.Value{}, &TooLargeError{File: o.filename, Size: size, Limit: o.maxFileSize}
	}

	ctx := cuecontext.New()
	def := ctx.CompileBytes(schema).LookupPath(cue.ParsePath(definition))
	if err := def.Err(); err != nil {
		// Schemas are embedded, so this is a kiln bug rather than bad input.
		return cue.Value{}, fmt.Errorf("schema definition %s: %w", definition, err)
	}

	user := ctx.CompileBytes(data, cue.Filename(o.filename))
	if err := user.Err(); err != nil {
		return cue.Value{}, newDocumentError(err, o.filename)
	}

	doc := def.Unify(user)
	if err := doc.Validate(cue.Concrete(o.concrete)); err != nil {
		return cue.Value{}, newDocumentError(err, o.filename)
	}
	return doc, nil
}
