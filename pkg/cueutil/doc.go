// SPDX-License-Identifier: MPL-2.0

// Package cueutil parses CUE documents against embedded schemas.
//
// Build files, repository module descriptors and the user configuration all
// follow the same flow:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify it with the schema definition
//  3. Validate and decode into a Go struct
//
// # Usage
//
//	//go:embed build_schema.cue
//	var schemaBytes []byte
//
//	file, err := cueutil.Decode[File](schemaBytes, data, "#Build", cueutil.WithFilename("kiln.cue"))
//	if err != nil {
//	    return nil, err // a *DocumentError naming the offending fields
//	}
//	return file, nil
package cueutil
