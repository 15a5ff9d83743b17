// SPDX-License-Identifier: MPL-2.0

// Package coordinate provides module identities, artifact selections and the
// textual coordinate syntax used by build files and the CLI.
//
// Five shapes are accepted:
//
//	group:name
//	group:name:version
//	group:name:classifiers:version
//	group:name:classifiers:type:version
//	group:name:classifiers:type:
//
// The package also owns the version conflict policy, since both sides of a
// conflict are requests against one ModuleID.
package coordinate
