// SPDX-License-Identifier: MPL-2.0

// Package issue describes the failures kiln reports to the user. An
// ActionableError says which step failed and how to fix it; an Issue holds
// the Markdown guide printed below it.
package issue
