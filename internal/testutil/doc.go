// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include file operations (MustMkdirAll, MustWriteFile) and
// fixtures for the local repository layout (PublishModule).
package testutil
