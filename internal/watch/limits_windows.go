// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import "syscall"

// Win32 codes for a directory handle kiln can no longer read changes from:
// too many open files, invalid handle (directory removed or unmounted) and
// not enough memory for the change buffer.
var exhaustionErrnos = []syscall.Errno{4, 6, 8}

const exhaustionHint = "close programs holding directory handles, or watch fewer projects"
