// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import "syscall"

// inotify runs out of watches or descriptors long before a large workspace
// runs out of build files.
var exhaustionErrnos = []syscall.Errno{syscall.ENOSPC, syscall.EMFILE, syscall.ENFILE}

const exhaustionHint = "raise fs.inotify.max_user_watches or the open file limit, or watch fewer projects"
