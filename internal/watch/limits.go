// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"errors"
	"fmt"
	"slices"
	"syscall"
)

// ErrWatchExhausted is returned by Run when the operating system stops
// delivering events for the watched build files.
var ErrWatchExhausted = errors.New("watch: file notification resources exhausted")

// exhausted wraps err in ErrWatchExhausted when it is one of the
// platform's resource exhaustion errors, and returns nil otherwise.
func exhausted(err error) error {
	if !slices.ContainsFunc(exhaustionErrnos, func(e syscall.Errno) bool { return errors.Is(err, e) }) {
		return nil
	}
	return fmt.Errorf("%w (%s): %w", ErrWatchExhausted, exhaustionHint, err)
}
