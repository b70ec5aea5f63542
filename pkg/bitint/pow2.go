// SPDX-License-Identifier: MIT

/*
Package bitint holds the power-of-two helpers used to size analysis windows.

Both functions are O(1), allocation free and safe to call from the audio
callback, although in practice they only run while a stream is configured.

	size := bitint.NextPowerOfTwo(1000) // 1024
	ok := bitint.IsPowerOfTwo(size)     // true

NextPowerOfTwo subtracts one before taking the bit length so that exact powers
of two map to themselves: for 8 (0b1000), 8-1 = 7 has bit length 3 and 1<<3 is
8 again. Without the subtraction the result would double to 16.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size. Zero and negative
// sizes return 1.
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two. A power of two has
// a single bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
