// Copyright 2026 The fo76dm Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package fo76dm

import "strconv"

// itoaPrefix builds a field-name prefix for the Nth repeated group of a
// decoded struct, e.g. itoaPrefix("effect", 2) -> "effect2".
func itoaPrefix(base string, n int) string {
	return base + strconv.Itoa(n)
}
