package fo76dm

import "context"

// Fuzz is the legacy go-fuzz entrypoint over the group/record walker:
// any input, however malformed, must come back as a recoverable error
// or a (possibly empty) Record set, never a panic.
func Fuzz(data []byte) int {
	f := NewBytes(data, nil)
	if err := f.Parse(context.Background()); err != nil {
		return 0
	}
	return 1
}
