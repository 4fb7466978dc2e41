// Package permission provides the bitmask representation of permissions and the
// immutable registry that maps permission codes to bit positions.
//
// A Registry is built once at process start, either from the compiled-in default
// catalog or from a YAML catalog file, and then passed explicitly to whatever needs
// it. Positions are append-only: once a code has been given a bit, that bit is never
// reused, because stored masks would silently change meaning.
//
// Example:
//
//	reg, err := permission.DefaultRegistry()
//	if err != nil {
//		return err
//	}
//	bit, ok := reg.Bit("org.settings")
//	if ok && mask.Has(bit) {
//		// granted
//	}
package permission
