//go:build !cuda || !cgo

package compute

// OpenDevice reports ErrNoDevice; build with -tags cuda and cgo for GPU support.
func OpenDevice() (Device, error) {
	return nil, ErrNoDevice
}
