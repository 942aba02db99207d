// +build !cgo

package bgzf

import "github.com/pkg/errors"

// newParamCodec fails on non-cgo builds: the configurable strategy knob
// is only implemented by the zlibng-backed codec in writer_cgo.go.
func newParamCodec(level, strategy, memLevel int) (blockDeflater, error) {
	return nil, errors.New("bgzf: OpenWriteParams requires a cgo build")
}
