package predict

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mpapenbr/qualipredict/pkg/model"
)

var (
	ErrMissingCircuit  = errors.New("missing circuit")
	ErrInvalidMLWeight = errors.New("mlWeight must be within [0,1]")
)

// Validate checks the input of callers that accept user supplied values.
// Compute itself accepts anything.
func Validate(circuit string, opts model.Options) error {
	if strings.TrimSpace(circuit) == "" {
		return ErrMissingCircuit
	}
	if w := opts.MLWeight; !(w >= 0 && w <= 1) {
		return fmt.Errorf("%w: got %v", ErrInvalidMLWeight, w)
	}
	return nil
}
