package simulator

import "errors"

// ErrInvalidInput marks malformed simulation input (empty prices, mismatched
// signal alignment, out-of-range parameters). Callers surface it instead of
// skipping the symbol.
var ErrInvalidInput = errors.New("invalid simulation input")
