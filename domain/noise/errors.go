package noise

import "errors"

var (
	ErrUnknownGroup   = errors.New("unknown parameter group")
	ErrMissingPrior   = errors.New("parameter has no prior")
	ErrDuplicateParam = errors.New("duplicate parameter name")

	ErrEmptyObservations = errors.New("observation set is empty")
	ErrLengthMismatch    = errors.New("observation columns differ in length")
	ErrNonPositiveError  = errors.New("measurement uncertainty must be positive")
	ErrNonFinite         = errors.New("non-finite observation value")
	ErrUnknownModel      = errors.New("unknown outlier model")
	ErrUnknownThetaPrior = errors.New("unknown theta prior")
)
