package normalize

import stderrors "errors"

var (
	errMissing    = stderrors.New("missing")
	errNotNumeric = stderrors.New("not numeric")
	errNegative   = stderrors.New("negative")
	errOutOfRange = stderrors.New("out of range")
)
