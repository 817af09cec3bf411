package errors

// Convenience constructors, one per ERR kind, mirroring the shape callers
// reach for most often: a formatted message plus an optional wrapped cause
// as the trailing argument.

func NewInvalidArgumentError(message string, params ...interface{}) *Error {
	return New(ERR_INVALID_ARGUMENT, message, params...)
}

func NewNotFoundError(message string, params ...interface{}) *Error {
	return New(ERR_NOT_FOUND, message, params...)
}

func NewProcessingError(message string, params ...interface{}) *Error {
	return New(ERR_PROCESSING, message, params...)
}

func NewMalformedTxError(message string, params ...interface{}) *Error {
	return New(ERR_MALFORMED_TX, message, params...)
}

func NewDoubleSpendInTxError(message string, params ...interface{}) *Error {
	return New(ERR_DOUBLE_SPEND_IN_TX, message, params...)
}

func NewMissingInputError(message string, params ...interface{}) *Error {
	return New(ERR_MISSING_INPUT, message, params...)
}

func NewImmatureCoinbaseError(message string, params ...interface{}) *Error {
	return New(ERR_IMMATURE_COINBASE, message, params...)
}

func NewBadSignatureError(message string, params ...interface{}) *Error {
	return New(ERR_BAD_SIGNATURE, message, params...)
}

func NewOverspendError(message string, params ...interface{}) *Error {
	return New(ERR_OVERSPEND, message, params...)
}

func NewFeeTooLowError(message string, params ...interface{}) *Error {
	return New(ERR_FEE_TOO_LOW, message, params...)
}

func NewBadPoWError(message string, params ...interface{}) *Error {
	return New(ERR_BAD_POW, message, params...)
}

func NewBadTimestampError(message string, params ...interface{}) *Error {
	return New(ERR_BAD_TIMESTAMP, message, params...)
}

func NewBadDifficultyError(message string, params ...interface{}) *Error {
	return New(ERR_BAD_DIFFICULTY, message, params...)
}

func NewUnknownParentError(message string, params ...interface{}) *Error {
	return New(ERR_UNKNOWN_PARENT, message, params...)
}

func NewBadMerkleRootError(message string, params ...interface{}) *Error {
	return New(ERR_BAD_MERKLE_ROOT, message, params...)
}

func NewBadCoinbaseError(message string, params ...interface{}) *Error {
	return New(ERR_BAD_COINBASE, message, params...)
}

func NewDoubleSpendInBlockError(message string, params ...interface{}) *Error {
	return New(ERR_DOUBLE_SPEND_IN_BLOCK, message, params...)
}

func NewBlockTooLargeError(message string, params ...interface{}) *Error {
	return New(ERR_BLOCK_TOO_LARGE, message, params...)
}

func NewStorageError(message string, params ...interface{}) *Error {
	return New(ERR_STORAGE, message, params...)
}

func NewCorruptionError(message string, params ...interface{}) *Error {
	return New(ERR_CORRUPTION, message, params...)
}

func NewOrphanError(message string, params ...interface{}) *Error {
	return New(ERR_ORPHAN, message, params...)
}

func NewResourceExhaustedError(message string, params ...interface{}) *Error {
	return New(ERR_RESOURCE_EXHAUSTED, message, params...)
}
