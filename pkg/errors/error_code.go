package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-199). Raised at construction time, never mid-run.
	ErrCodeInvalidConfiguration ErrorCode = 100
	ErrCodeInvalidLeverage      ErrorCode = 101
	ErrCodeInvalidCapital       ErrorCode = 102
	ErrCodeInvalidRate          ErrorCode = 103
	ErrCodeInvalidStopLevels    ErrorCode = 104
	ErrCodeEmptySizingSequence  ErrorCode = 105
	ErrCodeInvalidSession       ErrorCode = 106
	ErrCodeInvalidWindowSize    ErrorCode = 107
	ErrCodeUnknownSizingPolicy  ErrorCode = 108
	ErrCodeInvalidCadence       ErrorCode = 109

	// Data errors (200-299). Halt the run and report the offending index.
	ErrCodeMalformedBar    ErrorCode = 200
	ErrCodeNonMonotonicBar ErrorCode = 201
	ErrCodeDataReadFailed  ErrorCode = 202
	ErrCodeEmptyFeed       ErrorCode = 203

	// Signal errors (300-399). Signal sources are external and untrusted.
	ErrCodeSignalSourceFailed ErrorCode = 300
	ErrCodeUnknownSignalType  ErrorCode = 301

	// Sizing errors (400-499)
	ErrCodeSizingFailed ErrorCode = 400

	// Portfolio errors (500-599)
	ErrCodeMissingPrice     ErrorCode = 500
	ErrCodeRebalanceFailed  ErrorCode = 501
	ErrCodeInvalidWeightMap ErrorCode = 502

	// Engine/run errors (600-699)
	ErrCodeRunNotInitialized ErrorCode = 600
	ErrCodeNoSignalSource    ErrorCode = 601
	ErrCodeNoFeed            ErrorCode = 602
	ErrCodeRunCancelled      ErrorCode = 603

	// Sink errors (700-799)
	ErrCodeSinkInitFailed  ErrorCode = 700
	ErrCodeSinkWriteFailed ErrorCode = 701
	ErrCodeSinkQueryFailed ErrorCode = 702
)
