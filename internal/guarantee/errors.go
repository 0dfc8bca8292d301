package guarantee

// LedgerError is a recoverable ledger violation. The reason code is
// surfaced to the business caller, who typically needs to provide a new
// instrument rather than retry.
type LedgerError struct {
	Code    string
	Message string
}

func (e *LedgerError) Error() string      { return e.Message }
func (e *LedgerError) ReasonCode() string { return e.Code }

var (
	ErrInsufficientCapacity = &LedgerError{Code: "INSUFFICIENT_CAPACITY", Message: "reservation exceeds guarantee capacity"}
	ErrOverRelease          = &LedgerError{Code: "OVER_RELEASE", Message: "release exceeds reserved amount"}
	ErrGuaranteeExpired     = &LedgerError{Code: "GUARANTEE_EXPIRED", Message: "guarantee outside validity window"}
	ErrGuaranteeActive      = &LedgerError{Code: "GUARANTEE_ACTIVE", Message: "guarantee still has reserved amounts"}
	ErrGuaranteeNotOpen     = &LedgerError{Code: "GUARANTEE_NOT_OPEN", Message: "guarantee is closed or forfeited"}
	ErrInvalidAmount        = &LedgerError{Code: "INVALID_AMOUNT", Message: "amount must be positive"}
)
