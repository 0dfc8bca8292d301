package clearance

import "sync"

// DocumentStore is the boundary to the document management collaborator.
// The core only ever asks whether the supporting document set for a
// declaration is complete; it never fetches or validates content.
type DocumentStore interface {
	DocumentSetComplete(declarationID string) (bool, error)
}

// MemoryDocumentStore is an in-process document store used for tests and
// local deployments.
type MemoryDocumentStore struct {
	mu       sync.RWMutex
	complete map[string]bool
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{complete: make(map[string]bool)}
}

func (s *MemoryDocumentStore) SetComplete(declarationID string, complete bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.complete[declarationID] = complete
}

func (s *MemoryDocumentStore) DocumentSetComplete(declarationID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.complete[declarationID], nil
}

// Compliance finding codes reported by the transit monitor.
const (
	FindingSealMissing       = "SEAL_MISSING"
	FindingSealUnexpected    = "SEAL_UNEXPECTED"
	FindingRouteDeviation    = "ROUTE_DEVIATION"
	FindingTimeLimitExceeded = "TIME_LIMIT_EXCEEDED"
)

// ComplianceFinding is one recorded violation. Findings are facts, not
// decisions; what they cost the trader is the ViolationPolicy's call.
type ComplianceFinding struct {
	Code     string `json:"code"`
	Severity int    `json:"severity"` // 1 low .. 3 high
	Detail   string `json:"detail"`
}

// Decision is the clearance consequence of a set of findings.
type Decision int

const (
	DecisionProceed Decision = iota
	DecisionSuspend
	DecisionForfeit
)

func (d Decision) String() string {
	switch d {
	case DecisionSuspend:
		return "SUSPEND"
	case DecisionForfeit:
		return "FORFEIT"
	default:
		return "PROCEED"
	}
}

// ViolationPolicy decides the consequence of compliance findings, given the
// declarant's repeat-offense count. Injected by the caller so penalty
// policy stays out of the monitor and the machine.
type ViolationPolicy interface {
	Decide(findings []ComplianceFinding, repeatOffenses int) Decision
}

// DefaultViolationPolicy suspends on seal integrity violations and
// escalates to forfeiture when a seal violation coincides with an expired
// time limit or a history of offenses. Deviations and lateness alone are
// recorded but allow exit to proceed.
type DefaultViolationPolicy struct {
	// RepeatOffenseLimit is the rejected-declaration count at which a seal
	// violation forfeits the guarantee outright.
	RepeatOffenseLimit int
}

func (p DefaultViolationPolicy) Decide(findings []ComplianceFinding, repeatOffenses int) Decision {
	limit := p.RepeatOffenseLimit
	if limit <= 0 {
		limit = 3
	}

	sealViolation := false
	timeExceeded := false
	for _, f := range findings {
		switch f.Code {
		case FindingSealMissing, FindingSealUnexpected:
			sealViolation = true
		case FindingTimeLimitExceeded:
			timeExceeded = true
		}
	}

	switch {
	case sealViolation && (timeExceeded || repeatOffenses >= limit):
		return DecisionForfeit
	case sealViolation:
		return DecisionSuspend
	default:
		return DecisionProceed
	}
}
