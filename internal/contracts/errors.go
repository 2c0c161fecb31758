package contracts

import "errors"

// Sentinel errors shared across the pipeline and its collaborators
var (
	// ErrNoCandidates: every universe symbol fell to screening or data
	// loss; the run terminates cleanly without trading
	ErrNoCandidates = errors.New("no eligible candidates")

	// ErrNoHistory: a symbol returned an empty price series
	ErrNoHistory = errors.New("no price history")

	// ErrNotAuthenticated: a brokerage call ran without a valid session
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAccountNotFound: no account of the configured type exists
	ErrAccountNotFound = errors.New("account not found")

	// ErrSecurityNotFound: symbol resolution returned no results
	ErrSecurityNotFound = errors.New("security not found")

	// ErrDailyLimitReached: the executor's daily trade ceiling was hit
	ErrDailyLimitReached = errors.New("daily trade limit reached")

	// ErrRunInProgress: a rebalance was requested while another run is
	// still active in this process
	ErrRunInProgress = errors.New("a run is already in progress")
)
