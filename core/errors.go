package core

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable error taxonomy. Callers match on Kind, not on
// message text.
type ErrorKind string

const (
	KindConfiguration     ErrorKind = "configuration_error"
	KindBudgetExceeded    ErrorKind = "budget_exceeded"
	KindTierNoModels      ErrorKind = "tier_no_models"
	KindProviderTransient ErrorKind = "provider_transient"
	KindProviderPermanent ErrorKind = "provider_permanent"
	KindModelError        ErrorKind = "model_error"
	KindValidation        ErrorKind = "validation_error"
	KindCancelled         ErrorKind = "cancelled"
	KindTimeout           ErrorKind = "timeout"
	KindInternal          ErrorKind = "internal_error"
	KindOverloaded        ErrorKind = "overloaded"
)

// RouterError is the structured error every caller-visible failure is
// wrapped in: kind, message, the query it happened to, the step (if any),
// and whether cost was already incurred before the failure.
type RouterError struct {
	Kind         ErrorKind
	Op           string
	QueryID      string
	Step         string
	CostIncurred float64
	Err          error
}

func (e *RouterError) Error() string {
	if e.Op != "" && e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *RouterError) Unwrap() error {
	return e.Err
}

// NewError builds a RouterError for the given kind and operation.
func NewError(kind ErrorKind, op string, err error) *RouterError {
	return &RouterError{Kind: kind, Op: op, Err: err}
}

// WithQuery attaches the query id this error happened to, returning the
// same error for chaining.
func (e *RouterError) WithQuery(queryID string) *RouterError {
	e.QueryID = queryID
	return e
}

// WithStep attaches the cascade step name this error happened in.
func (e *RouterError) WithStep(step string) *RouterError {
	e.Step = step
	return e
}

// WithCostIncurred records cost already spent before this error surfaced.
func (e *RouterError) WithCostIncurred(cost float64) *RouterError {
	e.CostIncurred = cost
	return e
}

// KindOf extracts the ErrorKind from err, returning KindInternal if err is
// not (or does not wrap) a *RouterError.
func KindOf(err error) ErrorKind {
	var re *RouterError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindInternal
}

// IsRetryable reports whether err represents a transient provider failure:
// timeout, 5xx, or rate-limit. Persistent (4xx) errors and everything else
// are not retryable.
func IsRetryable(err error) bool {
	return KindOf(err) == KindProviderTransient || KindOf(err) == KindTimeout
}

// Sentinel errors for direct errors.Is comparison where a full RouterError
// is overkill (e.g. in tests or internal plumbing).
var (
	ErrDuplicateTool       = errors.New("duplicate tool name in query")
	ErrEmptyModelSet       = errors.New("no candidate models available")
	ErrNoStrategyForDomain = errors.New("no domain strategy configured")
	ErrInvalidConfidence   = errors.New("confidence out of [0,1] range")
	ErrInvalidQuality      = errors.New("quality score out of [0,1] range")
	ErrContextCanceled     = errors.New("context canceled")

	errQueryToolsOnly  = errors.New("query has tools but no text")
	errIncompleteModel = errors.New("model config missing name, provider, or model id")
	errNegativeCost    = errors.New("model config has negative cost per token")

	// ErrCircuitBreakerOpen is returned by resilience.CircuitBreaker.Execute
	// while the breaker is open and rejecting calls.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
)
