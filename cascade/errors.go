package cascade

import "errors"

var (
	errEmptyPipeline         = errors.New("domain strategy has no steps")
	errDuplicateStepName     = errors.New("duplicate step name in domain strategy")
	errNoEligibleModel       = errors.New("no eligible model in candidate set")
	errToolNotFound          = errors.New("model referenced a tool not present in the query's tool list")
	errMaxToolIterations     = errors.New("tool-call loop exceeded the iteration cap without a final response")
	errDuplicateToolCallID   = errors.New("tool call id reused within the same query")
)
