package routing

import "github.com/cascadehq/cascaderouter/core"

// ProjectedCost estimates the USD cost of one query against model given
// pre-call token estimates. Pure function; tier max-cost candidate
// filtering prices candidates through it (the budget gate's pre-check uses
// CheapestRate instead).
func ProjectedCost(model core.ModelConfig, promptTokens, completionTokens int) float64 {
	return model.Cost(promptTokens, completionTokens)
}

// CheapestRate returns the lowest blended per-token rate across models,
// or zero when models is empty.
func CheapestRate(models []core.ModelConfig) float64 {
	if len(models) == 0 {
		return 0
	}
	rate := models[0].InputCostPerToken + models[0].OutputCostPerToken
	for _, m := range models[1:] {
		if r := m.InputCostPerToken + m.OutputCostPerToken; r < rate {
			rate = r
		}
	}
	return rate
}
