package budget

import "errors"

var (
	errBudgetExceeded   = errors.New("projected cost exceeds block threshold for this window")
	errRedisURLRequired = errors.New("redis url is required")
)
