package routing

import "errors"

var (
	errEmptyTierName   = errors.New("tier policy has no name")
	errBadTierQuality  = errors.New("tier policy min quality out of [0,1] range")
	errUnknownTier     = errors.New("no tier policy registered under this name")
	errNoFallbackModel = errors.New("tier filtering produced an empty set and the original candidate set was also empty")
)
