package core

import (
	"time"

	"github.com/google/uuid"
)

// Complexity is the total order of query difficulty bands. Comparisons use
// Rank(), not string comparison.
type Complexity string

const (
	ComplexityTrivial  Complexity = "trivial"
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityHard     Complexity = "hard"
	ComplexityExpert   Complexity = "expert"
)

// Rank returns the band's position in the total order, trivial=0 .. expert=4.
func (c Complexity) Rank() int {
	switch c {
	case ComplexityTrivial:
		return 0
	case ComplexitySimple:
		return 1
	case ComplexityModerate:
		return 2
	case ComplexityHard:
		return 3
	case ComplexityExpert:
		return 4
	default:
		return 0
	}
}

// LessThan reports whether c is strictly easier than other.
func (c Complexity) LessThan(other Complexity) bool {
	return c.Rank() < other.Rank()
}

// Domain is one of the 14 enumerated domains, or general.
type Domain string

const (
	DomainCode         Domain = "code"
	DomainData         Domain = "data"
	DomainStructured   Domain = "structured"
	DomainRAG          Domain = "rag"
	DomainConversation Domain = "conversation"
	DomainTool         Domain = "tool"
	DomainCreative     Domain = "creative"
	DomainSummary      Domain = "summary"
	DomainTranslation  Domain = "translation"
	DomainMath         Domain = "math"
	DomainMedical      Domain = "medical"
	DomainLegal        Domain = "legal"
	DomainFinancial    Domain = "financial"
	DomainMultimodal   Domain = "multimodal"
	DomainGeneral      Domain = "general"
)

// AllDomains enumerates every Domain value, general included.
var AllDomains = []Domain{
	DomainCode, DomainData, DomainStructured, DomainRAG, DomainConversation,
	DomainTool, DomainCreative, DomainSummary, DomainTranslation, DomainMath,
	DomainMedical, DomainLegal, DomainFinancial, DomainMultimodal, DomainGeneral,
}

// Tool describes one callable function a model may invoke. ParameterSchema
// is a JSON-Schema object (type: object, properties, required).
type Tool struct {
	Name             string
	Description      string
	ParameterSchema  map[string]interface{}
	RequiredParams   []string
}

// Message is one turn in the conversation sent to a provider: role is one
// of "system", "user", "assistant", "tool".
type Message struct {
	Role       string
	Content    string
	ToolCallID string // set on role "tool"
	ToolCalls  []ToolCall
}

// ToolCall is a model-generated request to invoke a tool. Arguments is
// the canonical field name on calls; tool schemas carry "parameters".
// The two are never interchanged.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]interface{}
}

// Query is the immutable unit of work entering the router.
type Query struct {
	ID              string
	Text            string
	Tools           []Tool
	UserID          string
	UserTier        string
	BudgetOverride  *float64
	ComplexityHint  Complexity
	DomainHint      Domain
	ForceDirect     bool
	MaxCost         float64
	Timeout         time.Duration
	Metadata        map[string]interface{}
}

// NewQuery builds a Query with a generated ID, rejecting duplicate tool
// names.
func NewQuery(text string, opts ...QueryOption) (*Query, error) {
	q := &Query{
		ID:   uuid.NewString(),
		Text: text,
	}
	for _, opt := range opts {
		opt(q)
	}
	seen := make(map[string]struct{}, len(q.Tools))
	for _, t := range q.Tools {
		if _, dup := seen[t.Name]; dup {
			return nil, NewError(KindConfiguration, "core.NewQuery", ErrDuplicateTool).WithQuery(q.ID)
		}
		seen[t.Name] = struct{}{}
	}
	if q.Text == "" && len(q.Tools) > 0 {
		return nil, NewError(KindConfiguration, "core.NewQuery", errQueryToolsOnly).WithQuery(q.ID)
	}
	return q, nil
}

// QueryOption configures a Query at construction.
type QueryOption func(*Query)

func WithTools(tools ...Tool) QueryOption {
	return func(q *Query) { q.Tools = append(q.Tools, tools...) }
}

func WithUser(userID, tier string) QueryOption {
	return func(q *Query) { q.UserID = userID; q.UserTier = tier }
}

func WithBudgetOverride(usd float64) QueryOption {
	return func(q *Query) { q.BudgetOverride = &usd }
}

func WithComplexityHint(c Complexity) QueryOption {
	return func(q *Query) { q.ComplexityHint = c }
}

func WithDomainHint(d Domain) QueryOption {
	return func(q *Query) { q.DomainHint = d }
}

func WithForceDirect() QueryOption {
	return func(q *Query) { q.ForceDirect = true }
}

func WithMaxCost(usd float64) QueryOption {
	return func(q *Query) { q.MaxCost = usd }
}

func WithTimeout(d time.Duration) QueryOption {
	return func(q *Query) { q.Timeout = d }
}

func WithMetadata(md map[string]interface{}) QueryOption {
	return func(q *Query) { q.Metadata = md }
}

// ModelCapabilities describes what a model supports, independent of cost.
type ModelCapabilities struct {
	SupportsTools          bool
	SupportsStreaming      bool
	SupportsSystemMessages bool
	IsReasoning            bool
}

// ModelConfig is a stable, process-lifetime handle for one logical model.
// Costs are USD per token (not per-1K or per-1M) — adapters convert
// vendor rate cards to this unit at registration time.
type ModelConfig struct {
	Name              string
	Provider          string
	ModelID           string
	InputCostPerToken float64
	OutputCostPerToken float64
	ContextWindow     int
	Capabilities      ModelCapabilities
}

// Cost computes the USD cost of a call given token counts.
func (m ModelConfig) Cost(promptTokens, completionTokens int) float64 {
	return float64(promptTokens)*m.InputCostPerToken + float64(completionTokens)*m.OutputCostPerToken
}

// Validate checks a ModelConfig is well-formed. Called once at
// registration; the hot path never re-validates.
func (m ModelConfig) Validate() error {
	if m.Name == "" || m.Provider == "" || m.ModelID == "" {
		return NewError(KindConfiguration, "core.ModelConfig.Validate", errIncompleteModel)
	}
	if m.InputCostPerToken < 0 || m.OutputCostPerToken < 0 {
		return NewError(KindConfiguration, "core.ModelConfig.Validate", errNegativeCost)
	}
	return nil
}

// UsageDetails carries token accounting for one model call. For
// reasoning-capable models, ReasoningTokens is already included in
// CompletionTokens.
type UsageDetails struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	ReasoningTokens  int
}

// ComplexityResult is the classifier's verdict for one query.
type ComplexityResult struct {
	Complexity Complexity
	Confidence float64
	Scores     map[Complexity]float64
}

// DomainResult is the domain router's verdict for one query.
type DomainResult struct {
	Domain      Domain
	Confidence  float64
	TopScores   map[Domain]float64
	IsMCQ       bool
	SubjectHint string
}

// RoutingStrategy is the execution strategy chosen by the PreRouter.
type RoutingStrategy string

const (
	StrategyDirectCheap RoutingStrategy = "direct-cheap"
	StrategyDirectBest  RoutingStrategy = "direct-best"
	StrategyCascade     RoutingStrategy = "cascade"
	StrategyParallel    RoutingStrategy = "parallel"
)

// RoutingDecision is the PreRouter's output: strategy, explanation,
// confidence, and free-form metadata describing which rule fired.
type RoutingDecision struct {
	Strategy   RoutingStrategy
	Reason     string
	Confidence float64
	Metadata   map[string]interface{}
}
