package cascade

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/cascadehq/cascaderouter/callback"
	"github.com/cascadehq/cascaderouter/core"
	"github.com/cascadehq/cascaderouter/provider"
	"github.com/cascadehq/cascaderouter/resilience"
	"github.com/cascadehq/cascaderouter/routing"
	"github.com/cascadehq/cascaderouter/validate"
)

// ToolExecutor is the host-supplied contract for running a tool call.
// The executor never invokes tools itself — the host does.
type ToolExecutor interface {
	Execute(ctx context.Context, call core.ToolCall) (core.Message, error)
}

// Input bundles one query's routing output into what Execute needs: the
// query itself, the PreRouter's decision, the post-tier candidate set, and
// the domain strategy (if any) selected for it.
type Input struct {
	Query      *core.Query
	Decision   core.RoutingDecision
	Complexity core.ComplexityResult
	Domain     core.DomainResult
	Candidates []core.ModelConfig
	Strategy   *DomainStrategy // nil unless a multi-step pipeline is configured
	// Tier carries the hard caps the caller's tier contributed: MinQuality
	// floors the acceptance threshold, MaxLatencyMs clamps the per-query
	// wall clock. Nil when no tier applied. (MaxCost is enforced upstream
	// by filtering candidates before they reach the executor.)
	Tier *routing.FilterResult
}

// Executor drives the selected RoutingStrategy: direct, single-step
// cascade, or multi-step domain pipeline, including the tool-call
// iteration loop.
type Executor struct {
	providers *provider.Registry
	validator *validate.Validator
	bus       *callback.Bus
	tools     ToolExecutor
	logger    core.Logger
	telemetry core.Telemetry

	retry *resilience.RetryConfig

	breakersMu sync.Mutex
	breakers   map[string]*resilience.CircuitBreaker

	maxToolIterations int
	modelCallTimeout  time.Duration
}

// Option configures an Executor at construction.
type Option func(*Executor)

func WithToolExecutor(t ToolExecutor) Option    { return func(e *Executor) { e.tools = t } }
func WithExecutorLogger(l core.Logger) Option   { return func(e *Executor) { e.logger = l } }
func WithExecutorTelemetry(t core.Telemetry) Option {
	return func(e *Executor) { e.telemetry = t }
}
func WithMaxToolIterations(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxToolIterations = n
		}
	}
}
func WithModelCallTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.modelCallTimeout = d
		}
	}
}
func WithRetryConfig(c *resilience.RetryConfig) Option {
	return func(e *Executor) { e.retry = c }
}

// NewExecutor builds an Executor. providers and validator are required;
// bus may be nil (events are simply not published).
func NewExecutor(providers *provider.Registry, validator *validate.Validator, bus *callback.Bus, opts ...Option) *Executor {
	e := &Executor{
		providers:         providers,
		validator:         validator,
		bus:               bus,
		logger:            &core.NoOpLogger{},
		telemetry:         &core.NoOpTelemetry{},
		retry:             resilience.DefaultRetryConfig(),
		breakers:          make(map[string]*resilience.CircuitBreaker),
		maxToolIterations: 3,
		modelCallTimeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) publish(kind callback.Kind, queryID string, payload map[string]interface{}) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(callback.Event{Kind: kind, QueryID: queryID, Payload: payload})
}

// Execute runs in.Decision.Strategy against in.Candidates and returns the
// aggregate ExecutionResult.
func (e *Executor) Execute(ctx context.Context, in Input) (ExecutionResult, error) {
	query := in.Query
	e.publish(callback.KindQueryStart, query.ID, map[string]interface{}{
		"strategy": string(in.Decision.Strategy),
		"domain":   string(in.Domain.Domain),
	})

	if len(in.Candidates) == 0 {
		err := core.NewError(core.KindTierNoModels, "cascade.Executor.Execute", core.ErrEmptyModelSet).WithQuery(query.ID)
		e.publish(callback.KindQueryError, query.ID, map[string]interface{}{"error": err.Error()})
		return ExecutionResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.queryTimeout(in))
	defer cancel()

	var (
		result ExecutionResult
		err    error
	)

	switch {
	case in.Decision.Strategy == core.StrategyDirectCheap:
		result, err = e.runDirect(ctx, in, cheapestModel)
	case in.Decision.Strategy == core.StrategyDirectBest:
		result, err = e.runDirect(ctx, in, bestModel)
	case in.Decision.Strategy == core.StrategyParallel:
		result, err = e.runParallel(ctx, in)
	case in.Strategy != nil && len(in.Strategy.Steps) > 1:
		result, err = e.runPipeline(ctx, in)
	default: // core.StrategyCascade without a multi-step domain strategy
		result, err = e.runCascade(ctx, in)
	}

	result.Domain = in.Domain.Domain
	result.Confidence = in.Domain.Confidence
	result.RoutingReason = in.Decision.Reason
	result.RoutingMetadata = in.Decision.Metadata

	if err != nil {
		e.publish(callback.KindQueryError, query.ID, map[string]interface{}{
			"error": err.Error(), "partial_cost": result.TotalCost,
		})
		if re, ok := err.(*core.RouterError); ok {
			re.WithCostIncurred(result.TotalCost).WithQuery(query.ID)
		}
		return result, err
	}

	e.publish(callback.KindQueryComplete, query.ID, map[string]interface{}{
		"total_cost": result.TotalCost, "cascaded": result.Cascaded, "fallback_used": result.FallbackUsed,
	})
	return result, nil
}

func (e *Executor) queryTimeout(in Input) time.Duration {
	d := 120 * time.Second
	if in.Query.Timeout > 0 {
		d = in.Query.Timeout
	}
	if in.Tier != nil && in.Tier.MaxLatencyMs > 0 {
		if limit := time.Duration(in.Tier.MaxLatencyMs) * time.Millisecond; limit < d {
			d = limit
		}
	}
	return d
}

// runDirect invokes the single model pick(candidates) selects. No
// validation gate: its response is the final response.
func (e *Executor) runDirect(ctx context.Context, in Input, pick func([]core.ModelConfig) (core.ModelConfig, bool)) (ExecutionResult, error) {
	model, ok := pick(in.Candidates)
	if !ok {
		return ExecutionResult{}, core.NewError(core.KindTierNoModels, "cascade.Executor.runDirect", core.ErrEmptyModelSet).WithQuery(in.Query.ID)
	}

	step, callErr := e.callModel(ctx, in.Query, model, "direct", messagesFor(in.Query, ""))
	if callErr == nil {
		step, callErr = e.toolLoop(ctx, in.Query, model, step, "direct")
	}
	if callErr == nil {
		step.Status = StatusSuccess
	}
	result := ExecutionResult{
		FinalResponse: step.ResponseText,
		ModelUsed:     step.ModelUsed,
		Provider:      step.Provider,
		TotalCost:     step.Cost,
		TotalTokens:   step.Usage.TotalTokens,
		TotalLatency:  step.Latency,
		DraftAccepted: true,
		Steps:         []StepResult{step},
	}
	if callErr != nil {
		return result, core.NewError(core.KindModelError, "cascade.Executor.runDirect", callErr).WithStep(step.StepName)
	}
	return result, nil
}

// runParallel fires every candidate concurrently, waits for all of them,
// and returns the highest-scoring response that clears the complexity
// threshold; if none clears it, the highest-scoring response wins.
func (e *Executor) runParallel(ctx context.Context, in Input) (ExecutionResult, error) {
	threshold := thresholdFor(in)
	type outcome struct {
		step StepResult
		err  error
	}

	outcomes := make([]outcome, len(in.Candidates))
	var wg sync.WaitGroup
	for i, model := range in.Candidates {
		wg.Add(1)
		go func(i int, model core.ModelConfig) {
			defer wg.Done()
			step, err := e.callModel(ctx, in.Query, model, fmt.Sprintf("parallel-%d", i), messagesFor(in.Query, ""))
			outcomes[i] = outcome{step: step, err: err}
		}(i, model)
	}
	wg.Wait()

	steps := make([]StepResult, 0, len(outcomes))
	var best *StepResult
	var totalCost float64
	var totalTokens int
	var totalLatency time.Duration

	for i := range outcomes {
		step := outcomes[i].step
		if outcomes[i].err == nil {
			score := e.score(ctx, in.Query.Text, step.ResponseText, validate.MethodQualityCheck)
			step.QualityScore = score.Score
			step.ValidationDetails = score.Details
			if score.Score >= threshold {
				step.Status = StatusSuccess
			} else {
				step.Status = StatusFailedQuality
			}
		}
		steps = append(steps, step)
		totalCost += step.Cost
		totalTokens += step.Usage.TotalTokens
		if step.Latency > totalLatency {
			totalLatency = step.Latency // parallel: wall time is the slowest leg
		}
		if step.Status == StatusSuccess && (best == nil || step.QualityScore > best.QualityScore) {
			best = &steps[len(steps)-1]
		}
	}

	if best == nil {
		// Nothing cleared threshold: fall back to the highest raw score.
		for i := range steps {
			if outcomes[i].err == nil && (best == nil || steps[i].QualityScore > best.QualityScore) {
				best = &steps[i]
			}
		}
	}

	result := ExecutionResult{
		TotalCost:    totalCost,
		TotalTokens:  totalTokens,
		TotalLatency: totalLatency,
		Steps:        steps,
		Cascaded:     false,
	}
	if best == nil {
		return result, core.NewError(core.KindModelError, "cascade.Executor.runParallel", errNoEligibleModel).WithQuery(in.Query.ID)
	}
	result.FinalResponse = best.ResponseText
	result.ModelUsed = best.ModelUsed
	result.Provider = best.Provider
	result.DraftAccepted = best.QualityScore >= threshold
	return result, nil
}

// runCascade implements the single-step drafter/verifier protocol:
// drafter = cheapest eligible model, verifier = highest-quality eligible
// model. With one candidate the two collapse and the draft is accepted
// regardless of quality.
func (e *Executor) runCascade(ctx context.Context, in Input) (ExecutionResult, error) {
	drafter, ok := cheapestModel(in.Candidates)
	if !ok {
		return ExecutionResult{}, core.NewError(core.KindTierNoModels, "cascade.Executor.runCascade", core.ErrEmptyModelSet).WithQuery(in.Query.ID)
	}
	verifier, _ := bestModel(in.Candidates)
	soloModel := len(in.Candidates) == 1 || drafter.Name == verifier.Name

	method := validationMethod(in)
	threshold := thresholdFor(in)

	draftStep, draftErr := e.callModelWithRetry(ctx, in.Query, drafter, "draft", messagesFor(in.Query, ""))

	if draftErr != nil && !soloModel {
		// Drafter failed entirely: the cascade falls through to the
		// verifier as a redundancy.
		e.publish(callback.KindCascadeDecision, in.Query.ID, map[string]interface{}{
			"decision": "escalate", "reason": "drafter error: " + draftErr.Error(),
		})
		verifyStep, verifyErr := e.callModelWithRetry(ctx, in.Query, verifier, "verify", messagesFor(in.Query, ""))
		if verifyErr == nil {
			verifyStep.Status = StatusSuccess
		}
		result := ExecutionResult{
			Cascaded:      true,
			DraftAccepted: false,
			FallbackUsed:  true,
			Steps:         []StepResult{draftStep, verifyStep},
		}
		accumulate(&result, draftStep, verifyStep)
		if verifyErr != nil {
			return result, core.NewError(core.KindModelError, "cascade.Executor.runCascade", verifyErr).WithStep("verify")
		}
		result.FinalResponse = verifyStep.ResponseText
		result.ModelUsed = verifyStep.ModelUsed
		result.Provider = verifyStep.Provider
		return result, nil
	}
	if draftErr != nil {
		// Solo model and it failed: nothing left to escalate to.
		result := ExecutionResult{Steps: []StepResult{draftStep}}
		accumulate(&result, draftStep)
		return result, core.NewError(core.KindModelError, "cascade.Executor.runCascade", draftErr).WithStep("draft")
	}

	draftStep, err := e.toolLoop(ctx, in.Query, drafter, draftStep, "draft")
	if err != nil {
		result := ExecutionResult{Steps: []StepResult{draftStep}}
		accumulate(&result, draftStep)
		return result, err
	}

	score := e.score(ctx, in.Query.Text, draftStep.ResponseText, method)
	draftStep.QualityScore = score.Score
	draftStep.ValidationDetails = score.Details

	if soloModel || score.Score >= threshold {
		draftStep.Status = StatusSuccess
		e.publish(callback.KindCascadeDecision, in.Query.ID, map[string]interface{}{
			"decision": "accept", "quality_score": score.Score, "threshold": threshold,
		})
		result := ExecutionResult{
			FinalResponse: draftStep.ResponseText,
			ModelUsed:     draftStep.ModelUsed,
			Provider:      draftStep.Provider,
			Cascaded:      !soloModel,
			DraftAccepted: true,
			Steps:         []StepResult{draftStep},
		}
		accumulate(&result, draftStep)
		return result, nil
	}

	draftStep.Status = StatusFailedQuality
	e.publish(callback.KindCascadeDecision, in.Query.ID, map[string]interface{}{
		"decision": "escalate", "quality_score": score.Score, "threshold": threshold,
	})

	verifyContext := ""
	if useDraftContext(in) {
		verifyContext = draftStep.ResponseText
	}
	verifyStep, verifyErr := e.callModelWithRetry(ctx, in.Query, verifier, "verify", messagesFor(in.Query, verifyContext))
	result := ExecutionResult{
		Cascaded:      true,
		DraftAccepted: false,
		FallbackUsed:  true,
		Steps:         []StepResult{draftStep, verifyStep},
	}
	accumulate(&result, draftStep, verifyStep)
	if verifyErr != nil {
		return result, core.NewError(core.KindModelError, "cascade.Executor.runCascade", verifyErr).WithStep("verify")
	}
	verifyStep, err = e.toolLoop(ctx, in.Query, verifier, verifyStep, "verify")
	if err != nil {
		result.Steps[len(result.Steps)-1] = verifyStep
		return result, err
	}
	verifyStep.Status = StatusSuccess
	result.Steps[len(result.Steps)-1] = verifyStep
	result.FinalResponse = verifyStep.ResponseText
	result.ModelUsed = verifyStep.ModelUsed
	result.Provider = verifyStep.Provider
	return result, nil
}

// runPipeline executes a multi-step DomainStrategy in order. A
// fallbackOnly step runs only once a prior step has failed quality; the
// final response is the last successful step's output.
func (e *Executor) runPipeline(ctx context.Context, in Input) (ExecutionResult, error) {
	strategy := in.Strategy
	byName := make(map[string]core.ModelConfig, len(in.Candidates))
	for _, m := range in.Candidates {
		byName[m.Name] = m
	}

	result := ExecutionResult{Cascaded: true}
	priorFailedQuality := false
	var lastSuccess *StepResult

	for _, step := range strategy.Steps {
		if step.FallbackOnly && !priorFailedQuality {
			result.Steps = append(result.Steps, StepResult{StepName: step.Name, Status: StatusSkipped})
			continue
		}

		model, ok := byName[step.ModelName]
		if !ok {
			result.Steps = append(result.Steps, StepResult{
				StepName: step.Name, Status: StatusFailedError,
				ErrorText: fmt.Sprintf("model %q not in candidate set", step.ModelName),
			})
			continue
		}

		context := ""
		if lastSuccess != nil {
			context = lastSuccess.ResponseText
		}
		sr, callErr := e.callModelWithRetry(ctx, in.Query, model, step.Name, messagesFor(in.Query, context))
		if callErr != nil {
			sr.Status = StatusFailedError
			sr.ErrorText = callErr.Error()
			result.Steps = append(result.Steps, sr)
			accumulate(&result, sr)
			priorFailedQuality = false
			continue
		}

		sr, err := e.toolLoop(ctx, in.Query, model, sr, step.Name)
		if err != nil {
			result.Steps = append(result.Steps, sr)
			accumulate(&result, sr)
			return result, err
		}

		threshold := step.QualityThreshold
		if threshold == 0 {
			threshold = thresholdFor(in)
		}
		score := e.score(ctx, in.Query.Text, sr.ResponseText, step.ValidationMethod)
		sr.QualityScore = score.Score
		sr.ValidationDetails = score.Details

		if score.Score >= threshold {
			sr.Status = StatusSuccess
			priorFailedQuality = false
			stepCopy := sr
			lastSuccess = &stepCopy
		} else {
			sr.Status = StatusFailedQuality
			priorFailedQuality = true
		}
		result.Steps = append(result.Steps, sr)
		accumulate(&result, sr)
	}

	if lastSuccess == nil {
		return result, core.NewError(core.KindModelError, "cascade.Executor.runPipeline", errNoEligibleModel).WithQuery(in.Query.ID)
	}

	result.FinalResponse = lastSuccess.ResponseText
	result.ModelUsed = lastSuccess.ModelUsed
	result.Provider = lastSuccess.Provider
	result.FallbackUsed = len(result.Steps) > 1 && result.Steps[0].Status != StatusSuccess
	return result, nil
}

// callModel invokes model once with no retry, returning a StepResult.
func (e *Executor) callModel(ctx context.Context, query *core.Query, model core.ModelConfig, stepName string, messages []core.Message) (StepResult, error) {
	adapter, ok := e.providers.Get(model.Provider)
	if !ok {
		return StepResult{StepName: stepName, ModelUsed: model.Name, Status: StatusFailedError, ErrorText: "provider not registered"},
			fmt.Errorf("provider %q not registered", model.Provider)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.modelCallTimeout)
	defer cancel()

	_, span := e.telemetry.StartSpan(callCtx, "cascade.model_call")
	span.SetAttribute("model", model.Name)
	span.SetAttribute("step", stepName)
	defer span.End()

	e.publish(callback.KindModelCallStart, query.ID, map[string]interface{}{"model": model.Name, "step": stepName})

	start := time.Now()
	res, err := adapter.Generate(callCtx, model, messages, query.Tools)
	latency := time.Since(start)

	if err != nil {
		span.RecordError(err)
		e.publish(callback.KindModelCallError, query.ID, map[string]interface{}{
			"model": model.Name, "step": stepName, "error": err.Error(),
		})
		return StepResult{
			StepName: stepName, ModelUsed: model.Name, Provider: model.Provider,
			Status: StatusFailedError, ErrorText: err.Error(), Latency: latency,
		}, err
	}

	cost := model.Cost(res.Usage.PromptTokens, res.Usage.CompletionTokens)
	e.publish(callback.KindModelCallComplete, query.ID, map[string]interface{}{
		"model": model.Name, "step": stepName, "cost": cost, "latency_ms": latency.Milliseconds(),
	})

	return StepResult{
		StepName:      stepName,
		ModelUsed:     model.Name,
		Provider:      model.Provider,
		ResponseText:  res.Message.Content,
		Cost:          cost,
		Latency:       latency,
		Usage:         res.Usage,
		ToolCalls:     toolCallsFromMessage(res.Message),
	}, nil
}

// callModelWithRetry retries a single transient failure once with
// jittered backoff, through the provider's circuit breaker.
func (e *Executor) callModelWithRetry(ctx context.Context, query *core.Query, model core.ModelConfig, stepName string, messages []core.Message) (StepResult, error) {
	breaker := e.breakerFor(model.Provider)
	if !breaker.CanExecute() {
		return StepResult{StepName: stepName, ModelUsed: model.Name, Provider: model.Provider, Status: StatusFailedError, ErrorText: core.ErrCircuitBreakerOpen.Error()},
			core.ErrCircuitBreakerOpen
	}

	step, err := e.callModel(ctx, query, model, stepName, messages)
	if err == nil {
		breaker.RecordSuccess()
		return step, nil
	}
	breaker.RecordFailure()
	if !core.IsRetryable(err) {
		return step, err
	}

	delay := e.retry.InitialDelay
	if e.retry.JitterEnabled {
		delay += time.Duration(rand.Int63n(int64(delay) + 1))
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return step, core.NewError(core.KindCancelled, "cascade.Executor.callModelWithRetry", ctx.Err())
	}

	retryStep, retryErr := e.callModel(ctx, query, model, stepName, messages)
	if retryErr == nil {
		breaker.RecordSuccess()
		return retryStep, nil
	}
	breaker.RecordFailure()
	return retryStep, retryErr
}

func (e *Executor) breakerFor(providerName string) *resilience.CircuitBreaker {
	e.breakersMu.Lock()
	defer e.breakersMu.Unlock()
	if cb, ok := e.breakers[providerName]; ok {
		return cb
	}
	cfg := resilience.DefaultConfig()
	cfg.Name = providerName
	cb, _ := resilience.NewCircuitBreaker(cfg)
	e.breakers[providerName] = cb
	return cb
}

func (e *Executor) score(ctx context.Context, query, response string, method validate.Method) validate.Result {
	result, err := e.validator.Validate(ctx, method, query, response)
	if err != nil {
		e.logger.Warn("validation call failed, treating as zero score", map[string]interface{}{"error": err.Error()})
		return validate.Result{Score: 0, Details: map[string]interface{}{"error": err.Error()}}
	}
	return result
}

// toolLoop drives the tool-call iteration: validate arguments, hand
// valid calls to the host ToolExecutor, append results, and re-invoke,
// up to maxToolIterations.
func (e *Executor) toolLoop(ctx context.Context, query *core.Query, model core.ModelConfig, step StepResult, stepName string) (StepResult, error) {
	if len(step.ToolCalls) == 0 || len(query.Tools) == 0 {
		return step, nil
	}
	if e.tools == nil {
		// No host executor registered: the tool calls stand as the final
		// response (nothing more the core can do).
		return step, nil
	}

	toolsByName := make(map[string]core.Tool, len(query.Tools))
	for _, t := range query.Tools {
		toolsByName[t.Name] = t
	}

	messages := messagesFor(query, "")
	seenCallIDs := make(map[string]struct{})

	for iteration := 0; iteration < e.maxToolIterations; iteration++ {
		pending := step.ToolCalls
		if len(pending) == 0 {
			return step, nil
		}

		assistantMsg := core.Message{Role: "assistant", Content: step.ResponseText}
		for _, rec := range pending {
			assistantMsg.ToolCalls = append(assistantMsg.ToolCalls, rec.Call)
		}
		messages = append(messages, assistantMsg)

		for i, rec := range pending {
			if _, dup := seenCallIDs[rec.Call.ID]; dup {
				return step, core.NewError(core.KindValidation, "cascade.Executor.toolLoop", errDuplicateToolCallID).WithStep(stepName).WithQuery(query.ID)
			}
			seenCallIDs[rec.Call.ID] = struct{}{}

			tool, known := toolsByName[rec.Call.Name]
			if !known {
				return step, core.NewError(core.KindValidation, "cascade.Executor.toolLoop", errToolNotFound).WithStep(stepName).WithQuery(query.ID)
			}
			if err := validateToolArguments(tool, rec.Call.Arguments); err != nil {
				pending[i].Error = err.Error()
				messages = append(messages, core.Message{
					Role: "tool", ToolCallID: rec.Call.ID,
					Content: fmt.Sprintf("invalid arguments: %s", err.Error()),
				})
				continue
			}

			resultMsg, err := e.tools.Execute(ctx, rec.Call)
			if err != nil {
				// Tool-execution errors are propagated to the model as a
				// tool-result message, not surfaced to the caller — the
				// model decides how to recover.
				resultMsg = core.Message{Role: "tool", ToolCallID: rec.Call.ID, Content: "error: " + err.Error()}
			}
			resultMsg.Role = "tool"
			resultMsg.ToolCallID = rec.Call.ID
			pending[i].Result = resultMsg
			messages = append(messages, resultMsg)
		}
		step.ToolCalls = pending

		next, err := e.callModel(ctx, query, model, stepName, messages)
		if err != nil {
			return step, core.NewError(core.KindModelError, "cascade.Executor.toolLoop", err).WithStep(stepName)
		}
		step.ResponseText = next.ResponseText
		step.Cost += next.Cost
		step.Latency += next.Latency
		step.Usage.PromptTokens += next.Usage.PromptTokens
		step.Usage.CompletionTokens += next.Usage.CompletionTokens
		step.Usage.TotalTokens += next.Usage.TotalTokens
		step.ToolCalls = next.ToolCalls

		if len(next.ToolCalls) == 0 {
			return step, nil
		}
	}

	return step, core.NewError(core.KindValidation, "cascade.Executor.toolLoop", errMaxToolIterations).WithStep(stepName).WithQuery(query.ID)
}

func validateToolArguments(tool core.Tool, args map[string]interface{}) error {
	for _, required := range tool.RequiredParams {
		if _, ok := args[required]; !ok {
			return fmt.Errorf("missing required parameter %q", required)
		}
	}
	if tool.ParameterSchema == nil {
		return nil
	}
	props, _ := tool.ParameterSchema["properties"].(map[string]interface{})
	if props == nil {
		return nil
	}
	for name := range args {
		if _, declared := props[name]; !declared {
			return fmt.Errorf("undeclared parameter %q", name)
		}
	}
	return nil
}

func toolCallsFromMessage(msg core.Message) []ToolCallRecord {
	if len(msg.ToolCalls) == 0 {
		return nil
	}
	out := make([]ToolCallRecord, len(msg.ToolCalls))
	for i, c := range msg.ToolCalls {
		out[i] = ToolCallRecord{Call: c}
	}
	return out
}

func accumulate(result *ExecutionResult, steps ...StepResult) {
	for _, s := range steps {
		result.TotalCost += s.Cost
		result.TotalTokens += s.Usage.TotalTokens
		result.TotalLatency += s.Latency
	}
}

func messagesFor(query *core.Query, priorContext string) []core.Message {
	messages := make([]core.Message, 0, 2)
	if priorContext != "" {
		messages = append(messages, core.Message{Role: "system", Content: "Prior attempt: " + priorContext})
	}
	messages = append(messages, core.Message{Role: "user", Content: query.Text})
	return messages
}

func validationMethod(in Input) validate.Method {
	if in.Strategy != nil && len(in.Strategy.Steps) == 1 && in.Strategy.Steps[0].ValidationMethod != "" {
		return in.Strategy.Steps[0].ValidationMethod
	}
	return validate.MethodQualityCheck
}

func useDraftContext(in Input) bool {
	return in.Strategy != nil && len(in.Strategy.Steps) == 1 && in.Strategy.Steps[0].UseDraftContext
}

// thresholdFor resolves the acceptance threshold: the domain strategy's
// override if set, the per-complexity default otherwise, floored by the
// tier's quality minimum.
func thresholdFor(in Input) float64 {
	threshold := perComplexityThreshold(in.Complexity.Complexity)
	if in.Strategy != nil && in.Strategy.Threshold != nil {
		threshold = *in.Strategy.Threshold
	}
	if in.Tier != nil && in.Tier.MinQuality > threshold {
		threshold = in.Tier.MinQuality
	}
	return threshold
}

func cheapestModel(models []core.ModelConfig) (core.ModelConfig, bool) {
	if len(models) == 0 {
		return core.ModelConfig{}, false
	}
	sorted := append([]core.ModelConfig(nil), models...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].InputCostPerToken+sorted[i].OutputCostPerToken < sorted[j].InputCostPerToken+sorted[j].OutputCostPerToken
	})
	return sorted[0], true
}

// bestModel picks the highest-quality candidate: cost descending as the
// primary sort, capability count as tie-break.
func bestModel(models []core.ModelConfig) (core.ModelConfig, bool) {
	if len(models) == 0 {
		return core.ModelConfig{}, false
	}
	sorted := append([]core.ModelConfig(nil), models...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci := sorted[i].InputCostPerToken + sorted[i].OutputCostPerToken
		cj := sorted[j].InputCostPerToken + sorted[j].OutputCostPerToken
		if ci != cj {
			return ci > cj
		}
		return capabilityCount(sorted[i]) > capabilityCount(sorted[j])
	})
	return sorted[0], true
}

func capabilityCount(m core.ModelConfig) int {
	n := 0
	if m.Capabilities.SupportsTools {
		n++
	}
	if m.Capabilities.SupportsStreaming {
		n++
	}
	if m.Capabilities.SupportsSystemMessages {
		n++
	}
	if m.Capabilities.IsReasoning {
		n++
	}
	return n
}

var _ routing.DomainStrategyLookup = (*StrategyRegistry)(nil)
