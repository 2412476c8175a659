// Package diagnosis gathers evidence for a classified ticket, synthesizes
// ranked root-cause hypotheses through the reasoning service, and degrades
// to a canned low-confidence answer when the service cannot be reached.
package diagnosis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/triage-service/internal/breaker"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/llm"
	"github.com/spec-kit/triage-service/internal/logsearch"
	"github.com/spec-kit/triage-service/pkg/util"
)

const (
	hypothesisCount = 3
	// confidenceTolerance is how far the hypothesis confidences may drift
	// from summing to 1.0 before renormalization kicks in.
	confidenceTolerance = 0.1
)

// DocRetriever serves similarity-ranked documentation lookups.
type DocRetriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error)
}

// PatternMatcher matches ticket text against the known-signature library.
type PatternMatcher interface {
	Match(text string) []domain.Pattern
}

// FaultTolerantCaller guards the reasoning call; in production it is the
// shared circuit breaker for the reasoning service.
type FaultTolerantCaller interface {
	Call(ctx context.Context, op breaker.Operation) error
}

// Dependencies bundles the engine's collaborators.
type Dependencies struct {
	Retriever DocRetriever
	Logs      logsearch.Searcher
	Matcher   PatternMatcher
	Client    llm.ReasoningClient
	Caller    FaultTolerantCaller
	Logger    *zap.Logger
	// CallTimeout bounds a single reasoning call; zero means no deadline.
	CallTimeout time.Duration
}

// Engine runs the diagnose pipeline for one ticket at a time. Instances
// are safe for concurrent use; all mutable state lives in collaborators.
type Engine struct {
	retriever DocRetriever
	logs      logsearch.Searcher
	matcher   PatternMatcher
	client    llm.ReasoningClient
	caller    FaultTolerantCaller
	logger    *zap.Logger

	topK        int
	temperature float64
	callTimeout time.Duration
}

// NewEngine constructs the engine.
func NewEngine(deps Dependencies, topK int, temperature float64) *Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if topK <= 0 {
		topK = 3
	}
	if temperature <= 0 {
		temperature = 0.1
	}
	return &Engine{
		retriever:   deps.Retriever,
		logs:        deps.Logs,
		matcher:     deps.Matcher,
		client:      deps.Client,
		caller:      deps.Caller,
		logger:      deps.Logger,
		topK:        topK,
		temperature: temperature,
		callTimeout: deps.CallTimeout,
	}
}

// Diagnose produces a DiagnosisResult for the ticket. The result always
// satisfies the contract shape: exactly three hypotheses, confidences
// summing to 1.0 within tolerance. Reasoning-service or parse failures
// yield the degraded fallback instead of an error.
func (e *Engine) Diagnose(ctx context.Context, ticketText string, classification domain.Classification, merchant *domain.Merchant) domain.DiagnosisResult {
	result, err := e.diagnose(ctx, ticketText, classification, merchant)
	if err != nil {
		e.logger.Error("diagnosis failed, using degraded fallback", zap.Error(err))
		return Fallback(err)
	}
	return result
}

func (e *Engine) diagnose(ctx context.Context, ticketText string, classification domain.Classification, merchant *domain.Merchant) (domain.DiagnosisResult, error) {
	evidence := e.gatherEvidence(ctx, ticketText, classification)
	if evidence.IsEmpty() {
		e.logger.Warn("no supporting evidence gathered, diagnosing from ticket text alone")
	}

	prompt := buildPrompt(ticketText, classification, merchant, evidence)

	callCtx := ctx
	if e.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
	}

	var raw string
	err := e.caller.Call(callCtx, func(ctx context.Context) error {
		text, genErr := e.client.Generate(ctx, prompt, llm.GenerateOptions{
			Temperature:      e.temperature,
			StructuredOutput: true,
		})
		if genErr != nil {
			return genErr
		}
		raw = text
		return nil
	})
	if err != nil {
		if errors.Is(err, breaker.ErrUnavailable) {
			return domain.DiagnosisResult{}, util.NewDependencyUnavailable("reasoning service", err)
		}
		return domain.DiagnosisResult{}, util.NewDependencyFailure("reasoning service", err)
	}

	result, err := parseDiagnosis(raw)
	if err != nil {
		return domain.DiagnosisResult{}, util.NewMalformedResponse("reasoning service", err)
	}

	result = repairShape(result)
	result = normalizeConfidences(result)
	if err := validate(result); err != nil {
		return domain.DiagnosisResult{}, util.NewMalformedResponse("reasoning service", err)
	}
	return result, nil
}

// gatherEvidence fans out the three independent evidence sources and
// waits for all of them before returning. Each source tolerates its own
// failure: a failed arm contributes empty evidence rather than aborting
// the diagnosis.
func (e *Engine) gatherEvidence(ctx context.Context, ticketText string, classification domain.Classification) domain.EvidenceBundle {
	var bundle domain.EvidenceBundle

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if e.retriever == nil {
			return nil
		}
		docs, err := e.retriever.Retrieve(gctx, ticketText, e.topK)
		if err != nil {
			e.logger.Warn("doc retrieval failed, continuing without docs", zap.Error(err))
			return nil
		}
		bundle.Documents = docs
		return nil
	})

	g.Go(func() error {
		if e.logs == nil {
			return nil
		}
		keywords := []string{string(classification.Category), "error", "failed", "timeout"}
		lines, err := e.logs.Search(gctx, keywords)
		if err != nil {
			e.logger.Warn("log search failed, continuing without logs", zap.Error(err))
			return nil
		}
		bundle.LogLines = lines
		return nil
	})

	g.Go(func() error {
		if e.matcher == nil {
			return nil
		}
		bundle.Patterns = e.matcher.Match(ticketText)
		return nil
	})

	// Arms never return errors; Wait is the fan-in barrier.
	_ = g.Wait()
	return bundle
}

// wireHypothesis tolerates the payload variance the model produces:
// evidence may arrive as a string or a list of strings.
type wireHypothesis struct {
	Name       string          `json:"name"`
	Category   string          `json:"category"`
	Confidence float64         `json:"confidence"`
	Evidence   json.RawMessage `json:"evidence"`
}

type wireDiagnosis struct {
	Hypotheses        []wireHypothesis `json:"hypotheses"`
	RootCause         string           `json:"root_cause"`
	RecommendedAction string           `json:"recommended_action"`
}

func parseDiagnosis(raw string) (domain.DiagnosisResult, error) {
	var wire wireDiagnosis
	if err := json.Unmarshal([]byte(llm.StripFences(raw)), &wire); err != nil {
		return domain.DiagnosisResult{}, fmt.Errorf("parse diagnosis: %w", err)
	}
	if len(wire.Hypotheses) == 0 {
		return domain.DiagnosisResult{}, fmt.Errorf("diagnosis contains no hypotheses")
	}

	result := domain.DiagnosisResult{
		RootCause:         wire.RootCause,
		RecommendedAction: wire.RecommendedAction,
	}
	for _, h := range wire.Hypotheses {
		result.Hypotheses = append(result.Hypotheses, domain.Hypothesis{
			Name:       h.Name,
			Category:   parseHypothesisCategory(h.Category),
			Confidence: h.Confidence,
			Evidence:   parseEvidenceField(h.Evidence),
		})
	}
	return result, nil
}

func parseHypothesisCategory(raw string) domain.HypothesisCategory {
	for _, c := range domain.HypothesisCategories() {
		if string(c) == raw {
			return c
		}
	}
	return domain.HypothesisPlatformBug
}

func parseEvidenceField(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "" {
			return nil
		}
		return []string{asString}
	}
	var asSlice []string
	if err := json.Unmarshal(raw, &asSlice); err == nil {
		return asSlice
	}
	return nil
}

// repairShape forces exactly three hypotheses without re-invoking the
// model: extras are truncated (the model ranks them), missing slots are
// padded with zero-weight placeholders.
func repairShape(result domain.DiagnosisResult) domain.DiagnosisResult {
	if len(result.Hypotheses) == hypothesisCount {
		return result
	}
	if len(result.Hypotheses) > hypothesisCount {
		result.Hypotheses = result.Hypotheses[:hypothesisCount]
		result.UncertaintyNote = "model returned extra hypotheses; lowest-ranked were dropped"
		return result
	}
	for len(result.Hypotheses) < hypothesisCount {
		result.Hypotheses = append(result.Hypotheses, domain.Hypothesis{
			Name:       "Insufficient evidence for a further hypothesis",
			Category:   domain.HypothesisPlatformBug,
			Confidence: 0,
			Evidence:   []string{"padded to complete the hypothesis set"},
		})
	}
	result.UncertaintyNote = "model returned fewer than three hypotheses; set was padded"
	return result
}

// normalizeConfidences rescales the hypothesis confidences when their sum
// deviates from 1.0 beyond tolerance. Rescaling preserves relative rank.
func normalizeConfidences(result domain.DiagnosisResult) domain.DiagnosisResult {
	var sum float64
	for _, h := range result.Hypotheses {
		sum += h.Confidence
	}
	// The epsilon keeps exact-boundary sums (for example 0.4+0.3+0.2)
	// from tripping renormalization on float rounding alone.
	if sum > 0 && math.Abs(sum-1.0) > confidenceTolerance+1e-9 {
		for i := range result.Hypotheses {
			result.Hypotheses[i].Confidence /= sum
		}
	}
	return result
}

func validate(result domain.DiagnosisResult) error {
	if len(result.Hypotheses) != hypothesisCount {
		return fmt.Errorf("expected %d hypotheses, got %d", hypothesisCount, len(result.Hypotheses))
	}
	var sum float64
	for _, h := range result.Hypotheses {
		if h.Confidence < 0 {
			return fmt.Errorf("hypothesis %q has negative confidence", h.Name)
		}
		sum += h.Confidence
	}
	if sum <= 0 {
		return fmt.Errorf("hypothesis confidences sum to zero")
	}
	return nil
}

// Fallback is the fixed degraded result returned when the reasoning
// service cannot produce a usable diagnosis. The triggering error is
// embedded in the first hypothesis's evidence for observability.
func Fallback(cause error) domain.DiagnosisResult {
	causeText := "unknown failure"
	if cause != nil {
		causeText = cause.Error()
	}
	return domain.DiagnosisResult{
		Hypotheses: []domain.Hypothesis{
			{
				Name:       "External reasoning service failure",
				Category:   domain.HypothesisPlatformBug,
				Confidence: 0.85,
				Evidence:   []string{"diagnosis fallback engaged", causeText},
			},
			{
				Name:       "Configuration drift",
				Category:   domain.HypothesisConfigError,
				Confidence: 0.10,
				Evidence:   []string{"no model reasoning available"},
			},
			{
				Name:       "Transient network interruption",
				Category:   domain.HypothesisPlatformBug,
				Confidence: 0.05,
				Evidence:   []string{"no model reasoning available"},
			},
		},
		RootCause:         "Diagnosis degraded: reasoning service unavailable",
		RecommendedAction: "Retry after the reasoning service recovers; escalate to a human for urgent tickets.",
		Degraded:          true,
		UncertaintyNote:   causeText,
	}
}
