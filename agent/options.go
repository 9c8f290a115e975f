package agent

import (
	"log/slog"
	"time"

	"github.com/strandworks/strand/budget"
	"github.com/strandworks/strand/event"
	"github.com/strandworks/strand/store"
	"github.com/strandworks/strand/tool"
)

// Options configures one agent run.
type Options struct {
	// MaxIterations is the hard bound on tool-exchange cycles. It is
	// always a fallback terminal regardless of the other signals.
	// Default is 10.
	MaxIterations int

	// StreamTimeout bounds each streamed model call. Default is 5 minutes.
	StreamTimeout time.Duration

	// BatchTimeout bounds each dispatched tool batch. It is intentionally
	// shorter than StreamTimeout. Default is 2 minutes.
	BatchTimeout time.Duration

	// Concurrent enables parallel tool execution within a batch.
	// Default is true; same-target calls are serialized either way.
	Concurrent bool

	// CompletionPhrase terminates the run when it appears in the model's
	// latest text output. Empty disables phrase detection.
	CompletionPhrase string

	// ConfidenceTarget terminates the run once average verification
	// confidence reaches it. Zero disables the signal.
	ConfidenceTarget float64

	// MaxErrors is the error budget: the run aborts after this many tool
	// error results. Default is 10.
	MaxErrors int

	// MaxArtifacts caps the number of distinct targets the run may touch.
	// Zero means unlimited.
	MaxArtifacts int

	// AwaitInputTool is a tool name whose invocation pauses the run for
	// user input, even when the name was never registered as a client
	// tool. Default is "request_user_input".
	AwaitInputTool string

	// Detector tunes stagnation detection.
	Detector DetectorConfig

	// Verifier cross-checks successful tool results. Nil disables
	// verification.
	Verifier tool.Verifier

	// Target extracts the resource a call touches, for artifact tracking
	// and same-target serialization. Default is tool.TargetOf.
	Target tool.TargetFunc

	// Model is the model identifier for every call in the run.
	Model string

	// System is the system prompt.
	System string

	// MaxTokens caps each response. Zero uses the client default.
	MaxTokens int

	// Temperature is the sampling temperature.
	Temperature float64

	// ContextStore supplies candidate context items for prompt assembly.
	// Nil disables context composition.
	ContextStore store.Store

	// ContextBudget is the token budget for composed context. Zero
	// disables context composition even when ContextStore is set.
	ContextBudget int

	// Operation selects the budget profile. Default is KindGeneration.
	Operation budget.OperationKind

	// Estimator counts tokens for the budget. Default is the heuristic.
	Estimator budget.Estimator

	// Events receives progress notifications, non-blocking. Nil disables
	// them.
	Events chan<- event.Event

	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Option is a functional option for configuring a run.
type Option func(*Options)

// WithMaxIterations sets the hard iteration bound.
func WithMaxIterations(n int) Option {
	return func(o *Options) { o.MaxIterations = n }
}

// WithStreamTimeout bounds each streamed model call.
func WithStreamTimeout(d time.Duration) Option {
	return func(o *Options) { o.StreamTimeout = d }
}

// WithBatchTimeout bounds each tool batch.
func WithBatchTimeout(d time.Duration) Option {
	return func(o *Options) { o.BatchTimeout = d }
}

// WithConcurrency enables or disables parallel tool execution.
func WithConcurrency(enabled bool) Option {
	return func(o *Options) { o.Concurrent = enabled }
}

// WithCompletionPhrase sets the explicit completion phrase.
func WithCompletionPhrase(phrase string) Option {
	return func(o *Options) { o.CompletionPhrase = phrase }
}

// WithConfidenceTarget sets the confidence termination threshold.
func WithConfidenceTarget(target float64) Option {
	return func(o *Options) { o.ConfidenceTarget = target }
}

// WithMaxErrors sets the tool error budget.
func WithMaxErrors(n int) Option {
	return func(o *Options) { o.MaxErrors = n }
}

// WithMaxArtifacts caps the distinct targets a run may touch.
func WithMaxArtifacts(n int) Option {
	return func(o *Options) { o.MaxArtifacts = n }
}

// WithAwaitInputTool names the tool whose call pauses the run for user
// input. The name pauses the run whether or not it is registered as a
// client tool.
func WithAwaitInputTool(name string) Option {
	return func(o *Options) { o.AwaitInputTool = name }
}

// WithDetector tunes stagnation detection.
func WithDetector(cfg DetectorConfig) Option {
	return func(o *Options) { o.Detector = cfg }
}

// WithVerifier enables result verification.
func WithVerifier(v tool.Verifier) Option {
	return func(o *Options) { o.Verifier = v }
}

// WithTargetFunc replaces the default target extraction.
func WithTargetFunc(fn tool.TargetFunc) Option {
	return func(o *Options) { o.Target = fn }
}

// WithModel sets the model identifier.
func WithModel(model string) Option {
	return func(o *Options) { o.Model = model }
}

// WithSystem sets the system prompt.
func WithSystem(system string) Option {
	return func(o *Options) { o.System = system }
}

// WithMaxTokens caps each response.
func WithMaxTokens(n int) Option {
	return func(o *Options) { o.MaxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Options) { o.Temperature = t }
}

// WithContext enables context composition from a store under a token
// budget.
func WithContext(s store.Store, totalBudget int) Option {
	return func(o *Options) {
		o.ContextStore = s
		o.ContextBudget = totalBudget
	}
}

// WithOperation selects the budget profile.
func WithOperation(kind budget.OperationKind) Option {
	return func(o *Options) { o.Operation = kind }
}

// WithEstimator replaces the token estimator.
func WithEstimator(fn budget.Estimator) Option {
	return func(o *Options) { o.Estimator = fn }
}

// WithEvents sets the progress notification channel.
func WithEvents(ch chan<- event.Event) Option {
	return func(o *Options) { o.Events = ch }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// ApplyOptions applies functional options over the defaults.
func ApplyOptions(opts ...Option) *Options {
	o := &Options{
		MaxIterations:  10,
		StreamTimeout:  5 * time.Minute,
		BatchTimeout:   2 * time.Minute,
		Concurrent:     true,
		MaxErrors:      10,
		AwaitInputTool: "request_user_input",
		Detector:       DefaultDetectorConfig(),
		Target:         tool.TargetOf,
		Operation:      budget.KindGeneration,
		Estimator:      budget.HeuristicEstimator,
		Logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
