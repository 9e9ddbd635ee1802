package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Aegis-Guard/Aegisguard/internal/domain/conversation"
	"github.com/Aegis-Guard/Aegisguard/internal/domain/policy"
	"github.com/Aegis-Guard/Aegisguard/internal/domain/tool"
	"github.com/Aegis-Guard/Aegisguard/internal/port/outbound"
	"github.com/Aegis-Guard/Aegisguard/internal/telemetry"
)

// maxQueryChars bounds the similarity query text sent to the vector index.
const maxQueryChars = 8000

// GuardParams wires a Guard together. Predicates, Verifier, Watcher and
// Judge are required; the rest is optional (nil disables the concern).
type GuardParams struct {
	Predicates policy.PredicateStore
	Verifier   *Verifier
	Watcher    *PredicateWatcher
	Threats    *ThreatWatcher
	Judge      *Judge
	ChiefJudge *Judge
	Extractor  *Extractor
	Index      outbound.VectorIndex
	Registry   *tool.Registry
	Decisions  policy.DecisionQueryLog
	Metrics    *telemetry.Metrics
	Logger     *slog.Logger

	// MessageBufferSize is the shared conversation window depth.
	MessageBufferSize int
	// SenderHistorySize is the per-sender history depth.
	SenderHistorySize int
	// PredicateUpdateSize is the default top-k for predicate retrieval.
	PredicateUpdateSize int
	// ForceMessageCheck checks every message against the message policy
	// regardless of threat levels.
	ForceMessageCheck bool
}

// Guard is the mediator: it owns the conversation state and runs every
// checkpoint through the watcher, verifier and judge tiers. All public
// operations serialize on one mutex; the pipeline is stateful and its
// stages read and write shared conversation state in order.
//
// Runtime checkpoints fail open: when an oracle is unreachable the message
// or action passes and the failure is logged. Blocking a whole multi-agent
// workflow on a transient network error would be worse than missing one
// check.
type Guard struct {
	mu      sync.Mutex
	enabled bool
	force   bool

	predicates policy.PredicateStore
	verifier   *Verifier
	watcher    *PredicateWatcher
	threats    *ThreatWatcher
	judge      *Judge
	chief      *Judge
	extractor  *Extractor
	index      outbound.VectorIndex
	registry   *tool.Registry
	log        *conversation.Log
	ledger     *conversation.Ledger
	decisions  policy.DecisionQueryLog
	metrics    *telemetry.Metrics
	logger     *slog.Logger

	defaultK int
}

// NewGuard creates an enabled guard.
func NewGuard(p GuardParams) *Guard {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := p.Registry
	if registry == nil {
		registry = tool.NewRegistry()
	}
	defaultK := p.PredicateUpdateSize
	if defaultK == 0 {
		defaultK = conversation.DefaultWindowCapacity
	}
	return &Guard{
		enabled:    true,
		force:      p.ForceMessageCheck,
		predicates: p.Predicates,
		verifier:   p.Verifier,
		watcher:    p.Watcher,
		threats:    p.Threats,
		judge:      p.Judge,
		chief:      p.ChiefJudge,
		extractor:  p.Extractor,
		index:      p.Index,
		registry:   registry,
		log:        conversation.NewLog(p.MessageBufferSize),
		ledger:     conversation.NewLedger(p.SenderHistorySize),
		decisions:  p.Decisions,
		metrics:    p.Metrics,
		logger:     logger,
		defaultK:   defaultK,
	}
}

// Enable turns checkpoint enforcement on.
func (g *Guard) Enable() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = true
}

// Disable turns checkpoint enforcement off; every check passes through.
func (g *Guard) Disable() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = false
}

// Enabled reports whether enforcement is on.
func (g *Guard) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

// SetForceMessageCheck overrides the threat-level gating of message checks.
func (g *Guard) SetForceMessageCheck(force bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.force = force
}

// RegisterTool installs a tool description for judge prompts.
func (g *Guard) RegisterTool(name, description string) {
	g.registry.Register(name, description)
}

// RegisterTools installs tool descriptions in bulk.
func (g *Guard) RegisterTools(tools []tool.Registration) {
	g.registry.RegisterAll(tools)
}

// AddPolicy installs action-policy definitions.
func (g *Guard) AddPolicy(ctx context.Context, defs []policy.Definition) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.installLocked(ctx, policy.KindAction, defs)
}

// AddMessagePolicy installs message-policy definitions.
func (g *Guard) AddMessagePolicy(ctx context.Context, defs []policy.Definition) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.installLocked(ctx, policy.KindMessage, defs)
}

// AddPolicyFromFile extracts the document and installs the result as action
// policy.
func (g *Guard) AddPolicyFromFile(ctx context.Context, path string) error {
	return g.addFromFile(ctx, policy.KindAction, path)
}

// AddMessagePolicyFromFile extracts the document and installs the result as
// message policy.
func (g *Guard) AddMessagePolicyFromFile(ctx context.Context, path string) error {
	return g.addFromFile(ctx, policy.KindMessage, path)
}

func (g *Guard) addFromFile(ctx context.Context, kind policy.Kind, path string) error {
	start := time.Now()
	defs, err := g.extractor.Extract(ctx, path)
	if err != nil {
		return err
	}
	g.metrics.RecordIngestion(time.Since(start))

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.installLocked(ctx, kind, defs)
}

// AddPolicyFromList installs a pre-extracted policy list file (cache JSON
// or its YAML equivalent) as action policy, bypassing extraction.
func (g *Guard) AddPolicyFromList(ctx context.Context, path string) error {
	return g.addFromList(ctx, policy.KindAction, path)
}

// AddMessagePolicyFromList installs a pre-extracted policy list file as
// message policy.
func (g *Guard) AddMessagePolicyFromList(ctx context.Context, path string) error {
	return g.addFromList(ctx, policy.KindMessage, path)
}

func (g *Guard) addFromList(ctx context.Context, kind policy.Kind, path string) error {
	defs, err := policy.LoadDefinitionsFile(path)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.installLocked(ctx, kind, defs)
}

// DeactivatePolicies stashes the active action rules; checks pass until
// ActivatePolicy restores some of them.
func (g *Guard) DeactivatePolicies() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifier.Deactivate(policy.KindAction)
}

// ActivatePolicy restores the named action rules from the stash.
func (g *Guard) ActivatePolicy(names []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.verifier.Activate(policy.KindAction, names)
}

// Decisions returns up to n recent decisions, newest first.
func (g *Guard) Decisions(ctx context.Context, n int) ([]policy.Decision, error) {
	return g.decisions.Recent(ctx, n)
}

// QueryDecisions returns decisions matching the filter, newest first.
func (g *Guard) QueryDecisions(ctx context.Context, f policy.DecisionFilter) ([]policy.Decision, error) {
	return g.decisions.Query(ctx, f)
}

// ThreatLevel returns the agent's current threat level.
func (g *Guard) ThreatLevel(agent string) conversation.ThreatLevel {
	return g.ledger.Level(agent)
}

// installLocked installs definitions: predicates go to the store and the
// vector index, rules to the verifier. Predicate names referenced by rule
// logic but defined nowhere are auto-created with default false so
// evaluation never dangles. Callers hold g.mu.
func (g *Guard) installLocked(ctx context.Context, kind policy.Kind, defs []policy.Definition) error {
	rules := make(policy.Set, 0, len(defs))
	for _, def := range defs {
		for _, pd := range def.Predicates {
			g.installPredicateLocked(ctx, pd.Predicate())
		}
		rules.Upsert(def.Rule())
	}

	if err := g.verifier.Install(kind, rules); err != nil {
		return err
	}

	// Rules may reference predicates no definition declared.
	if names, err := policy.ReferencedPredicates(g.verifier.Rules(kind)); err == nil {
		for _, name := range names {
			if _, ok := g.predicates.Get(name); !ok {
				g.installPredicateLocked(ctx, policy.Predicate{
					Name:        name,
					Description: name,
				})
			}
		}
	}

	g.logger.Info("policy installed", "kind", kind,
		"rules", len(rules), "predicates", g.predicates.Len())
	return nil
}

func (g *Guard) installPredicateLocked(ctx context.Context, p policy.Predicate) {
	g.predicates.Upsert(p)
	if g.index == nil {
		return
	}
	if err := g.index.Add(ctx, p.Name, p.Document()); err != nil {
		g.logger.Warn("failed to index predicate", "predicate", p.Name, "error", err)
	}
}

// HandleMessage checks one inter-agent message. k controls predicate
// retrieval: negative uses the whole predicate set, zero uses the
// configured default, positive retrieves the top-k predicates most similar
// to the message. The first-ever message always uses the whole set.
func (g *Guard) HandleMessage(ctx context.Context, message string, k int, sender, recipient string) (bool, string) {
	ctx, span := telemetry.Tracer("guard").Start(ctx, "guard.check_message")
	defer span.End()

	g.mu.Lock()
	defer g.mu.Unlock()

	start := time.Now()
	record := func(allowed bool, reason string, stage policy.Stage, violated []string) (bool, string) {
		g.recordLocked(ctx, policy.Decision{
			Kind:      policy.KindMessage,
			Sender:    sender,
			Recipient: recipient,
			Allowed:   allowed,
			Reason:    reason,
			Stage:     stage,
			Violated:  violated,
			Elapsed:   time.Since(start),
		})
		return allowed, reason
	}

	if !g.enabled {
		return record(true, "", policy.StageDisabled, nil)
	}
	if message == "" || message == "None" {
		return record(true, "", policy.StageShortcut, nil)
	}

	first, duplicate := g.log.Observe(message)
	if duplicate {
		return record(true, "", policy.StageShortcut, nil)
	}
	if first {
		k = -1
	} else if k == 0 {
		k = g.defaultK
	}

	subset := g.predicateSubsetLocked(ctx, message, k)
	observation := renderObservation(g.log.Initial(), g.log.Transcript())

	if changed, err := g.watcher.Observe(ctx, observation, subset); err != nil {
		g.logger.Warn("predicate watcher unavailable, keeping current valuation", "error", err)
	} else {
		g.predicates.Apply(changed)
	}

	if sender != "" {
		g.assessSenderLocked(ctx, sender, recipient, message)
	}

	if !g.force {
		if !g.verifier.HasRules(policy.KindMessage) || sender == "" || recipient == "" {
			return record(true, "", policy.StageShortcut, nil)
		}
		senderLevel := g.ledger.Level(sender)
		recipientLevel := g.ledger.Level(recipient)
		if !senderLevel.Exceeds(conversation.CheckThreshold) &&
			!recipientLevel.Exceeds(conversation.CheckThreshold) {
			return record(true, "", policy.StageShortcut, nil)
		}
	}

	verdict, cached := g.verifier.Check(policy.KindMessage, g.predicates.Valuation())
	g.metrics.RecordCacheLookup(cached)
	if verdict.Allowed {
		stage := policy.StageVerifier
		if cached {
			stage = policy.StageCache
		}
		return record(true, "", stage, nil)
	}

	violations := verdict.ViolationSummary(g.verifier.Rules(policy.KindMessage))

	ruling, err := g.judge.JudgeMessage(ctx, observation, violations)
	if err != nil {
		g.logger.Warn("judge unavailable, allowing message", "error", err)
		return record(true, "", policy.StageJudge, verdict.Violated)
	}
	if ruling.Allowed {
		return record(true, ruling.Reason, policy.StageJudge, verdict.Violated)
	}

	final, err := g.chief.JudgeMessage(ctx, observation, violations)
	if err != nil {
		g.logger.Warn("chief judge unavailable, allowing message", "error", err)
		return record(true, "", policy.StageChiefJudge, verdict.Violated)
	}
	return record(final.Allowed, final.Reason, policy.StageChiefJudge, verdict.Violated)
}

// HandleAction checks one pending tool call. description may be empty when
// the tool was registered beforehand; a non-empty description registers the
// tool eagerly.
func (g *Guard) HandleAction(ctx context.Context, action, arguments, description, sender string) (bool, string) {
	ctx, span := telemetry.Tracer("guard").Start(ctx, "guard.check_action")
	defer span.End()

	g.mu.Lock()
	defer g.mu.Unlock()

	start := time.Now()
	record := func(allowed bool, reason string, stage policy.Stage, violated []string) (bool, string) {
		g.recordLocked(ctx, policy.Decision{
			Kind:     policy.KindAction,
			Sender:   sender,
			Tool:     action,
			Allowed:  allowed,
			Reason:   reason,
			Stage:    stage,
			Violated: violated,
			Elapsed:  time.Since(start),
		})
		return allowed, reason
	}

	if !g.enabled {
		return record(true, "", policy.StageDisabled, nil)
	}

	desc := tool.Descriptor{
		Name:        action,
		Description: g.registry.Describe(action, description),
		Arguments:   arguments,
	}

	verdict, cached := g.verifier.Check(policy.KindAction, g.predicates.Valuation())
	g.metrics.RecordCacheLookup(cached)
	if verdict.Allowed {
		stage := policy.StageVerifier
		if cached {
			stage = policy.StageCache
		}
		return record(true, "", stage, nil)
	}

	observation := renderObservation(g.log.Initial(), g.log.Transcript())
	violations := verdict.ViolationSummary(g.verifier.Rules(policy.KindAction))
	level := g.ledger.Level(sender)

	ruling, err := g.judge.JudgeAction(ctx, observation, level, violations, desc)
	if err != nil {
		g.logger.Warn("judge unavailable, allowing action", "tool", action, "error", err)
		return record(true, "", policy.StageJudge, verdict.Violated)
	}
	if ruling.Allowed {
		return record(true, ruling.Reason, policy.StageJudge, verdict.Violated)
	}

	final, err := g.chief.JudgeAction(ctx, observation, level, violations, desc)
	if err != nil {
		g.logger.Warn("chief judge unavailable, allowing action", "tool", action, "error", err)
		return record(true, "", policy.StageChiefJudge, verdict.Violated)
	}
	return record(final.Allowed, final.Reason, policy.StageChiefJudge, verdict.Violated)
}

// predicateSubsetLocked picks the predicates the watcher should consider.
// Callers hold g.mu.
func (g *Guard) predicateSubsetLocked(ctx context.Context, message string, k int) []policy.Predicate {
	if k < 0 || g.index == nil {
		return g.predicates.All()
	}
	query := message
	if len(query) > maxQueryChars {
		query = query[:maxQueryChars]
	}
	names, err := g.index.Query(ctx, query, k)
	if err != nil {
		g.logger.Warn("predicate index unavailable, using full set", "error", err)
		return g.predicates.All()
	}
	return g.predicates.Subset(names)
}

// assessSenderLocked updates the sender's history and threat level and
// contaminates the recipient. Callers hold g.mu.
func (g *Guard) assessSenderLocked(ctx context.Context, sender, recipient, message string) {
	history, level := g.ledger.Observe(sender, message)
	updated, err := g.threats.Assess(ctx, history, level)
	if err != nil {
		g.logger.Warn("threat watcher unavailable, keeping level",
			"sender", sender, "level", level, "error", err)
		updated = level
	}
	g.ledger.SetLevel(sender, updated)
	g.metrics.RecordThreatLevel(sender, int(updated))
	if recipient != "" {
		contaminated := g.ledger.Contaminate(recipient, updated)
		g.metrics.RecordThreatLevel(recipient, int(contaminated))
	}
}

// recordLocked appends one decision record and its metrics. Callers hold
// g.mu.
func (g *Guard) recordLocked(ctx context.Context, d policy.Decision) {
	d.ID = uuid.NewString()
	d.Timestamp = time.Now().UTC()
	g.metrics.RecordDecision(string(d.Kind), d.Allowed, string(d.Stage), d.Elapsed)
	if g.decisions == nil {
		return
	}
	if err := g.decisions.Record(ctx, d); err != nil {
		g.logger.Warn("failed to record decision", "error", err)
	}
	if !d.Allowed {
		g.logger.Info("checkpoint denied", "kind", d.Kind, "stage", d.Stage,
			"sender", d.Sender, "tool", d.Tool, "reason", d.Reason)
	}
}
