package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/rosatel/rosatel-ai-platform/internal/catalog"
	"github.com/rosatel/rosatel-ai-platform/internal/observability/metrics"
	"github.com/rosatel/rosatel-ai-platform/pkg/logging"
)

const (
	historyWindow    = 10
	defaultMaxTokens = 1024
)

// categoryRequests drives the fallback search: when the model answered
// without products but the customer clearly asked for a category, we
// search it ourselves and append the results.
var categoryRequests = []struct {
	keywords []string
	query    string
}{
	{[]string{"chocolate", "chocolates", "bombones"}, "chocolates"},
	{[]string{"peluche", "peluches", "oso", "osito"}, "peluche"},
	{[]string{"globo", "globos"}, "globos"},
	{[]string{"vino", "vinos", "espumante"}, "vino"},
	{[]string{"rosas", "flores", "ramo", "ramos", "arreglo"}, "flores"},
}

var requestWords = []string{"tienes", "tienen", "hay", "busco", "quiero", "vendes", "venden", "tendras", "muestrame", "necesito"}

// Engine runs one conversational turn end to end: session state,
// preference extraction, proactive catalog search, the model call and
// directive execution.
type Engine struct {
	sessions SessionStore
	catalog  catalog.Service
	context  *ContextEngine
	parser   *DirectiveParser
	upsell   *UpsellDetector
	offline  *OfflineResponder
	llm      LLMClient
	modelID  string

	logger  *logging.Logger
	metrics *metrics.ConversationMetrics
	tracer  trace.Tracer
	now     func() time.Time
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithLLMClient sets the model provider. Without one the engine always
// answers through the offline responder.
func WithLLMClient(client LLMClient, modelID string) EngineOption {
	return func(e *Engine) {
		e.llm = client
		e.modelID = modelID
	}
}

func WithMetrics(m *metrics.ConversationMetrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) { e.tracer = t }
}

// WithClock overrides the wall clock used for store hours.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine wires the turn pipeline. Sessions and catalog are required;
// checkoutBaseURL is the storefront origin used in payment links.
func NewEngine(sessions SessionStore, cat catalog.Service, checkoutBaseURL string, logger *logging.Logger, opts ...EngineOption) *Engine {
	if sessions == nil {
		panic("conversation: session store cannot be nil")
	}
	if cat == nil {
		panic("conversation: catalog service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{
		sessions: sessions,
		catalog:  cat,
		context:  NewContextEngine(cat, logger),
		parser:   NewDirectiveParser(cat, checkoutBaseURL, logger),
		upsell:   NewUpsellDetector(cat, logger),
		offline:  NewOfflineResponder(),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer("rosatel.internal.conversation.engine")
	}
	return e
}

// ProcessTurn handles one customer message and returns everything the
// channel needs to reply. The session is persisted before returning.
func (e *Engine) ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	ctx, span := e.tracer.Start(ctx, "conversation.process_turn")
	defer span.End()

	if err := req.Validate(); err != nil {
		e.metrics.ObserveTurn(string(req.Channel), "invalid")
		return nil, err
	}

	conv, err := e.sessions.GetOrCreate(ctx, req.SessionID, req.Channel, req.UserID)
	if err != nil {
		e.metrics.ObserveTurn(string(req.Channel), "error")
		return nil, err
	}

	ExtractPreferences(req.Message, &conv.Context)

	// A bare "si" answering a complement offer skips the model entirely.
	if outcome := e.upsell.Detect(ctx, req.Message, conv); outcome != nil {
		result := e.finishTurn(ctx, conv, req, outcome.Text, outcome.Products, nil)
		return result, nil
	}

	excerpt, found, upsellPick := e.proactiveSearch(ctx, req.Message, conv)

	raw := e.complete(ctx, conv, req.Message, excerpt, found, upsellPick)
	parsed := e.parser.Parse(ctx, raw, conv)

	e.reconcileUpsell(conv, &parsed)
	e.fallbackSearch(ctx, req.Message, conv, &parsed)

	for _, eff := range parsed.Effects {
		e.metrics.ObserveEffect(string(eff.Type))
	}

	result := e.finishTurn(ctx, conv, req, parsed.Text, parsed.Products, parsed.Effects)
	return result, nil
}

// proactiveSearch runs the context engine when the turn qualifies and
// records the chosen upsell on the session so a later "si" can resolve
// it.
func (e *Engine) proactiveSearch(ctx context.Context, message string, conv *Conversation) (string, []catalog.Product, *catalog.Product) {
	if !e.context.ShouldSearch(message, &conv.Context) {
		return "", nil, nil
	}
	excerpt, found, upsellPick, err := e.context.Excerpt(ctx, message, conv)
	if err != nil {
		e.logger.Warn("proactive search failed", "session_id", conv.SessionID, "error", err)
		return "", nil, nil
	}
	if upsellPick != nil {
		card := CardFromProduct(*upsellPick)
		card.IsUpsell = true
		conv.Context.PendingUpsell = &card
		conv.Context.LastUpsellID = upsellPick.ID
	}
	return excerpt, found, upsellPick
}

// complete asks the configured model for a reply and degrades to the
// offline responder when no provider is available or all fail.
func (e *Engine) complete(ctx context.Context, conv *Conversation, message, excerpt string, found []catalog.Product, upsellPick *catalog.Product) string {
	if e.llm == nil {
		return e.offline.Respond(conv, message, found, upsellPick)
	}

	msgs := make([]ChatMessage, 0, historyWindow+1)
	for _, m := range conv.Recent(historyWindow) {
		msgs = append(msgs, ChatMessage{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, ChatMessage{Role: ChatRoleUser, Content: message})

	req := LLMRequest{
		Model:       e.modelID,
		System:      BuildSystemBlocks(e.now(), conv, excerpt),
		Messages:    msgs,
		MaxTokens:   defaultMaxTokens,
		Temperature: 0.7,
	}

	start := time.Now()
	resp, err := e.llm.Complete(ctx, req)
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		if err != nil {
			e.logger.Error("model completion failed, answering offline", "session_id", conv.SessionID, "error", err)
		}
		e.metrics.ObserveModelLatency("offline", time.Since(start).Seconds())
		return e.offline.Respond(conv, message, found, upsellPick)
	}

	provider := resp.Provider
	if provider == "" {
		provider = "unknown"
	}
	e.metrics.ObserveModelLatency(provider, time.Since(start).Seconds())
	e.metrics.AddModelTokens(provider, int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens))
	return resp.Text
}

// fallbackSearch covers the model answering without products when it
// should have shown some. A categorically new request ("tienes
// chocolates?") is searched directly, ignoring the accumulated budget
// and occasion; otherwise, given enough context, the same search and
// budget filtering as the proactive path runs on the model's behalf.
func (e *Engine) fallbackSearch(ctx context.Context, message string, conv *Conversation, parsed *ParsedReply) {
	if len(parsed.Products) > 0 {
		return
	}
	msgText := normalizeText(message)

	if query := categoryRequest(msgText); query != "" {
		e.appendFallback(parsed, query, e.searchNewRequest(ctx, query, conv))
		return
	}

	// The generic branch stays out of the way when the turn was about
	// the cart or closing the purchase rather than browsing.
	replyText := normalizeText(parsed.Text)
	if strings.Contains(replyText, "agregado") || strings.Contains(replyText, "finaliza") {
		return
	}
	if strings.Contains(msgText, "carrito") || strings.Contains(msgText, "lo quiero") {
		return
	}

	results, query := e.searchFromContext(ctx, conv)
	e.appendFallback(parsed, query, results)
}

// searchNewRequest fulfills a direct category ask. No budget filter;
// only the product already offered as an upsell is skipped.
func (e *Engine) searchNewRequest(ctx context.Context, query string, conv *Conversation) []catalog.Product {
	results, err := e.catalog.Search(ctx, catalog.Query{Text: query, Limit: 5})
	if err != nil {
		e.logger.Warn("fallback category search failed", "query", query, "error", err)
		return nil
	}
	kept := results[:0]
	for _, p := range results {
		if p.ID == conv.Context.LastUpsellID {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

// searchFromContext reruns the proactive-style search when the session
// holds a budget plus at least one preference signal.
func (e *Engine) searchFromContext(ctx context.Context, conv *Conversation) ([]catalog.Product, string) {
	pctx := &conv.Context
	if !pctx.HasBudget() {
		return nil, ""
	}
	if pctx.Occasion == "" && pctx.ProductType == "" && pctx.Flower == "" && pctx.Color == "" {
		return nil, ""
	}

	q := e.context.BuildQuery("flores", pctx)
	results, err := e.catalog.Search(ctx, q)
	if err != nil {
		e.logger.Warn("fallback context search failed", "query", q.Text, "error", err)
		return nil, ""
	}
	if len(results) == 0 {
		// Nothing matched the preference wording; offer the cheapest
		// products rather than coming back empty handed.
		results, err = e.catalog.Cheapest(ctx, 3)
		if err != nil || len(results) == 0 {
			return nil, ""
		}
	}
	results = budgetFilter(results, pctx)
	if len(results) > 3 {
		results = results[:3]
	}
	return results, q.Text
}

// appendFallback attaches found products to the reply text and cards.
func (e *Engine) appendFallback(parsed *ParsedReply, query string, results []catalog.Product) {
	if len(results) == 0 {
		return
	}
	var b strings.Builder
	b.WriteString(parsed.Text)
	b.WriteString("\n\nTambién tenemos estas opciones:")
	for _, p := range results {
		fmt.Fprintf(&b, "\n**%s** - %s", p.Name, p.PriceLabel())
		parsed.Products = append(parsed.Products, CardFromProduct(p))
	}
	parsed.Text = b.String()
	parsed.Effects = append(parsed.Effects, Effect{
		Type:    EffectSearch,
		Query:   query,
		Results: len(results),
	})
}

// categoryRequest detects "tienes chocolates?" style asks and maps them
// to a catalog query. Cart talk is never a new request.
func categoryRequest(normalizedMsg string) string {
	if strings.Contains(normalizedMsg, "carrito") || strings.Contains(normalizedMsg, "agregar") {
		return ""
	}
	if !containsAny(normalizedMsg, requestWords) {
		return ""
	}
	for _, c := range categoryRequests {
		if containsAny(normalizedMsg, c.keywords) {
			return c.query
		}
	}
	return ""
}

// reconcileUpsell guarantees the offered complement appears exactly
// once and last among the displayed products.
func (e *Engine) reconcileUpsell(conv *Conversation, parsed *ParsedReply) {
	pending := conv.Context.PendingUpsell
	if pending == nil || len(parsed.Products) == 0 {
		return
	}
	kept := parsed.Products[:0]
	for _, card := range parsed.Products {
		if card.ProductID == pending.ProductID {
			continue
		}
		kept = append(kept, card)
	}
	parsed.Products = append(kept, *pending)
	// The offer is on screen now; LastUpsellID stays so an acceptance
	// can still resolve the exact product.
	conv.Context.PendingUpsell = nil
}

// finishTurn records the exchange, persists the session and shapes the
// transport result.
func (e *Engine) finishTurn(ctx context.Context, conv *Conversation, req TurnRequest, replyText string, products []ProductCard, effects []Effect) *TurnResult {
	conv.Append(ChatRoleUser, req.Message)
	conv.Append(ChatRoleAssistant, strings.Join(SplitBubbles(replyText), " "))

	if err := e.sessions.Save(ctx, conv); err != nil {
		// The reply is still worth delivering; the session just loses
		// this turn on the next load.
		e.logger.Error("failed to persist session", "session_id", conv.SessionID, "error", err)
		e.metrics.ObserveTurn(string(req.Channel), "save_failed")
	} else {
		e.metrics.ObserveTurn(string(req.Channel), "ok")
	}

	return &TurnResult{
		SessionID: conv.SessionID,
		Channel:   req.Channel,
		Bubbles:   SplitBubbles(replyText),
		Products:  products,
		Effects:   effects,
		Cart:      conv.Cart.Snapshot(),
	}
}


// SplitBubbles turns a reply into the ordered chat bubbles a channel
// delivers. Empty segments are dropped; a fully empty reply becomes a
// single apology bubble so the customer is never left without answer.
func SplitBubbles(text string) []string {
	parts := strings.Split(text, BubbleSeparator)
	bubbles := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			bubbles = append(bubbles, trimmed)
		}
	}
	if len(bubbles) == 0 {
		bubbles = append(bubbles, "Disculpa, tuve un inconveniente. ¿Me repites qué estás buscando?")
	}
	return bubbles
}
