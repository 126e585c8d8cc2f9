package domain

import "strings"

// Ticket categories derived from escalation text.
const (
	CategoryAccountInquiry   = "account_inquiry"
	CategoryTransactionIssue = "transaction_issue"
	CategoryCardProblem      = "card_problem"
	CategoryLoanRequest      = "loan_request"
	CategoryFraudReport      = "fraud_report"
	CategoryTechnicalSupport = "technical_support"
	CategoryComplaint        = "complaint"
	CategoryGeneralInquiry   = "general_inquiry"
)

// Signal is the outcome of classifying an escalation: the derived category,
// the derived priority and a confidence score in [0, 1]. Classification
// never refuses: unmatched input yields general_inquiry at MEDIUM with
// confidence 0.
type Signal struct {
	Category   string
	Priority   TicketPriority
	Confidence float64
}

// SignalContext carries conversation metadata that influenced the escalation.
type SignalContext struct {
	HighUrgency   bool
	LowConfidence bool
}

// categoryKeywords is an ordered table: on a score tie the first-listed
// category wins. Declaration order therefore matters.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{CategoryFraudReport, []string{
		"robo", "robada", "robaron", "fraude", "estafa", "clonaron",
		"sospechoso", "unauthorized", "stolen", "theft", "fraud",
	}},
	{CategoryCardProblem, []string{
		"tarjeta", "card", "bloqueada", "no funciona", "chip", "atm",
	}},
	{CategoryTransactionIssue, []string{
		"transferencia", "pago", "cobro", "cargo", "descuento", "transaction",
	}},
	{CategoryAccountInquiry, []string{
		"saldo", "balance", "cuenta", "account", "movimientos",
	}},
	{CategoryLoanRequest, []string{
		"préstamo", "crédito", "financiamiento", "loan", "hipoteca", "mortgage",
	}},
	{CategoryTechnicalSupport, []string{
		"app", "aplicación", "sistema", "error", "no carga", "technical", "bug",
	}},
	{CategoryComplaint, []string{
		"queja", "reclamo", "molesto", "complaint", "unsatisfied",
	}},
}

// criticalKeywords force CRITICAL priority regardless of category.
var criticalKeywords = []string{
	"robo", "robada", "robaron", "fraude", "estafa", "emergencia",
	"emergency", "stolen", "theft", "fraud",
}

// urgencyKeywords force at least URGENT priority.
var urgencyKeywords = []string{
	"urgente", "urgent", "inmediato", "immediately", "rápido", "ahora", "ya",
}

// tagKeywords maps automatic tags to their trigger keywords.
var tagKeywords = map[string][]string{
	"urgent":        {"urgente", "urgent", "rápido", "ahora", "ya"},
	"fraud":         {"robo", "robada", "robaron", "fraude", "estafa", "sospechoso"},
	"mobile":        {"app", "móvil", "celular", "teléfono"},
	"online":        {"internet", "web", "online"},
	"atm":           {"cajero", "atm", "efectivo"},
	"international": {"internacional", "extranjero", "abroad"},
}

// Classify derives a category and priority from free-form escalation text.
// Categories are scored by counting keyword hits in the lower-cased text;
// the highest score wins, with ties broken by table order. Priority is
// computed independently: critical keywords force CRITICAL, urgency keywords
// force at least URGENT, then the context urgency flag, then MEDIUM.
func Classify(text string, sctx SignalContext) Signal {
	lower := strings.ToLower(text)

	best := CategoryGeneralInquiry
	bestHits := 0
	for _, entry := range categoryKeywords {
		hits := 0
		for _, kw := range entry.keywords {
			hits += strings.Count(lower, kw)
		}
		if hits > bestHits {
			best = entry.category
			bestHits = hits
		}
	}

	priority := PriorityMedium
	switch {
	case containsAny(lower, criticalKeywords):
		priority = PriorityCritical
	case containsAny(lower, urgencyKeywords):
		priority = PriorityUrgent
	case sctx.HighUrgency:
		priority = PriorityHigh
	}

	confidence := 0.0
	if bestHits > 0 {
		confidence = float64(bestHits) * 0.4
		if confidence > 1 {
			confidence = 1
		}
	}

	return Signal{Category: best, Priority: priority, Confidence: confidence}
}

// AutoTags derives the tag set for a ticket from its text and category.
func AutoTags(text, category string) []string {
	lower := strings.ToLower(text)
	tags := []string{category}
	for tag, keywords := range tagKeywords {
		if containsAny(lower, keywords) {
			tags = append(tags, tag)
		}
	}
	return tags
}

// titleTemplates maps categories to a human-readable title prefix.
var titleTemplates = map[string]string{
	CategoryFraudReport:      "Fraud & Security Report",
	CategoryCardProblem:      "Card Problem",
	CategoryTransactionIssue: "Transaction Inquiry",
	CategoryAccountInquiry:   "Account Inquiry",
	CategoryLoanRequest:      "Loan & Credit Request",
	CategoryTechnicalSupport: "Technical Support",
	CategoryComplaint:        "Complaint",
	CategoryGeneralInquiry:   "General Inquiry",
}

// TitleFor builds a descriptive ticket title from the category template and
// a preview of the escalation text.
func TitleFor(category, text string) string {
	base, ok := titleTemplates[category]
	if !ok {
		base = titleTemplates[CategoryGeneralInquiry]
	}

	// Preview length counts runes, not bytes, so accented text is never
	// split inside a character.
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= 10 {
		return base
	}
	if len(runes) > 40 {
		return base + ": " + string(runes[:40]) + "..."
	}
	return base + ": " + string(runes)
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
