package domain_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/lorrc/support-engine/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		sctx         domain.SignalContext
		wantCategory string
		wantPriority domain.TicketPriority
	}{
		{
			name:         "stolen card in spanish is critical fraud",
			text:         "mi tarjeta fue robada, ayuda urgente",
			wantCategory: domain.CategoryFraudReport,
			wantPriority: domain.PriorityCritical,
		},
		{
			name:         "blocked card is a card problem",
			text:         "mi tarjeta está bloqueada y no funciona en el atm",
			wantCategory: domain.CategoryCardProblem,
			wantPriority: domain.PriorityMedium,
		},
		{
			name:         "urgent transfer is an urgent transaction issue",
			text:         "necesito hacer una transferencia urgente ahora",
			wantCategory: domain.CategoryTransactionIssue,
			wantPriority: domain.PriorityUrgent,
		},
		{
			name:         "english fraud report",
			text:         "there is an unauthorized transaction, I think my card was stolen",
			wantCategory: domain.CategoryFraudReport,
			wantPriority: domain.PriorityCritical,
		},
		{
			name:         "balance question is a medium account inquiry",
			text:         "quisiera consultar el saldo de mi cuenta",
			wantCategory: domain.CategoryAccountInquiry,
			wantPriority: domain.PriorityMedium,
		},
		{
			name:         "app crash is technical support",
			text:         "la aplicación muestra un error y no carga",
			wantCategory: domain.CategoryTechnicalSupport,
			wantPriority: domain.PriorityMedium,
		},
		{
			name:         "unmatched text falls back to general inquiry",
			text:         "hola buenos días",
			wantCategory: domain.CategoryGeneralInquiry,
			wantPriority: domain.PriorityMedium,
		},
		{
			name:         "conversation urgency lifts an otherwise calm text",
			text:         "quisiera información sobre un préstamo",
			sctx:         domain.SignalContext{HighUrgency: true},
			wantCategory: domain.CategoryLoanRequest,
			wantPriority: domain.PriorityHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signal := domain.Classify(tt.text, tt.sctx)

			assert.Equal(t, tt.wantCategory, signal.Category)
			assert.Equal(t, tt.wantPriority, signal.Priority)
		})
	}

	t.Run("confidence grows with keyword hits and caps at one", func(t *testing.T) {
		none := domain.Classify("hola buenos días", domain.SignalContext{})
		one := domain.Classify("problema con mi tarjeta", domain.SignalContext{})
		many := domain.Classify("robo fraude estafa, me robaron, movimiento sospechoso", domain.SignalContext{})

		assert.Equal(t, 0.0, none.Confidence)
		assert.InDelta(t, 0.4, one.Confidence, 0.001)
		assert.Equal(t, 1.0, many.Confidence)
	})
}

func TestAutoTags(t *testing.T) {
	tags := domain.AutoTags("me robaron la tarjeta en el cajero, urgente", domain.CategoryFraudReport)

	assert.Contains(t, tags, domain.CategoryFraudReport)
	assert.Contains(t, tags, "fraud")
	assert.Contains(t, tags, "urgent")
	assert.Contains(t, tags, "atm")
	assert.NotContains(t, tags, "mobile")
}

func TestTitleFor(t *testing.T) {
	t.Run("short text yields the bare template", func(t *testing.T) {
		assert.Equal(t, "Card Problem", domain.TitleFor(domain.CategoryCardProblem, "tarjeta"))
	})

	t.Run("long text is truncated into the preview", func(t *testing.T) {
		title := domain.TitleFor(domain.CategoryFraudReport,
			"mi tarjeta fue robada ayer en la noche cerca de mi casa")

		assert.Contains(t, title, "Fraud & Security Report: ")
		assert.Contains(t, title, "...")
	})

	t.Run("unknown category falls back to general inquiry", func(t *testing.T) {
		assert.Equal(t, "General Inquiry", domain.TitleFor("mystery", "hola"))
	})

	t.Run("truncation never splits a multibyte character", func(t *testing.T) {
		text := strings.Repeat("a", 39) + "ñandú perdió su préstamo"

		title := domain.TitleFor(domain.CategoryGeneralInquiry, text)

		assert.True(t, utf8.ValidString(title))
		assert.Equal(t, "General Inquiry: "+strings.Repeat("a", 39)+"ñ...", title)
	})

	t.Run("preview threshold counts runes not bytes", func(t *testing.T) {
		// Ten accented characters are twenty bytes but still a short text.
		assert.Equal(t, "General Inquiry",
			domain.TitleFor(domain.CategoryGeneralInquiry, strings.Repeat("ñ", 10)))
	})
}
