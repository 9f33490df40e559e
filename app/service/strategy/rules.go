package strategy

import (
	"leadagent/app/model"
	"leadagent/app/util/textmatch"
)

type Strategy string

const (
	Greeting          Strategy = "greeting"
	AskNameOnly       Strategy = "ask-name-only"
	AskSector         Strategy = "ask-sector"
	PresentAskContact Strategy = "present-and-ask-contact"
	AskMissingPhone   Strategy = "ask-missing-phone"
	AskMissingEmail   Strategy = "ask-missing-email"
	CloseConfirmed    Strategy = "close-confirmed"
	SoftClose         Strategy = "soft-close"
	Farewell          Strategy = "farewell"
	Continue          Strategy = "continue"
)

// SoftCloseAfter is the message count at which a conversation is wrapped up.
const SoftCloseAfter = 10

var farewellKeywords = textmatch.ParseAll("adios", "chao", "hasta luego", "bye", "gracias chao")

// Facts are the inputs of strategy selection.
type Facts struct {
	Utterance        string
	Fields           model.Fields
	MessageCount     int
	FirstInteraction bool
	MaxMessages      int
}

func FactsOf(state *model.State, utterance string, maxMessages int) Facts {
	return Facts{
		Utterance:        utterance,
		Fields:           state.Fields,
		MessageCount:     state.MessageCount,
		FirstInteraction: state.FirstInteraction,
		MaxMessages:      maxMessages,
	}
}

type Rule struct {
	Name     string
	Strategy Strategy
	Close    bool
	Match    func(f Facts) bool
}

// Rules is evaluated top to bottom; the first match wins.
var Rules = []Rule{
	{
		Name:     "farewell keyword after first turn",
		Strategy: Farewell,
		Close:    true,
		Match: func(f Facts) bool {
			return f.MessageCount > 0 && textmatch.Any(farewellKeywords, textmatch.Tokenize(f.Utterance))
		},
	},
	{
		Name:     "first interaction",
		Strategy: Greeting,
		Match: func(f Facts) bool {
			return f.FirstInteraction
		},
	},
	{
		Name:     "name, sector, email and phone known",
		Strategy: CloseConfirmed,
		Close:    true,
		Match: func(f Facts) bool {
			return f.Fields.Has(model.FieldName) &&
				f.Fields.Has(model.FieldSector) &&
				f.Fields.Has(model.FieldEmail) &&
				f.Fields.Has(model.FieldPhone)
		},
	},
	{
		Name:     "message limit reached",
		Strategy: SoftClose,
		Close:    true,
		Match: func(f Facts) bool {
			limit := f.MaxMessages
			if limit <= 0 {
				limit = SoftCloseAfter
			}
			return f.MessageCount >= limit
		},
	},
	{
		Name:     "name missing",
		Strategy: AskNameOnly,
		Match: func(f Facts) bool {
			return !f.Fields.Has(model.FieldName)
		},
	},
	{
		Name:     "sector missing",
		Strategy: AskSector,
		Match: func(f Facts) bool {
			return !f.Fields.Has(model.FieldSector)
		},
	},
	{
		Name:     "no contact",
		Strategy: PresentAskContact,
		Match: func(f Facts) bool {
			return !f.Fields.HasContact()
		},
	},
	{
		Name:     "phone missing",
		Strategy: AskMissingPhone,
		Match: func(f Facts) bool {
			return !f.Fields.Has(model.FieldPhone)
		},
	},
	{
		Name:     "email missing",
		Strategy: AskMissingEmail,
		Match: func(f Facts) bool {
			return !f.Fields.Has(model.FieldEmail)
		},
	},
}

var fallback = Rule{
	Name:     "default",
	Strategy: Continue,
	Match:    func(Facts) bool { return true },
}

// Select returns the first rule matching f.
func Select(f Facts) Rule {
	for _, rule := range Rules {
		if rule.Match(f) {
			return rule
		}
	}

	return fallback
}
