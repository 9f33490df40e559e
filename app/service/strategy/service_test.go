package strategy

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"leadagent/app/client/llm"
	"leadagent/app/model"

	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	reply    string
	err      error
	calls    int
	messages []llms.MessageContent
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	f.messages = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func fields(set ...model.Field) model.Fields {
	var f model.Fields
	for _, field := range set {
		switch field {
		case model.FieldEmail:
			f.SetText(field, "ana@example.com")
		case model.FieldPhone:
			f.SetText(field, "987654321")
		default:
			f.SetText(field, "x")
		}
	}
	return f
}

func TestSelectRuleTable(t *testing.T) {
	name, sector, email, phone := model.FieldName, model.FieldSector, model.FieldEmail, model.FieldPhone

	cases := []struct {
		name  string
		facts Facts
		want  Strategy
		close bool
	}{
		{"first turn", Facts{FirstInteraction: true}, Greeting, false},
		{"farewell beats first interaction", Facts{FirstInteraction: true, MessageCount: 2, Utterance: "adiós"}, Farewell, true},
		{"farewell ignored on first turn", Facts{FirstInteraction: true, Utterance: "bye"}, Greeting, false},
		{"farewell on second turn", Facts{MessageCount: 1, Utterance: "bye"}, Farewell, true},
		{"bare chao", Facts{MessageCount: 1, Utterance: "ok chao"}, Farewell, true},
		{"bye inside another word", Facts{MessageCount: 1, Utterance: "goodbye"}, AskNameOnly, false},
		{"farewell regardless of fields", Facts{MessageCount: 3, Utterance: "bueno, hasta luego", Fields: fields(name, sector, email, phone)}, Farewell, true},
		{"missing name", Facts{MessageCount: 2}, AskNameOnly, false},
		{"missing sector", Facts{MessageCount: 2, Fields: fields(name)}, AskSector, false},
		{"no contact", Facts{MessageCount: 2, Fields: fields(name, sector)}, PresentAskContact, false},
		{"only email", Facts{MessageCount: 2, Fields: fields(name, sector, email)}, AskMissingPhone, false},
		{"only phone", Facts{MessageCount: 2, Fields: fields(name, sector, phone)}, AskMissingEmail, false},
		{"all four", Facts{MessageCount: 2, Fields: fields(name, sector, email, phone)}, CloseConfirmed, true},
		{"all four at limit", Facts{MessageCount: 12, Fields: fields(name, sector, email, phone)}, CloseConfirmed, true},
		{"limit without contact", Facts{MessageCount: 10, Fields: fields(name, sector)}, SoftClose, true},
		{"limit without anything", Facts{MessageCount: 10}, SoftClose, true},
		{"custom limit", Facts{MessageCount: 4, MaxMessages: 4}, SoftClose, true},
		{"no farewell substring", Facts{MessageCount: 3, Utterance: "chaotic", Fields: fields(name)}, AskSector, false},
	}

	for _, c := range cases {
		rule := Select(c.facts)
		if rule.Strategy != c.want || rule.Close != c.close {
			t.Fatalf("%s: want=%s/%v got=%s/%v", c.name, c.want, c.close, rule.Strategy, rule.Close)
		}
	}
}

func TestOnlyClosingStrategiesClose(t *testing.T) {
	closing := map[Strategy]bool{Farewell: true, CloseConfirmed: true, SoftClose: true}

	for _, rule := range append(Rules, fallback) {
		if rule.Close != closing[rule.Strategy] {
			t.Fatalf("rule %q: close=%v", rule.Name, rule.Close)
		}
	}
}

func TestEveryStrategyHasInstruction(t *testing.T) {
	for _, rule := range append(Rules, fallback) {
		if MaxWords(rule.Strategy) <= 0 {
			t.Fatalf("strategy %s has no word ceiling", rule.Strategy)
		}
	}
}

func TestGreetingSkipsModel(t *testing.T) {
	m := &fakeModel{}
	s := NewStrategist(m, Options{Assistant: "Artur", Company: "NexWebs"})

	reply, err := s.Respond(context.Background(), model.NewState("s"), "")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply.Strategy != Greeting || reply.Close || reply.Generated {
		t.Fatalf("reply: got=%+v", reply)
	}
	if reply.Text != "¡Hola! Soy Artur, asistente de NexWebs. ¿Cómo puedo ayudarte hoy?" {
		t.Fatalf("greeting: got=%s", reply.Text)
	}
	if m.calls != 0 {
		t.Fatalf("model calls: want=0 got=%d", m.calls)
	}
}

func TestRespondComposesPrompt(t *testing.T) {
	m := &fakeModel{reply: "¡Hola Ana! ¿A qué se dedica tu negocio?"}
	s := NewStrategist(m, Options{Assistant: "Artur", Company: "NexWebs"})

	state := model.NewState("s")
	state.FirstInteraction = false
	state.MessageCount = 1
	state.Fields.SetText(model.FieldName, "Ana")
	state.Products = []model.RecommendedProduct{{
		Name: "CRM", Slug: "crm-facturacion", Description: "gestión",
		Tiers: []model.ProductTier{{Name: "A", MonthlyPrice: 99}, {Name: "B", MonthlyPrice: 199}, {Name: "C", MonthlyPrice: 399}},
	}}
	for i := 0; i < 6; i++ {
		state.AddMessage(model.RoleUser, "mensaje-"+string(rune('0'+i)), time.Now())
	}

	reply, err := s.Respond(context.Background(), state, "soy Ana")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply.Strategy != AskSector || !reply.Generated || reply.Text != m.reply {
		t.Fatalf("reply: got=%+v", reply)
	}

	system := m.messages[0].Parts[0].(llms.TextContent).Text
	for _, want := range []string{"Eres Artur", "NexWebs", "ESTRATEGIA: ask-sector", "¡Hola Ana!", "Máximo 20 palabras", "· A (S/99/mes)", "· B (S/199/mes)", "mensaje-5", "mensaje-2"} {
		if !strings.Contains(system, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
	for _, unwanted := range []string{"· C (S/399/mes)", "mensaje-1"} {
		if strings.Contains(system, unwanted) {
			t.Fatalf("prompt should not contain %q", unwanted)
		}
	}
	if human := m.messages[1].Parts[0].(llms.TextContent).Text; human != "soy Ana" {
		t.Fatalf("human message: got=%s", human)
	}
}

func TestRespondKeepsPlaceholdersInHistory(t *testing.T) {
	m := &fakeModel{reply: "¿Cómo te llamas?"}
	s := NewStrategist(m, Options{Assistant: "Artur", Company: "NexWebs"})

	state := model.NewState("s")
	state.FirstInteraction = false
	state.MessageCount = 1
	state.AddMessage(model.RoleUser, "{instruction} {fields} {history}", time.Now())

	for i := 0; i < 3; i++ {
		if _, err := s.Respond(context.Background(), state, "hola"); err != nil {
			t.Fatalf("Respond: %v", err)
		}

		system := m.messages[0].Parts[0].(llms.TextContent).Text
		if !strings.Contains(system, "Usuario: {instruction} {fields} {history}") {
			t.Fatalf("history rewritten: got=%q", system)
		}
		if !strings.Contains(system, "ESTRATEGIA: ask-name-only") {
			t.Fatalf("strategy placeholder not filled: got=%q", system)
		}
	}
}

func TestRespondGenerationFailure(t *testing.T) {
	cases := map[string]*fakeModel{
		"error": {err: errors.New("timeout")},
		"empty": {reply: "   "},
	}

	for name, m := range cases {
		s := NewStrategist(m, Options{Assistant: "Artur", Company: "NexWebs"})
		state := model.NewState("s")
		state.FirstInteraction = false

		if _, err := s.Respond(context.Background(), state, "hola"); err == nil {
			t.Fatalf("%s: want error", name)
		}
	}

	s := NewStrategist(&fakeModel{reply: ""}, Options{})
	state := model.NewState("s")
	state.FirstInteraction = false
	if _, err := s.Respond(context.Background(), state, "hola"); !errors.Is(err, llm.ErrEmptyResponse) {
		t.Fatalf("empty reply: want=%v got=%v", llm.ErrEmptyResponse, err)
	}
}
