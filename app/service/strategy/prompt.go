package strategy

import (
	"encoding/json"
	"fmt"
	"strings"

	"leadagent/app/model"

	_ "embed"

	"github.com/elliotchance/pie/v2"
	"github.com/tmc/langchaingo/llms"
)

//go:embed prompt_template.txt
var promptTemplate string

const (
	historyTurns  = 4
	promptTiers   = 2
	noUtterance   = "(el usuario no escribió nada)"
	defaultPerson = "Cliente"
)

type instruction struct {
	text     func(p promptInput) string
	maxWords int
}

type promptInput struct {
	state     *model.State
	assistant string
	company   string
}

func (p promptInput) product(fallback string) string {
	if len(p.state.Products) == 0 {
		return fallback
	}

	return p.state.Products[0].Name
}

func (p promptInput) field(field model.Field, fallback string) string {
	if v := p.state.Fields.Get(field); v != "" {
		return v
	}

	return fallback
}

var instructions = map[Strategy]instruction{
	Greeting: {
		maxWords: 20,
		text: func(p promptInput) string {
			return fmt.Sprintf("- Di: %q\n- NO menciones productos", GreetingText(p.assistant, p.company))
		},
	},
	AskNameOnly: {
		maxWords: 20,
		text: func(p promptInput) string {
			var b strings.Builder
			if len(p.state.Products) > 0 {
				fmt.Fprintf(&b, "- Di: \"Perfecto, nuestro %s es ideal.\"\n", p.product("producto"))
			}
			b.WriteString("- Pregunta SOLO el nombre: \"¿Cuál es tu nombre?\"")
			return b.String()
		},
	},
	AskSector: {
		maxWords: 20,
		text: func(p promptInput) string {
			return fmt.Sprintf("- Saluda: \"¡Hola %s!\"\n- Pregunta: \"¿En qué sector trabajas?\" o \"¿A qué se dedica tu negocio?\"",
				p.field(model.FieldName, ""))
		},
	},
	PresentAskContact: {
		maxWords: 35,
		text: func(p promptInput) string {
			return fmt.Sprintf("- Menciona el PRODUCTO YA DETECTADO: \"%s\"\n- Pide AMBOS: \"¿Me compartes tu correo y teléfono?\"",
				p.product("Nuestro producto"))
		},
	},
	AskMissingPhone: {
		maxWords: 20,
		text: func(promptInput) string {
			return "- Di: \"Perfecto, solo me falta tu teléfono para que un asesor se contacte contigo\""
		},
	},
	AskMissingEmail: {
		maxWords: 20,
		text: func(promptInput) string {
			return "- Di: \"Perfecto, solo me falta tu correo para enviarte la información\""
		},
	},
	CloseConfirmed: {
		maxWords: 30,
		text: func(p promptInput) string {
			return fmt.Sprintf("- Menciona el PRODUCTO DETECTADO originalmente\n- Agradece\n"+
				"- Di: \"Un asesor se contactará contigo sobre %s\"\n- Confirma: \"Te enviamos información a %s\"",
				p.product("nuestras soluciones"), p.field(model.FieldEmail, "tu correo"))
		},
	},
	SoftClose: {
		maxWords: 30,
		text: func(p promptInput) string {
			return fmt.Sprintf("- Agradece a %s por su tiempo\n- Resume en una frase %s\n"+
				"- Indica que puede volver a escribir cuando quiera",
				p.field(model.FieldName, defaultPerson), p.product("nuestras soluciones"))
		},
	},
	Farewell: {
		maxWords: 15,
		text: func(promptInput) string {
			return "- Agradece\n- Despedida cordial"
		},
	},
	Continue: {
		maxWords: 30,
		text: func(promptInput) string {
			return "- Responde la consulta del usuario de forma breve\n- Ofrece ayuda adicional"
		},
	},
}

// MaxWords returns the reply word ceiling of a strategy.
func MaxWords(s Strategy) int {
	return instructions[s].maxWords
}

func GreetingText(assistant, company string) string {
	return fmt.Sprintf("¡Hola! Soy %s, asistente de %s. ¿Cómo puedo ayudarte hoy?", assistant, company)
}

// Compose builds the reply prompt for the chosen strategy.
func Compose(state *model.State, strategy Strategy, utterance, assistant, company string) ([]llms.MessageContent, error) {
	in := promptInput{state: state, assistant: assistant, company: company}

	inst, ok := instructions[strategy]
	if !ok {
		inst = instructions[Continue]
	}

	fields, err := json.MarshalIndent(state.Fields, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields: %w", err)
	}

	prompt := strings.NewReplacer(
		"{assistant}", assistant,
		"{company}", company,
		"{history}", formatHistory(state.Recent(historyTurns)),
		"{fields}", string(fields),
		"{products}", formatProducts(state.Products),
		"{strategy}", string(strategy),
		"{instruction}", inst.text(in),
		"{max_words}", fmt.Sprint(inst.maxWords),
	).Replace(promptTemplate)

	if strings.TrimSpace(utterance) == "" {
		utterance = noUtterance
	}

	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, prompt),
		llms.TextParts(llms.ChatMessageTypeHuman, utterance),
	}, nil
}

func formatHistory(messages []model.ChatMessage) string {
	if len(messages) == 0 {
		return "Sin mensajes previos"
	}

	var b strings.Builder
	for _, msg := range messages {
		role := "Tú"
		if msg.Role == model.RoleUser {
			role = "Usuario"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, msg.Content)
	}

	return strings.TrimRight(b.String(), "\n")
}

func formatProducts(products []model.RecommendedProduct) string {
	if len(products) == 0 {
		return "\nNinguno"
	}

	var b strings.Builder
	for _, p := range products {
		fmt.Fprintf(&b, "\n- %s: %s", p.Name, p.Description)
		for _, tier := range pie.Top(p.Tiers, promptTiers) {
			fmt.Fprintf(&b, "\n  · %s (S/%.0f/mes)", tier.Name, tier.MonthlyPrice)
		}
	}

	return b.String()
}
