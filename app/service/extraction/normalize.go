package extraction

import (
	"fmt"
	"strings"
	"unicode"

	"leadagent/app/model"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
)

var sentinels = map[string]struct{}{
	"":          {},
	"null":      {},
	"none":      {},
	"n/a":       {},
	"na":        {},
	"nil":       {},
	"undefined": {},
	"-":         {},
}

var aliases = map[string]model.Field{
	"nombre":             model.FieldName,
	"telefono":           model.FieldPhone,
	"teléfono":           model.FieldPhone,
	"correo":             model.FieldEmail,
	"empresa":            model.FieldCompany,
	"presupuesto":        model.FieldBudget,
	"urgencia":           model.FieldUrgency,
	"problema_principal": model.FieldPrimaryProblem,
	"decisor":            model.FieldDecisionMaker,
}

func lookupField(key string) (model.Field, bool) {
	key = strings.ToLower(strings.TrimSpace(key))

	for _, field := range model.AllFields {
		if string(field) == key {
			return field, true
		}
	}

	field, ok := aliases[key]
	return field, ok
}

// IsSentinel reports whether a model output means "no value".
func IsSentinel(value string) bool {
	_, ok := sentinels[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

func (s *Service) normalize(field model.Field, raw any) (string, bool) {
	var value string

	switch v := raw.(type) {
	case string:
		value = v
	case float64, int, int64, bool:
		value = fmt.Sprint(v)
	default:
		return "", false
	}

	value = strings.TrimSpace(value)
	if IsSentinel(value) {
		return "", false
	}

	switch field {
	case model.FieldName:
		return cases.Title(language.Spanish).String(strings.Join(strings.Fields(value), " ")), true
	case model.FieldEmail:
		value = strings.ToLower(value)
		if err := s.validate.Var(value, "required,email"); err != nil {
			return "", false
		}
		return value, true
	case model.FieldPhone:
		return NormalizePhone(value)
	case model.FieldSector:
		return strings.ToLower(value), true
	default:
		return value, true
	}
}

// NormalizePhone keeps digits and an optional leading plus sign.
func NormalizePhone(value string) (string, bool) {
	value = strings.TrimSpace(value)
	plus := strings.HasPrefix(value, "+")

	var b strings.Builder
	for _, r := range value {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}

	digits := b.String()
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return "", false
	}

	if plus {
		return "+" + digits, true
	}

	return digits, true
}

func parseBool(raw any) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "si", "sí", "y", "1":
			return true, true
		case "false", "no", "n", "0":
			return false, true
		}
	}

	return false, false
}
