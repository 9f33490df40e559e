package model

type Field string

const (
	FieldName           Field = "name"
	FieldEmail          Field = "email"
	FieldPhone          Field = "phone"
	FieldSector         Field = "sector"
	FieldCompany        Field = "company"
	FieldBudget         Field = "budget"
	FieldUrgency        Field = "urgency"
	FieldPrimaryProblem Field = "primary_problem"
	FieldDecisionMaker  Field = "decision_maker"
)

var AllFields = []Field{
	FieldName,
	FieldEmail,
	FieldPhone,
	FieldSector,
	FieldCompany,
	FieldBudget,
	FieldUrgency,
	FieldPrimaryProblem,
	FieldDecisionMaker,
}

// Fields holds the structured data extracted from the lead. A nil pointer
// means the field is still unknown; once set it is never overwritten.
type Fields struct {
	Name           *string `json:"name,omitempty"`
	Email          *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone          *string `json:"phone,omitempty"`
	Sector         *string `json:"sector,omitempty"`
	Company        *string `json:"company,omitempty"`
	Budget         *string `json:"budget,omitempty"`
	Urgency        *string `json:"urgency,omitempty"`
	PrimaryProblem *string `json:"primary_problem,omitempty"`
	DecisionMaker  *bool   `json:"decision_maker,omitempty"`
}

func (f *Fields) text(field Field) **string {
	switch field {
	case FieldName:
		return &f.Name
	case FieldEmail:
		return &f.Email
	case FieldPhone:
		return &f.Phone
	case FieldSector:
		return &f.Sector
	case FieldCompany:
		return &f.Company
	case FieldBudget:
		return &f.Budget
	case FieldUrgency:
		return &f.Urgency
	case FieldPrimaryProblem:
		return &f.PrimaryProblem
	default:
		return nil
	}
}

func (f Fields) Has(field Field) bool {
	if field == FieldDecisionMaker {
		return f.DecisionMaker != nil
	}

	ptr := f.text(field)
	return ptr != nil && *ptr != nil && **ptr != ""
}

func (f Fields) Get(field Field) string {
	ptr := f.text(field)
	if ptr == nil || *ptr == nil {
		return ""
	}

	return **ptr
}

// SetText stores value if the field is still empty. It reports whether the value was stored.
func (f *Fields) SetText(field Field, value string) bool {
	if value == "" || f.Has(field) {
		return false
	}

	ptr := f.text(field)
	if ptr == nil {
		return false
	}

	*ptr = &value
	return true
}

func (f *Fields) SetDecisionMaker(value bool) bool {
	if f.DecisionMaker != nil {
		return false
	}

	f.DecisionMaker = &value
	return true
}

func (f Fields) Missing() []Field {
	var missing []Field
	for _, field := range AllFields {
		if !f.Has(field) {
			missing = append(missing, field)
		}
	}

	return missing
}

func (f Fields) HasContact() bool {
	return f.Has(FieldEmail) || f.Has(FieldPhone)
}

func (f Fields) Clone() Fields {
	c := Fields{}
	for _, field := range AllFields {
		if field == FieldDecisionMaker {
			continue
		}
		if f.Has(field) {
			c.SetText(field, f.Get(field))
		}
	}
	if f.DecisionMaker != nil {
		c.SetDecisionMaker(*f.DecisionMaker)
	}

	return c
}
