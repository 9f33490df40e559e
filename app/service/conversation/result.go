package conversation

import (
	"leadagent/app/model"
	"leadagent/app/service/strategy"
)

const finalizedReply = "Esta conversación ya ha finalizado. Por favor, recarga la página para iniciar una nueva."

// TurnResult is the public projection of a processed turn.
type TurnResult struct {
	Reply               string                     `json:"reply"`
	Probability         int                        `json:"probability"`
	Stage               model.Stage                `json:"stage"`
	Profile             string                     `json:"profile"`
	Fields              model.Fields               `json:"extracted_fields"`
	RecommendedProducts []model.RecommendedProduct `json:"recommended_products"`
	Strategy            strategy.Strategy          `json:"strategy,omitempty"`
	Closed              bool                       `json:"closed"`
	Revision            string                     `json:"revision,omitempty"`
}

func newResult(state *model.State, reply string) *TurnResult {
	products := state.Products
	if products == nil {
		products = []model.RecommendedProduct{}
	}

	return &TurnResult{
		Reply:               reply,
		Probability:         state.Probability,
		Stage:               state.Stage,
		Profile:             state.Profile,
		Fields:              state.Fields.Clone(),
		RecommendedProducts: products,
		Closed:              state.Closed(),
	}
}
