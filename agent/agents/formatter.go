package agents

import (
	"context"
	"fmt"

	contractx "github.com/natthaphol/shopscout/agent/contract"
	convx "github.com/natthaphol/shopscout/agent/conversation"
)

// formatterImpl projects candidates into the documented wire shape. It never
// re-ranks, drops, or rewrites anything; order and field values pass through
// unchanged.
type formatterImpl struct{}

func (formatterImpl) Type() convx.AgentType {
	return convx.AgentFormatter
}

func (formatterImpl) Handle(_ context.Context, conv *convx.Context) (contractx.Outcome, error) {
	if conv == nil || conv.Candidates == nil {
		return contractx.Outcome{}, fmt.Errorf("%w: candidates are not set", contractx.ErrValidation)
	}

	products := make([]convx.ProductView, 0, len(conv.Candidates))
	for i, c := range conv.Candidates {
		if !c.Valid() {
			return contractx.Outcome{}, fmt.Errorf("%w: candidate %d (title=%q source=%q)", contractx.ErrFormatting, i, c.Title, c.Source)
		}
		products = append(products, convx.ProductView{
			Title:  c.Title,
			Price:  convx.FormatPrice(c.Price),
			Source: c.Source,
			URL:    c.URL,
		})
	}

	return contractx.Outcome{
		Answer:  &convx.FinalAnswer{Products: products},
		Summary: fmt.Sprintf("formatted %d products", len(products)),
	}, nil
}
