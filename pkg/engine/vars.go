package engine

import (
	"context"
	"fmt"

	"github.com/ormasoftchile/scaf/pkg/actions"
	"github.com/ormasoftchile/scaf/pkg/model"
	"github.com/ormasoftchile/scaf/pkg/prompt"
)

// vars asks every question whose name is not yet in the model. Values
// supplied on the command line are never asked for again.
func (e *Engine) vars(ctx context.Context, v *actions.Vars, m model.Model) error {
	p := e.Prompter
	if p == nil {
		p = prompt.Defaults{}
	}
	for _, q := range v.Questions {
		if q.Name == "" || m.Has(q.Name) {
			continue
		}
		answer, err := p.Ask(ctx, q)
		if err != nil {
			return fmt.Errorf("vars: %w", err)
		}
		if q.Type == actions.QuestionConfirm {
			b, err := prompt.ParseBool(answer)
			if err != nil {
				return fmt.Errorf("vars: '%s': %w", q.Name, err)
			}
			m.PutIfAbsent(q.Name, b)
			continue
		}
		m.PutIfAbsent(q.Name, answer)
	}
	return nil
}
