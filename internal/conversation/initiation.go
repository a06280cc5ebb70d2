package conversation

import (
	"context"
)

const (
	greetingMessage = "Great! I'd be happy to help you with a personal loan. " +
		"Please share your full name, registered mobile number, customer ID, " +
		"and the loan amount you need, or fill in the application form."

	introMessage = "Hello! Welcome to our personal loan service. I can help you " +
		"apply for a loan, check your options, and get a sanction letter in minutes. " +
		"Just tell me you're looking for a loan to get started."
)

// initiationHandler greets new sessions and spots loan interest. Intent
// inference lives here, never in the engine. Forms and detail-rich first
// messages skip the greeting and go straight into collection.
type initiationHandler struct {
	collect *collectionHandler
}

func (h *initiationHandler) handle(ctx context.Context, sctx *Context, event Event) (result, error) {
	switch event.Kind {
	case EventForm:
		// The customer led with the form. Collection logic decides whether
		// it is already complete.
		return h.forward(ctx, sctx, event)

	case EventText:
		if !wantsLoan(event.Text) {
			return textResult(introMessage), nil
		}
		// Detail-rich openers ("I'm Rajesh, CUST001, need 5 lakh") carry
		// everything collection wants; hand them over instead of asking
		// again for what the customer just typed.
		if parseAmount(event.Text) > 0 || parseCustomerID(event.Text) != "" {
			return h.forward(ctx, sctx, event)
		}
		return result{
			patch: Patch{
				Stage:    StageInformationCollection,
				AddTasks: []string{TaskCollectDetails},
			},
			message:   greetingMessage,
			replyType: ReplyText,
		}, nil

	case EventOption, EventFile:
		return textResult(introMessage), nil
	}
	return result{}, ErrMalformedEvent
}

// forward delegates to the collection handler and makes sure the session
// leaves initiation even when collection stays put waiting for more fields.
func (h *initiationHandler) forward(ctx context.Context, sctx *Context, event Event) (result, error) {
	res, err := h.collect.handle(ctx, sctx, event)
	if err != nil {
		return result{}, err
	}
	if res.patch.Stage == "" {
		res.patch.Stage = StageInformationCollection
	}
	res.patch.AddTasks = append(res.patch.AddTasks, TaskCollectDetails)
	return res, nil
}
