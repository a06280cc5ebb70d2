package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Adithyanmurthy/Loan-Chatbot/internal/loan"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/upstream"
)

// collectionHandler gathers the four fields the flow cannot start without:
// name, mobile number, customer ID, and requested amount. It accepts them
// from the form or from prose, in any order and across any number of
// messages. Once the set is complete it quotes options and moves the
// session to sales negotiation.
type collectionHandler struct {
	offers upstream.OfferSource
	events *EventLogger
}

func (h *collectionHandler) handle(ctx context.Context, sctx *Context, event Event) (result, error) {
	var delta CollectedData

	switch event.Kind {
	case EventForm:
		f := event.Form
		delta = CollectedData{
			CustomerName:    strings.TrimSpace(f.Name),
			Phone:           strings.TrimSpace(f.Phone),
			CustomerID:      strings.TrimSpace(f.CustomerID),
			RequestedAmount: f.Amount,
			TenureMonths:    f.TenureMonths,
		}
	case EventText:
		delta = CollectedData{
			CustomerName:    parseName(event.Text),
			Phone:           parsePhone(event.Text),
			CustomerID:      parseCustomerID(event.Text),
			City:            parseCity(event.Text),
			RequestedAmount: parseAmount(event.Text),
			TenureMonths:    parseTenure(event.Text),
		}
	case EventOption, EventFile:
		return textResult("We're not quite there yet. " + missingFieldsPrompt(sctx.Collected)), nil
	default:
		return result{}, ErrMalformedEvent
	}

	if delta.RequestedAmount != 0 {
		if err := loan.ValidateAmount(delta.RequestedAmount); err != nil {
			// Out-of-range amounts are dropped, not stored; everything else
			// in the same message still counts.
			delta.RequestedAmount = 0
			return result{
				patch: Patch{Data: delta},
				message: fmt.Sprintf(
					"We offer personal loans from %s to %s. Please pick an amount in that range.",
					inr(loan.MinAmount), inr(loan.MaxAmount)),
				replyType: ReplyText,
			}, nil
		}
	}

	return h.progress(ctx, sctx, delta)
}

// progress merges the delta over the snapshot, then either asks for what is
// still missing or completes collection by quoting loan options.
func (h *collectionHandler) progress(ctx context.Context, sctx *Context, delta CollectedData) (result, error) {
	merged := sctx.Collected.clone()
	merged.merge(delta)

	if missing := missingFields(merged); len(missing) != 0 {
		return result{
			patch:     Patch{Data: delta},
			message:   missingFieldsPrompt(merged),
			replyType: ReplyText,
		}, nil
	}

	offer, err := h.offers.OfferByID(ctx, merged.CustomerID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return result{}, err
		}
		h.events.UpstreamDegraded(ctx, sctx.SessionID, sctx.Stage, "offer_mart", err)
		return result{
			patch: Patch{
				Data:   delta,
				Errors: []ErrorEntry{newErrorEntry("offer_lookup", err)},
			},
			message:   "Thanks, I have your details. Our offer service is taking a moment, please try again shortly.",
			replyType: ReplyError,
		}, nil
	}

	delta.PreApprovedLimit = offer.PreApprovedLimit
	delta.OfferRate = offer.InterestRate
	delta.TenureOptions = offer.TenureOptions
	delta.OfferIsDefault = upstream.IsDefaultOffer(offer)

	options, err := loan.BuildOptions(merged.RequestedAmount, offer.InterestRate, offer.TenureOptions)
	if err != nil {
		return result{}, fmt.Errorf("conversation: failed to build loan options: %w", err)
	}
	delta.Options = options

	h.events.OptionsPresented(ctx, sctx.SessionID, len(options), offer.InterestRate)

	return result{
		patch: Patch{
			Stage:         StageSalesNegotiation,
			Data:          delta,
			AddTasks:      []string{TaskPresentOptions},
			CompleteTasks: []string{TaskCollectDetails},
		},
		message:   optionsMessage(merged.CustomerName, options, delta.OfferIsDefault),
		replyType: ReplyOptions,
		metadata:  map[string]string{"optionCount": fmt.Sprintf("%d", len(options))},
	}, nil
}

func missingFields(d CollectedData) []string {
	var missing []string
	if d.CustomerName == "" {
		missing = append(missing, "your full name")
	}
	if d.Phone == "" {
		missing = append(missing, "your registered mobile number")
	}
	if d.CustomerID == "" {
		missing = append(missing, "your customer ID")
	}
	if d.RequestedAmount == 0 {
		missing = append(missing, "the loan amount you need")
	}
	return missing
}

func missingFieldsPrompt(d CollectedData) string {
	missing := missingFields(d)
	if len(missing) == 0 {
		return "I have everything I need."
	}
	return "To find your best loan options I still need " + joinList(missing) + "."
}

// joinList renders "a", "a and b", "a, b and c".
func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
