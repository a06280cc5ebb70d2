package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Adithyanmurthy/Loan-Chatbot/internal/loan"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/upstream"
)

// salesHandler negotiates terms. Options were quoted when collection
// completed; this handler lands a selection, re-quotes when the customer
// pushes back on amount or tenure, and hands the session to verification
// once an option is picked.
type salesHandler struct {
	offers upstream.OfferSource
	events *EventLogger
}

func (h *salesHandler) handle(ctx context.Context, sctx *Context, event Event) (result, error) {
	// Sessions resumed from an older store snapshot can arrive here without
	// a cached offer. Re-fetch instead of failing them.
	if sctx.Collected.PreApprovedLimit == 0 {
		return h.requote(ctx, sctx, sctx.Collected.RequestedAmount)
	}

	switch event.Kind {
	case EventOption:
		return h.selectOption(ctx, sctx, event.Option.Index)

	case EventText:
		if idx := parseOptionIndex(event.Text, len(sctx.Collected.Options)); idx > 0 {
			return h.selectOption(ctx, sctx, idx)
		}
		if amount := parseAmount(event.Text); amount > 0 && amount != sctx.Collected.RequestedAmount {
			if err := loan.ValidateAmount(amount); err != nil {
				return textResult(fmt.Sprintf(
					"We offer personal loans from %s to %s. Please pick an amount in that range.",
					inr(loan.MinAmount), inr(loan.MaxAmount))), nil
			}
			return h.requote(ctx, sctx, amount)
		}
		if months := parseTenure(event.Text); months > 0 {
			return h.steerToTenure(sctx, months), nil
		}
		if isObjection(event.Text) {
			return h.easeObjection(sctx), nil
		}
		if isAgreement(event.Text) {
			return h.selectOption(ctx, sctx, recommendedIndex(sctx.Collected.Options))
		}
		return textResult("Which option would you prefer? Reply with the option number, " +
			"or tell me a different amount or tenure and I'll re-quote."), nil

	case EventForm:
		amount := event.Form.Amount
		if amount > 0 && amount != sctx.Collected.RequestedAmount {
			if err := loan.ValidateAmount(amount); err != nil {
				return textResult(fmt.Sprintf(
					"We offer personal loans from %s to %s. Please pick an amount in that range.",
					inr(loan.MinAmount), inr(loan.MaxAmount))), nil
			}
			return h.requote(ctx, sctx, amount)
		}
		if event.Form.TenureMonths > 0 {
			return h.steerToTenure(sctx, event.Form.TenureMonths), nil
		}
		return textResult("Which option would you prefer? Reply with the option number, " +
			"or tell me a different amount or tenure and I'll re-quote."), nil

	case EventFile:
		return textResult("No documents are needed at this point. " +
			"Pick one of the options first and I'll take it from there."), nil
	}
	return result{}, ErrMalformedEvent
}

// selectOption pins the chosen option and moves to identity verification.
func (h *salesHandler) selectOption(ctx context.Context, sctx *Context, index int) (result, error) {
	options := sctx.Collected.Options
	if index < 1 || index > len(options) {
		return textResult(fmt.Sprintf(
			"Please pick an option between 1 and %d.", len(options))), nil
	}
	chosen := options[index-1]

	h.events.OptionSelected(ctx, sctx.SessionID, index, chosen.TenureMonths, chosen.EMI)

	msg := fmt.Sprintf(
		"Excellent choice! You've selected %s over %d months at %s per annum, "+
			"with a monthly EMI of %s. Next I'll verify your identity against your "+
			"registered details. Reply 'proceed' when you're ready.",
		inr(chosen.Amount), chosen.TenureMonths, pct(chosen.AnnualRate), inr(chosen.EMI))

	return result{
		patch: Patch{
			Stage: StageVerification,
			Data: CollectedData{
				SelectedOption: &chosen,
				TenureMonths:   chosen.TenureMonths,
			},
			AddTasks:      []string{TaskVerifyIdentity},
			CompleteTasks: []string{TaskPresentOptions},
		},
		message:   msg,
		replyType: ReplyText,
	}, nil
}

// requote rebuilds the option set for a new amount. The offer is re-fetched
// only when the snapshot lost it; otherwise the cached terms price the quote.
func (h *salesHandler) requote(ctx context.Context, sctx *Context, amount int64) (result, error) {
	if amount <= 0 {
		return textResult("Tell me the loan amount you have in mind and I'll quote your options."), nil
	}

	delta := CollectedData{RequestedAmount: amount}
	rate := sctx.Collected.OfferRate
	tenures := sctx.Collected.TenureOptions
	isDefault := sctx.Collected.OfferIsDefault

	if sctx.Collected.PreApprovedLimit == 0 {
		offer, err := h.offers.OfferByID(ctx, sctx.Collected.CustomerID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return result{}, err
			}
			h.events.UpstreamDegraded(ctx, sctx.SessionID, sctx.Stage, "offer_mart", err)
			return result{
				patch:     Patch{Errors: []ErrorEntry{newErrorEntry("offer_lookup", err)}},
				message:   "Our offer service is taking a moment, please try again shortly.",
				replyType: ReplyError,
			}, nil
		}
		rate = offer.InterestRate
		tenures = offer.TenureOptions
		isDefault = upstream.IsDefaultOffer(offer)
		delta.PreApprovedLimit = offer.PreApprovedLimit
		delta.OfferRate = offer.InterestRate
		delta.TenureOptions = offer.TenureOptions
		delta.OfferIsDefault = isDefault
	}

	options, err := loan.BuildOptions(amount, rate, tenures)
	if err != nil {
		return result{}, fmt.Errorf("conversation: failed to build loan options: %w", err)
	}
	delta.Options = options

	h.events.OptionsPresented(ctx, sctx.SessionID, len(options), rate)

	return result{
		patch:     Patch{Data: delta},
		message:   optionsMessage(sctx.Collected.CustomerName, options, isDefault),
		replyType: ReplyOptions,
		metadata:  map[string]string{"optionCount": fmt.Sprintf("%d", len(options))},
	}, nil
}

// steerToTenure points the customer at the quoted option matching the tenure
// they asked about, or lists what is available.
func (h *salesHandler) steerToTenure(sctx *Context, months int) result {
	for i, opt := range sctx.Collected.Options {
		if opt.TenureMonths == months {
			return textResult(fmt.Sprintf(
				"Option %d runs %d months with a monthly EMI of %s. Reply '%d' to select it.",
				i+1, months, inr(opt.EMI), i+1))
		}
	}
	var offered []string
	for _, opt := range sctx.Collected.Options {
		offered = append(offered, fmt.Sprintf("%d", opt.TenureMonths))
	}
	return textResult(fmt.Sprintf(
		"We offer tenures of %s months for this amount. Which would you like?",
		joinList(offered)))
}

// easeObjection answers EMI pushback with the cheapest-installment option.
func (h *salesHandler) easeObjection(sctx *Context) result {
	options := sctx.Collected.Options
	if len(options) == 0 {
		return textResult("Tell me the loan amount you have in mind and I'll quote your options.")
	}
	longest := options[len(options)-1]
	return textResult(fmt.Sprintf(
		"I understand. The %d-month option keeps the EMI lowest at %s per month. "+
			"Would that work better, or should we bring the amount down?",
		longest.TenureMonths, inr(longest.EMI)))
}

var objectionWords = []string{"expensive", "too high", "too much", "lower", "costly", "cannot afford", "can't afford"}

func isObjection(text string) bool {
	lower := strings.ToLower(text)
	for _, w := range objectionWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func recommendedIndex(options []loan.Option) int {
	for i, opt := range options {
		if opt.Recommended {
			return i + 1
		}
	}
	return 1
}

// optionsMessage renders the quoted options the way the chat surfaces them.
func optionsMessage(customerName string, options []loan.Option, standardTerms bool) string {
	var b strings.Builder
	if customerName != "" {
		fmt.Fprintf(&b, "Thanks, %s! ", customerName)
	}
	if standardTerms {
		b.WriteString("You have no pre-approved offer on file, so standard terms apply. ")
	}
	b.WriteString("Based on your profile, I have these loan options for you:\n")

	for i, opt := range options {
		marker := ""
		if opt.Recommended {
			marker = " (recommended)"
		}
		fmt.Fprintf(&b, "\nOption %d%s:\n", i+1, marker)
		fmt.Fprintf(&b, "- Loan Amount: %s\n", inr(opt.Amount))
		fmt.Fprintf(&b, "- Tenure: %d months\n", opt.TenureMonths)
		fmt.Fprintf(&b, "- Interest Rate: %s per annum\n", pct(opt.AnnualRate))
		fmt.Fprintf(&b, "- Monthly EMI: %s\n", inr(opt.EMI))
		fmt.Fprintf(&b, "- Total Amount Payable: %s\n", inr(opt.TotalPayable))
		fmt.Fprintf(&b, "- Processing Fee: %s\n", inr(opt.ProcessingFee))
	}

	b.WriteString("\nWhich option would you prefer, or would you like me to adjust the amount or tenure?")
	return b.String()
}
