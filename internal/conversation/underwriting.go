package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adithyanmurthy/Loan-Chatbot/internal/loan"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/underwriting"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/upstream"
)

// fallbackCreditScore stands in when the bureau has no record for the
// customer. Conservative: below the approval floor, so an unknown borrower
// is never instantly approved.
const fallbackCreditScore = 650

// underwritingHandler runs the decision flow: gather the figures the rule
// matrix needs, evaluate, and persist the terminal application record. The
// rule matrix itself lives in the underwriting package and stays pure; this
// handler owns the I/O around it.
type underwritingHandler struct {
	bureau upstream.CreditSource
	apps   loan.Repository
	events *EventLogger
}

func (h *underwritingHandler) handle(ctx context.Context, sctx *Context, event Event) (result, error) {
	switch event.Kind {
	case EventFile:
		return h.absorbSalarySlip(ctx, sctx, event)
	case EventText, EventForm, EventOption:
		return h.evaluate(ctx, sctx, CollectedData{}, nil)
	}
	return result{}, ErrMalformedEvent
}

// absorbSalarySlip folds an uploaded salary figure into the session and
// re-runs the rule matrix with the evidence in hand.
func (h *underwritingHandler) absorbSalarySlip(ctx context.Context, sctx *Context, event Event) (result, error) {
	if event.File.MonthlySalary <= 0 {
		return textResult("I couldn't read a salary figure from that document. " +
			"Please upload a clearer copy of your latest salary slip."), nil
	}

	h.events.SalaryExtracted(ctx, sctx.SessionID, event.File.MonthlySalary, "document")

	delta := CollectedData{
		MonthlySalary:     event.File.MonthlySalary,
		SalarySource:      "document",
		SalaryEvidenceRef: event.File.Ref,
	}
	return h.evaluate(ctx, sctx, delta, []string{TaskUploadSalarySlip})
}

// evaluate assembles the rule-matrix input from the snapshot plus delta,
// decides, and persists the outcome. completeTasks carries tasks the caller
// already discharged (the salary upload) into the same atomic patch.
func (h *underwritingHandler) evaluate(ctx context.Context, sctx *Context, delta CollectedData, completeTasks []string) (result, error) {
	merged := sctx.Collected.clone()
	merged.merge(delta)

	amount := merged.RequestedAmount
	limit := merged.PreApprovedLimit
	if amount <= 0 || limit <= 0 {
		return result{}, fmt.Errorf("conversation: underwriting reached without quoted figures for session %s", sctx.SessionID)
	}

	// Requests beyond twice the limit are rejected on arithmetic alone; no
	// credit or salary lookup is spent on them.
	if underwriting.ExceedsMaximumMultiple(amount, limit) {
		outcome := underwriting.Outcome{Approved: false, Reason: underwriting.ReasonAmountExceedsMaximumMultiple}
		rate, tenure, emi, err := h.pricing(merged, merged.CreditScore)
		if err != nil {
			return result{}, err
		}
		return h.finalize(ctx, sctx, merged, delta, completeTasks, outcome, rate, tenure, emi)
	}

	score := merged.CreditScore
	if score == 0 {
		report, err := h.bureau.CreditScoreByID(ctx, merged.CustomerID)
		switch {
		case err == nil:
			score = report.Score
			delta.CreditScore = report.Score
			delta.CreditSource = report.Bureau
			if delta.CreditSource == "" {
				delta.CreditSource = "bureau"
			}
		case upstream.IsNotFound(err):
			score = fallbackCreditScore
			delta.CreditScore = fallbackCreditScore
			delta.CreditSource = "fallback"
			h.events.Log(ctx, "credit_fallback_applied", sctx.SessionID, sctx.Stage, map[string]any{
				"customer_id": merged.CustomerID,
				"score":       fallbackCreditScore,
			})
		case errors.Is(err, context.Canceled):
			return result{}, err
		default:
			h.events.UpstreamDegraded(ctx, sctx.SessionID, sctx.Stage, "credit_bureau", err)
			return result{
				patch: Patch{
					Data:   delta,
					Errors: []ErrorEntry{newErrorEntry("credit_lookup", err)},
				},
				message:   "The credit bureau is taking a moment, please try again shortly.",
				replyType: ReplyError,
			}, nil
		}
		merged.CreditScore = score
	}

	rate, tenure, emi, err := h.pricing(merged, score)
	if err != nil {
		return result{}, err
	}

	outcome, err := underwriting.Evaluate(underwriting.Input{
		RequestedAmount:  amount,
		PreApprovedLimit: limit,
		CreditScore:      score,
		MonthlySalary:    merged.MonthlySalary,
		EMI:              emi,
	})
	if errors.Is(err, underwriting.ErrIncompleteInput) {
		return h.requestSalaryEvidence(ctx, sctx, merged, delta, rate, tenure, emi)
	}
	if err != nil {
		return result{}, fmt.Errorf("conversation: decision engine: %w", err)
	}

	return h.finalize(ctx, sctx, merged, delta, completeTasks, outcome, rate, tenure, emi)
}

// pricing returns the rate, tenure, and EMI the decision and the application
// record use. A selected option wins; otherwise the score re-prices the rate
// and the EMI is computed fresh.
func (h *underwritingHandler) pricing(merged CollectedData, score int) (float64, int, int64, error) {
	if opt := merged.SelectedOption; opt != nil {
		return opt.AnnualRate, opt.TenureMonths, opt.EMI, nil
	}

	tenure := merged.TenureMonths
	if tenure == 0 {
		tenure = loan.DefaultTenures[0]
	}
	rate := merged.OfferRate
	if score > 0 {
		rate = loan.RateFor(score, merged.RequestedAmount, merged.PreApprovedLimit)
	}
	emi, err := loan.EMI(merged.RequestedAmount, rate, tenure)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("conversation: failed to compute emi: %w", err)
	}
	return rate, tenure, emi, nil
}

// requestSalaryEvidence parks the application in requires_documents and asks
// for a salary slip. The application record is created once; re-entering
// this path reuses it.
func (h *underwritingHandler) requestSalaryEvidence(ctx context.Context, sctx *Context, merged, delta CollectedData, rate float64, tenure int, emi int64) (result, error) {
	if merged.ApplicationID == "" {
		app := &loan.Application{
			SessionID:       sctx.SessionID,
			CustomerID:      merged.CustomerID,
			RequestedAmount: merged.RequestedAmount,
			TenureMonths:    tenure,
			InterestRate:    rate,
			EMI:             emi,
			Status:          loan.StatusRequiresDocuments,
		}
		if err := h.apps.Create(ctx, app); err != nil {
			return result{}, fmt.Errorf("conversation: failed to create application: %w", err)
		}
		delta.ApplicationID = app.ID
	}
	delta.DecisionStatus = string(loan.StatusRequiresDocuments)

	return result{
		patch: Patch{
			Data:     delta,
			AddTasks: []string{TaskUploadSalarySlip},
		},
		message: fmt.Sprintf(
			"To process your loan application for %s, we need to verify your salary. "+
				"Please upload your latest salary slip to continue.",
			inr(merged.RequestedAmount)),
		replyType: ReplyText,
		metadata:  map[string]string{"requiredDocument": "salary_slip"},
	}, nil
}

// finalize writes the terminal application record and shapes the decision
// reply. Approvals move on to document generation; rejections complete the
// session with the reason spelled out.
func (h *underwritingHandler) finalize(ctx context.Context, sctx *Context, merged, delta CollectedData, completeTasks []string, outcome underwriting.Outcome, rate float64, tenure int, emi int64) (result, error) {
	status := loan.StatusRejected
	if outcome.Approved {
		status = loan.StatusApproved
	}
	now := time.Now().UTC()

	applicationID := merged.ApplicationID
	if applicationID == "" {
		app := &loan.Application{
			SessionID:       sctx.SessionID,
			CustomerID:      merged.CustomerID,
			RequestedAmount: merged.RequestedAmount,
			TenureMonths:    tenure,
			InterestRate:    rate,
			EMI:             emi,
			Status:          status,
			RejectionReason: outcome.Reason,
			Conditions:      outcome.Conditions,
			DecidedAt:       now,
		}
		if err := h.apps.Create(ctx, app); err != nil {
			return result{}, fmt.Errorf("conversation: failed to create application: %w", err)
		}
		applicationID = app.ID
		delta.ApplicationID = app.ID
	} else {
		err := h.apps.Finalize(ctx, applicationID, status, outcome.Reason, outcome.Conditions, now)
		if err != nil && !errors.Is(err, loan.ErrAlreadyDecided) {
			return result{}, fmt.Errorf("conversation: failed to finalize application: %w", err)
		}
	}

	h.events.DecisionMade(ctx, sctx.SessionID, applicationID, string(status), outcome.Reason)

	delta.DecisionStatus = string(status)
	delta.RejectionReason = outcome.Reason
	// Keep the decided figures on the session so the sanction letter prints
	// exactly what was approved, selection or not.
	if merged.SelectedOption == nil {
		delta.SelectedOption = &loan.Option{
			Amount:        merged.RequestedAmount,
			TenureMonths:  tenure,
			AnnualRate:    rate,
			EMI:           emi,
			TotalPayable:  emi * int64(tenure),
			ProcessingFee: loan.ProcessingFee(merged.RequestedAmount, merged.CreditScore),
		}
	}
	delta.TenureMonths = tenure

	metadata := map[string]string{
		"applicationId": applicationID,
		"status":        string(status),
	}

	patch := Patch{
		Data:          delta,
		CompleteTasks: append(completeTasks, TaskUnderwriteApplication),
	}

	if !outcome.Approved {
		metadata["reason"] = outcome.Reason
		patch.Stage = StageCompleted
		return result{
			patch:     patch,
			message:   rejectionMessage(outcome.Reason, merged, emi, tenure),
			replyType: ReplyDecision,
			metadata:  metadata,
		}, nil
	}

	patch.Stage = StageDocumentGeneration
	patch.AddTasks = []string{TaskGenerateSanctionLetter}

	msg := fmt.Sprintf(
		"Congratulations! Your loan application for %s has been instantly approved. "+
			"Your EMI will be %s for %d months.",
		inr(merged.RequestedAmount), inr(emi), tenure)
	for _, c := range outcome.Conditions {
		if c == underwriting.ConditionSalaryVerified {
			msg = fmt.Sprintf(
				"Great news! Your loan application for %s has been approved based on "+
					"your verified salary. Your EMI will be %s for %d months.",
				inr(merged.RequestedAmount), inr(emi), tenure)
		}
	}
	msg += " Reply 'generate letter' to receive your sanction letter."

	return result{
		patch:     patch,
		message:   msg,
		replyType: ReplyDecision,
		metadata:  metadata,
	}, nil
}

func rejectionMessage(reason string, merged CollectedData, emi int64, tenure int) string {
	switch reason {
	case underwriting.ReasonCreditScoreBelowThreshold:
		return "After reviewing your credit profile, we're unable to approve this loan right now. " +
			"Your credit score is below our minimum requirement of 700. " +
			"Improving your score over the next few months and re-applying is the best next step."
	case underwriting.ReasonEMIAffordabilityExceeded:
		return fmt.Sprintf(
			"We're unable to approve %s over %d months: the monthly EMI of %s would exceed "+
				"half of your monthly salary. A smaller amount or a longer tenure may work, "+
				"feel free to start a new application.",
			inr(merged.RequestedAmount), tenure, inr(emi))
	case underwriting.ReasonAmountExceedsMaximumMultiple:
		return fmt.Sprintf(
			"We're unable to approve %s: it exceeds twice your pre-approved limit of %s. "+
				"The maximum we could consider for you today is %s.",
			inr(merged.RequestedAmount), inr(merged.PreApprovedLimit),
			inr(2*merged.PreApprovedLimit))
	}
	return "We're unable to approve your loan application at this time."
}
