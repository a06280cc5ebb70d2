package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Adithyanmurthy/Loan-Chatbot/internal/loan"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/upstream"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/verify"
)

// verificationHandler checks the customer-claimed identity against the CRM
// record. A mismatch never fails the session: the handler names the fields
// that differ and lets the customer correct them with another message or
// form. Success also caches the CRM salary figure, which frequently spares
// the underwriting stage a document request.
type verificationHandler struct {
	crm    upstream.CustomerSource
	events *EventLogger
}

func (h *verificationHandler) handle(ctx context.Context, sctx *Context, event Event) (result, error) {
	delta := CollectedData{}

	switch event.Kind {
	case EventForm:
		// Corrected details after a mismatch.
		delta.CustomerName = strings.TrimSpace(event.Form.Name)
		delta.Phone = strings.TrimSpace(event.Form.Phone)
		delta.CustomerID = strings.TrimSpace(event.Form.CustomerID)
	case EventText:
		delta.CustomerName = parseName(event.Text)
		delta.Phone = parsePhone(event.Text)
		delta.CustomerID = parseCustomerID(event.Text)
	case EventOption:
		return textResult("We're past option selection. Reply 'proceed' to verify your identity."), nil
	case EventFile:
		return textResult("No documents are needed for identity verification. " +
			"Reply 'proceed' and I'll check your registered details."), nil
	default:
		return result{}, ErrMalformedEvent
	}

	merged := sctx.Collected.clone()
	merged.merge(delta)

	profile, err := h.crm.CustomerByID(ctx, merged.CustomerID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return result{}, err
		}
		if upstream.IsNotFound(err) {
			return result{
				patch: Patch{Data: delta},
				message: fmt.Sprintf(
					"I couldn't find a customer record for ID %s. "+
						"Please double-check your customer ID and send it again.",
					merged.CustomerID),
				replyType: ReplyText,
			}, nil
		}
		h.events.UpstreamDegraded(ctx, sctx.SessionID, sctx.Stage, "crm", err)
		return result{
			patch: Patch{
				Data:   delta,
				Errors: []ErrorEntry{newErrorEntry("customer_lookup", err)},
			},
			message:   "Our customer records service is taking a moment, please try again shortly.",
			replyType: ReplyError,
		}, nil
	}

	claim := verify.Claim{Name: merged.CustomerName, Phone: merged.Phone, Address: merged.City}
	record := verify.Record{Name: profile.Name, Phone: profile.Phone, Address: profile.City}
	mismatched := verify.Check(claim, record)

	if len(mismatched) != 0 {
		h.events.VerificationCompleted(ctx, sctx.SessionID, false, mismatched)
		delta.MismatchedFields = mismatched
		return result{
			patch: Patch{Data: delta},
			message: fmt.Sprintf(
				"Some details don't match our records: %s. "+
					"Please re-send the correct details so I can verify you.",
				joinList(mismatched)),
			replyType: ReplyText,
			metadata: map[string]string{
				"status":           string(loan.StatusRequiresDocuments),
				"mismatchedFields": strings.Join(mismatched, ","),
			},
		}, nil
	}

	h.events.VerificationCompleted(ctx, sctx.SessionID, true, nil)

	delta.Verified = true
	if profile.City != "" {
		delta.City = profile.City
	}
	if profile.MonthlySalary > 0 {
		delta.MonthlySalary = profile.MonthlySalary
		delta.SalarySource = "crm"
	}

	return result{
		patch: Patch{
			Stage:         StageUnderwriting,
			Data:          delta,
			AddTasks:      []string{TaskUnderwriteApplication},
			CompleteTasks: []string{TaskVerifyIdentity},
		},
		message: "Your identity is verified. I'll now run the credit check and " +
			"process your application. Reply 'proceed' to continue.",
		replyType: ReplyText,
	}, nil
}
