package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/Adithyanmurthy/Loan-Chatbot/internal/documents"
)

// documentHandler turns an approved application into a sanction letter.
// Issue is idempotent per application, so nudging the handler twice hands
// back the same artifact instead of a duplicate.
type documentHandler struct {
	letters LetterService
	events  *EventLogger
}

func (h *documentHandler) handle(ctx context.Context, sctx *Context, event Event) (result, error) {
	if event.Kind == EventFile {
		return textResult("No more documents are needed. " +
			"Reply 'generate letter' and I'll prepare your sanction letter."), nil
	}

	c := sctx.Collected
	if c.ApplicationID == "" || c.SelectedOption == nil {
		return result{}, fmt.Errorf("conversation: document stage reached without a decided application for session %s", sctx.SessionID)
	}

	h.events.DocumentRequested(ctx, sctx.SessionID, c.ApplicationID)

	req := documents.LetterRequest{
		ApplicationID: c.ApplicationID,
		SessionID:     sctx.SessionID,
		CustomerID:    c.CustomerID,
		CustomerName:  c.CustomerName,
		City:          c.City,
		Phone:         c.Phone,
		Amount:        c.SelectedOption.Amount,
		TenureMonths:  c.SelectedOption.TenureMonths,
		InterestRate:  c.SelectedOption.AnnualRate,
		EMI:           c.SelectedOption.EMI,
		ProcessingFee: c.SelectedOption.ProcessingFee,
	}
	if c.SalarySource == "document" {
		req.Conditions = []string{"salary_document_verified"}
	}

	artifact, err := h.letters.Issue(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return result{}, err
		}
		if errors.Is(err, documents.ErrGenerationFailed) {
			h.events.ErrorOccurred(ctx, sctx.SessionID, sctx.Stage, "letter_generation", err)
			return result{
				patch:     Patch{Errors: []ErrorEntry{newErrorEntry("letter_generation", err)}},
				message:   "We hit a snag generating your sanction letter. Please try again in a moment.",
				replyType: ReplyError,
			}, nil
		}
		return result{}, fmt.Errorf("conversation: failed to issue sanction letter: %w", err)
	}

	h.events.LetterIssued(ctx, sctx.SessionID, c.ApplicationID, artifact.LetterNumber)

	msg := fmt.Sprintf(
		"Your sanction letter %s is ready. You can download it here: %s. "+
			"Congratulations again, and thank you for choosing us!",
		artifact.LetterNumber, artifact.DownloadURL)

	return result{
		patch: Patch{
			Stage:         StageCompleted,
			Data:          CollectedData{ArtifactID: artifact.ID},
			CompleteTasks: []string{TaskGenerateSanctionLetter},
		},
		message:   msg,
		replyType: ReplyDocument,
		metadata: map[string]string{
			"artifactId":   artifact.ID,
			"letterNumber": artifact.LetterNumber,
			"downloadUrl":  artifact.DownloadURL,
		},
	}, nil
}
