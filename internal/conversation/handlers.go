package conversation

import (
	"context"
	"time"

	"github.com/Adithyanmurthy/Loan-Chatbot/internal/documents"
)

// stageHandler processes one inbound event for the stage it is registered
// under. Handlers receive a detached snapshot and must not mutate it or
// retain it across calls; every state change travels back in the result
// patch and is committed atomically by the engine.
type stageHandler interface {
	handle(ctx context.Context, sctx *Context, event Event) (result, error)
}

// result is what a handler hands back: the mutation to commit plus the
// customer-facing reply. An error instead of a result means the failure is
// unrecoverable and the session moves to failed.
type result struct {
	patch     Patch
	message   string
	replyType ReplyType
	metadata  map[string]string
}

func textResult(message string) result {
	return result{message: message, replyType: ReplyText}
}

func newErrorEntry(kind string, err error) ErrorEntry {
	return ErrorEntry{Kind: kind, Detail: err.Error(), At: time.Now().UTC()}
}

// LetterService issues sanction letters for approved applications. It is
// satisfied by documents.Service; the indirection keeps the dependency
// one-way (conversation imports documents, never the reverse).
type LetterService interface {
	Issue(ctx context.Context, req documents.LetterRequest) (*documents.Artifact, error)
}
