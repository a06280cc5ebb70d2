package conversation

import (
	"context"
	"strings"
	"testing"

	"github.com/Adithyanmurthy/Loan-Chatbot/internal/upstream"
	"github.com/Adithyanmurthy/Loan-Chatbot/pkg/logging"
)

func testEventLogger() *EventLogger {
	return NewEventLogger(logging.New("error"))
}

func newCollectionHandler() (*collectionHandler, *upstream.FakeOfferMart) {
	offers := upstream.NewFakeOfferMart()
	return &collectionHandler{offers: offers, events: testEventLogger()}, offers
}

func TestInitiationGreetsWithoutIntent(t *testing.T) {
	collect, _ := newCollectionHandler()
	h := &initiationHandler{collect: collect}

	res, err := h.handle(context.Background(), newContext("sess-1"), TextEvent("hello there"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.patch.Stage != "" {
		t.Fatalf("greeting must not advance the stage, got %s", res.patch.Stage)
	}
	if res.message != introMessage {
		t.Fatalf("expected intro message, got %q", res.message)
	}
}

func TestInitiationAdvancesOnLoanIntent(t *testing.T) {
	collect, _ := newCollectionHandler()
	h := &initiationHandler{collect: collect}

	res, err := h.handle(context.Background(), newContext("sess-1"), TextEvent("I want a loan"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.patch.Stage != StageInformationCollection {
		t.Fatalf("expected information_collection, got %s", res.patch.Stage)
	}
}

func TestInitiationForwardsDetailRichOpener(t *testing.T) {
	collect, _ := newCollectionHandler()
	h := &initiationHandler{collect: collect}

	res, err := h.handle(context.Background(), newContext("sess-1"),
		TextEvent("Hi, my name is Rajesh Kumar, CUST001, I need a loan of 5 lakh, number 9876543210"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	// All four fields arrived in one message, so collection completes and
	// quotes options immediately.
	if res.patch.Stage != StageSalesNegotiation {
		t.Fatalf("expected sales_negotiation, got %s", res.patch.Stage)
	}
	if res.replyType != ReplyOptions {
		t.Fatalf("expected options reply, got %s", res.replyType)
	}
	d := res.patch.Data
	if d.CustomerName != "Rajesh Kumar" || d.CustomerID != "CUST001" ||
		d.Phone != "9876543210" || d.RequestedAmount != 500_000 {
		t.Fatalf("parsed fields wrong: %+v", d)
	}
}

func TestCollectionGathersAcrossMessages(t *testing.T) {
	h, _ := newCollectionHandler()
	ctx := context.Background()
	sctx := newContext("sess-1")
	sctx.Stage = StageInformationCollection

	steps := []struct {
		text    string
		missing string
	}{
		{"my name is Priya Sharma", "mobile number"},
		{"you can reach me on 9812345678", "customer ID"},
		{"my id is CUST002", "loan amount"},
	}
	for _, step := range steps {
		res, err := h.handle(ctx, sctx, TextEvent(step.text))
		if err != nil {
			t.Fatalf("handle(%q): %v", step.text, err)
		}
		if res.patch.Stage != "" {
			t.Fatalf("incomplete set must not advance, got %s", res.patch.Stage)
		}
		if !strings.Contains(res.message, step.missing) {
			t.Fatalf("after %q expected prompt for %s, got %q", step.text, step.missing, res.message)
		}
		sctx = applyPatch(sctx, res.patch)
	}

	res, err := h.handle(ctx, sctx, TextEvent("I need ₹2,00,000"))
	if err != nil {
		t.Fatalf("final handle: %v", err)
	}
	if res.patch.Stage != StageSalesNegotiation {
		t.Fatalf("expected sales_negotiation once complete, got %s", res.patch.Stage)
	}
	if len(res.patch.Data.Options) == 0 {
		t.Fatalf("expected quoted options in patch")
	}
	if res.patch.Data.PreApprovedLimit != 300_000 {
		t.Fatalf("expected CUST002 offer cached, got limit %d", res.patch.Data.PreApprovedLimit)
	}
}

func TestCollectionAcceptsCompleteForm(t *testing.T) {
	h, _ := newCollectionHandler()
	sctx := newContext("sess-1")
	sctx.Stage = StageInformationCollection

	res, err := h.handle(context.Background(), sctx, FormEvent(FormSubmission{
		Name:       "Rajesh Kumar",
		Phone:      "9876543210",
		CustomerID: "CUST001",
		Amount:     450_000,
	}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.patch.Stage != StageSalesNegotiation {
		t.Fatalf("expected sales_negotiation, got %s", res.patch.Stage)
	}
	if n := len(res.patch.Data.Options); n != 3 {
		t.Fatalf("expected 3 options for CUST001's tenures, got %d", n)
	}
	if !strings.Contains(res.message, "Rajesh Kumar") {
		t.Fatalf("expected personalized options message, got %q", res.message)
	}
}

func TestCollectionRejectsOutOfRangeAmount(t *testing.T) {
	h, _ := newCollectionHandler()
	sctx := newContext("sess-1")
	sctx.Stage = StageInformationCollection

	res, err := h.handle(context.Background(), sctx, FormEvent(FormSubmission{
		Name:       "Rajesh Kumar",
		Phone:      "9876543210",
		CustomerID: "CUST001",
		Amount:     10_000, // below the product floor
	}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.patch.Stage != "" {
		t.Fatalf("out-of-range amount must not advance, got %s", res.patch.Stage)
	}
	if res.patch.Data.RequestedAmount != 0 {
		t.Fatalf("out-of-range amount must not be stored, got %d", res.patch.Data.RequestedAmount)
	}
	// The valid fields from the same submission still count.
	if res.patch.Data.CustomerID != "CUST001" {
		t.Fatalf("valid fields dropped alongside the bad amount: %+v", res.patch.Data)
	}
	if !strings.Contains(res.message, "₹50,000") {
		t.Fatalf("expected bounds in message, got %q", res.message)
	}
}

func TestCollectionUsesDefaultOfferWhenNoneOnFile(t *testing.T) {
	h, _ := newCollectionHandler()
	sctx := newContext("sess-1")
	sctx.Stage = StageInformationCollection

	// CUST004 has no offer record; the conservative default applies.
	res, err := h.handle(context.Background(), sctx, FormEvent(FormSubmission{
		Name:       "Meera Nair",
		Phone:      "9765432109",
		CustomerID: "CUST004",
		Amount:     80_000,
	}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !res.patch.Data.OfferIsDefault {
		t.Fatalf("expected default offer flagged")
	}
	if res.patch.Data.PreApprovedLimit != 100_000 {
		t.Fatalf("expected default limit 100000, got %d", res.patch.Data.PreApprovedLimit)
	}
	if !strings.Contains(res.message, "standard terms") {
		t.Fatalf("expected standard terms notice, got %q", res.message)
	}
}
