package conversation

import (
	"errors"
	"fmt"
)

// EventKind discriminates the inbound event union.
type EventKind string

const (
	EventText   EventKind = "text_message"
	EventForm   EventKind = "form_submission"
	EventFile   EventKind = "file_upload"
	EventOption EventKind = "option_selection"
	EventReset  EventKind = "reset"
)

// FormSubmission carries structured customer details from the chat form.
// Fields the customer left blank stay zero and are ignored on merge.
type FormSubmission struct {
	Name         string `json:"name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	CustomerID   string `json:"customerId,omitempty"`
	Amount       int64  `json:"amount,omitempty"`
	TenureMonths int    `json:"tenureMonths,omitempty"`
}

// FileUpload references salary evidence already accepted by the upload
// endpoint. MonthlySalary is the figure extracted from the document; zero
// means extraction failed and the handler should ask for a clearer copy.
type FileUpload struct {
	Ref           string `json:"ref"`
	Filename      string `json:"filename,omitempty"`
	MonthlySalary int64  `json:"monthlySalary,omitempty"`
}

// OptionSelection picks one of the loan options presented during sales
// negotiation, 1-based in presentation order.
type OptionSelection struct {
	Index int `json:"index"`
}

// Event is the tagged union of everything a session can receive. Exactly
// one variant is set per event.
type Event struct {
	Kind   EventKind        `json:"kind"`
	Text   string           `json:"text,omitempty"`
	Form   *FormSubmission  `json:"form,omitempty"`
	File   *FileUpload      `json:"file,omitempty"`
	Option *OptionSelection `json:"option,omitempty"`
}

// ErrMalformedEvent indicates an event whose variant payload does not match
// its kind. These are rejected synchronously and never retried.
var ErrMalformedEvent = errors.New("conversation: malformed event")

// Validate checks that the event carries the payload its kind requires.
func (e Event) Validate() error {
	switch e.Kind {
	case EventText:
		if e.Text == "" {
			return fmt.Errorf("%w: text message requires text", ErrMalformedEvent)
		}
	case EventForm:
		if e.Form == nil {
			return fmt.Errorf("%w: form submission requires form fields", ErrMalformedEvent)
		}
	case EventFile:
		if e.File == nil || e.File.Ref == "" {
			return fmt.Errorf("%w: file upload requires a stored evidence ref", ErrMalformedEvent)
		}
	case EventOption:
		if e.Option == nil || e.Option.Index < 1 {
			return fmt.Errorf("%w: option selection requires a positive index", ErrMalformedEvent)
		}
	case EventReset:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedEvent, e.Kind)
	}
	return nil
}

// TextEvent builds a plain chat message event.
func TextEvent(text string) Event {
	return Event{Kind: EventText, Text: text}
}

// FormEvent builds a form submission event.
func FormEvent(form FormSubmission) Event {
	return Event{Kind: EventForm, Form: &form}
}

// FileEvent builds a salary-evidence event.
func FileEvent(upload FileUpload) Event {
	return Event{Kind: EventFile, File: &upload}
}

// OptionEvent builds an option selection event.
func OptionEvent(index int) Event {
	return Event{Kind: EventOption, Option: &OptionSelection{Index: index}}
}

// ResetEvent builds an explicit session reset.
func ResetEvent() Event {
	return Event{Kind: EventReset}
}
