// Package conversation implements the loan-origination conversation flow:
// per-session state, the stage machine, the task handlers that drive a
// customer from first contact to a sanction letter, and the queue-backed
// dispatcher in front of it all.
package conversation

import (
	"time"

	"github.com/Adithyanmurthy/Loan-Chatbot/internal/loan"
)

// Stage is the phase of the origination workflow a session occupies.
type Stage string

const (
	StageInitiation            Stage = "initiation"
	StageInformationCollection Stage = "information_collection"
	StageSalesNegotiation      Stage = "sales_negotiation"
	StageVerification          Stage = "verification"
	StageUnderwriting          Stage = "underwriting"
	StageDocumentGeneration    Stage = "document_generation"
	StageCompleted             Stage = "completed"
	StageFailed                Stage = "failed"
)

// Terminal reports whether the stage accepts no further automatic
// transitions. A failed session stays inspectable but only a reset
// moves it again.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Task identifiers tracked in pendingTasks/completedTasks. A task moves
// from pending to completed exactly once.
const (
	TaskCollectDetails         = "collect_details"
	TaskPresentOptions         = "present_options"
	TaskVerifyIdentity         = "verify_identity"
	TaskUnderwriteApplication  = "underwrite_application"
	TaskUploadSalarySlip       = "upload_salary_slip"
	TaskGenerateSanctionLetter = "generate_sanction_letter"
)

// ErrorEntry is one recoverable failure recorded against a session. The
// error log is append-only and survives resets for audit.
type ErrorEntry struct {
	Kind   string    `json:"kind"`
	Detail string    `json:"detail"`
	At     time.Time `json:"at"`
}

// CollectedData accumulates everything the handlers learn about a session.
// Fields are merge-only: a handler patch overwrites a field with a new
// non-zero value but never clears one, except through an explicit reset.
type CollectedData struct {
	CustomerName string `json:"customerName,omitempty"`
	Phone        string `json:"phone,omitempty"`
	CustomerID   string `json:"customerId,omitempty"`
	City         string `json:"city,omitempty"`

	RequestedAmount int64 `json:"requestedAmount,omitempty"`
	TenureMonths    int   `json:"tenureMonths,omitempty"`

	MonthlySalary int64  `json:"monthlySalary,omitempty"`
	SalarySource  string `json:"salarySource,omitempty"`

	PreApprovedLimit int64   `json:"preApprovedLimit,omitempty"`
	OfferRate        float64 `json:"offerRate,omitempty"`
	TenureOptions    []int   `json:"tenureOptions,omitempty"`
	OfferIsDefault   bool    `json:"offerIsDefault,omitempty"`

	CreditScore  int    `json:"creditScore,omitempty"`
	CreditSource string `json:"creditSource,omitempty"`

	Options        []loan.Option `json:"options,omitempty"`
	SelectedOption *loan.Option  `json:"selectedOption,omitempty"`

	Verified         bool     `json:"verified,omitempty"`
	MismatchedFields []string `json:"mismatchedFields,omitempty"`

	ApplicationID     string `json:"applicationId,omitempty"`
	DecisionStatus    string `json:"decisionStatus,omitempty"`
	RejectionReason   string `json:"rejectionReason,omitempty"`
	SalaryEvidenceRef string `json:"salaryEvidenceRef,omitempty"`
	ArtifactID        string `json:"artifactId,omitempty"`
}

func (d CollectedData) isZero() bool {
	return d.CustomerName == "" && d.Phone == "" && d.CustomerID == "" && d.City == "" &&
		d.RequestedAmount == 0 && d.TenureMonths == 0 &&
		d.MonthlySalary == 0 && d.SalarySource == "" &&
		d.PreApprovedLimit == 0 && d.OfferRate == 0 && d.TenureOptions == nil && !d.OfferIsDefault &&
		d.CreditScore == 0 && d.CreditSource == "" &&
		d.Options == nil && d.SelectedOption == nil &&
		!d.Verified && d.MismatchedFields == nil &&
		d.ApplicationID == "" && d.DecisionStatus == "" && d.RejectionReason == "" &&
		d.SalaryEvidenceRef == "" && d.ArtifactID == ""
}

func (d *CollectedData) merge(delta CollectedData) {
	if delta.CustomerName != "" {
		d.CustomerName = delta.CustomerName
	}
	if delta.Phone != "" {
		d.Phone = delta.Phone
	}
	if delta.CustomerID != "" {
		d.CustomerID = delta.CustomerID
	}
	if delta.City != "" {
		d.City = delta.City
	}
	if delta.RequestedAmount != 0 {
		d.RequestedAmount = delta.RequestedAmount
	}
	if delta.TenureMonths != 0 {
		d.TenureMonths = delta.TenureMonths
	}
	if delta.MonthlySalary != 0 {
		d.MonthlySalary = delta.MonthlySalary
	}
	if delta.SalarySource != "" {
		d.SalarySource = delta.SalarySource
	}
	if delta.PreApprovedLimit != 0 {
		d.PreApprovedLimit = delta.PreApprovedLimit
	}
	if delta.OfferRate != 0 {
		d.OfferRate = delta.OfferRate
	}
	if delta.TenureOptions != nil {
		d.TenureOptions = append([]int(nil), delta.TenureOptions...)
	}
	if delta.OfferIsDefault {
		d.OfferIsDefault = true
	}
	if delta.CreditScore != 0 {
		d.CreditScore = delta.CreditScore
	}
	if delta.CreditSource != "" {
		d.CreditSource = delta.CreditSource
	}
	if delta.Options != nil {
		d.Options = append([]loan.Option(nil), delta.Options...)
	}
	if delta.SelectedOption != nil {
		selected := *delta.SelectedOption
		d.SelectedOption = &selected
	}
	if delta.Verified {
		d.Verified = true
	}
	if delta.MismatchedFields != nil {
		d.MismatchedFields = append([]string(nil), delta.MismatchedFields...)
	}
	if delta.ApplicationID != "" {
		d.ApplicationID = delta.ApplicationID
	}
	if delta.DecisionStatus != "" {
		d.DecisionStatus = delta.DecisionStatus
	}
	if delta.RejectionReason != "" {
		d.RejectionReason = delta.RejectionReason
	}
	if delta.SalaryEvidenceRef != "" {
		d.SalaryEvidenceRef = delta.SalaryEvidenceRef
	}
	if delta.ArtifactID != "" {
		d.ArtifactID = delta.ArtifactID
	}
}

func (d CollectedData) clone() CollectedData {
	out := d
	if d.TenureOptions != nil {
		out.TenureOptions = append([]int(nil), d.TenureOptions...)
	}
	if d.Options != nil {
		out.Options = append([]loan.Option(nil), d.Options...)
	}
	if d.SelectedOption != nil {
		selected := *d.SelectedOption
		out.SelectedOption = &selected
	}
	if d.MismatchedFields != nil {
		out.MismatchedFields = append([]string(nil), d.MismatchedFields...)
	}
	return out
}

// Context is the full state of one session. The session store is its sole
// owner; handlers only ever see detached snapshots.
type Context struct {
	SessionID      string        `json:"sessionId"`
	Stage          Stage         `json:"stage"`
	Collected      CollectedData `json:"collected"`
	PendingTasks   []string      `json:"pendingTasks,omitempty"`
	CompletedTasks []string      `json:"completedTasks,omitempty"`
	Errors         []ErrorEntry  `json:"errors,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`

	// Generation increments on every committed mutation. A commit built
	// against an older generation is stale and must be discarded.
	Generation uint64 `json:"generation"`
}

func newContext(sessionID string) *Context {
	now := time.Now().UTC()
	return &Context{
		SessionID: sessionID,
		Stage:     StageInitiation,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy safe to hand to a handler.
func (c *Context) Clone() *Context {
	out := *c
	out.Collected = c.Collected.clone()
	out.PendingTasks = append([]string(nil), c.PendingTasks...)
	out.CompletedTasks = append([]string(nil), c.CompletedTasks...)
	out.Errors = append([]ErrorEntry(nil), c.Errors...)
	return &out
}

// TaskCompleted reports whether the task already moved to completed.
func (c *Context) TaskCompleted(task string) bool {
	for _, t := range c.CompletedTasks {
		if t == task {
			return true
		}
	}
	return false
}

// TaskPending reports whether the task is currently awaiting completion.
func (c *Context) TaskPending(task string) bool {
	for _, t := range c.PendingTasks {
		if t == task {
			return true
		}
	}
	return false
}

// Patch is a handler's requested mutation. The store applies it atomically:
// all of it lands in one committed generation or none of it does.
type Patch struct {
	// Stage, when non-empty, becomes the session's next stage.
	Stage Stage
	// Data is merged field-wise into the collected data.
	Data CollectedData
	// AddTasks appends to pendingTasks, skipping tasks already tracked.
	AddTasks []string
	// CompleteTasks moves tasks from pending to completed.
	CompleteTasks []string
	// Errors appends to the session's error log.
	Errors []ErrorEntry
}

// IsZero reports whether applying the patch would change nothing but the
// bookkeeping fields.
func (p Patch) IsZero() bool {
	return p.Stage == "" && len(p.AddTasks) == 0 && len(p.CompleteTasks) == 0 &&
		len(p.Errors) == 0 && p.Data.isZero()
}

// applyPatch produces the successor context. The input is not mutated.
func applyPatch(cur *Context, patch Patch) *Context {
	next := cur.Clone()
	if patch.Stage != "" {
		next.Stage = patch.Stage
	}
	next.Collected.merge(patch.Data)

	for _, task := range patch.AddTasks {
		if next.TaskPending(task) || next.TaskCompleted(task) {
			continue
		}
		next.PendingTasks = append(next.PendingTasks, task)
	}
	for _, task := range patch.CompleteTasks {
		if next.TaskCompleted(task) {
			continue
		}
		pending := next.PendingTasks[:0]
		for _, t := range next.PendingTasks {
			if t != task {
				pending = append(pending, t)
			}
		}
		next.PendingTasks = pending
		next.CompletedTasks = append(next.CompletedTasks, task)
	}

	next.Errors = append(next.Errors, patch.Errors...)
	next.UpdatedAt = time.Now().UTC()
	next.Generation++
	return next
}

// resetContext clears collected data and task lists and returns the session
// to initiation. The session identifier, creation time, and error history
// are preserved for audit.
func resetContext(cur *Context) *Context {
	next := cur.Clone()
	next.Stage = StageInitiation
	next.Collected = CollectedData{}
	next.PendingTasks = nil
	next.CompletedTasks = nil
	next.UpdatedAt = time.Now().UTC()
	next.Generation++
	return next
}
