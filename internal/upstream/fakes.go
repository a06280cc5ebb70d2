package upstream

import (
	"context"
	"fmt"
	"sync"
)

// Fakes implement the Source interfaces over in-process maps. They back the
// service when UPSTREAM_MODE=fake and every handler test; production and
// test wiring differ only by which implementation is injected.

// FakeCRM is an in-memory CustomerSource.
type FakeCRM struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

func NewFakeCRM() *FakeCRM {
	f := &FakeCRM{profiles: make(map[string]Profile)}
	for _, p := range seedProfiles {
		f.profiles[p.ID] = p
	}
	return f
}

func (f *FakeCRM) CustomerByID(ctx context.Context, id string) (*Profile, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.profiles[id]
	if !ok {
		return nil, fmt.Errorf("fake crm: %w", ErrNotFound)
	}
	copied := p
	return &copied, nil
}

// Put inserts or replaces a profile. Test hook.
func (f *FakeCRM) Put(p Profile) {
	f.mu.Lock()
	f.profiles[p.ID] = p
	f.mu.Unlock()
}

// FakeBureau is an in-memory CreditSource.
type FakeBureau struct {
	mu     sync.RWMutex
	scores map[string]CreditReport
}

func NewFakeBureau() *FakeBureau {
	f := &FakeBureau{scores: make(map[string]CreditReport)}
	for _, r := range seedReports {
		f.scores[r.CustomerID] = r
	}
	return f
}

func (f *FakeBureau) CreditScoreByID(ctx context.Context, id string) (*CreditReport, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	r, ok := f.scores[id]
	if !ok {
		return nil, fmt.Errorf("fake bureau: %w", ErrNotFound)
	}
	copied := r
	return &copied, nil
}

// Put inserts or replaces a report. Test hook.
func (f *FakeBureau) Put(r CreditReport) {
	f.mu.Lock()
	f.scores[r.CustomerID] = r
	f.mu.Unlock()
}

// FakeOfferMart is an in-memory OfferSource. Like the live client, a
// missing record yields the conservative default offer.
type FakeOfferMart struct {
	mu     sync.RWMutex
	offers map[string]Offer
}

func NewFakeOfferMart() *FakeOfferMart {
	f := &FakeOfferMart{offers: make(map[string]Offer)}
	for _, o := range seedOffers {
		f.offers[o.CustomerID] = o
	}
	return f
}

func (f *FakeOfferMart) OfferByID(ctx context.Context, id string) (*Offer, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	o, ok := f.offers[id]
	if !ok {
		return DefaultOffer(id), nil
	}
	copied := o
	return &copied, nil
}

// Put inserts or replaces an offer. Test hook.
func (f *FakeOfferMart) Put(o Offer) {
	f.mu.Lock()
	f.offers[o.CustomerID] = o
	f.mu.Unlock()
}

// Delete removes an offer so the default-offer path can be exercised.
func (f *FakeOfferMart) Delete(customerID string) {
	f.mu.Lock()
	delete(f.offers, customerID)
	f.mu.Unlock()
}

// Deterministic demo records. CUST001 holds a healthy mid-band profile,
// CUST002 sits below the credit floor, CUST003 is a premium customer, and
// CUST004 has no offer record on file.
var seedProfiles = []Profile{
	{ID: "CUST001", Name: "Rajesh Kumar", Phone: "9876543210", Email: "rajesh.kumar@example.com", Address: "221 MG Road", City: "Bengaluru", MonthlySalary: 80_000, EmploymentType: "salaried"},
	{ID: "CUST002", Name: "Priya Sharma", Phone: "9812345678", Email: "priya.sharma@example.com", Address: "14 Park Street", City: "Kolkata", MonthlySalary: 60_000, EmploymentType: "salaried"},
	{ID: "CUST003", Name: "Arun Verma", Phone: "9898989898", Email: "arun.verma@example.com", Address: "8 Jubilee Hills", City: "Hyderabad", MonthlySalary: 150_000, EmploymentType: "self_employed"},
	{ID: "CUST004", Name: "Meera Nair", Phone: "9765432109", Email: "meera.nair@example.com", Address: "3 Marine Drive", City: "Kochi", MonthlySalary: 45_000, EmploymentType: "salaried"},
}

var seedReports = []CreditReport{
	{CustomerID: "CUST001", Score: 785, Bureau: "CIBIL"},
	{CustomerID: "CUST002", Score: 650, Bureau: "CIBIL"},
	{CustomerID: "CUST003", Score: 810, Bureau: "CIBIL"},
	{CustomerID: "CUST004", Score: 720, Bureau: "CIBIL"},
}

var seedOffers = []Offer{
	{CustomerID: "CUST001", PreApprovedLimit: 500_000, InterestRate: 12.5, TenureOptions: []int{36, 48, 60}},
	{CustomerID: "CUST002", PreApprovedLimit: 300_000, InterestRate: 13.0, TenureOptions: []int{36, 48, 60}},
	{CustomerID: "CUST003", PreApprovedLimit: 800_000, InterestRate: 11.0, TenureOptions: []int{24, 36, 48, 60}},
}
