package crm

import (
	"slices"
	"strings"

	"github.com/saasfilter/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// LeadStatus is the pipeline stage of a lead
type LeadStatus string

const (
	LeadStatusNew         LeadStatus = "New"
	LeadStatusNegotiation LeadStatus = "Negotiation"
	LeadStatusClosed      LeadStatus = "Closed"
)

// LeadStatuses lists statuses in pipeline order
var LeadStatuses = []LeadStatus{LeadStatusNew, LeadStatusNegotiation, LeadStatusClosed}

// ErrInvalidStatus is returned for an unrecognized status or filter
var ErrInvalidStatus = shared.NewDomainError("INVALID_STATUS", "Status must be one of New, Negotiation, Closed")

// ParseLeadStatus parses a status name (case-insensitive) into its canonical form
func ParseLeadStatus(raw string) (LeadStatus, error) {
	raw = strings.TrimSpace(raw)
	for _, s := range LeadStatuses {
		if strings.EqualFold(raw, string(s)) {
			return s, nil
		}
	}
	return "", ErrInvalidStatus
}

// IsValid reports whether s is a known status
func (s LeadStatus) IsValid() bool {
	return slices.Contains(LeadStatuses, s)
}

// String returns the status name
func (s LeadStatus) String() string {
	return string(s)
}

// Lead is a sales lead. Its tenant is the partition it was read from and is not a field.
// Lead is a value type; modifications return a new value.
type Lead struct {
	ID     int64
	Name   string
	Status LeadStatus
	Value  decimal.Decimal
}

// WithStatus returns a copy of the lead carrying status
func (l Lead) WithStatus(status LeadStatus) Lead {
	l.Status = status
	return l
}

var usdPrinter = message.NewPrinter(language.English)

// ValueLabel renders the lead value as whole dollars with grouping, e.g. "$5,000".
// Fractional values keep two decimals.
func (l Lead) ValueLabel() string {
	return FormatUSD(l.Value)
}

// FormatUSD renders an amount with a dollar sign and thousands separators
func FormatUSD(v decimal.Decimal) string {
	if v.Equal(v.Truncate(0)) {
		return usdPrinter.Sprintf("$%d", v.IntPart())
	}
	return usdPrinter.Sprintf("$%.2f", v.Round(2).InexactFloat64())
}

// StatusFilter selects leads by status. The zero value and "All" match everything.
type StatusFilter struct {
	status LeadStatus
}

// FilterAll is the label of the match-everything filter
const FilterAll = "All"

// ParseStatusFilter parses "All", "" or a status name
func ParseStatusFilter(raw string) (StatusFilter, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, FilterAll) {
		return StatusFilter{}, nil
	}
	s, err := ParseLeadStatus(raw)
	if err != nil {
		return StatusFilter{}, err
	}
	return StatusFilter{status: s}, nil
}

// String returns the filter label
func (f StatusFilter) String() string {
	if f.status == "" {
		return FilterAll
	}
	return string(f.status)
}

// Match reports whether l passes the filter
func (f StatusFilter) Match(l Lead) bool {
	return f.status == "" || l.Status == f.status
}

// Apply returns the leads passing the filter, in input order
func (f StatusFilter) Apply(leads []Lead) []Lead {
	out := make([]Lead, 0, len(leads))
	for _, l := range leads {
		if f.Match(l) {
			out = append(out, l)
		}
	}
	return out
}
