// Package leads validates, submits and stores consultation requests captured by
// the chat widget.
package leads

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DateLayout is the wire format of PreferredDate.
	DateLayout = "2006-01-02"

	// MinLeadDays is how many calendar days ahead the earliest bookable date is.
	MinLeadDays = 2

	MaxProjectDescriptionChars = 2000
	MaxNameChars               = 120
)

// Validation messages shown to the visitor.
const (
	MsgRequiredFields  = "Please fill in all required fields."
	MsgInvalidEmail    = "Please enter a valid email address."
	MsgDescriptionLong = "Please keep the project description under 2000 characters."
	MsgNameLong        = "Please keep your name under 120 characters."
	MsgInvalidDate     = "Please choose a valid date."
	MsgDateTooSoon     = "Please choose a date at least 2 days from today."
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Form is the booking form as the visitor filled it in.
type Form struct {
	Name               string `json:"name"`
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	ProjectDescription string `json:"project_description"`
	PreferredDate      string `json:"preferred_date"`
}

// Record is a validated lead, ready to persist. Phone is nil when not given.
type Record struct {
	Name               string  `json:"name"`
	Email              string  `json:"email"`
	Phone              *string `json:"phone"`
	ProjectDescription string  `json:"project_description"`
	PreferredDate      string  `json:"preferred_date"`
}

// ValidationError reports the first rule a form broke.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the form against the booking rules, in order, and returns the
// trimmed record. now decides which dates are bookable, in now's location.
func (f Form) Validate(now time.Time) (Record, error) {
	rec := Record{
		Name:               strings.TrimSpace(f.Name),
		Email:              strings.TrimSpace(f.Email),
		ProjectDescription: strings.TrimSpace(f.ProjectDescription),
		PreferredDate:      strings.TrimSpace(f.PreferredDate),
	}
	if phone := strings.TrimSpace(f.Phone); phone != "" {
		rec.Phone = &phone
	}

	for _, req := range []struct{ field, value string }{
		{"name", rec.Name},
		{"email", rec.Email},
		{"project_description", rec.ProjectDescription},
		{"preferred_date", rec.PreferredDate},
	} {
		if req.value == "" {
			return Record{}, &ValidationError{Field: req.field, Message: MsgRequiredFields}
		}
	}

	if !emailPattern.MatchString(rec.Email) {
		return Record{}, &ValidationError{Field: "email", Message: MsgInvalidEmail}
	}
	if utf8.RuneCountInString(rec.ProjectDescription) > MaxProjectDescriptionChars {
		return Record{}, &ValidationError{Field: "project_description", Message: MsgDescriptionLong}
	}
	if utf8.RuneCountInString(rec.Name) > MaxNameChars {
		return Record{}, &ValidationError{Field: "name", Message: MsgNameLong}
	}

	loc := now.Location()
	date, err := time.ParseInLocation(DateLayout, rec.PreferredDate, loc)
	if err != nil {
		return Record{}, &ValidationError{Field: "preferred_date", Message: MsgInvalidDate}
	}
	if date.Before(EarliestDate(now)) {
		return Record{}, &ValidationError{Field: "preferred_date", Message: MsgDateTooSoon}
	}

	return rec, nil
}

// EarliestDate is midnight of the first bookable day relative to now.
func EarliestDate(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+MinLeadDays, 0, 0, 0, 0, now.Location())
}
