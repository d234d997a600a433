package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/schardosin/folio/pkg/leads"
)

// ReadSelection prompts the user to select from a list of options using huh
func ReadSelection(options []string, title string) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("no options provided")
	}

	var selected string

	huhOptions := make([]huh.Option[string], len(options))
	for i, opt := range options {
		huhOptions[i] = huh.NewOption(opt, opt)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(title).
				Options(huhOptions...).
				Value(&selected),
		),
	)

	if err := form.Run(); err != nil {
		return "", err
	}

	return selected, nil
}

// ErrFormAborted is returned when the visitor leaves the booking form.
var ErrFormAborted = errors.New("booking form aborted")

// ReadLeadForm shows the booking form. prefill keeps what the visitor typed on
// a previous failed attempt. Field checks mirror the server rules so most
// mistakes are caught before anything is sent.
func ReadLeadForm(prefill leads.Form, now time.Time) (leads.Form, error) {
	form := prefill
	earliest := leads.EarliestDate(now).Format(leads.DateLayout)
	if form.PreferredDate == "" {
		form.PreferredDate = earliest
	}

	required := func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(leads.MsgRequiredFields)
		}
		return nil
	}

	f := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Book a free consultation").
				Description("You'll get a reply within 24 hours."),
			huh.NewInput().
				Title("Name").
				CharLimit(leads.MaxNameChars).
				Value(&form.Name).
				Validate(required),
			huh.NewInput().
				Title("Email").
				Value(&form.Email).
				Validate(func(s string) error {
					if err := required(s); err != nil {
						return err
					}
					return fieldError(leads.Form{Name: "x", Email: s, ProjectDescription: "x", PreferredDate: earliest}, now)
				}),
			huh.NewInput().
				Title("Phone").
				Description("Optional").
				Value(&form.Phone),
			huh.NewText().
				Title("Project description").
				CharLimit(leads.MaxProjectDescriptionChars).
				Value(&form.ProjectDescription).
				Validate(required),
			huh.NewInput().
				Title("Preferred date").
				Description(fmt.Sprintf("YYYY-MM-DD, %s or later", earliest)).
				Value(&form.PreferredDate).
				Validate(func(s string) error {
					return fieldError(leads.Form{Name: "x", Email: "x@example.com", ProjectDescription: "x", PreferredDate: s}, now)
				}),
		),
	)

	if err := f.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return prefill, ErrFormAborted
		}
		return prefill, err
	}
	return form, nil
}

// fieldError runs the full validation on a form where only one field is real.
func fieldError(probe leads.Form, now time.Time) error {
	if _, err := probe.Validate(now); err != nil {
		var verr *leads.ValidationError
		if errors.As(err, &verr) {
			return errors.New(verr.Message)
		}
		return err
	}
	return nil
}
