package wizard

import (
	"strconv"
	"strings"

	"github.com/greonxpert/console/pkg/api"
	"github.com/greonxpert/console/pkg/forms"
	"github.com/greonxpert/console/pkg/uploads"
)

// Testimonial wizard steps.
const (
	StepTestimonialGate Step = iota
	StepPersonal
	StepQuote
	StepTestimonialComplete
)

// TestimonialSteps names the testimonial wizard's steps in order.
var TestimonialSteps = []string{"gate", "details", "testimonial", "complete"}

// DefaultRating is the rating a fresh testimonial starts with.
const DefaultRating = 5

// TestimonialForm is the session data of the testimonial wizard.
type TestimonialForm struct {
	Name     string
	Position string
	Company  string
	Email    string
	Quote    string
	Rating   int

	attachments *uploads.AttachmentManager
}

// NewTestimonialForm creates an empty form whose previews come from reg.
func NewTestimonialForm(reg *uploads.PreviewRegistry) *TestimonialForm {
	return &TestimonialForm{
		Rating:      DefaultRating,
		attachments: uploads.NewAttachmentManager(reg, SlotImage),
	}
}

func (f *TestimonialForm) Set(field, value string) bool {
	switch field {
	case "name":
		f.Name = value
	case "position":
		f.Position = value
	case "company":
		f.Company = value
	case "email":
		f.Email = strings.TrimSpace(value)
	case "quote":
		f.Quote = value
	case "rating":
		// Unparsable input becomes 0 so validation reports the range.
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			n = 0
		}
		f.Rating = n
	default:
		return false
	}
	return true
}

func (f *TestimonialForm) Get(field string) string {
	switch field {
	case "name":
		return f.Name
	case "position":
		return f.Position
	case "company":
		return f.Company
	case "email":
		return f.Email
	case "quote":
		return f.Quote
	case "rating":
		return strconv.Itoa(f.Rating)
	}
	return ""
}

func (f *TestimonialForm) List(string) *forms.List { return nil }

func (f *TestimonialForm) Attachments() *uploads.AttachmentManager { return f.attachments }

func (f *TestimonialForm) ValidateStep(s Step, _ api.AccessContext) *forms.Result {
	r := forms.NewResult()
	switch s {
	case StepPersonal:
		r.Require("name", f.Name)
		r.Require("position", f.Position)
		r.Require("company", f.Company)
		r.Check("email", f.Email, forms.Required(), forms.Email())
	case StepQuote:
		r.Check("quote", f.Quote, forms.Required(), forms.MaxLength(1000))
		r.Check("rating", f.Rating, forms.Range(1, 5))
	}
	return r
}

func (f *TestimonialForm) ValidateAll(access api.AccessContext) *forms.Result {
	return validateAll(f, len(TestimonialSteps), access)
}

func (f *TestimonialForm) Submission() *api.Submission {
	sub := api.NewSubmission().
		Set("name", f.Name).
		Set("position", f.Position).
		Set("company", f.Company).
		Set("email", f.Email).
		Set("quote", f.Quote).
		Set("rating", strconv.Itoa(f.Rating))
	if s, ok := f.attachments.Get(SlotImage); ok {
		sub.Attach(SlotImage, s.File)
	}
	return sub
}

func (f *TestimonialForm) ContactEmail() string { return f.Email }

func (f *TestimonialForm) Reset() error {
	att := f.attachments
	*f = TestimonialForm{Rating: DefaultRating, attachments: att}
	return att.Close()
}
