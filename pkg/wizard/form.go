package wizard

import (
	"github.com/greonxpert/console/pkg/api"
	"github.com/greonxpert/console/pkg/forms"
	"github.com/greonxpert/console/pkg/uploads"
)

// Form is the data a wizard collects between the gate and the terminal
// step.
type Form interface {
	// ValidateStep checks the fields owned by data step s.
	ValidateStep(s Step, access api.AccessContext) *forms.Result

	// ValidateAll checks every data step.
	ValidateAll(access api.AccessContext) *forms.Result

	// Set writes a scalar field. It reports false for unknown fields.
	Set(field, value string) bool

	// Get reads a scalar field.
	Get(field string) string

	// List returns a list-valued field, or nil.
	List(field string) *forms.List

	// Attachments returns the form's file slots.
	Attachments() *uploads.AttachmentManager

	// Submission builds the payload from the relevant fields only.
	Submission() *api.Submission

	// ContactEmail is the address quoted in the confirmation.
	ContactEmail() string

	// Reset restores defaults and releases every attachment.
	Reset() error
}

// validateAll merges the results of every data step of a machine with n
// steps.
func validateAll(f Form, n int, access api.AccessContext) *forms.Result {
	r := forms.NewResult()
	for s := Step(1); int(s) < n-1; s++ {
		r.Merge(f.ValidateStep(s, access))
	}
	return r
}
