package wizard

import (
	"strings"

	"github.com/greonxpert/console/pkg/api"
	"github.com/greonxpert/console/pkg/forms"
	"github.com/greonxpert/console/pkg/uploads"
)

// Content wizard steps.
const (
	StepGate Step = iota
	StepCategory
	StepDetails
	StepFinal
	StepComplete
)

// ContentSteps names the content wizard's steps in order.
var ContentSteps = []string{"gate", "category", "details", "final", "complete"}

// Category is the discriminator of the content form.
type Category string

const (
	Blog      Category = "Blog"
	Video     Category = "Video"
	Resources Category = "Resources"
)

// Categories lists every category in display order.
var Categories = []Category{Blog, Video, Resources}

// Attachment slots of the content wizard.
const (
	SlotImage       = "image"
	SlotAuthorImage = "authorImage"
	SlotFile        = "file"
)

// CategoryDetails is the field group selected by a category. Each variant
// owns only its own fields.
type CategoryDetails interface {
	Category() Category
	Set(field, value string) bool
	Get(field string) string
	List(field string) *forms.List
	Validate(r *forms.Result, att *uploads.AttachmentManager)
	Encode(sub *api.Submission, att *uploads.AttachmentManager)
}

// BlogDetails holds the fields of a Blog submission.
type BlogDetails struct {
	Content  string
	ReadTime string
}

func (d *BlogDetails) Category() Category { return Blog }

func (d *BlogDetails) Set(field, value string) bool {
	switch field {
	case "content":
		d.Content = value
	case "readTime":
		d.ReadTime = value
	default:
		return false
	}
	return true
}

func (d *BlogDetails) Get(field string) string {
	switch field {
	case "content":
		return d.Content
	case "readTime":
		return d.ReadTime
	}
	return ""
}

func (d *BlogDetails) List(string) *forms.List { return nil }

func (d *BlogDetails) Validate(r *forms.Result, _ *uploads.AttachmentManager) {
	r.Require("content", d.Content)
}

func (d *BlogDetails) Encode(sub *api.Submission, _ *uploads.AttachmentManager) {
	sub.Set("content", d.Content).Set("readTime", d.ReadTime)
}

// VideoDetails holds the fields of a Video submission.
type VideoDetails struct {
	VideoURL string
	Duration string
	Speakers *forms.List
}

func (d *VideoDetails) Category() Category { return Video }

func (d *VideoDetails) Set(field, value string) bool {
	switch field {
	case "videoUrl":
		d.VideoURL = strings.TrimSpace(value)
	case "duration":
		d.Duration = value
	default:
		return false
	}
	return true
}

func (d *VideoDetails) Get(field string) string {
	switch field {
	case "videoUrl":
		return d.VideoURL
	case "duration":
		return d.Duration
	}
	return ""
}

func (d *VideoDetails) List(field string) *forms.List {
	if field == "speakers" {
		return d.Speakers
	}
	return nil
}

func (d *VideoDetails) Validate(r *forms.Result, _ *uploads.AttachmentManager) {
	r.Check("videoUrl", d.VideoURL, forms.Required(), forms.URL())
}

func (d *VideoDetails) Encode(sub *api.Submission, _ *uploads.AttachmentManager) {
	sub.Set("videoUrl", d.VideoURL).Set("duration", d.Duration).SetList("speakers", d.Speakers.Items())
}

// ResourceDetails holds the fields of a Resources submission. The
// resource itself is the "file" attachment.
type ResourceDetails struct {
	ResourceType  string
	IncludedItems *forms.List
}

func (d *ResourceDetails) Category() Category { return Resources }

func (d *ResourceDetails) Set(field, value string) bool {
	if field != "resourceType" {
		return false
	}
	d.ResourceType = value
	return true
}

func (d *ResourceDetails) Get(field string) string {
	if field == "resourceType" {
		return d.ResourceType
	}
	return ""
}

func (d *ResourceDetails) List(field string) *forms.List {
	if field == "includedItems" {
		return d.IncludedItems
	}
	return nil
}

func (d *ResourceDetails) Validate(r *forms.Result, att *uploads.AttachmentManager) {
	r.Require("resourceType", d.ResourceType)
	if !att.Has(SlotFile) {
		r.Add(SlotFile, "is required")
	}
}

func (d *ResourceDetails) Encode(sub *api.Submission, att *uploads.AttachmentManager) {
	sub.Set("resourceType", d.ResourceType).SetList("includedItems", d.IncludedItems.Items())
	if s, ok := att.Get(SlotFile); ok {
		sub.Attach(SlotFile, s.File)
	}
}

// ContentForm is the session data of the content submission wizard.
// Every category variant is kept so switching back and forth loses
// nothing; only the selected one is validated and submitted.
type ContentForm struct {
	Category    Category
	Title       string
	Description string
	Tags        *forms.List

	AuthorName   string
	Email        string
	Organization string

	variants    map[Category]CategoryDetails
	attachments *uploads.AttachmentManager
}

// NewContentForm creates an empty form whose previews come from reg.
func NewContentForm(reg *uploads.PreviewRegistry) *ContentForm {
	f := &ContentForm{
		attachments: uploads.NewAttachmentManager(reg, SlotImage, SlotAuthorImage, SlotFile),
	}
	f.defaults()
	return f
}

func (f *ContentForm) defaults() {
	f.Category = ""
	f.Title, f.Description = "", ""
	f.Tags = forms.NewList()
	f.AuthorName, f.Email, f.Organization = "", "", ""
	f.variants = map[Category]CategoryDetails{
		Blog:      &BlogDetails{},
		Video:     &VideoDetails{Speakers: forms.NewList()},
		Resources: &ResourceDetails{IncludedItems: forms.NewList()},
	}
}

// Details returns the active variant, or nil before a category is chosen.
func (f *ContentForm) Details() CategoryDetails {
	return f.variants[f.Category]
}

// Variant returns the stored variant for c, active or not.
func (f *ContentForm) Variant(c Category) CategoryDetails {
	return f.variants[c]
}

// SelectCategory switches the discriminator. Unknown categories are
// rejected.
func (f *ContentForm) SelectCategory(c Category) bool {
	if _, ok := f.variants[c]; !ok {
		return false
	}
	f.Category = c
	return true
}

func (f *ContentForm) Set(field, value string) bool {
	switch field {
	case "category":
		return f.SelectCategory(Category(value))
	case "title":
		f.Title = value
	case "description":
		f.Description = value
	case "authorName":
		f.AuthorName = value
	case "email":
		f.Email = strings.TrimSpace(value)
	case "organization":
		f.Organization = value
	default:
		if d := f.Details(); d != nil {
			return d.Set(field, value)
		}
		return false
	}
	return true
}

func (f *ContentForm) Get(field string) string {
	switch field {
	case "category":
		return string(f.Category)
	case "title":
		return f.Title
	case "description":
		return f.Description
	case "authorName":
		return f.AuthorName
	case "email":
		return f.Email
	case "organization":
		return f.Organization
	}
	if d := f.Details(); d != nil {
		return d.Get(field)
	}
	return ""
}

func (f *ContentForm) List(field string) *forms.List {
	if field == "tags" {
		return f.Tags
	}
	if d := f.Details(); d != nil {
		return d.List(field)
	}
	return nil
}

func (f *ContentForm) Attachments() *uploads.AttachmentManager { return f.attachments }

func (f *ContentForm) ValidateStep(s Step, access api.AccessContext) *forms.Result {
	r := forms.NewResult()
	switch s {
	case StepCategory:
		r.Check("category", string(f.Category), forms.Required(), forms.OneOf(categoryNames()...))
		if f.Category != "" && !access.Allows(string(f.Category)) {
			r.Add("category", "is not available for this link")
		}
	case StepDetails:
		r.Require("title", f.Title)
		r.Require("description", f.Description)
		if d := f.Details(); d != nil {
			d.Validate(r, f.attachments)
		}
	case StepFinal:
		r.Require("authorName", f.AuthorName)
		r.Check("email", f.Email, forms.Required(), forms.Email())
	}
	return r
}

func (f *ContentForm) ValidateAll(access api.AccessContext) *forms.Result {
	return validateAll(f, len(ContentSteps), access)
}

func (f *ContentForm) Submission() *api.Submission {
	sub := api.NewSubmission().
		Set("category", string(f.Category)).
		Set("title", f.Title).
		Set("description", f.Description).
		SetList("tags", f.Tags.Items()).
		Set("authorName", f.AuthorName).
		Set("email", f.Email).
		Set("organization", f.Organization)

	if d := f.Details(); d != nil {
		d.Encode(sub, f.attachments)
	}
	for _, slot := range []string{SlotImage, SlotAuthorImage} {
		if s, ok := f.attachments.Get(slot); ok {
			sub.Attach(slot, s.File)
		}
	}
	return sub
}

func (f *ContentForm) ContactEmail() string { return f.Email }

func (f *ContentForm) Reset() error {
	f.defaults()
	return f.attachments.Close()
}

func categoryNames() []string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = string(c)
	}
	return names
}
