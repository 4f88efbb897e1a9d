package tui

import (
	"github.com/greonxpert/console/pkg/wizard"
)

type fieldKind int

const (
	kindText fieldKind = iota
	kindList
	kindFile
	kindChoice
	kindRating
)

type field struct {
	name        string
	label       string
	kind        fieldKind
	placeholder string
}

// layout returns the fields shown on a step of a wizard.
type layout func(step wizard.Step, form wizard.Form) []field

// contentLayout lays out the content wizard. The details step depends on
// the selected category.
func contentLayout(step wizard.Step, form wizard.Form) []field {
	switch step {
	case wizard.StepCategory:
		return []field{{name: "category", label: "Category", kind: kindChoice}}

	case wizard.StepDetails:
		out := []field{
			{name: "title", label: "Title"},
			{name: "description", label: "Description"},
			{name: "tags", label: "Tags", kind: kindList, placeholder: "type a tag, comma to add"},
		}
		cf, ok := form.(*wizard.ContentForm)
		if !ok {
			return out
		}
		switch cf.Category {
		case wizard.Blog:
			out = append(out,
				field{name: "content", label: "Content"},
				field{name: "readTime", label: "Read time", placeholder: "5 min"},
			)
		case wizard.Video:
			out = append(out,
				field{name: "videoUrl", label: "Video URL", placeholder: "https://"},
				field{name: "duration", label: "Duration", placeholder: "12:30"},
				field{name: "speakers", label: "Speakers", kind: kindList, placeholder: "comma to add"},
			)
		case wizard.Resources:
			out = append(out,
				field{name: "resourceType", label: "Resource type", placeholder: "Guide, Report, Toolkit"},
				field{name: "includedItems", label: "Included items", kind: kindList, placeholder: "comma to add"},
				field{name: wizard.SlotFile, label: "File", kind: kindFile, placeholder: "path, enter to attach"},
			)
		}
		return out

	case wizard.StepFinal:
		return []field{
			{name: "authorName", label: "Author name"},
			{name: "email", label: "Email"},
			{name: "organization", label: "Organization"},
			{name: wizard.SlotImage, label: "Cover image", kind: kindFile, placeholder: "path, enter to attach"},
			{name: wizard.SlotAuthorImage, label: "Author photo", kind: kindFile, placeholder: "path, enter to attach"},
		}
	}
	return nil
}

// testimonialLayout lays out the testimonial wizard.
func testimonialLayout(step wizard.Step, _ wizard.Form) []field {
	switch step {
	case wizard.StepPersonal:
		return []field{
			{name: "name", label: "Name"},
			{name: "position", label: "Position"},
			{name: "company", label: "Company"},
			{name: "email", label: "Email"},
		}
	case wizard.StepQuote:
		return []field{
			{name: "quote", label: "Testimonial", placeholder: "up to 1000 characters"},
			{name: "rating", label: "Rating", kind: kindRating},
			{name: wizard.SlotImage, label: "Photo", kind: kindFile, placeholder: "path, enter to attach"},
		}
	}
	return nil
}
