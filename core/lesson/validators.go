package lesson

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/ensinoverso/backend/core"
)

var (
	pubRequiredTag  = "pubrequired"
	pubRequiredText = "this field is required to publish a lesson"

	pubClassesTag  = "pubclasses"
	pubClassesText = "a published lesson must target at least one class"
)

// RegisterValidators registers the publication rules on NewLesson and
// UpdateLesson structs: a lesson may stay incomplete while in draft but
// must be fully filled in to be published.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(lessonStructValidation, NewLesson{}, UpdateLesson{})

	core.RegisterCustomTranslation(validate, translator, pubRequiredTag, pubRequiredText)
	core.RegisterCustomTranslation(validate, translator, pubClassesTag, pubClassesText)
}

func lessonStructValidation(sl validator.StructLevel) {
	switch les := sl.Current().Interface().(type) {
	case NewLesson:
		validatePublication(les.Status, les.Title, les.Body, les.School, les.Subject, les.ClassIDs, sl)
	case UpdateLesson:
		validatePublication(les.Status, les.Title, les.Body, les.School, les.Subject, les.ClassIDs, sl)
	}
}

func validatePublication(status, title, body, school, subject string, classIDs []string, sl validator.StructLevel) {
	if status != StatusPublished {
		return
	}

	reportErr := func(val interface{}, fldName, structFldName, tag string) {
		sl.ReportError(val, fldName, structFldName, tag, "")
	}
	if title == "" {
		reportErr(title, "title", "Title", pubRequiredTag)
	}
	if body == "" {
		reportErr(body, "body", "Body", pubRequiredTag)
	}
	if school == "" {
		reportErr(school, "school", "School", pubRequiredTag)
	}
	if subject == "" {
		reportErr(subject, "subject", "Subject", pubRequiredTag)
	}
	if len(classIDs) == 0 {
		reportErr(classIDs, "class_ids", "ClassIDs", pubClassesTag)
	}
}
