package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	phoneRegex         = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)
	alphaNumUnderRegex = regexp.MustCompile(`^[\w\s]+$`)

	requiredText = "this field is required"

	// tags validated by our own funcs
	customValidations = []struct {
		tag  string
		text string
		fn   validator.Func
	}{
		{"alphanum_", "only alphanumeric characters and underscores are allowed", regexpValidation(alphaNumUnderRegex)},
		{"phone", "phone number must be in international format, e.g. +243990000000", regexpValidation(phoneRegex)},
	}

	// builtin tags whose english text is replaced
	overriddenTexts = map[string]string{
		"required":      requiredText,
		"required_with": requiredText,
		"hexcolor":      "must be a valid hex color, e.g. #1f2937",
	}
)

// NewTranslator returns the english translator used for validation messages.
func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// validate Date as time.Time; the zero Date is "no value"
	validate.RegisterCustomTypeFunc(dateTypeFunc, Date{})

	for _, cv := range customValidations {
		_ = validate.RegisterValidation(cv.tag, cv.fn)
		RegisterCustomTranslation(validate, translator, cv.tag, cv.text)
	}
	for tag, text := range overriddenTexts {
		RegisterCustomTranslation(validate, translator, tag, text, true)
	}
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// regexpValidation matches the string field against re.
func regexpValidation(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

func dateTypeFunc(field reflect.Value) interface{} {
	if d, ok := field.Interface().(Date); ok && !d.IsZero() {
		return d.Time
	}
	return nil
}
