package validator

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Validator wraps gin's validation engine with JSON field names and English messages.
type Validator struct {
	engine *validator.Validate
	trans  ut.Translator
}

// New configures gin's binding engine and returns a validator bound to it.
func New() *Validator {
	v := &Validator{}

	engine, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		engine = validator.New()
	}
	engine.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	engine.SetTagName("binding")

	english := en.New()
	uni := ut.New(english, english)
	v.trans, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(engine, v.trans)

	v.engine = engine
	return v
}

// Struct validates a decoded request.
func (v *Validator) Struct(obj interface{}) error {
	return v.engine.Struct(obj)
}

// ParseError converts raw technical errors into a clean map.
// Nested errors are reported by their hierarchical name, e.g. messages[0].role.
func (v *Validator) ParseError(err error) map[string]string {
	errMap := make(map[string]string)

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			ns := e.Namespace()

			if i := strings.Index(ns, "."); i != -1 {
				ns = ns[i+1:]
			}

			msg := e.Translate(v.trans)

			if e.Tag() == "oneof" {
				msg = fmt.Sprintf("must be one of [%s]", strings.ReplaceAll(e.Param(), " ", ", "))
			}

			errMap[ns] = msg
		}
		return errMap
	}

	errMap["body"] = "Invalid request body format. Please fix your payload."
	return errMap
}
