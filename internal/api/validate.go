package api

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

var (
	transOnce sync.Once
	trans     ut.Translator
	transErr  error
)

// initTrans registers English messages and JSON field names on gin's validator.
func initTrans() (ut.Translator, error) {
	transOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			transErr = errors.New("gin validator is not a go-playground validator")
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		enT := en.New()
		uni := ut.New(enT, enT)
		trans, _ = uni.GetTranslator("en")
		transErr = enTranslations.RegisterDefaultTranslations(v, trans)
	})
	return trans, transErr
}

// bindingMessage turns a binding error into a message for the client.
// Validation failures are translated field by field.
func bindingMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return "invalid request body: " + err.Error()
	}
	t, terr := initTrans()
	if terr != nil {
		return errs.Error()
	}

	translated := errs.Translate(t)
	keys := make([]string, 0, len(translated))
	for k := range translated {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, translated[k])
	}
	return strings.Join(msgs, "; ")
}
