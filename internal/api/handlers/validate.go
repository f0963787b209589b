// validate.go — валидация входных DTO через go-playground/validator.
package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// usernamePattern — допустимые символы имени пользователя.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// validationMessages — сообщения для тегов валидации.
var validationMessages = map[string]string{
	"required": "обязательное поле",
	"email":    "должно быть корректным адресом электронной почты",
	"min":      "минимальная длина %s",
	"max":      "максимальная длина %s",
	"oneof":    "допустимые значения: %s",
	"gt":       "должно быть больше %s",
	"username": "допускаются только латинские буквы, цифры, _ и -",
	"notblank": "не может быть пустым",
}

// newValidator создаёт валидатор, использующий имена полей из json-тегов.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return v
}

// validationMessage возвращает описание первой ошибки валидации.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Некорректные данные запроса"
	}

	fe := verrs[0]
	tmpl, ok := validationMessages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("Поле %s: некорректное значение", fe.Field())
	}
	if strings.Contains(tmpl, "%s") {
		tmpl = fmt.Sprintf(tmpl, fe.Param())
	}
	return fmt.Sprintf("Поле %s: %s", fe.Field(), tmpl)
}
