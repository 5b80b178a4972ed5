// Package validation は入力検証（go-playground/validator）の共通設定を提供する。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxPasswordBytes はbcryptが扱えるパスワードの最大バイト数。
const MaxPasswordBytes = 72

// Validator は構造体タグによる入力検証を行う。
type Validator struct {
	validate *validator.Validate
}

// New はカスタムルールを登録したValidatorを生成する。
//
// 追加ルール:
//   - password: ASCIIの英大文字・英小文字・数字をそれぞれ1文字以上含む
//   - bcryptlen: UTF-8で72バイト以下（maxは文字数で数えるため別に検査する）
//
// エラーメッセージのフィールド名にはjsonタグ名を使用する。
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("password", validatePasswordStrength); err != nil {
		panic(fmt.Sprintf("failed to register password validation: %v", err))
	}
	if err := v.RegisterValidation("bcryptlen", validateBcryptLength); err != nil {
		panic(fmt.Sprintf("failed to register bcryptlen validation: %v", err))
	}

	return &Validator{validate: v}
}

// Struct は構造体を検証し、最初の違反を人間向けのメッセージとして返す。
// 違反がない場合はnilを返す。
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return errors.New(Message(verrs[0]))
	}
	return err
}

// Message はFieldErrorを利用者向けメッセージに変換する。
func Message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "bcryptlen":
		return fmt.Sprintf("%s must be at most %d bytes", field, MaxPasswordBytes)
	case "password":
		return fmt.Sprintf("%s must contain an uppercase letter, a lowercase letter and a digit", field)
	case "latitude":
		return fmt.Sprintf("%s must be between -90 and 90", field)
	case "longitude":
		return fmt.Sprintf("%s must be between -180 and 180", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func validatePasswordStrength(fl validator.FieldLevel) bool {
	var upper, lower, digit bool
	for _, r := range fl.Field().String() {
		switch {
		case 'A' <= r && r <= 'Z':
			upper = true
		case 'a' <= r && r <= 'z':
			lower = true
		case '0' <= r && r <= '9':
			digit = true
		}
	}
	return upper && lower && digit
}

func validateBcryptLength(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxPasswordBytes
}
