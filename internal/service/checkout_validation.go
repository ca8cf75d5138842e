package service

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/saleshop/internal/models"

	"github.com/go-playground/validator/v10"
)

var (
	contactPhonePattern = regexp.MustCompile(`^\(\d{3}\) \d{3}-\d{4}$`)
	contactDigitsRegexp = regexp.MustCompile(`^\d{10}$`)
	mpesaPhonePattern   = regexp.MustCompile(`^07\d{8}$`)
)

var (
	checkoutValidatorOnce sync.Once
	checkoutValidator     *validator.Validate
)

// paymentRequest 支付发起入参
type paymentRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,mpesa_phone"`
}

func getCheckoutValidator() *validator.Validate {
	checkoutValidatorOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return field.Name
			}
			return name
		})
		_ = v.RegisterValidation("contact_phone", func(fl validator.FieldLevel) bool {
			return isContactPhone(fl.Field().String())
		})
		_ = v.RegisterValidation("mpesa_phone", func(fl validator.FieldLevel) bool {
			return mpesaPhonePattern.MatchString(fl.Field().String())
		})
		checkoutValidator = v
	})
	return checkoutValidator
}

func isContactPhone(raw string) bool {
	return contactPhonePattern.MatchString(raw) || contactDigitsRegexp.MatchString(raw)
}

// FormatContactPhone 10 位数字统一格式化为 (XXX) XXX-XXXX，其他输入原样返回
func FormatContactPhone(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !contactDigitsRegexp.MatchString(trimmed) {
		return trimmed
	}
	return "(" + trimmed[0:3] + ") " + trimmed[3:6] + "-" + trimmed[6:10]
}

func normalizeCustomer(c models.Customer) models.Customer {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = strings.TrimSpace(c.Email)
	c.PhoneNumber = strings.TrimSpace(c.PhoneNumber)
	return c
}

func normalizeAddress(a models.ShippingAddress) models.ShippingAddress {
	a.Street = strings.TrimSpace(a.Street)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.ZipCode = strings.TrimSpace(a.ZipCode)
	return a
}

// validateCheckoutInput 校验客户与收货信息，一次性返回全部字段错误
func validateCheckoutInput(customer models.Customer, address models.ShippingAddress) error {
	verr := &ValidationError{}
	collectFieldErrors(verr, getCheckoutValidator().Struct(customer))
	collectFieldErrors(verr, getCheckoutValidator().Struct(address))
	return verr.orNil()
}

func validatePaymentPhone(phone string) error {
	verr := &ValidationError{}
	collectFieldErrors(verr, getCheckoutValidator().Struct(paymentRequest{PhoneNumber: phone}))
	return verr.orNil()
}

func collectFieldErrors(verr *ValidationError, err error) {
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.add("_", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		verr.add(fe.Field(), fieldReason(fe.Tag()))
	}
}

func fieldReason(tag string) string {
	switch tag {
	case "required":
		return "required"
	case "email":
		return "must be a valid email address"
	case "contact_phone":
		return "must match (XXX) XXX-XXXX"
	case "mpesa_phone":
		return "must be 07 followed by 8 digits"
	default:
		return "invalid"
	}
}
