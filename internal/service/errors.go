package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNetwork              = errors.New("network request failed")
	ErrMalformedCatalog     = errors.New("catalog payload malformed")
	ErrEmptyCatalog         = errors.New("catalog has no products on sale")
	ErrStaleCatalog         = errors.New("catalog response superseded by a newer request")
	ErrPersistence          = errors.New("cart persistence failed")
	ErrValidation           = errors.New("validation failed")
	ErrAlreadyInProgress    = errors.New("submission already in progress")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrSubmission           = errors.New("submission failed")
	ErrInvalidTransition    = errors.New("checkout transition not allowed")
	ErrProductNotFound      = errors.New("product not found")
	ErrSessionNotFound      = errors.New("session not found")
	ErrInvalidPricingPolicy = errors.New("pricing policy invalid")
)

// FieldError 单个字段的校验错误
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError 字段级校验错误，列出全部不合法字段
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

// Error 实现 error
func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Reason))
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

// Unwrap 支持 errors.Is(err, ErrValidation)
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func (e *ValidationError) add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}
