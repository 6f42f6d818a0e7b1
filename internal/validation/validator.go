// Reelmatch - Content-Based Movie Recommendation Service
// Copyright 2026 Reelmatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelmatch/reelmatch

// Package validation provides struct validation using
// go-playground/validator v10 through a thread-safe singleton instance.
// The singleton matters: validator caches struct metadata, so sharing one
// instance keeps repeated validations cheap.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError describes a single failed validation rule.
type FieldError struct {
	Field string
	Tag   string
	Param string
	Value interface{}
}

// Error returns a human-readable message for the failed rule.
func (e *FieldError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("field %q failed rule %q (param %s)", e.Field, e.Tag, e.Param)
	}
	return fmt.Sprintf("field %q failed rule %q", e.Field, e.Tag)
}

// StructError aggregates every failed rule from one ValidateStruct call.
type StructError struct {
	Fields []FieldError
}

// Error implements the error interface with a combined message.
func (e *StructError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(e.Fields))
	for i := range e.Fields {
		msgs = append(msgs, e.Fields[i].Error())
	}
	return strings.Join(msgs, "; ")
}

// instance returns the shared validator, constructing it on first use.
func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct validates v against its `validate` struct tags. It
// returns nil on success and a *StructError listing every failed field
// otherwise.
func ValidateStruct(v interface{}) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// InvalidValidationError: v was not a struct.
		return err
	}

	out := &StructError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field: fe.Namespace(),
			Tag:   fe.Tag(),
			Param: fe.Param(),
			Value: fe.Value(),
		})
	}
	return out
}
