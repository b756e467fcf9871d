// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/bvmm/pkg/logging"
	"github.com/AleutianAI/bvmm/services/vmm/ctree"
	"github.com/AleutianAI/bvmm/services/vmm/likelihood"
)

// configValidate is the validator instance for configuration structs.
// Initialized in init() with custom validators.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their YAML names.
	configValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = configValidate.RegisterValidation("bvmm_mode", validateParsed(func(s string) error {
		_, err := ctree.ParseMode(s)
		return err
	}))
	_ = configValidate.RegisterValidation("bvmm_kind", validateParsed(func(s string) error {
		_, err := ctree.ParseKind(s)
		return err
	}))
	_ = configValidate.RegisterValidation("bvmm_prior", validateParsed(func(s string) error {
		_, err := likelihood.PriorByName(s)
		return err
	}))
	_ = configValidate.RegisterValidation("bvmm_level", validateParsed(func(s string) error {
		_, err := logging.ParseLevel(s)
		return err
	}))
	_ = configValidate.RegisterValidation("bvmm_positive", validatePositive)

	configValidate.RegisterStructValidation(validateConcentrationLength, Config{})
}

// validateParsed adapts a Parse function into a field validator.
func validateParsed(parse func(string) error) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return parse(fl.Field().String()) == nil
	}
}

// validatePositive accepts finite numbers greater than zero.
func validatePositive(fl validator.FieldLevel) bool {
	v := fl.Field().Float()
	return v > 0 && !math.IsInf(v, 0)
}

// validateConcentrationLength checks the concentration against a fixed
// alphabet. With an inferred alphabet the check happens once the data is
// read.
func validateConcentrationLength(sl validator.StructLevel) {
	c := sl.Current().Interface().(Config)
	n := len(c.Model.Concentration)
	if n > 0 && c.Data.AlphabetSize > 0 && n != c.Data.AlphabetSize {
		sl.ReportError(c.Model.Concentration, "concentration", "Concentration", "bvmm_alphabet", fmt.Sprint(c.Data.AlphabetSize))
	}
}

// Validate checks the configuration.
//
// Outputs:
//   - error: Wraps ErrInvalid and names every failing field.
func (c Config) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

// describe formats one field error, e.g. "mcmc.min_skip_prob must be < 1".
func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "min", "gte":
		return fmt.Sprintf("%s must be >= %s, got %v", field, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be > %s, got %v", field, fe.Param(), fe.Value())
	case "lt":
		return fmt.Sprintf("%s must be < %s, got %v", field, fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "bvmm_mode":
		return fmt.Sprintf("%s must be sparse or full, got %q", field, fe.Value())
	case "bvmm_kind":
		return fmt.Sprintf("%s must be sequence or network, got %q", field, fe.Value())
	case "bvmm_prior":
		return fmt.Sprintf("%s must be one of %v, got %q", field, likelihood.PriorNames(), fe.Value())
	case "bvmm_level":
		return fmt.Sprintf("%s must be debug, info, warn or error, got %q", field, fe.Value())
	case "bvmm_positive":
		return fmt.Sprintf("%s must be positive and finite, got %v", field, fe.Value())
	case "bvmm_alphabet":
		return fmt.Sprintf("%s must have %s entries", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}
