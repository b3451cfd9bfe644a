package models

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	vmerrors "videomass/internal/errors"
)

// ProfileKeys lists the JSON keys every stored profile record must carry.
var ProfileKeys = []string{"Name", "Description", "First_pass", "Second_pass", "Supported_list", "Output_extension"}

// Profile is one named command line template for the encoder.
//
// FirstPass holds the flags for one-pass conversions or the first pass of a
// two-pass conversion; SecondPass is empty for one-pass profiles.
// SupportedList is a space separated list of input extensions ("" = any).
type Profile struct {
	Name            string `json:"Name" validate:"required,max=128"`
	Description     string `json:"Description" validate:"max=512"`
	FirstPass       string `json:"First_pass" validate:"required_with=SecondPass"`
	SecondPass      string `json:"Second_pass"`
	SupportedList   string `json:"Supported_list"`
	OutputExtension string `json:"Output_extension" validate:"required,alphanum,max=16"`
}

// IsTwoPass reports whether the profile describes a two-pass conversion.
func (p *Profile) IsTwoPass() bool {
	return strings.TrimSpace(p.SecondPass) != ""
}

// SupportedExtensions returns the normalized (lower case, no dot) extensions
// from SupportedList. An empty result means every input is accepted.
func (p *Profile) SupportedExtensions() []string {
	fields := strings.Fields(p.SupportedList)
	exts := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToLower(strings.TrimPrefix(f, "."))
		if f != "" {
			exts = append(exts, f)
		}
	}
	return exts
}

// Supports reports whether the profile accepts the given input file.
func (p *Profile) Supports(path string) bool {
	exts := p.SupportedExtensions()
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}

// Validate checks the profile fields and returns a VALIDATION error whose
// details map JSON key -> problem.
func (p *Profile) Validate() error {
	if err := profileValidator().Struct(p); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		details := make(map[string]string, len(fieldErrs))
		keys := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field()] = friendlyMessage(fe)
			keys = append(keys, fe.Field())
		}
		return vmerrors.ValidationWithDetails(
			fmt.Sprintf("invalid profile %q: %s", p.Name, strings.Join(keys, ", ")), details)
	}
	return nil
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func profileValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// Report problems under the stored JSON key names.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

func friendlyMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_with":
		return "is required for two-pass profiles"
	case "alphanum":
		return "must contain only letters and digits"
	case "max":
		return fmt.Sprintf("must not exceed %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
