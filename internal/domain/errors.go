package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing named resource (converter, config file).
	ErrNotFound = errors.New("not found")
	// ErrConfiguration signals a malformed mapping or index configuration.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrConversion signals a converter that rejected a present value.
	ErrConversion = errors.New("conversion failed")
	// ErrAmbiguousQuery signals that both a query string and a query body were given.
	ErrAmbiguousQuery = errors.New("query string and query body are mutually exclusive")
	// ErrMissingID signals a mapped entry without the "_id" field.
	ErrMissingID = errors.New("mapped document has no _id")
	// ErrBulkPartial signals that some items of a bulk write were not stored.
	ErrBulkPartial = errors.New("bulk write partially failed")
	// ErrNotImplemented signals an unimplemented feature.
	ErrNotImplemented = errors.New("not implemented")
)

// NotFoundError names the resource that could not be found.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Kind, e.Name, ErrNotFound.Error())
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConfigurationError reports which part of the configuration is invalid.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", ErrConfiguration.Error(), e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrConfiguration.Error(), e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Is matches ErrConfiguration in addition to the wrapped cause.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// NewConfigurationError creates a configuration error for the given field.
func NewConfigurationError(field string, err error) error {
	return &ConfigurationError{Field: field, Err: err}
}

// ConversionError carries the converter name and the rejected value.
type ConversionError struct {
	Converter string
	Value     any
	Err       error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s: %s(%#v): %v", ErrConversion.Error(), e.Converter, e.Value, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Is matches ErrConversion in addition to the wrapped cause.
func (e *ConversionError) Is(target error) bool { return target == ErrConversion }
