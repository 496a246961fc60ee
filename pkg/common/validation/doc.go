// Package validation provides common validation utilities for configuration
// parameters across the goslew library.
//
// Every validator returns a *errors.ValidationError so callers can use
// errors.IsValidationError or errors.Is(err, errors.ErrInvalidConfiguration)
// regardless of which constructor rejected the input.
package validation
