package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/OnisOris/pionctl/internal/constants"
	"github.com/OnisOris/pionctl/internal/security"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors holds multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// add records a field error when err is non-nil
func (e *ValidationErrors) add(field string, err error) {
	if err != nil {
		*e = append(*e, ValidationError{Field: field, Message: err.Error()})
	}
}

// validate is the shared validator instance
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their YAML key rather than the Go name
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return toSnakeCase(f.Name)
		}
		return name
	})
	return v
}

// structErrors runs the struct tags of v and converts failures into
// ValidationErrors keyed by their dotted YAML path
func structErrors(v any) ValidationErrors {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationErrors{{Field: "config", Message: err.Error()}}
	}

	result := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Namespace()
		// drop the root struct name
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		result = append(result, ValidationError{Field: field, Message: fieldMessage(fe)})
	}
	return result
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return fmt.Sprintf("is required when %s", strings.Replace(fe.Param(), " ", " is ", 1))
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	case "hostname_rfc1123|ip":
		return "must be a hostname or an IP address"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

// toSnakeCase converts a PascalCase or camelCase string to snake_case.
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteByte('_')
		}
		if r >= 'A' && r <= 'Z' {
			result.WriteRune(r + 32)
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// ValidateServiceConfig validates the service configuration. Values that end
// up on a remote command line are also checked against injection.
func ValidateServiceConfig(config *ServiceConfig) ValidationErrors {
	errs := structErrors(config)

	if config.Service.Name != "" {
		errs.add("service.name", security.ValidateServiceName(config.Service.Name))
	}
	if config.Service.LogFile != "" && !strings.HasPrefix(config.Service.LogFile, "/") {
		errs.add("service.log_file", errors.New("must be an absolute path"))
	}
	if config.Source.Repository != "" {
		errs.add("source.repository", security.ValidateFetchURL(config.Source.Repository))
	}
	if config.Source.Directory != "" {
		errs.add("source.directory", security.ValidateRemotePath(config.Source.Directory))
	}
	if config.Runtime.EnvDir != "" {
		errs.add("runtime.env_dir", security.ValidateRemotePath(config.Runtime.EnvDir))
	}
	if config.Runtime.Requirements != "" {
		errs.add("runtime.requirements", security.ValidateRemotePath(config.Runtime.Requirements))
	}
	if config.Runtime.Interpreter != "" {
		errs.add("runtime.interpreter", security.ValidateInterpreter(config.Runtime.Interpreter))
	}
	if strings.ContainsAny(config.Runtime.Command, "\r\n") {
		errs.add("runtime.command", errors.New("cannot contain line breaks"))
	}
	for i, pkg := range config.Dependencies.Packages {
		errs.add(fmt.Sprintf("dependencies.packages[%d]", i), security.ValidatePackageName(pkg))
	}
	if config.Dependencies.Bootstrap != "" {
		errs.add("dependencies.bootstrap", security.ValidateFetchURL(config.Dependencies.Bootstrap))
	}
	if config.Retry.MaxAttempts < 1 {
		errs.add("retry.max_attempts", errors.New("must be at least 1"))
	}

	return errs
}

// ValidateHostConfig validates a registered host
func ValidateHostConfig(config *HostConfig) ValidationErrors {
	var errs ValidationErrors

	if config.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "host",
			Message: "host address is required",
		})
	}

	if config.User == "" {
		errs = append(errs, ValidationError{
			Field:   "user",
			Message: "user is required",
		})
	} else {
		errs.add("user", security.ValidateUnixUser(config.User))
	}

	if config.Port < 1 || config.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "port",
			Message: "port must be between 1 and 65535",
		})
	}

	return errs
}

// ValidateCredentials validates the credentials of one run
func ValidateCredentials(creds *SessionCredentials) ValidationErrors {
	errs := structErrors(creds)
	if creds.User != "" {
		errs.add("user", security.ValidateUnixUser(creds.User))
	}
	if creds.Secret == "" && creds.KeyPath == "" && os.Getenv(constants.EnvSSHKey) == "" {
		errs = append(errs, ValidationError{
			Field:   "secret",
			Message: "a password or a private key is required",
		})
	}
	return errs
}
