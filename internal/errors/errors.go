package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
)

// Kind identifies the class of failure raised by the statistics engine
type Kind string

const (
	KindEmptyPopulation      Kind = "EMPTY_POPULATION"
	KindEmptyTrunk           Kind = "EMPTY_TRUNK"
	KindInvalidConfiguration Kind = "INVALID_CONFIGURATION"
	KindInvalidValue         Kind = "INVALID_VALUE"
	KindUnsupportedOperation Kind = "UNSUPPORTED_OPERATION"
	KindInternal             Kind = "INTERNAL"
)

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrEmptyPopulation      = &StatError{Kind: KindEmptyPopulation}
	ErrEmptyTrunk           = &StatError{Kind: KindEmptyTrunk}
	ErrInvalidConfiguration = &StatError{Kind: KindInvalidConfiguration}
	ErrInvalidValue         = &StatError{Kind: KindInvalidValue}
	ErrUnsupportedOperation = &StatError{Kind: KindUnsupportedOperation}
)

// StatError wraps an errbuilder error with the engine failure kind
type StatError struct {
	*errbuilder.ErrBuilder
	Kind       Kind                   `json:"kind"`
	HTTPStatus int                    `json:"http_status"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *StatError) Error() string {
	if e.ErrBuilder == nil {
		return fmt.Sprintf("[%s]", e.Kind)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.ErrBuilder.Msg)
}

// Unwrap returns the underlying cause
func (e *StatError) Unwrap() error {
	if e.ErrBuilder == nil {
		return nil
	}
	return e.ErrBuilder.Unwrap()
}

// Is reports whether target is a StatError of the same kind
func (e *StatError) Is(target error) bool {
	t, ok := target.(*StatError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newStatError(kind Kind, builder *errbuilder.ErrBuilder, status int, details map[string]interface{}) *StatError {
	if len(details) > 0 {
		errorMap := errbuilder.ErrorMap{}
		for key, value := range details {
			errorMap.Set(key, fmt.Errorf("%v", value))
		}
		builder = builder.WithDetails(errbuilder.NewErrDetails(errorMap))

		// JSON cannot carry NaN or Inf
		for key, value := range details {
			if f, ok := value.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
				details[key] = fmt.Sprint(f)
			}
		}
	}

	return &StatError{
		ErrBuilder: builder,
		Kind:       kind,
		HTTPStatus: status,
		Details:    details,
	}
}

func invalidArgument(message string) *errbuilder.ErrBuilder {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message)
}

func failedPrecondition(message string) *errbuilder.ErrBuilder {
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(message)
}

// NewEmptyPopulationError reports an empty or nil input sequence
func NewEmptyPopulationError(what string) *StatError {
	return newStatError(KindEmptyPopulation, invalidArgument(fmt.Sprintf("%s is empty", what)),
		http.StatusBadRequest, nil)
}

// NewEmptyTrunkError reports that elimination removed every sample
func NewEmptyTrunkError(population, castaways, scraps int) *StatError {
	return newStatError(KindEmptyTrunk, failedPrecondition("elimination removed every sample"),
		http.StatusUnprocessableEntity, map[string]interface{}{
			"population":      population,
			"castaways":       castaways,
			"constant_scraps": scraps,
		})
}

// NewInvalidConfigurationError reports inconsistent estimator or service settings
func NewInvalidConfigurationError(message string, details map[string]interface{}) *StatError {
	return newStatError(KindInvalidConfiguration, invalidArgument(message),
		http.StatusBadRequest, details)
}

// NewInvalidValueError reports a NaN or infinite coordinate
func NewInvalidValueError(field string, value float64) *StatError {
	return newStatError(KindInvalidValue, invalidArgument(fmt.Sprintf("%s must be finite", field)),
		http.StatusBadRequest, map[string]interface{}{
			field: fmt.Sprint(value),
		})
}

// NewLengthMismatchError reports paired coordinate slices of different lengths
func NewLengthMismatchError(xs, ys int) *StatError {
	return newStatError(KindInvalidValue, invalidArgument("x and y must have the same length"),
		http.StatusBadRequest, map[string]interface{}{
			"x_count": xs,
			"y_count": ys,
		})
}

// NewUnsupportedOperationError reports a call that is not valid for the receiver's mode
func NewUnsupportedOperationError(operation, reason string) *StatError {
	return newStatError(KindUnsupportedOperation, failedPrecondition(fmt.Sprintf("%s: %s", operation, reason)),
		http.StatusConflict, nil)
}

// NewInternalError wraps an unexpected failure
func NewInternalError(message string, cause error) *StatError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return newStatError(KindInternal, builder, http.StatusInternalServerError, nil)
}

// ToStatError converts any error to a StatError
func ToStatError(err error) *StatError {
	if err == nil {
		return nil
	}

	var se *StatError
	if errors.As(err, &se) && se.ErrBuilder != nil {
		return se
	}

	return NewInternalError("An unexpected error occurred", err)
}

// KindOf returns the kind of err, or KindInternal for foreign errors
func KindOf(err error) Kind {
	var se *StatError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// ErrorHandler is a Gin middleware that renders the last handler error
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		Respond(c, c.Errors.Last().Err)
	}
}

// RecoveryHandler converts panics into internal errors
func RecoveryHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		Respond(c, NewInternalError(
			fmt.Sprintf("Panic recovered: %v", recovered),
			fmt.Errorf("%v", recovered),
		))
	})
}

// Respond logs err and writes it as {"error", "kind", "details"} with the mapped status
func Respond(c *gin.Context, err error) {
	se := ToStatError(err)
	LogError(c, se)

	body := gin.H{
		"error": se.Error(),
		"kind":  se.Kind,
	}
	if len(se.Details) > 0 {
		body["details"] = se.Details
	}

	c.AbortWithStatusJSON(se.HTTPStatus, body)
}

// LogError logs an error with a level matching its kind
func LogError(c *gin.Context, err *StatError) {
	logEntry := slog.With(
		"error_kind", err.Kind,
		"error_code", err.ErrBuilder.ErrCode(),
		"http_status", err.HTTPStatus,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"request_id", c.GetString("request_id"),
	)

	switch err.Kind {
	case KindInternal:
		if cause := err.ErrBuilder.Unwrap(); cause != nil {
			logEntry.Error(err.ErrBuilder.Msg, "cause", cause)
		} else {
			logEntry.Error(err.ErrBuilder.Msg)
		}
	default:
		if len(err.Details) > 0 {
			logEntry.Warn(err.ErrBuilder.Msg, "details", err.Details)
		} else {
			logEntry.Warn(err.ErrBuilder.Msg)
		}
	}
}

// WrapError wraps an error with additional context
func WrapError(err error, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	contextMsg := fmt.Sprintf(message, args...)
	return fmt.Errorf("%s: %w", contextMsg, err)
}
