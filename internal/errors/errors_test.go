package errors

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindsAndStatuses(t *testing.T) {
	tests := []struct {
		name     string
		err      *StatError
		sentinel error
		status   int
		message  string
	}{
		{
			name:     "empty population",
			err:      NewEmptyPopulationError("population"),
			sentinel: ErrEmptyPopulation,
			status:   http.StatusBadRequest,
			message:  "[EMPTY_POPULATION] population is empty",
		},
		{
			name:     "empty trunk",
			err:      NewEmptyTrunkError(5, 4, 1),
			sentinel: ErrEmptyTrunk,
			status:   http.StatusUnprocessableEntity,
			message:  "[EMPTY_TRUNK] elimination removed every sample",
		},
		{
			name:     "invalid configuration",
			err:      NewInvalidConfigurationError("bad factor", nil),
			sentinel: ErrInvalidConfiguration,
			status:   http.StatusBadRequest,
			message:  "[INVALID_CONFIGURATION] bad factor",
		},
		{
			name:     "invalid value",
			err:      NewInvalidValueError("x", math.NaN()),
			sentinel: ErrInvalidValue,
			status:   http.StatusBadRequest,
			message:  "[INVALID_VALUE] x must be finite",
		},
		{
			name:     "length mismatch",
			err:      NewLengthMismatchError(3, 4),
			sentinel: ErrInvalidValue,
			status:   http.StatusBadRequest,
			message:  "[INVALID_VALUE] x and y must have the same length",
		},
		{
			name:     "unsupported operation",
			err:      NewUnsupportedOperationError("gamma", "linear fit"),
			sentinel: ErrUnsupportedOperation,
			status:   http.StatusConflict,
			message:  "[UNSUPPORTED_OPERATION] gamma: linear fit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.message, tt.err.Error())
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Equal(t, tt.sentinel.(*StatError).Kind, KindOf(tt.err))

			wrapped := WrapError(tt.err, "estimating %s", "boxplot")
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.Same(t, tt.err, ToStatError(wrapped))
		})
	}

	assert.NotErrorIs(t, NewEmptyTrunkError(1, 1, 0), ErrEmptyPopulation)
}

func TestInvalidValueDetailsAreRenderable(t *testing.T) {
	err := NewInvalidValueError("y", math.Inf(1))
	assert.Equal(t, "+Inf", err.Details["y"])
}

func TestToStatErrorWrapsForeignErrors(t *testing.T) {
	assert.Nil(t, ToStatError(nil))
	assert.Nil(t, WrapError(nil, "context"))

	cause := fmt.Errorf("disk on fire")
	se := ToStatError(cause)
	assert.Equal(t, KindInternal, se.Kind)
	assert.Equal(t, http.StatusInternalServerError, se.HTTPStatus)
	assert.True(t, errors.Is(se, cause))
	assert.Equal(t, KindInternal, KindOf(cause))
}

func TestErrorHandlerAndRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandler())
	router.Use(RecoveryHandler())

	router.GET("/trunk", func(c *gin.Context) {
		_ = c.Error(NewEmptyTrunkError(3, 3, 0))
	})
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/trunk", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{
		"error": "[EMPTY_TRUNK] elimination removed every sample",
		"kind": "EMPTY_TRUNK",
		"details": {"population": 3, "castaways": 3, "constant_scraps": 0}
	}`, w.Body.String())

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/panic", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"INTERNAL"`)
}
