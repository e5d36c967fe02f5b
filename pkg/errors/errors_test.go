package errors_test

import (
	"errors"
	"testing"

	pkgerrors "github.com/strataworks/sampleflow/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestNotFoundError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := &pkgerrors.NotFoundError{
			Resource: "sample",
			ID:       "abc-123",
		}
		assert.Equal(t, "sample with ID abc-123 not found", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
	})

	t.Run("constructor", func(t *testing.T) {
		err := pkgerrors.NewNotFoundError("ontology term", "soil")
		assert.Equal(t, "ontology term with ID soil not found", err.Error())
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("wrapped error", func(t *testing.T) {
		base := pkgerrors.NewNotFoundError("sample", "test")
		wrapped := errors.Join(errors.New("failed"), base)
		assert.True(t, pkgerrors.IsNotFound(wrapped))
	})
}

func TestStructuralError(t *testing.T) {
	t.Run("with path", func(t *testing.T) {
		err := pkgerrors.NewStructuralError("samples.csv", "empty header row")
		assert.Equal(t, "structural error in samples.csv: empty header row", err.Error())
		assert.True(t, pkgerrors.IsStructural(err))
	})

	t.Run("without path", func(t *testing.T) {
		err := &pkgerrors.StructuralError{Message: "no columns"}
		assert.Equal(t, "structural error: no columns", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrMalformedFile))
	})

	t.Run("unwrap", func(t *testing.T) {
		cause := errors.New("bad csv quoting")
		err := &pkgerrors.StructuralError{Path: "x.csv", Message: "parse failed", Err: cause}
		assert.Equal(t, cause, errors.Unwrap(err))
	})
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{
			Field:   "name",
			Message: "cannot be empty",
		}
		assert.Equal(t, "validation failed for field name: cannot be empty", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrInvalidInput))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{
			Message: "invalid configuration",
		}
		assert.Equal(t, "validation failed: invalid configuration", err.Error())
		assert.True(t, pkgerrors.IsValidationError(err))
	})
}

func TestAPIError(t *testing.T) {
	t.Run("with status code", func(t *testing.T) {
		err := &pkgerrors.APIError{
			Service:    "SampleService",
			StatusCode: 503,
			Message:    "backend down",
		}
		assert.Contains(t, err.Error(), "SampleService")
		assert.Contains(t, err.Error(), "503")
		assert.True(t, pkgerrors.IsServiceUnavailable(err))
	})

	t.Run("client error is not unavailable", func(t *testing.T) {
		err := pkgerrors.NewAPIError("OntologyAPI", 400, "bad request")
		assert.False(t, pkgerrors.IsServiceUnavailable(err))
	})

	t.Run("wrap api", func(t *testing.T) {
		base := errors.New("connection refused")
		err := pkgerrors.WrapAPI("SampleService", 0, base)
		require.Error(t, err)
		assert.Equal(t, base, errors.Unwrap(err))
	})
}

func TestWrap(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		assert.Nil(t, pkgerrors.Wrap(nil, "context"))
		assert.Nil(t, pkgerrors.Wrapf(nil, "context %d", 1))
		assert.Nil(t, pkgerrors.WrapIO("read", "f.csv", nil))
		assert.Nil(t, pkgerrors.WrapAPI("svc", 500, nil))
	})

	t.Run("wrap preserves cause", func(t *testing.T) {
		base := errors.New("boom")
		err := pkgerrors.Wrap(base, "loading table")
		assert.Equal(t, "loading table: boom", err.Error())
		assert.True(t, errors.Is(err, base))
	})

	t.Run("wrap io", func(t *testing.T) {
		base := errors.New("permission denied")
		err := pkgerrors.WrapIO("open", "/tmp/x.xlsx", base)
		assert.Contains(t, err.Error(), "open")
		assert.Contains(t, err.Error(), "/tmp/x.xlsx")
		assert.True(t, errors.Is(err, base))
	})
}
