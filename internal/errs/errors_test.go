package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOfWrappedError(t *testing.T) {
	base := New(CodeValidation, "delivery address is required")
	wrapped := fmt.Errorf("submit: %w", base)

	assert.Equal(t, CodeValidation, CodeOf(wrapped))
	assert.True(t, Is(wrapped, CodeValidation))
	assert.False(t, Is(wrapped, CodeNetwork))
	assert.True(t, errors.Is(wrapped, base))
}

func TestCodeOfUntypedError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Nil(t, As(nil))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Wrap(CodeNetwork, cause, "fetch products")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "NETWORK_ERROR: fetch products: dial tcp: timeout", err.Error())
	assert.Equal(t, "fetch products", err.Message())
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(CodeNotFound))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(CodeValidation))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(CodeNetwork))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(Code("UNKNOWN")))
}
