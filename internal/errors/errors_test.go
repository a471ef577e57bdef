package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorize_FindsWrappedErrors(t *testing.T) {
	base := NewUpstreamUnavailableError("etherscan", fmt.Errorf("connection refused"))
	wrapped := fmt.Errorf("fetch account: %w", base)

	got := Categorize(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, CodeUpstreamUnavailable, got.Code)
	assert.True(t, IsUpstreamUnavailable(wrapped))
	assert.False(t, IsDataFormat(wrapped))
}

func TestCategorize_UnknownBecomesInternal(t *testing.T) {
	got := Categorize(fmt.Errorf("boom"))
	require.NotNil(t, got)
	assert.Equal(t, CodeInternal, got.Code)
	assert.Equal(t, http.StatusInternalServerError, got.StatusCode)
	assert.Nil(t, Categorize(nil))
}

func TestPublicMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "bad address", err: NewInvalidSubjectError("not-an-address"), want: MessageBadAddress},
		{name: "upstream", err: NewUpstreamStatusError("etherscan", 503), want: MessageUpstreamUnavailable},
		{name: "data format", err: NewDataFormatError("balance", "not a number"), want: MessageUpstreamUnavailable},
		{name: "unexpected", err: fmt.Errorf("nil pointer"), want: MessageRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PublicMessage(tt.err))
		})
	}
}

func TestToServiceError_HidesCause(t *testing.T) {
	err := NewUpstreamUnavailableError("coingecko", fmt.Errorf("<html>502 Bad Gateway</html>"))
	svcErr := err.ToServiceError()

	assert.Equal(t, CodeUpstreamUnavailable, svcErr.Code)
	assert.NotContains(t, svcErr.Message, "html")
}

func TestStatusCodes(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, GetHTTPStatusCode(NewInvalidSubjectError("x")))
	assert.Equal(t, http.StatusBadGateway, GetHTTPStatusCode(NewDataFormatError("x", "y")))
	assert.True(t, IsUserError(NewInvalidSubjectError("x")))
	assert.True(t, IsInvalidSubject(fmt.Errorf("wrap: %w", NewInvalidSubjectError("x"))))
	assert.True(t, IsRetryable(NewCacheUnavailableError("get", nil)))
	assert.False(t, IsRetryable(NewDataFormatError("x", "y")))
	assert.True(t, IsRateLimited(NewRateLimitError(3)))
	assert.False(t, IsRateLimited(NewCacheUnavailableError("get", nil)))
	assert.True(t, IsCacheUnavailable(NewCacheUnavailableError("get", nil)))
}
