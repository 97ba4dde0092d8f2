package llm

import "testing"

func TestErrorFromStatusCode(t *testing.T) {
	cases := []struct {
		status    int
		wantType  string
		retryable bool
	}{
		{400, "*llm.InvalidRequestError", false},
		{401, "*llm.AuthenticationError", false},
		{403, "*llm.AccessDeniedError", false},
		{404, "*llm.NotFoundError", false},
		{413, "*llm.ContextLengthError", false},
		{429, "*llm.RateLimitError", true},
		{500, "*llm.ServerError", true},
		{503, "*llm.ServerError", true},
	}

	for _, tc := range cases {
		err := ErrorFromStatusCode(tc.status, "boom", "test", nil)
		if got := typeName(err); got != tc.wantType {
			t.Errorf("status %d: expected %s, got %s", tc.status, tc.wantType, got)
		}
		if IsRetryable(err) != tc.retryable {
			t.Errorf("status %d: retryable should be %v", tc.status, tc.retryable)
		}
	}
}

func typeName(v interface{}) string {
	switch v.(type) {
	case *InvalidRequestError:
		return "*llm.InvalidRequestError"
	case *AuthenticationError:
		return "*llm.AuthenticationError"
	case *AccessDeniedError:
		return "*llm.AccessDeniedError"
	case *NotFoundError:
		return "*llm.NotFoundError"
	case *ContextLengthError:
		return "*llm.ContextLengthError"
	case *RateLimitError:
		return "*llm.RateLimitError"
	case *ServerError:
		return "*llm.ServerError"
	case *ProviderError:
		return "*llm.ProviderError"
	default:
		return "unknown"
	}
}

func TestMalformedResponseNotRetryable(t *testing.T) {
	err := &MalformedResponseError{
		ClientError: ClientError{Message: "bad fragment"},
		Fragment:    `{"tool": `,
	}
	if IsRetryable(err) {
		t.Error("malformed responses must not be retried blindly")
	}
}

func TestAbortNotRetryable(t *testing.T) {
	err := &AbortError{ClientError: ClientError{Message: "cancelled"}}
	if IsRetryable(err) {
		t.Error("abort must not be retried")
	}
}

func TestProviderErrorMessage(t *testing.T) {
	err := ErrorFromStatusCode(429, "too many requests", "openai", nil)
	if err.Error() == "" {
		t.Error("expected non-empty error string")
	}
}
