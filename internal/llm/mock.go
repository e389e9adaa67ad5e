package llm

import (
	"context"
	"time"
)

// MockClient is a configurable generative client for testing.
// Set the response fields to control what Invoke returns.
type MockClient struct {
	InvokeResponse string
	InvokeError    error
	Delay          time.Duration

	// Call tracking for assertions
	InvokeCalls []string
}

func NewMockClient() *MockClient {
	return &MockClient{InvokeResponse: "[]"}
}

func (c *MockClient) Invoke(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	c.InvokeCalls = append(c.InvokeCalls, prompt)
	if c.Delay > 0 {
		if timeout > 0 && c.Delay > timeout {
			return "", context.DeadlineExceeded
		}
		select {
		case <-time.After(c.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if c.InvokeError != nil {
		return "", c.InvokeError
	}
	return c.InvokeResponse, nil
}

// Reset clears all recorded calls and resets responses to defaults.
func (c *MockClient) Reset() {
	c.InvokeResponse = "[]"
	c.InvokeError = nil
	c.Delay = 0
	c.InvokeCalls = nil
}
