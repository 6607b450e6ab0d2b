package adapters

import "context"

// HTTPResponse represents the response from an HTTP request.
type HTTPResponse struct {
	OK     bool
	Status int
	Data   any
}

// HTTPAdapter is an interface for HTTP communication.
// Implement this interface to use custom HTTP clients.
type HTTPAdapter interface {
	// Send posts a JSON body to the specified endpoint.
	//
	// Parameters:
	//   - ctx: Bounds the request, including its timeout
	//   - endpoint: The API endpoint URL
	//   - body: The encoded JSON payload
	//   - headers: Headers to set in addition to Content-Type
	//
	// Returns the HTTP response, or an error if no response was received
	// (connection failure, timeout). Non-2xx statuses are not errors.
	Send(ctx context.Context, endpoint string, body []byte, headers map[string]string) (*HTTPResponse, error)
}
