package remote

import "fmt"

// ConfigError indicates a structurally required setting is absent.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// RemoteError indicates the API answered with a non-success status.
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("Failed to fetch document: %d - %s", e.Status, e.Body)
}

// UnexpectedContentType indicates the API returned something other than
// document bytes, typically a JSON error or redirect wrapper.
type UnexpectedContentType struct {
	DeclaredType string
	Body         string
}

func (e *UnexpectedContentType) Error() string {
	return fmt.Sprintf("unexpected content type %q: %s", e.DeclaredType, e.Body)
}

// TransportError indicates the request never produced an HTTP response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ConnectError is the failure result of a connectivity test.
type ConnectError struct {
	Status int // 0 when the transport failed before a response
	Detail string
}

func (e *ConnectError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("connection failed: %s", e.Detail)
	}
	return fmt.Sprintf("connection test returned %d - %s", e.Status, e.Detail)
}
