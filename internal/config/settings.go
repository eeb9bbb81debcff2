package config

import (
	"fmt"
	"strings"
)

// Settings is the user-provided configuration record for the remote
// document API. It is persisted as a single JSON document and always
// written wholesale; there are no partial updates.
type Settings struct {
	Credential   string `json:"credential"`
	EndpointBase string `json:"endpoint_base"`
	WorkspaceID  string `json:"workspace_id,omitempty"`
	Enabled      bool   `json:"enabled"`
}

// Configured reports whether the record carries enough to attempt a fetch.
func (s *Settings) Configured() bool {
	return s != nil && s.Credential != "" && s.Enabled
}

// Validate enforces the structural requirements of a settings record
// before it is persisted. Every ingress that writes settings calls this.
func (s *Settings) Validate() error {
	if s.Enabled && s.Credential == "" {
		return fmt.Errorf("credential is required when the integration is enabled")
	}
	if s.Enabled && s.EndpointBase == "" {
		return fmt.Errorf("endpoint_base is required when the integration is enabled")
	}
	if s.EndpointBase != "" &&
		!strings.HasPrefix(s.EndpointBase, "http://") &&
		!strings.HasPrefix(s.EndpointBase, "https://") {
		return fmt.Errorf("endpoint_base must be an http(s) URL")
	}
	return nil
}
