// Package edgekey decodes the EDGE_KEY identity bundle that every agent is
// bootstrapped with: a base64url-encoded JSON object naming the control-plane
// server, the agent's own id, and the master key used for artifact
// encryption.
package edgekey

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// EdgeKey is the decoded identity bundle an agent process is started with.
type EdgeKey struct {
	ServerURL   string `json:"serverUrl"`
	AgentID     string `json:"agentId"`
	MasterKeyB64 string `json:"masterKeyB64"`
}

// Decode parses the raw EDGE_KEY value. It tolerates both padded and
// unpadded base64url, matching agents that were issued keys by either
// encoding convention.
func Decode(raw string) (*EdgeKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("edge key: empty value")
	}

	data, err := decodeBase64URL(raw)
	if err != nil {
		return nil, fmt.Errorf("edge key: base64 decode: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("edge key: not valid JSON: %w", err)
	}
	for _, required := range []string{"serverUrl", "agentId", "masterKeyB64"} {
		if _, ok := fields[required]; !ok {
			return nil, fmt.Errorf("edge key: missing field %q", required)
		}
	}

	var key EdgeKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("edge key: decode fields: %w", err)
	}
	if key.ServerURL == "" || key.AgentID == "" || key.MasterKeyB64 == "" {
		return nil, fmt.Errorf("edge key: one or more fields are empty")
	}

	return &key, nil
}

// MasterKey returns the raw 32-byte AES-256 key.
func (k *EdgeKey) MasterKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(k.MasterKeyB64)
	if err != nil {
		// some bundles are issued with URL-safe encoding of the key itself
		key, err = base64.URLEncoding.DecodeString(k.MasterKeyB64)
		if err != nil {
			return nil, fmt.Errorf("edge key: master key is not valid base64: %w", err)
		}
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("edge key: master key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

func decodeBase64URL(s string) ([]byte, error) {
	if data, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.URLEncoding.DecodeString(s)
}
