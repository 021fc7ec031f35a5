package edgekey

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func encodeBundle(t *testing.T, fields map[string]string) string {
	t.Helper()
	data, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal bundle: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

func TestDecodeValid(t *testing.T) {
	key := make([]byte, 32)
	raw := encodeBundle(t, map[string]string{
		"serverUrl":    "https://control.example.com",
		"agentId":      "agent-123",
		"masterKeyB64": base64.StdEncoding.EncodeToString(key),
	})

	ek, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if ek.ServerURL != "https://control.example.com" {
		t.Errorf("ServerURL = %q", ek.ServerURL)
	}
	if ek.AgentID != "agent-123" {
		t.Errorf("AgentID = %q", ek.AgentID)
	}

	mk, err := ek.MasterKey()
	if err != nil {
		t.Fatalf("MasterKey failed: %v", err)
	}
	if len(mk) != 32 {
		t.Errorf("MasterKey length = %d, want 32", len(mk))
	}
}

func TestDecodeMissingField(t *testing.T) {
	raw := encodeBundle(t, map[string]string{
		"serverUrl": "https://control.example.com",
		"agentId":   "agent-123",
	})
	if _, err := Decode(raw); err == nil {
		t.Fatal("expected error for missing masterKeyB64")
	}
}

func TestDecodeEmpty(t *testing.T) {
	if _, err := Decode(""); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestDecodeNotJSON(t *testing.T) {
	raw := base64.RawURLEncoding.EncodeToString([]byte("not json"))
	if _, err := Decode(raw); err == nil {
		t.Fatal("expected error for non-JSON payload")
	}
}

func TestDecodeBadKeyLength(t *testing.T) {
	raw := encodeBundle(t, map[string]string{
		"serverUrl":    "https://control.example.com",
		"agentId":      "agent-123",
		"masterKeyB64": base64.StdEncoding.EncodeToString([]byte("tooshort")),
	})
	ek, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if _, err := ek.MasterKey(); err == nil {
		t.Fatal("expected error for undersized master key")
	}
}
