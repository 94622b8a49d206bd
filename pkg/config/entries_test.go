package config

import (
	"strings"
	"testing"
)

func TestProviderList_MixedEntries(t *testing.T) {
	cfg, err := Parse([]byte(`
providers:
  - "# disabled|http://off.test|k"
  - ""
  - " acme | http://acme.test/v1/ | sk-acme "
  - name: beta
    base_url: http://beta.test/v1
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Providers) != 2 {
		t.Fatalf("expected 2 providers, got %d: %+v", len(cfg.Providers), cfg.Providers)
	}
	acme := cfg.Providers[0]
	if acme.Name != "acme" || acme.BaseURL != "http://acme.test/v1" || acme.APIKey != "sk-acme" {
		t.Errorf("legacy line parsed incorrectly: %+v", acme)
	}
	if cfg.Providers[1].Name != "beta" {
		t.Errorf("expected beta second, got %+v", cfg.Providers[1])
	}
}

func TestProviderList_MalformedLine(t *testing.T) {
	_, err := Parse([]byte(`
providers:
  - "acme|http://acme.test/v1"
  - "beta|http://beta.test/v1|sk-secret|extra"
`))
	if err == nil {
		t.Fatal("expected error for malformed provider line")
	}
	if strings.Contains(err.Error(), "sk-secret") {
		t.Errorf("error leaked credential: %v", err)
	}
}

func TestProviderList_NotASequence(t *testing.T) {
	if _, err := Parse([]byte("providers: acme")); err == nil {
		t.Fatal("expected error for scalar providers")
	}
}

func TestTokenList(t *testing.T) {
	cfg, err := Parse([]byte(`
tokens:
  - "#old|tok-old"
  - "ci | tok-ci"
  - description: admin
    token: tok-admin
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := cfg.TokenMap()
	if len(m) != 2 {
		t.Fatalf("expected 2 tokens, got %v", m)
	}
	if m["tok-ci"] != "ci" || m["tok-admin"] != "admin" {
		t.Errorf("unexpected token map: %v", m)
	}
}

func TestTokenList_MalformedLine(t *testing.T) {
	if _, err := Parse([]byte(`tokens: ["no-separator"]`)); err == nil {
		t.Fatal("expected error for token line without separator")
	}
}

func TestRedactLine(t *testing.T) {
	if got := redactLine("a|b|secret"); got != "a|b|***" {
		t.Errorf("redactLine = %q", got)
	}
	if got := redactLine("plain"); got != "plain" {
		t.Errorf("redactLine = %q", got)
	}
}
