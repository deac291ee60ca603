package admin

import (
	"errors"
	"testing"

	"ds2api/internal/config"
)

func TestRequestErrorDetail(t *testing.T) {
	err := newRequestError("bad input")
	detail, ok := requestErrorDetail(err)
	if !ok || detail != "bad input" {
		t.Fatalf("expected request error detail, got %q %v", detail, ok)
	}
	if _, ok := requestErrorDetail(errors.New("disk full")); ok {
		t.Fatalf("plain errors must not be treated as request errors")
	}
}

func TestIntFromCoercions(t *testing.T) {
	if intFrom(float64(42)) != 42 {
		t.Fatalf("float64 coercion failed")
	}
	if intFrom("17") != 17 {
		t.Fatalf("string coercion failed")
	}
	if intFrom(nil) != 0 {
		t.Fatalf("nil should coerce to zero")
	}
	if intFrom("not-a-number") != 0 {
		t.Fatalf("junk string should coerce to zero")
	}
}

func TestToStringSlice(t *testing.T) {
	out, ok := toStringSlice([]any{"a", "b"})
	if !ok || len(out) != 2 || out[0] != "a" {
		t.Fatalf("expected string slice, got %#v %v", out, ok)
	}
	if _, ok := toStringSlice([]any{"a", 3}); ok {
		t.Fatalf("mixed slice must fail")
	}
	if _, ok := toStringSlice("a"); ok {
		t.Fatalf("non-slice must fail")
	}
}

func TestAccountMatchesIdentifier(t *testing.T) {
	acc := config.Account{Email: "a@example.com", Mobile: "13800000000"}
	if !accountMatchesIdentifier(acc, "a@example.com") {
		t.Fatalf("email match failed")
	}
	if !accountMatchesIdentifier(acc, "13800000000") {
		t.Fatalf("mobile match failed")
	}
	if accountMatchesIdentifier(acc, "b@example.com") {
		t.Fatalf("unexpected match")
	}
	if accountMatchesIdentifier(acc, "") {
		t.Fatalf("empty identifier must not match")
	}
}

func TestValidateRuntimeSettingsRanges(t *testing.T) {
	if err := validateRuntimeSettings(config.RuntimeConfig{}); err != nil {
		t.Fatalf("zero config should validate: %v", err)
	}
	if err := validateRuntimeSettings(config.RuntimeConfig{AccountMaxInflight: 300}); err == nil {
		t.Fatalf("expected account_max_inflight range error")
	}
	if err := validateRuntimeSettings(config.RuntimeConfig{AccountMaxInflight: 8, GlobalMaxInflight: 4}); err == nil {
		t.Fatalf("expected global >= account error")
	}
	if err := validateRuntimeSettings(config.RuntimeConfig{AccountMaxInflight: 4, AccountMaxQueue: 100, GlobalMaxInflight: 64}); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestNormalizeSettingsConfig(t *testing.T) {
	cfg := config.Config{
		Keys:     []string{" k1 ", "", "k1", "k2"},
		Toolcall: config.ToolcallConfig{Mode: " Feature_Match ", EarlyEmitConfidence: "HIGH"},
		ModelAliases: map[string]string{
			"gpt-4o": "deepseek-chat",
			"":       "dropped",
			"empty":  "",
		},
	}
	normalizeSettingsConfig(&cfg)
	if len(cfg.Keys) != 2 || cfg.Keys[0] != "k1" || cfg.Keys[1] != "k2" {
		t.Fatalf("keys not normalized: %#v", cfg.Keys)
	}
	if cfg.Toolcall.Mode != "feature_match" || cfg.Toolcall.EarlyEmitConfidence != "high" {
		t.Fatalf("toolcall enums not lowercased: %#v", cfg.Toolcall)
	}
	if len(cfg.ModelAliases) != 1 || cfg.ModelAliases["gpt-4o"] != "deepseek-chat" {
		t.Fatalf("aliases not pruned: %#v", cfg.ModelAliases)
	}
	if err := validateSettingsConfig(cfg); err != nil {
		t.Fatalf("normalized config should validate: %v", err)
	}
}
