package secrets

import (
	"strings"
	"testing"
)

const openAIKey = "sk-proj-abcdefghijklmnopqrstuvwxyz1234567890123456"

func TestApply(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		findings []Finding
		want     string
	}{
		{
			name:    "no findings",
			content: "package main\n",
			want:    "package main\n",
		},
		{
			name:     "every occurrence",
			content:  "a = \"tok123456\"\nb = \"tok123456\"\n",
			findings: []Finding{{RuleID: "generic-api-key", Secret: "tok123456"}},
			want:     "a = \"[REDACTED:generic-api-key]\"\nb = \"[REDACTED:generic-api-key]\"\n",
		},
		{
			name:    "longest first",
			content: "key=abcdefgh12345678",
			findings: []Finding{
				{RuleID: "short", Secret: "abcdefgh"},
				{RuleID: "long", Secret: "abcdefgh12345678"},
			},
			want: "key=[REDACTED:long]",
		},
		{
			name:    "multi-line keeps line count",
			content: "-----BEGIN KEY-----\nMIIEowIBAAKCAQEA\nQWERTYUIOPASDFGH\n=\n-----END KEY-----\nnext\n",
			findings: []Finding{{
				RuleID: "private-key",
				Secret: "-----BEGIN KEY-----\nMIIEowIBAAKCAQEA\nQWERTYUIOPASDFGH\n=\n-----END KEY-----",
			}},
			want: "[REDACTED:private-key]\n[REDACTED:private-key]\n[REDACTED:private-key]\n=\n[REDACTED:private-key]\nnext\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Apply(tt.content, tt.findings); got != tt.want {
				t.Errorf("Apply() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRuleCounts(t *testing.T) {
	got := RuleCounts([]Finding{{RuleID: "a"}, {RuleID: "b"}, {RuleID: "a"}})
	if got["a"] != 2 || got["b"] != 1 || len(got) != 2 {
		t.Errorf("RuleCounts() = %v", got)
	}
}

func TestRedactor_Scan(t *testing.T) {
	r, err := NewRedactor(nil)
	if err != nil {
		t.Fatalf("NewRedactor() error = %v", err)
	}

	if found := r.Scan("main.go", "package main\n\nfunc main() {}\n"); len(found) != 0 {
		t.Errorf("Scan() on clean code = %+v, want none", found)
	}

	content := "const key = \"" + openAIKey + "\"\n"
	found := r.Scan("config.go", content)
	if len(found) == 0 {
		t.Skip("gitleaks did not flag the sample key")
	}
	redacted := Apply(content, found)
	if strings.Contains(redacted, openAIKey) {
		t.Errorf("Apply() left the secret in %q", redacted)
	}
	if !strings.Contains(redacted, "[REDACTED:") {
		t.Errorf("Apply() = %q, want a marker", redacted)
	}
}

func TestRedactor_AllowlistedPath(t *testing.T) {
	r, err := NewRedactor(&Allowlist{Paths: []string{`^testdata/`}})
	if err != nil {
		t.Fatalf("NewRedactor() error = %v", err)
	}
	if found := r.Scan("testdata/keys.env", "KEY=\""+openAIKey+"\"\n"); found != nil {
		t.Errorf("Scan() = %+v, want nil for allowlisted path", found)
	}
}

func TestNewRedactor_InvalidAllowlist(t *testing.T) {
	if _, err := NewRedactor(&Allowlist{Regexes: []string{"(unclosed"}}); err == nil {
		t.Error("NewRedactor() error = nil, want invalid regex")
	}
}
