package utils

import "testing"

func TestMentionID(t *testing.T) {
	cases := map[string]string{
		"<@123>":  "123",
		"<@!123>": "123",
		"<@&456>": "456",
		"<#789>":  "789",
		" 42 ":    "42",
		"alice":   "",
		"<@abc>":  "",
		"":        "",
		"<@>":     "",
	}
	for in, want := range cases {
		if got := MentionID(in); got != want {
			t.Fatalf("MentionID(%q): expected %q, got %q", in, want, got)
		}
	}
}
