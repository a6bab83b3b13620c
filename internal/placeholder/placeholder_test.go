package placeholder

import "testing"

func TestSubstituteInactiveTokensUnchanged(t *testing.T) {
	values := Values{Username: "alice", Reason: "spam", Number: "7"}
	cases := []string{
		"hello /username/",
		"banned for /reason/",
		"/number/ /username/ /reason/",
		"no tokens at all",
		"",
	}
	for _, src := range cases {
		if got := Substitute(src, values, nil); got != src {
			t.Fatalf("expected %q unchanged with no active tokens, got %q", src, got)
		}
		if got := Substitute(src, values, []string{Datetime}); got != src {
			t.Fatalf("expected %q unchanged with unrelated active token, got %q", src, got)
		}
	}
}

func TestSubstituteOnlyActive(t *testing.T) {
	values := Values{Username: "alice", Reason: "spam"}
	got := Substitute("/username/ was banned: /reason/", values, []string{Username})
	if got != "alice was banned: /reason/" {
		t.Fatalf("unexpected substitution %q", got)
	}
}

func TestSubstituteIsSinglePass(t *testing.T) {
	values := Values{Username: "/reason/", Reason: "spam"}
	got := Substitute("/username/ /reason/", values, []string{Username, Reason})
	if got != "/reason/ spam" {
		t.Fatalf("expected replacement values not to be re-expanded, got %q", got)
	}
}

func TestPositional(t *testing.T) {
	got := ReplaceAll("ban /1/ for /2/", Positional([]string{"123", "raid"}))
	if got != "ban 123 for raid" {
		t.Fatalf("unexpected positional substitution %q", got)
	}
}

func TestValuesWithDoesNotMutate(t *testing.T) {
	base := Values{Username: "a"}
	next := base.With(Reason, "r")
	if _, ok := base[Reason]; ok {
		t.Fatalf("expected base untouched")
	}
	if next[Username] != "a" || next[Reason] != "r" {
		t.Fatalf("unexpected values %v", next)
	}
}
