package result

import (
	"errors"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestPlatformClassifiesRESTErrors(t *testing.T) {
	err := Platform("ban", &discordgo.RESTError{
		Response: &http.Response{Status: "403 Forbidden", StatusCode: http.StatusForbidden},
		Message:  &discordgo.APIErrorMessage{Code: 50013, Message: "Missing Permissions"},
	})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected rejected, got %v", err)
	}
	if StatusOf(err) != StatusRejected {
		t.Fatalf("expected rejected status, got %s", StatusOf(err))
	}
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		t.Fatalf("expected cause to stay reachable")
	}
}

func TestPlatformClassifiesTransportErrors(t *testing.T) {
	err := Platform("send", errors.New("connection reset"))
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected delivery failed, got %v", err)
	}
	if StatusOf(err) != StatusDeliveryFailed {
		t.Fatalf("unexpected status %s", StatusOf(err))
	}
}

func TestNotConfigured(t *testing.T) {
	err := NotConfigured("role_add", "no role id")
	if StatusOf(err) != StatusNotConfigured {
		t.Fatalf("unexpected status %s", StatusOf(err))
	}
	if err.Error() != "role_add: not configured: no role id" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if StatusOf(nil) != StatusApplied {
		t.Fatalf("expected applied for nil")
	}
}

func TestPlatformKeepsClassification(t *testing.T) {
	inner := NotConfigured("x", "")
	if got := Platform("y", inner); got != inner {
		t.Fatalf("expected classified error to pass through")
	}
}
