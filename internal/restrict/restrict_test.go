package restrict

import (
	"encoding/json"
	"testing"

	"configbot/internal/store"
)

func rules(t *testing.T, body string) store.Restrictions {
	t.Helper()
	var r store.Restrictions
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return r
}

func TestEvaluate(t *testing.T) {
	subject := Subject{UserID: "1", Roles: []string{"10", "11"}, ChannelID: "100"}
	cases := []struct {
		name  string
		rules string
		want  string
	}{
		{"empty passes", `{}`, ""},
		{"all true wins", `{"all": true, "users_id": [2]}`, ""},
		{"all false fails", `{"all": false}`, "all"},
		{"user listed", `{"users_id": [1]}`, ""},
		{"user missing", `{"users_id": [2, 3]}`, "user id"},
		{"any role held", `{"any_roles_id": [11, 99]}`, ""},
		{"no role held", `{"any_roles_id": [98, 99]}`, "any roles"},
		{"all roles held", `{"all_roles_id": [11, 10]}`, ""},
		{"one role missing", `{"all_roles_id": [10, 12]}`, "all roles"},
		{"channel listed", `{"channels_id": ["100"]}`, ""},
		{"channel missing", `{"channels_id": [200]}`, "channel id"},
		{"several fail in order", `{"users_id": [2], "all_roles_id": [12], "channels_id": [200]}`, "user id;all roles;channel id"},
	}
	for _, c := range cases {
		if got := Evaluate(rules(t, c.rules), subject); got != c.want {
			t.Fatalf("%s: expected %q, got %q", c.name, c.want, got)
		}
	}
}

func TestAllowed(t *testing.T) {
	if !Allowed(store.Restrictions{}, Subject{}) {
		t.Fatalf("expected empty rules to allow")
	}
	if Allowed(rules(t, `{"users_id": [5]}`), Subject{UserID: "6"}) {
		t.Fatalf("expected user restriction to deny")
	}
}
