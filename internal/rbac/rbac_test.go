package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "member submit", role: RoleMember, action: ActionSubmit, allow: true},
		{name: "member vote", role: RoleMember, action: ActionVote, allow: true},
		{name: "member moderate", role: RoleMember, action: ActionModerate, allow: false},
		{name: "member view settings", role: RoleMember, action: ActionViewSettings, allow: false},
		{name: "moderator moderate", role: RoleModerator, action: ActionModerate, allow: true},
		{name: "moderator record activity", role: RoleModerator, action: ActionRecordActivity, allow: true},
		{name: "moderator view settings", role: RoleModerator, action: ActionViewSettings, allow: true},
		{name: "moderator edit settings", role: RoleModerator, action: ActionEditSettings, allow: false},
		{name: "moderator trust identities", role: RoleModerator, action: ActionTrustIdentities, allow: false},
		{name: "moderator archive", role: RoleModerator, action: ActionArchive, allow: true},
		{name: "admin edit settings", role: RoleAdmin, action: ActionEditSettings, allow: true},
		{name: "admin trust identities", role: RoleAdmin, action: ActionTrustIdentities, allow: true},
		{name: "unknown role", role: Role("ghost"), action: ActionSubmit, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("moderator"); got != RoleModerator {
		t.Fatalf("Normalize(moderator) = %q", got)
	}
	if got := Normalize("superuser"); got != RoleMember {
		t.Fatalf("Normalize(superuser) = %q, want member fallback", got)
	}
}
