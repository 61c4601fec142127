package rbac

type Role string
type Action string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

const (
	ActionSubmit          Action = "submit"
	ActionVote            Action = "vote"
	ActionModerate        Action = "moderate"
	ActionManageFilters   Action = "manage_filters"
	ActionManageBans      Action = "manage_bans"
	ActionTrustIdentities Action = "trust_identities"
	ActionRecordActivity  Action = "record_activity"
	ActionViewSettings    Action = "view_settings"
	ActionEditSettings    Action = "edit_settings"
	ActionViewStatus      Action = "view_status"
	ActionArchive         Action = "archive"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleModerator:
		return action != ActionEditSettings && action != ActionTrustIdentities
	case RoleMember:
		return action == ActionSubmit || action == ActionVote
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleMember, RoleModerator, RoleAdmin:
		return Role(role)
	default:
		return RoleMember
	}
}
