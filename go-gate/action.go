package gate

// Action is the verb half of a permission.
type Action string

// Actions shared by most resources. Applications declare their own verbs
// (send, archive...) as extra Action constants.
const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionList   Action = "list"
)
