package model

// Permission represents a string code carried in author tokens.
type Permission string

const (
	// PermissionBlocksAuthor allows opening the authoring view and saving block settings.
	PermissionBlocksAuthor Permission = "blocks:author"

	// PermissionBlocksMonitor allows streaming a block's submission feed.
	PermissionBlocksMonitor Permission = "blocks:monitor"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionBlocksAuthor,
	PermissionBlocksMonitor,
}
