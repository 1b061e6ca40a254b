package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionResultsRead allows listing persisted exam results.
	PermissionResultsRead Permission = "results:read"

	// PermissionExamsMonitor allows watching the live proctoring feed of an exam.
	PermissionExamsMonitor Permission = "exams:monitor"

	// PermissionSessionsFinalize allows ending a candidate's session early.
	PermissionSessionsFinalize Permission = "sessions:finalize"

	// PermissionSystemRead allows reading runtime and queue metrics.
	PermissionSystemRead Permission = "system:read"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionResultsRead,
	PermissionExamsMonitor,
	PermissionSessionsFinalize,
	PermissionSystemRead,
}

// ParsePermissions keeps the known codes of raw, in order, and reports the unknown ones.
func ParsePermissions(raw []string) (known []Permission, unknown []string) {
	valid := make(map[Permission]bool, len(AllPermissions))
	for _, p := range AllPermissions {
		valid[p] = true
	}
	for _, r := range raw {
		if p := Permission(r); valid[p] {
			known = append(known, p)
		} else {
			unknown = append(unknown, r)
		}
	}
	return known, unknown
}
