package common

// File permission constants for files the tool creates
const (
	// FilePermissionSecure is used for config files that may hold credentials
	FilePermissionSecure = 0600

	// FilePermissionNormal is used for generated reports
	FilePermissionNormal = 0644

	// DirPermissionSecure is used for the config and history directory
	DirPermissionSecure = 0700
)
