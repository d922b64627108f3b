package ir

// Version constants for notification identity and binary.
const (
	// SchemaVersion is the notification ID scheme version. It is part of
	// DomainNotification, so changing it changes every ID.
	SchemaVersion = "1"

	// Version is the tokenx release version, reported by --version.
	Version = "0.1.0"
)
