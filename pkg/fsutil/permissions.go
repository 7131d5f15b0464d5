// Package fsutil provides file system helpers used by the cache, config and
// archive code: permission constants, recursive copies, atomic writes and
// the platform user directories.
package fsutil

// File and directory permission constants.
const (
	// Default file modes.
	FileModeDefault = 0o644 // -rw-r--r--
	FileModeSecure  = 0o640 // -rw-r-----
	FileModeExec    = 0o755 // -rwxr-xr-x

	// Default directory modes.
	DirModeDefault = 0o755 // drwxr-xr-x
	DirModeSecure  = 0o750 // drwxr-x---
	DirModePrivate = 0o700 // drwx------
)
