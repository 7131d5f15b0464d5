package cache

// Manager defines the interface for cache maintenance operations.
type Manager interface {
	Clean(options CleanOptions) (*CleanResult, error)
	GetInfo() (*Info, error)
	GetDirectory() string
	SetDirectory(dir string) error
}

// CleanOptions specifies what to clean from the cache. With no field set
// everything is removed.
type CleanOptions struct {
	All     bool
	Index   bool // forget installed packages but keep their files
	Staging bool // leftover tmp directories of interrupted installs and downloads
}

// CleanResult contains information about what was cleaned.
type CleanResult struct {
	TotalFreed   int64
	IndexFreed   int64
	PackageFreed int64
	StagingFreed int64
}

// Info represents cache information.
type Info struct {
	Directory    string
	IndexPath    string
	TotalSize    int64
	IndexSize    int64
	PackageSize  int64
	PackageFiles int
	Packages     int // id/version entries on disk
	Indexed      int // id/version entries in the index
}
