package cache

import "github.com/glorpus-work/qpkg/pkg/fsutil"

// CacheDirPerm is the permission mode for cache directories.
const CacheDirPerm = fsutil.DirModeDefault

// IndexFile is the default name of the cache index.
const IndexFile = "qpkg.repository.json"

// Layout of a cache entry: <root>/<id>/<version>/{src,lib,tmp}.
const (
	SrcDir = "src"
	LibDir = "lib"
	TmpDir = "tmp"
)
