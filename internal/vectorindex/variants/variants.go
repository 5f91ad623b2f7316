// Package variants registers every concrete vector index
// implementation with vectorindex.Build. Importing it for its side
// effect (blank import) is enough to make vectorindex.Build recognize
// FLAT, IVF_FLAT and HNSW, the same way database/sql callers blank
// import a driver package.
package variants

import (
	_ "github.com/dingodb/region-engine/internal/vectorindex/flat"
	_ "github.com/dingodb/region-engine/internal/vectorindex/hnsw"
	_ "github.com/dingodb/region-engine/internal/vectorindex/ivf"
)
