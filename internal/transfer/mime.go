package transfer

import (
	"path"
	"strings"
)

// DefaultContentTypes maps lowercase file extensions to MIME types. The
// table is fixed data handed to the service at construction; file content
// is never sniffed.
var DefaultContentTypes = map[string]string{
	".avro":    "application/avro",
	".bin":     "application/octet-stream",
	".bmp":     "image/bmp",
	".css":     "text/css",
	".csv":     "text/csv",
	".gif":     "image/gif",
	".gz":      "application/gzip",
	".htm":     "text/html",
	".html":    "text/html",
	".jpeg":    "image/jpeg",
	".jpg":     "image/jpeg",
	".js":      "text/javascript",
	".json":    "application/json",
	".jsonl":   "application/x-ndjson",
	".log":     "text/plain",
	".md":      "text/markdown",
	".orc":     "application/orc",
	".parquet": "application/vnd.apache.parquet",
	".pdf":     "application/pdf",
	".png":     "image/png",
	".proto":   "text/plain",
	".svg":     "image/svg+xml",
	".tar":     "application/x-tar",
	".tgz":     "application/gzip",
	".tif":     "image/tiff",
	".tiff":    "image/tiff",
	".tsv":     "text/tab-separated-values",
	".txt":     "text/plain",
	".xml":     "application/xml",
	".yaml":    "application/yaml",
	".yml":     "application/yaml",
	".zip":     "application/zip",
	".zst":     "application/zstd",
}

// contentTypeFor resolves the MIME type for a destination key from its
// extension, falling back to a generic binary type.
func contentTypeFor(table map[string]string, key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ct, ok := table[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}
