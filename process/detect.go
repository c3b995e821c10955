package process

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// isArchiveFile sniffs the file magic to see whether path is a zip archive.
func isArchiveFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	// filetype needs at most 262 bytes to recognize anything it knows about
	buf := make([]byte, 262)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return false, err
	}
	return filetype.Is(buf[:n], "zip"), nil
}

// isMessageFile goes by extension only - editor exports store message bodies
// as html files. Content sanity is checked later during preparation.
func isMessageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	}
	return false
}
