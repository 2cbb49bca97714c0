package assembler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// maxFileBytes skips files too large to be useful context
const maxFileBytes = 4 << 20

// fileCache keeps the lines of recently read source files
type fileCache struct {
	root  string
	cache *lru.Cache[string, []string]
}

func newFileCache(root string, size int) *fileCache {
	if size <= 0 {
		size = DefaultFileCacheSize
	}
	// size is positive so New cannot fail
	cache, _ := lru.New[string, []string](size)
	return &fileCache{root: root, cache: cache}
}

func (c *fileCache) resolve(path string) string {
	if c.root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.root, path)
}

// lines returns the file's lines, reading it on a cache miss
func (c *fileCache) lines(path string) ([]string, error) {
	full := c.resolve(path)
	if lines, ok := c.cache.Get(full); ok {
		return lines, nil
	}

	info, err := os.Stat(full)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > maxFileBytes {
		return nil, fmt.Errorf("file %s too large: %d bytes", path, info.Size())
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	c.cache.Add(full, lines)
	return lines, nil
}

func (c *fileCache) clear() {
	c.cache.Purge()
}

func (c *fileCache) size() int {
	return c.cache.Len()
}
