package files

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"skuforecast/internal/errors"
)

// SalesExtensions lists the file extensions read as sales history
var SalesExtensions = []string{".csv", ".xlsx", ".xlsm"}

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Discovery provides file discovery operations
type Discovery struct {
	basePath string
}

// NewDiscovery creates a new file discovery instance. Relative paths are
// resolved against basePath; an empty basePath leaves them untouched.
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

func (d *Discovery) resolve(p string) string {
	if d.basePath == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(d.basePath, p)
}

// IsSalesFile reports whether name looks like a readable sales file.
// Hidden files and Excel lock files (~$name.xlsx) are rejected.
func IsSalesFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, allowed := range SalesExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// FindSalesFiles lists the sales files directly inside dir, sorted by name
func (d *Discovery) FindSalesFiles(dir string) ([]FileInfo, error) {
	fullPath := d.resolve(dir)

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, errors.NewIOError("read directory", fullPath, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !IsSalesFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(fullPath, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	// Name order keeps exports like sales_2024_01.csv, sales_2024_02.csv chronological
	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})
	return files, nil
}

// ResolveInputs expands path into the files to load: a regular file is
// returned as is, a directory yields its sales files. A directory without
// any sales file is an IO error.
func (d *Discovery) ResolveInputs(path string) ([]string, error) {
	fullPath := d.resolve(path)

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, errors.NewIOError("stat", fullPath, err)
	}
	if !info.IsDir() {
		return []string{fullPath}, nil
	}

	found, err := d.FindSalesFiles(fullPath)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, errors.NewIOError("find sales files in", fullPath, os.ErrNotExist)
	}

	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = f.Path
	}
	return paths, nil
}
