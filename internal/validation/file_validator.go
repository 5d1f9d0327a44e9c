package validation

import (
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"skuforecast/internal/errors"
	"skuforecast/internal/files"
)

var errIsDirectory = stderrors.New("is a directory")

// OutputExtensions lists the forecast file formats the exporter can write
var OutputExtensions = []string{".csv", ".xlsx", ".xlsm"}

// FileValidator checks run inputs and outputs before any work starts
type FileValidator struct {
	logger    *slog.Logger
	discovery *files.Discovery
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger:    logger,
		discovery: files.NewDiscovery(""),
	}
}

// ValidateInput checks that path is a readable sales file or a directory
// holding at least one sales file
func (v *FileValidator) ValidateInput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		v.logger.Error("Input path is not accessible",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return errors.NewIOError("stat", path, err)
	}

	if info.IsDir() {
		found, err := v.discovery.FindSalesFiles(path)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			v.logger.Error("Input directory contains no sales files",
				slog.String("directory", path))
			return errors.NewIOError("find sales files in", path, os.ErrNotExist)
		}
		v.logger.Debug("Input directory validated",
			slog.String("directory", path),
			slog.Int("files_found", len(found)))
		return nil
	}

	return v.ValidateFile(path)
}

// ValidateOutput checks the forecast file extension and that its directory
// exists or can be created and is writable
func (v *FileValidator) ValidateOutput(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !supported(ext) {
		v.logger.Error("Unsupported output format",
			slog.String("file", path),
			slog.String("extension", ext))
		return errors.NewConfigError(nil, "unsupported output format %q for %s", ext, path).With("path", path)
	}
	return v.ValidateOutputDirectory(filepath.Dir(path))
}

// ValidateOutputDirectory ensures dir exists or can be created and is writable
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return errors.NewIOError("create directory", dir, err)
	}

	// Verify it's writable by creating a probe file
	probe, err := os.CreateTemp(dir, ".write_test.*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return errors.NewIOError("write to", dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())

	v.logger.Debug("Output directory validated", slog.String("directory", dir))
	return nil
}

// ValidateFile checks if a specific file exists and is readable
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		v.logger.Error("File is not accessible",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return errors.NewIOError("stat", path, err)
	}
	if info.IsDir() {
		v.logger.Error("Path is a directory, not a file", slog.String("path", path))
		return errors.NewIOError("read", path, errIsDirectory)
	}

	// Check if file is readable by opening it
	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return errors.NewIOError("open", path, err)
	}
	file.Close()

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

func supported(ext string) bool {
	for _, allowed := range OutputExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
