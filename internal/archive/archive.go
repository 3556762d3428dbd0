package archive

import (
	"archive/zip"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var ErrEmptyFilename = errors.New("No selected file")
var ErrUnsupportedFormat = errors.New("Invalid file format. Only .zip files are allowed.")
var ErrMalformedArchive = errors.New("Uploaded file is not a valid zip archive.")

// Store persists raw uploads and unpacks them into per-app build trees.
type Store struct {
	Logger            *slog.Logger
	UploadDir         string
	BuildDir          string
	AllowedExtensions []string
}

// Allowed reports whether filename carries one of the accepted archive
// extensions. The check is case-insensitive; names without an extension
// fail.
func (s Store) Allowed(filename string) bool {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	if ext == "" {
		return false
	}
	for _, allowed := range s.AllowedExtensions {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}

// BaseName derives the build key for filename: the base name with the
// extension stripped, lowercased.
func BaseName(filename string) string {
	base := filepath.Base(filename)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

// Save persists the raw upload under the upload directory and returns
// the stored path. Uploads are retained indefinitely.
func (s Store) Save(filename string, content io.Reader) (string, error) {
	err := os.MkdirAll(s.UploadDir, 0755)
	if err != nil {
		return "", err
	}

	target := filepath.Join(s.UploadDir, filepath.Base(filename))
	file, err := os.Create(target)
	if err != nil {
		return "", err
	}
	defer file.Close()

	_, err = io.Copy(file, content)
	if err != nil {
		return "", err
	}

	s.Logger.Info("File saved", "path", target)
	return target, nil
}

// Extract unpacks the stored archive into {buildDir}/{basename}. Any
// prior tree at that path is wiped first, so repeat uploads of the same
// name never see stale files.
func (s Store) Extract(archivePath string, filename string) (string, error) {
	target := filepath.Join(s.BuildDir, BaseName(filename))

	err := os.RemoveAll(target)
	if err != nil {
		return "", err
	}
	err = os.MkdirAll(target, 0755)
	if err != nil {
		return "", err
	}

	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		if reader != nil {
			reader.Close()
		}
		return "", ErrMalformedArchive
	}
	defer reader.Close()

	for _, file := range reader.File {
		err = extractFile(file, target)
		if err != nil {
			return "", err
		}
	}

	s.Logger.Info("File extracted", "path", target)
	return target, nil
}

func extractFile(file *zip.File, targetDir string) error {
	targetPath := filepath.Join(targetDir, file.Name)

	// Guard against path traversal via entry names like "../../etc".
	if !strings.HasPrefix(filepath.Clean(targetPath), filepath.Clean(targetDir)+string(os.PathSeparator)) {
		return ErrMalformedArchive
	}

	if file.FileInfo().IsDir() {
		return os.MkdirAll(targetPath, file.Mode())
	}

	err := os.MkdirAll(filepath.Dir(targetPath), 0755)
	if err != nil {
		return err
	}

	fileReader, err := file.Open()
	if err != nil {
		return ErrMalformedArchive
	}
	defer fileReader.Close()

	outFile, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, file.Mode())
	if err != nil {
		return err
	}

	_, err = io.Copy(outFile, fileReader)
	outFile.Close()
	if err != nil {
		return ErrMalformedArchive
	}
	return nil
}
