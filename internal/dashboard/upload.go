package dashboard

import (
	"archive/zip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/vk/bundlescope/internal/profile"
)

// maxUploadBytes caps dump uploads. Ripped bundle dumps for the target game
// are tens of megabytes; anything past this is a mistake.
const maxUploadBytes = 512 << 20

// handleUpload accepts a multipart zip of a dump tree, unpacks it under the
// data dir, and optionally kicks off an extraction run for it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart body: %w", err))
		return
	}

	file, header, err := r.FormFile("bundle")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing 'bundle' file field: %w", err))
		return
	}
	defer file.Close()

	name := strings.TrimSuffix(filepath.Base(header.Filename), ".zip")
	uploadID := uuid.NewString()
	destDir := filepath.Join(s.cfg.DataDir, "uploads", uploadID)

	if err := unpackZip(file, header.Size, destDir); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("failed to unpack upload: %w", err))
		return
	}
	s.logger.Info("Dump uploaded.", "name", name, "uploadID", uploadID, "size", header.Size)

	src := &profile.Source{
		Name:    "upload-" + name,
		Path:    destDir,
		Pattern: "*.collection.json",
	}

	resp := map[string]string{
		"status":    "uploaded",
		"upload_id": uploadID,
		"dir":       destDir,
	}
	if r.FormValue("extract") == "true" {
		go s.runExtraction(src)
		resp["status"] = "extracting"
	}
	writeJSON(w, http.StatusOK, resp)
}

// unpackZip extracts an uploaded archive, refusing entries that would
// escape the destination directory.
func unpackZip(file io.ReaderAt, size int64, destDir string) error {
	reader, err := zip.NewReader(file, size)
	if err != nil {
		return fmt.Errorf("not a zip archive: %w", err)
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}

	for _, entry := range reader.File {
		target := filepath.Join(destDir, filepath.FromSlash(entry.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes destination", entry.Name)
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := extractEntry(entry, target); err != nil {
			return fmt.Errorf("archive entry %q: %w", entry.Name, err)
		}
	}
	return nil
}

func extractEntry(entry *zip.File, target string) error {
	in, err := entry.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
