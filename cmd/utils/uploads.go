package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MaxUploadSize   = 10 << 20 // 10 MB
	ProfilePicPath  = "uploads/profiles"
	CertificatePath = "uploads/certificates"
)

// SaveProfilePicture stores an uploaded profile picture and returns its URL path.
func SaveProfilePicture(file multipart.File, header *multipart.FileHeader) (string, error) {
	return saveUpload(file, header, ProfilePicPath, "/profiles", map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true,
	})
}

// SaveCertificate stores a mentor certification document and returns its URL path.
func SaveCertificate(file multipart.File, header *multipart.FileHeader) (string, error) {
	return saveUpload(file, header, CertificatePath, "/certificates", map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".pdf": true,
	})
}

func saveUpload(file multipart.File, header *multipart.FileHeader, dir, urlPrefix string, allowed map[string]bool) (string, error) {
	if header.Size > MaxUploadSize {
		return "", fmt.Errorf("file size exceeds maximum limit of %d MB", MaxUploadSize/(1<<20))
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowed[ext] {
		return "", fmt.Errorf("invalid file type: %s", ext)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %v", err)
	}

	filename := fmt.Sprintf("%s-%s%s",
		time.Now().Format("20060102"),
		uuid.New().String(),
		ext,
	)
	filePath := filepath.Join(dir, filename)

	dst, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %v", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", fmt.Errorf("failed to save file: %v", err)
	}

	return fmt.Sprintf("%s/%s", urlPrefix, filename), nil
}

// DeleteUpload removes a previously stored file. Missing files are not an error.
func DeleteUpload(urlPath string) error {
	dir := ProfilePicPath
	if strings.HasPrefix(urlPath, "/certificates/") {
		dir = CertificatePath
	}
	filePath := filepath.Join(dir, filepath.Base(urlPath))

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}
	return os.Remove(filePath)
}
