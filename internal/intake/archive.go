package intake

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
)

// ArchiveService keeps one copy of every raw source file, named by content hash.
type ArchiveService struct {
	dir string
}

func NewArchiveService(dir string) *ArchiveService {
	return &ArchiveService{dir: dir}
}

type Archived struct {
	Hash string
	Path string
}

func (s *ArchiveService) Store(name string, blob []byte) (Archived, error) {
	hashBytes := sha256.Sum256(blob)
	hash := hex.EncodeToString(hashBytes[:])

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Archived{}, err
	}

	rawPath := filepath.Join(s.dir, hash+strings.ToLower(filepath.Ext(name)))
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, blob, 0o644); err != nil {
			return Archived{}, err
		}
	}

	return Archived{Hash: hash, Path: rawPath}, nil
}
