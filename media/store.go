package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrAssetNotFound is returned by Get when the asset file does not exist
var ErrAssetNotFound = errors.New("asset not found")

// Store defines the interface for saving, retrieving, and deleting media assets
type Store interface {
	// Save stores data under filename inside the asset type's directory and
	// returns the filename relative to that directory
	Save(assetType AssetType, filename string, data io.Reader) (string, error)
	// Get retrieves a reader for an asset
	Get(assetType AssetType, filename string) (io.ReadCloser, os.FileInfo, error)
	// Delete removes an asset; a missing file is not an error
	Delete(assetType AssetType, filename string) error
	// GetFullPath returns the absolute filesystem path for an asset
	GetFullPath(assetType AssetType, filename string) (string, error)
	// EnsureDir makes sure a specific asset type directory exists
	EnsureDir(assetType AssetType) (string, error)
}

// LocalStorage implements the Store interface using the local filesystem
type LocalStorage struct {
	basePath        string               // absolute path to the MEDIA_STORAGE_PATH
	resolvedPathMap map[AssetType]string // maps AssetType to full absolute path
	log             *zap.Logger
}

// NewLocalStorage creates a new local filesystem store. Every asset type the
// store serves must be listed in subDirs.
func NewLocalStorage(basePath string, subDirs map[AssetType]string, log *zap.Logger) (*LocalStorage, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}

	if err := os.MkdirAll(absBasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory '%s': %w", absBasePath, err)
	}

	resolvedPaths := make(map[AssetType]string)
	for assetType, subDir := range subDirs {
		fullPath := filepath.Join(absBasePath, subDir)
		if !isWithin(absBasePath, fullPath) || fullPath == absBasePath {
			return nil, fmt.Errorf("invalid subdirectory configuration: '%s' resolves outside base path '%s'", subDir, absBasePath)
		}
		resolvedPaths[assetType] = fullPath
	}

	log.Info("initialized local storage", zap.String("path", absBasePath))
	return &LocalStorage{
		basePath:        absBasePath,
		resolvedPathMap: resolvedPaths,
		log:             log,
	}, nil
}

func isWithin(dir, path string) bool {
	cleanDir := filepath.Clean(dir)
	cleanPath := filepath.Clean(path)
	return cleanPath == cleanDir || strings.HasPrefix(cleanPath, cleanDir+string(os.PathSeparator))
}

func (ls *LocalStorage) getAssetTypeDir(assetType AssetType) (string, error) {
	dirPath, ok := ls.resolvedPathMap[assetType]
	if !ok {
		return "", fmt.Errorf("asset type '%s' is not configured", assetType)
	}
	return dirPath, nil
}

// EnsureDir creates the directory for the asset type if it doesn't exist
func (ls *LocalStorage) EnsureDir(assetType AssetType) (string, error) {
	dirPath, err := ls.getAssetTypeDir(assetType)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to ensure directory '%s': %w", dirPath, err)
	}
	return dirPath, nil
}

// Save writes data to the store. The file is created, filled and closed; on any
// failure the partial file is removed.
func (ls *LocalStorage) Save(assetType AssetType, filename string, data io.Reader) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename cannot be empty for LocalStorage.Save")
	}

	baseAssetDir, err := ls.EnsureDir(assetType)
	if err != nil {
		return "", err
	}

	fullSavePath := filepath.Join(baseAssetDir, filename)
	if !isWithin(baseAssetDir, fullSavePath) || filepath.Dir(fullSavePath) != baseAssetDir {
		return "", fmt.Errorf("invalid filename '%s'", filename)
	}

	outFile, err := os.OpenFile(fullSavePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file '%s': %w", fullSavePath, err)
	}

	if _, err = io.Copy(outFile, data); err != nil {
		outFile.Close()
		os.Remove(fullSavePath)
		return "", fmt.Errorf("failed to write data to '%s': %w", fullSavePath, err)
	}
	if err = outFile.Close(); err != nil {
		os.Remove(fullSavePath)
		return "", fmt.Errorf("failed to close '%s': %w", fullSavePath, err)
	}

	ls.log.Debug("saved asset", zap.String("asset_type", string(assetType)), zap.String("path", fullSavePath))
	return filename, nil
}

func (ls *LocalStorage) Get(assetType AssetType, filename string) (io.ReadCloser, os.FileInfo, error) {
	fullPath, err := ls.GetFullPath(assetType, filename)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: '%s'", ErrAssetNotFound, filename)
		}
		return nil, nil, fmt.Errorf("failed to open asset '%s': %w", filename, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("failed to stat asset '%s': %w", filename, err)
	}

	return file, info, nil
}

// ReadAll loads a whole asset into memory
func ReadAll(store Store, assetType AssetType, filename string) ([]byte, error) {
	rc, _, err := store.Get(assetType, filename)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset '%s': %w", filename, err)
	}
	return data, nil
}

// Delete removes an asset file
func (ls *LocalStorage) Delete(assetType AssetType, filename string) error {
	fullPath, err := ls.GetFullPath(assetType, filename)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete asset '%s': %w", filename, err)
	}
	if err == nil {
		ls.log.Debug("deleted asset", zap.String("path", fullPath))
	}
	return nil
}

// GetFullPath calculates the absolute path and performs security check
func (ls *LocalStorage) GetFullPath(assetType AssetType, filename string) (string, error) {
	dirPath, err := ls.getAssetTypeDir(assetType)
	if err != nil {
		return "", err
	}

	fullPath := filepath.Join(dirPath, filepath.Clean(filename))
	absFullPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s': %w", filename, err)
	}

	if !isWithin(dirPath, absFullPath) || absFullPath == dirPath {
		return "", fmt.Errorf("invalid path: access denied for '%s'", filename)
	}

	return absFullPath, nil
}
