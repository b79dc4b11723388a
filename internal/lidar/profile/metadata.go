package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// maxMetadataSize bounds metadata documents; real sensors emit well under 1MB.
const maxMetadataSize = 4 * 1024 * 1024

// ParseMetadata decodes a sensor metadata JSON document into an attribute
// tree. Numbers are kept as json.Number so 64-bit values survive.
func ParseMetadata(data []byte) (Attributes, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var attrs Attributes
	if err := dec.Decode(&attrs); err != nil {
		return nil, fmt.Errorf("failed to parse metadata JSON: %w", err)
	}
	if attrs == nil {
		return nil, fmt.Errorf("metadata JSON is not an object")
	}
	return attrs, nil
}

// LoadMetadataFile reads and decodes a metadata file. The path must have a
// .json extension and the file must be under maxMetadataSize.
func LoadMetadataFile(path string) (Attributes, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("metadata file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat metadata file: %w", err)
	}
	if fileInfo.Size() > maxMetadataSize {
		return nil, fmt.Errorf("metadata file too large: %d bytes (max %d)", fileInfo.Size(), maxMetadataSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}
	return ParseMetadata(data)
}

// LoadProfileFile is LoadMetadataFile followed by BuildProfile.
func LoadProfileFile(path string) (*Profile, error) {
	attrs, err := LoadMetadataFile(path)
	if err != nil {
		return nil, err
	}
	return BuildProfile(attrs)
}
