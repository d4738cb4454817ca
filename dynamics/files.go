package dynamics

import (
	"bytes"
	"embed"
	"io/fs"
	"os"
	"path"

	"github.com/rotisserie/eris"
)

//go:embed mappings/*.yaml
var embeddedMappingFS embed.FS

// DefaultMappings holds the defaults compiled into the binary.
var DefaultMappings = EmbeddedMappings{Root: "mappings", Files: embeddedMappingFS}

type MappingFile struct {
	Name   string
	Reader *bytes.Reader
	Length int
}

type EmbeddedMappings struct {
	Root  string
	Files EmbeddedFS
}

type EmbeddedFS interface {
	Open(name string) (fs.File, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	ReadFile(name string) ([]byte, error)
}

func newMappingFile(name string, data []byte) MappingFile {
	return MappingFile{
		Name:   name,
		Reader: bytes.NewReader(data),
		Length: len(data),
	}
}

func (em EmbeddedMappings) MustFindRootMappingFile(filename string) (MappingFile, error) {
	var result MappingFile
	name := path.Join(em.Root, filename)
	data, err := em.Files.ReadFile(name)
	if err == nil {
		result = newMappingFile(name, data)
	}
	return result, err
}

func (em EmbeddedMappings) MustFindDefaultsMappingFile() (MappingFile, error) {
	return em.MustFindRootMappingFile("defaults.yaml")
}

// ReadMappingFile reads a config file from disk. JSON files load as YAML.
func ReadMappingFile(name string) (MappingFile, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return MappingFile{}, eris.Wrapf(err, "failed to read config file %s", name)
	}
	return newMappingFile(name, data), nil
}

// MappingFileFromBytes wraps in-memory config, e.g. from tests.
func MappingFileFromBytes(name string, data []byte) MappingFile {
	return newMappingFile(name, data)
}
