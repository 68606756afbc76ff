// Package config provides configuration structures and defaults for multidisk.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// DefaultMaxOpenFiles is the number of native file handles kept open at once
// when no explicit limit is configured.
const DefaultMaxOpenFiles = 100

const (
	defaultStoreDir            = "."
	defaultAllocationChunkSize = 1024 * 1024
	defaultDirPerm             = 0755
	defaultFilePerm            = 0644
	defaultLogLevel            = "INFO"
)

// Environment variables consulted by LoadEnv.
const (
	EnvStoreDir            = "MULTIDISK_STORE_DIR"
	EnvMaxOpenFiles        = "MULTIDISK_MAX_OPEN_FILES"
	EnvDirectIO            = "MULTIDISK_DIRECT_IO"
	EnvAllocationChunkSize = "MULTIDISK_ALLOC_CHUNK_SIZE"
	EnvLogLevel            = "MULTIDISK_LOG_LEVEL"
)

// Config holds the tunable parameters of a multi-file disk.
type Config struct {
	// StoreDir is the directory the session top directory lives in.
	StoreDir string

	// MaxOpenFiles bounds the number of simultaneously open files.
	MaxOpenFiles int

	// DirectIOAllowed permits backends to switch files to O_DIRECT.
	DirectIOAllowed bool

	// AllocationChunkSize is the number of bytes preallocated per step.
	AllocationChunkSize int64

	DirPerm  os.FileMode
	FilePerm os.FileMode
	LogLevel string
}

// DefaultConfig returns a Config struct populated with default values.
func DefaultConfig() *Config {
	return &Config{
		StoreDir:            defaultStoreDir,
		MaxOpenFiles:        DefaultMaxOpenFiles,
		DirectIOAllowed:     false,
		AllocationChunkSize: defaultAllocationChunkSize,
		DirPerm:             defaultDirPerm,
		FilePerm:            defaultFilePerm,
		LogLevel:            defaultLogLevel,
	}
}

// FillDefaults sets any zero-value fields in the Config to their default values.
func (c *Config) FillDefaults() {
	def := DefaultConfig()
	if c.StoreDir == "" {
		c.StoreDir = def.StoreDir
	}
	if c.MaxOpenFiles <= 0 {
		c.MaxOpenFiles = def.MaxOpenFiles
	}
	if c.AllocationChunkSize <= 0 {
		c.AllocationChunkSize = def.AllocationChunkSize
	}
	if c.DirPerm == 0 {
		c.DirPerm = def.DirPerm
	}
	if c.FilePerm == 0 {
		c.FilePerm = def.FilePerm
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// LoadEnv loads the given dotenv files into the process environment and
// applies MULTIDISK_* overrides on top of c. Files that do not exist are
// skipped. Variables already present in the environment win over dotenv
// values.
func (c *Config) LoadEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "load env file %s", f)
		}
	}

	if v := os.Getenv(EnvStoreDir); v != "" {
		c.StoreDir = v
	}
	if v := os.Getenv(EnvMaxOpenFiles); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvMaxOpenFiles)
		}
		c.MaxOpenFiles = n
	}
	if v := os.Getenv(EnvDirectIO); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvDirectIO)
		}
		c.DirectIOAllowed = b
	}
	if v := os.Getenv(EnvAllocationChunkSize); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvAllocationChunkSize)
		}
		c.AllocationChunkSize = n
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = strings.ToUpper(v)
	}
	c.FillDefaults()
	return nil
}
