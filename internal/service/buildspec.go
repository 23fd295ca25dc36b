package service

import (
	"fmt"

	"github.com/goccy/go-yaml"
)

// BuildSpec is the build definition read from the repository after checkout
// (.forgeci.yml by default).
type BuildSpec struct {
	Cache     CacheSpec     `yaml:"cache"`
	Toolchain ToolchainSpec `yaml:"toolchain"`
	Protoc    ProtocSpec    `yaml:"protoc"`
	Build     TargetSpec    `yaml:"build"`
	Artifact  ArtifactSpec  `yaml:"artifact"`
}

type CacheSpec struct {
	// Dependency manifest whose content hash keys the cache, e.g. Cargo.lock
	Manifest string `yaml:"manifest"`
	// Cache key prefix, also used as the restore-key fallback
	Prefix string `yaml:"prefix"`
	// Home-relative directories archived into the cache entry
	Paths []string `yaml:"paths"`
}

func (cs CacheSpec) Enabled() bool {
	return cs.Manifest != "" && len(cs.Paths) > 0
}

type ToolchainSpec struct {
	Version string `yaml:"version"`
}

type ProtocSpec struct {
	Major   int    `yaml:"major"`
	Install string `yaml:"install"`
}

type TargetSpec struct {
	Target string `yaml:"target"`
	Binary string `yaml:"binary"`
	// Optional subdirectory of the repository to build in
	Workdir string `yaml:"workdir"`
}

type ArtifactSpec struct {
	Label   string `yaml:"label"`
	Prefix  string `yaml:"prefix"`
	Staging string `yaml:"staging"`
}

func ParseBuildSpec(b []byte) (*BuildSpec, error) {
	bs := new(BuildSpec)
	if err := yaml.Unmarshal(b, bs); err != nil {
		return nil, fmt.Errorf("err unmarshaling build spec yaml: %w", err)
	}
	if err := bs.Validate(); err != nil {
		return nil, err
	}
	bs.applyDefaults()
	return bs, nil
}

func (bs *BuildSpec) Validate() error {
	if bs.Toolchain.Version == "" {
		return ErrSpecField{Field: "toolchain.version"}
	}
	if bs.Build.Target == "" {
		return ErrSpecField{Field: "build.target"}
	}
	if bs.Build.Binary == "" {
		return ErrSpecField{Field: "build.binary"}
	}
	if bs.Artifact.Label == "" {
		return ErrSpecField{Field: "artifact.label"}
	}
	if bs.Cache.Manifest != "" && bs.Cache.Prefix == "" {
		return ErrSpecField{Field: "cache.prefix"}
	}
	return nil
}

func (bs *BuildSpec) applyDefaults() {
	if bs.Artifact.Staging == "" {
		bs.Artifact.Staging = "dist"
	}
	if bs.Artifact.Prefix == "" {
		bs.Artifact.Prefix = bs.Artifact.Label + "_"
	}
}
