package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const testBuildSpecYaml = `
cache:
  manifest: Cargo.lock
  prefix: deps
  paths:
    - ~/.cargo/registry
    - ~/.cargo/git
toolchain:
  version: 1.75.0
protoc:
  major: 3
  install: sudo apt-get install -y protobuf-compiler
build:
  target: x86_64-win7-windows-msvc
  binary: clash
artifact:
  label: clash-win7
  staging: dist
`

func TestParseBuildSpec(t *testing.T) {
	t.Run("success - full spec is parsed", func(t *testing.T) {
		// act
		bs, err := ParseBuildSpec([]byte(testBuildSpecYaml))

		// assert
		assert.NoError(t, err)
		assert.Equal(t, "Cargo.lock", bs.Cache.Manifest)
		assert.Equal(t, "deps", bs.Cache.Prefix)
		assert.Len(t, bs.Cache.Paths, 2)
		assert.True(t, bs.Cache.Enabled())
		assert.Equal(t, "1.75.0", bs.Toolchain.Version)
		assert.Equal(t, 3, bs.Protoc.Major)
		assert.Equal(t, "x86_64-win7-windows-msvc", bs.Build.Target)
		assert.Equal(t, "clash", bs.Build.Binary)
		assert.Equal(t, "clash-win7", bs.Artifact.Label)
	})

	t.Run("success - artifact prefix defaults to label with separator", func(t *testing.T) {
		bs, err := ParseBuildSpec([]byte(testBuildSpecYaml))
		assert.NoError(t, err)
		assert.Equal(t, "clash-win7_", bs.Artifact.Prefix)
	})

	t.Run("success - staging defaults to dist", func(t *testing.T) {
		bs, err := ParseBuildSpec([]byte(`
toolchain:
  version: 1.75.0
build:
  target: x86_64-unknown-linux-gnu
  binary: clash
artifact:
  label: clash
`))
		assert.NoError(t, err)
		assert.Equal(t, "dist", bs.Artifact.Staging)
	})

	t.Run("success - cache is disabled without manifest and paths", func(t *testing.T) {
		bs, err := ParseBuildSpec([]byte(`
toolchain:
  version: 1.75.0
build:
  target: x86_64-unknown-linux-gnu
  binary: clash
artifact:
  label: clash
`))
		assert.NoError(t, err)
		assert.False(t, bs.Cache.Enabled())
	})

	t.Run("fail - missing toolchain version", func(t *testing.T) {
		_, err := ParseBuildSpec([]byte(`
build:
  target: x86_64-unknown-linux-gnu
  binary: clash
artifact:
  label: clash
`))
		assert.ErrorContains(t, err, "toolchain.version")
	})

	t.Run("fail - missing build target", func(t *testing.T) {
		_, err := ParseBuildSpec([]byte(`
toolchain:
  version: 1.75.0
build:
  binary: clash
artifact:
  label: clash
`))
		assert.ErrorContains(t, err, "build.target")
	})

	t.Run("fail - cache manifest without prefix", func(t *testing.T) {
		_, err := ParseBuildSpec([]byte(`
cache:
  manifest: Cargo.lock
  paths:
    - ~/.cargo/registry
toolchain:
  version: 1.75.0
build:
  target: x86_64-unknown-linux-gnu
  binary: clash
artifact:
  label: clash
`))
		assert.ErrorContains(t, err, "cache.prefix")
	})

	t.Run("fail - invalid yaml", func(t *testing.T) {
		_, err := ParseBuildSpec([]byte("toolchain: [broken"))
		assert.Error(t, err)
	})
}
