package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepoDirFromURL(t *testing.T) {
	t.Run("success - https url with .git suffix", func(t *testing.T) {
		assert.Equal(t, "clash-rs", RepoDirFromURL("https://github.com/acme/clash-rs.git"))
	})
	t.Run("success - ssh url without suffix", func(t *testing.T) {
		assert.Equal(t, "clash-rs", RepoDirFromURL("git@github.com:acme/clash-rs"))
	})
}

func TestCloneCommand(t *testing.T) {
	t.Run("success - clone recurses submodules on the requested branch", func(t *testing.T) {
		cmd := CloneCommand("https://github.com/acme/clash-rs.git", "win7")
		assert.Equal(
			t,
			"git clone --recurse-submodules -b win7 https://github.com/acme/clash-rs.git",
			cmd,
		)
	})
}

func TestToolchainInstallCommands(t *testing.T) {
	t.Run("success - installs exact version and makes it the default", func(t *testing.T) {
		cmds := ToolchainInstallCommands("1.75.0")
		assert.Equal(t, []string{
			"rustup toolchain install 1.75.0 --profile minimal",
			"rustup default 1.75.0",
		}, cmds)
	})
}

func TestParseProtocMajor(t *testing.T) {
	t.Run("success - parses libprotoc output", func(t *testing.T) {
		major, err := ParseProtocMajor("libprotoc 3.21.12\n")
		assert.NoError(t, err)
		assert.Equal(t, 3, major)
	})
	t.Run("success - parses bare version", func(t *testing.T) {
		major, err := ParseProtocMajor("libprotoc 25.1")
		assert.NoError(t, err)
		assert.Equal(t, 25, major)
	})
	t.Run("fail - unrecognized output", func(t *testing.T) {
		_, err := ParseProtocMajor("command not found: protoc")
		assert.Error(t, err)
	})
}

func TestTargetExt(t *testing.T) {
	t.Run("success - windows target gets .exe", func(t *testing.T) {
		assert.Equal(t, ".exe", TargetExt("x86_64-win7-windows-msvc"))
	})
	t.Run("success - linux target gets no extension", func(t *testing.T) {
		assert.Equal(t, "", TargetExt("x86_64-unknown-linux-gnu"))
	})
}

func TestBuildOutputPath(t *testing.T) {
	t.Run("success - release binary under the target triple", func(t *testing.T) {
		p := BuildOutputPath("x86_64-win7-windows-msvc", "clash")
		assert.Equal(t, "target/x86_64-win7-windows-msvc/release/clash.exe", p)
	})
}

func TestArtifactFileName(t *testing.T) {
	t.Run("success - prefix, dotless version, platform extension", func(t *testing.T) {
		name := ArtifactFileName("clash-win7_", "1.75.0", "x86_64-win7-windows-msvc")
		assert.Equal(t, "clash-win7_1750.exe", name)
	})
	t.Run("success - non-windows target has no extension", func(t *testing.T) {
		name := ArtifactFileName("clash_", "1.75.0", "x86_64-unknown-linux-gnu")
		assert.Equal(t, "clash_1750", name)
	})
}

func TestStageArtifactCommand(t *testing.T) {
	t.Run("success - creates staging dir then moves the output", func(t *testing.T) {
		cmd := StageArtifactCommand(
			"target/x86_64-win7-windows-msvc/release/clash.exe",
			"dist",
			"clash-win7_1750.exe",
		)
		assert.Equal(
			t,
			"mkdir -p dist && mv target/x86_64-win7-windows-msvc/release/clash.exe dist/clash-win7_1750.exe",
			cmd,
		)
	})
}

func TestNormalizeCachePaths(t *testing.T) {
	t.Run("success - home prefix is stripped", func(t *testing.T) {
		paths := NormalizeCachePaths([]string{"~/.cargo/registry", ".cargo/git", "~/.rustup"})
		assert.Equal(t, []string{".cargo/registry", ".cargo/git", ".rustup"}, paths)
	})
}

func TestCacheCommands(t *testing.T) {
	t.Run("success - save archives paths relative to home", func(t *testing.T) {
		cmd := SaveCacheCommand("/var/cache/forgeci/deps-abc.tar.gz", []string{"~/.cargo/registry"})
		assert.Equal(
			t,
			`mkdir -p /var/cache/forgeci && tar czf /var/cache/forgeci/deps-abc.tar.gz -C "$HOME" .cargo/registry`,
			cmd,
		)
	})
	t.Run("success - restore extracts into home", func(t *testing.T) {
		cmd := RestoreCacheCommand("/var/cache/forgeci/deps-abc.tar.gz")
		assert.Equal(t, `tar xzf /var/cache/forgeci/deps-abc.tar.gz -C "$HOME"`, cmd)
	})
}
