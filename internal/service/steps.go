package service

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/savefuksd/forgeci/internal/util"
)

// RepoDirFromURL returns the directory git clone creates for a repository URL.
func RepoDirFromURL(repository string) string {
	dir := repository[strings.LastIndex(repository, "/")+1:]
	return strings.TrimSuffix(dir, ".git")
}

func CloneCommand(repository, branch string) string {
	return fmt.Sprintf("git clone --recurse-submodules -b %s %s", branch, repository)
}

func CheckoutRevisionCommand(revision string) string {
	return fmt.Sprintf("git checkout --recurse-submodules %s", revision)
}

func ToolchainInstallCommands(version string) []string {
	return []string{
		fmt.Sprintf("rustup toolchain install %s --profile minimal", version),
		fmt.Sprintf("rustup default %s", version),
	}
}

const ProtocVersionCommand = "protoc --version"

var protocVersionRe = regexp.MustCompile(`(\d+)\.\d+`)

// ParseProtocMajor extracts the major version from `protoc --version` output,
// e.g. "libprotoc 3.21.12" -> 3.
func ParseProtocMajor(output string) (int, error) {
	m := protocVersionRe.FindStringSubmatch(output)
	if m == nil {
		return 0, fmt.Errorf("unrecognized protoc version output: %q", strings.TrimSpace(output))
	}
	return strconv.Atoi(m[1])
}

func BuildCommand(target string) string {
	return fmt.Sprintf("cargo build --release --target %s", target)
}

// TargetExt returns the executable extension for a target triple.
func TargetExt(target string) string {
	if strings.Contains(target, "windows") {
		return ".exe"
	}
	return ""
}

// BuildOutputPath is the deterministic location cargo places the release
// binary for a target triple, relative to the repository root.
func BuildOutputPath(target, binary string) string {
	return path.Join("target", target, "release", binary+TargetExt(target))
}

// ArtifactFileName is the staged artifact name: prefix, then the toolchain
// version with dots removed, then the target platform's extension.
func ArtifactFileName(prefix, toolchainVersion, target string) string {
	return prefix + util.StripDots(toolchainVersion) + TargetExt(target)
}

func VerifyFileCommand(p string) string {
	return fmt.Sprintf("test -f %s", p)
}

// StageArtifactCommand moves (not copies) the build output into the staging
// directory under its final name. mv fails when the source is absent.
func StageArtifactCommand(outputPath, stagingDir, fileName string) string {
	return fmt.Sprintf(
		"mkdir -p %s && mv %s %s",
		stagingDir, outputPath, path.Join(stagingDir, fileName),
	)
}

// NormalizeCachePaths strips "~/" prefixes; cache paths are archived relative
// to the runner's home directory.
func NormalizeCachePaths(paths []string) []string {
	normalized := make([]string, len(paths))
	for i, p := range paths {
		normalized[i] = strings.TrimPrefix(p, "~/")
	}
	return normalized
}

func RestoreCacheCommand(archivePath string) string {
	return fmt.Sprintf("tar xzf %s -C \"$HOME\"", archivePath)
}

func SaveCacheCommand(archivePath string, paths []string) string {
	return fmt.Sprintf(
		"mkdir -p %s && tar czf %s -C \"$HOME\" %s",
		path.Dir(archivePath),
		archivePath,
		strings.Join(NormalizeCachePaths(paths), " "),
	)
}

func CacheArchivePath(cacheDir, key string) string {
	return path.Join(cacheDir, key+".tar.gz")
}
