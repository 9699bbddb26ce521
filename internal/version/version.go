package version

import (
	"fmt"
	"strconv"
	"strings"
)

// A license bound to a robot stays valid across minor and patch releases
// of that robot (1.x works with 1.y, but not with 2.x).
func IsCompatible(boundVersion, reportedVersion string) (bool, error) {
	boundMajor, err := ExtractMajorVersion(boundVersion)
	if err != nil {
		return false, fmt.Errorf("invalid bound robot version: %v", err)
	}

	reportedMajor, err := ExtractMajorVersion(reportedVersion)
	if err != nil {
		return false, fmt.Errorf("invalid reported robot version: %v", err)
	}

	return boundMajor == reportedMajor, nil
}

func ExtractMajorVersion(version string) (int, error) {
	if version == "" {
		return 0, fmt.Errorf("empty version string")
	}

	parts := strings.Split(version, ".")
	if len(parts) < 1 {
		return 0, fmt.Errorf("invalid version format")
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid major version: %v", err)
	}

	if major < 0 {
		return 0, fmt.Errorf("major version cannot be negative")
	}

	return major, nil
}
