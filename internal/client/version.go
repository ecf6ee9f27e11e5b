package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/mod/semver"
)

// MinAPIVersion is the oldest listings API this build can read.
const MinAPIVersion = "v1.2.0"

// ErrIncompatibleAPI is returned by CheckCompatible when the
// API's version is outside the supported range.
var ErrIncompatibleAPI = errors.New("incompatible API version")

// ServerVersion reports the version string the API advertises.
func (c *Client) ServerVersion(ctx context.Context) (string, error) {
	res, err := c.get(ctx, "/version", nil)
	if err != nil {
		return "", err
	}
	v := first(res, "version", "api_version").String()
	if v == "" && res.Type == gjson.String {
		v = res.String()
	}
	if v == "" {
		return "", fmt.Errorf("/version: no version in response")
	}
	return v, nil
}

// CheckCompatible accepts versions with the same major version as
// MinAPIVersion that are not older than it.
func CheckCompatible(version string) error {
	v := normalizeSemver(version)
	if !semver.IsValid(v) {
		return fmt.Errorf("%w: %q is not a semantic version",
			ErrIncompatibleAPI, version)
	}
	if semver.Major(v) != semver.Major(MinAPIVersion) {
		return fmt.Errorf("%w: %s, need %s.x",
			ErrIncompatibleAPI, v, semver.Major(MinAPIVersion))
	}
	if semver.Compare(v, MinAPIVersion) < 0 {
		return fmt.Errorf("%w: %s is older than %s",
			ErrIncompatibleAPI, v, MinAPIVersion)
	}
	return nil
}

func normalizeSemver(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
