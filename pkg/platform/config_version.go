package platform

import (
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// CurrentConfigVersion is the current config API version.
const CurrentConfigVersion = "v1"

// supportedConfigVersions lists the apiVersion values LoadConfig accepts.
var supportedConfigVersions = []string{CurrentConfigVersion}

// configEnvelope is a minimal struct for peeking at the apiVersion field
// without parsing the full config.
type configEnvelope struct {
	APIVersion string `yaml:"apiVersion"`
}

// PeekVersion extracts the apiVersion from raw YAML bytes.
// Returns the current version if the field is missing or empty.
func PeekVersion(data []byte) string {
	var envelope configEnvelope
	if err := yaml.Unmarshal(data, &envelope); err != nil || envelope.APIVersion == "" {
		return CurrentConfigVersion
	}
	return envelope.APIVersion
}

func checkVersion(version string) error {
	if slices.Contains(supportedConfigVersions, version) {
		return nil
	}
	return fmt.Errorf("unsupported config apiVersion %q; supported versions: %s",
		version, strings.Join(supportedConfigVersions, ", "))
}
