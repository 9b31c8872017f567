// Package common holds validation and normalization helpers shared by every
// resource kind in pkg/resources/*. The Planner does not call them: its diff
// compares property values as they are.
package common

import (
	"fmt"
	"net"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var hostnamePattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// ValidateHostname enforces spec.md's ^[A-Za-z0-9-]+$ hostname rule.
func ValidateHostname(name string) error {
	if !hostnamePattern.MatchString(name) {
		return fmt.Errorf("hostname %q does not match ^[A-Za-z0-9-]+$", name)
	}
	return nil
}

// ValidateVLANTag enforces tag ∈ [1, 4094].
func ValidateVLANTag(tag int) error {
	if tag < 1 || tag > 4094 {
		return fmt.Errorf("vlan tag %d out of range [1, 4094]", tag)
	}
	return nil
}

// ValidatePort enforces port ∈ [1, 65535].
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d out of range [1, 65535]", port)
	}
	return nil
}

// ValidateIP requires an RFC-compliant IPv4 or IPv6 address.
func ValidateIP(s string) error {
	if net.ParseIP(s) == nil {
		return fmt.Errorf("%q is not a valid IPv4/IPv6 address", s)
	}
	return nil
}

// NormalizeIP canonicalizes an IP address string (e.g. leading zero / mixed
// case IPv6 forms) to the net package's canonical String() form. Invalid
// input is returned unchanged so callers can surface their own error.
func NormalizeIP(s string) string {
	ip := net.ParseIP(s)
	if ip == nil {
		return s
	}
	return ip.String()
}

var macPattern = regexp.MustCompile(`^[0-9A-Fa-f]{2}(:[0-9A-Fa-f]{2}){5}$`)

// NormalizeMAC lower-cases a MAC address to xx:xx:xx:xx:xx:xx. Returns an
// error if s is not a 6-octet colon-separated MAC.
func NormalizeMAC(s string) (string, error) {
	if !macPattern.MatchString(s) {
		return "", fmt.Errorf("%q is not a MAC address of the form xx:xx:xx:xx:xx:xx", s)
	}
	return strings.ToLower(s), nil
}

// NormalizeBool accepts a bool, or the strings "1"/"0"/"true"/"false", and
// returns the canonical Go bool plus whether the input was recognized.
func NormalizeBool(v interface{}) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch t {
		case "1", "true", "TRUE", "True":
			return true, true
		case "0", "false", "FALSE", "False":
			return false, true
		}
	case float64:
		return t != 0, true
	}
	return false, false
}

// HAProxyBalanceModes is the closed set of valid HAProxy balance algorithms.
var HAProxyBalanceModes = map[string]bool{
	"roundrobin": true,
	"static-rr":  true,
	"leastconn":  true,
	"source":     true,
	"uri":        true,
	"url_param":  true,
}

// ValidateHAProxyBalance enforces the closed balance-algorithm set.
func ValidateHAProxyBalance(mode string) error {
	if !HAProxyBalanceModes[mode] {
		return fmt.Errorf("balance %q not in closed set %v", mode, sortedKeys(HAProxyBalanceModes))
	}
	return nil
}

// HAProxyModes is the closed set of valid HAProxy frontend/backend modes.
var HAProxyModes = map[string]bool{"http": true, "tcp": true}

// ValidateHAProxyMode enforces mode ∈ {http, tcp}.
func ValidateHAProxyMode(mode string) error {
	if !HAProxyModes[mode] {
		return fmt.Errorf("mode %q not in {http, tcp}", mode)
	}
	return nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsSecurityRelevant reports whether a firewall rule's action/source/dest
// combination should raise the spec's "security-relevant property" warning:
// action=pass, source=any, destination=any.
func IsSecurityRelevant(action, source, destination string) bool {
	return action == "pass" && source == "any" && destination == "any"
}

// AsString extracts a string from a properties map, defaulting to "" when
// absent or of the wrong type. Resource kinds decode their typed fields from
// map[string]interface{} (the wire shape accepted by the Registry's CUE
// validation) using these accessors rather than a full struct round-trip,
// since CUE has already enforced shape by the time Construct calls Validate.
func AsString(props map[string]interface{}, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// AsInt extracts an int from a properties map (JSON numbers decode as
// float64 through encoding/json, so both representations are accepted).
func AsInt(props map[string]interface{}, key string) (int, bool) {
	v, ok := props[key]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return t, true
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// AsBool extracts a bool from a properties map, accepting the normalized
// forms NormalizeBool understands.
func AsBool(props map[string]interface{}, key string) (bool, bool) {
	v, ok := props[key]
	if !ok {
		return false, false
	}
	return NormalizeBool(v)
}
