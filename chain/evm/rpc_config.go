package evm

import (
	"errors"
	"fmt"
	"strings"
)

// URLSchemePreference defines URL scheme preferences for RPC connections.
type URLSchemePreference int

const (
	URLSchemePreferenceNone URLSchemePreference = iota
	URLSchemePreferenceWS
	URLSchemePreferenceHTTP
)

// URLSchemePreferenceFromString converts "ws", "http" or "" to a URLSchemePreference.
func URLSchemePreferenceFromString(s string) (URLSchemePreference, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return URLSchemePreferenceNone, nil
	case "ws", "wss":
		return URLSchemePreferenceWS, nil
	case "http", "https":
		return URLSchemePreferenceHTTP, nil
	default:
		return URLSchemePreferenceNone, fmt.Errorf("invalid URL scheme preference %q", s)
	}
}

// RPC represents a single RPC endpoint configuration.
type RPC struct {
	Name               string
	WSURL              string
	HTTPURL            string
	PreferredURLScheme URLSchemePreference
}

// ToEndpoint returns the URL to dial. HTTP wins unless WS is preferred.
func (r RPC) ToEndpoint() (string, error) {
	switch {
	case r.PreferredURLScheme == URLSchemePreferenceWS && r.WSURL != "":
		return r.WSURL, nil
	case r.HTTPURL != "":
		return r.HTTPURL, nil
	case r.WSURL != "":
		return r.WSURL, nil
	default:
		return "", errors.New("RPC has no endpoint")
	}
}

// RPCConfig is the configuration of a chain: its ID and the RPCs to dial, primary first.
type RPCConfig struct {
	ChainID uint64
	RPCs    []RPC
}
