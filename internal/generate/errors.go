package generate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sells-group/control-assist/internal/model"
	"github.com/sells-group/control-assist/internal/resilience"
)

// ConfigError means the provider cannot be built from the current
// configuration. It is never retried.
type ConfigError struct {
	Provider model.ProviderKind
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Provider == "" {
		return "generate: invalid provider configuration: " + e.Reason
	}
	return fmt.Sprintf("generate: %s provider misconfigured: %s", e.Provider, e.Reason)
}

// ConnectivityError means the provider host could not be reached.
type ConnectivityError struct {
	Provider model.ProviderKind
	Endpoint string
	Err      error
}

func (e *ConnectivityError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "generate: cannot reach %s provider", e.Provider)
	if e.Endpoint != "" {
		fmt.Fprintf(&b, " at %s", e.Endpoint)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	b.WriteString(". Likely causes: ")
	b.WriteString(strings.Join(likelyCauses(e.Provider), "; "))
	return b.String()
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

func likelyCauses(kind model.ProviderKind) []string {
	if kind == model.ProviderLocal {
		return []string{
			"the inference server is not running (start it with `ollama serve`)",
			"provider.local.base_url points at the wrong host or port",
			"a firewall or container network blocks the port",
		}
	}
	return []string{
		"no outbound network access from this host",
		"the provider base URL or region is wrong",
		"DNS cannot resolve the provider host",
		"a proxy requires configuration (HTTPS_PROXY)",
	}
}

// ShortResponseError rejects text whose normalized form is too short to be
// a usable implementation description.
type ShortResponseError struct {
	Length int
	Min    int
}

func (e *ShortResponseError) Error() string {
	return fmt.Sprintf("generate: response too short (%d characters, need more than %d)", e.Length, e.Min)
}

// classify wraps connectivity failures with an actionable message and
// leaves every other error untouched.
func classify(err error, kind model.ProviderKind, endpoint string) error {
	if err == nil {
		return nil
	}
	var ce *ConnectivityError
	if errors.As(err, &ce) {
		return err
	}
	if resilience.IsConnectivity(err) && !resilience.IsTimeout(err) {
		return &ConnectivityError{Provider: kind, Endpoint: endpoint, Err: err}
	}
	return err
}

func isConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
