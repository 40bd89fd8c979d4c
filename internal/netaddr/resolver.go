// Package netaddr finds the address other machines on the LAN can use to reach
// this host. Persisted raster URLs embed it, so resolution never falls back to
// loopback: a save without a reachable address must fail.
package netaddr

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/lehigh-university-libraries/aidalocal/internal/models"
)

// Resolver returns the host address to embed in externally visible URLs.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// Interface is the subset of net.Interface the resolver needs.
type Interface struct {
	Name  string
	Flags net.Flags
	Addrs []net.Addr
}

// LANResolver picks the first IPv4 address of an interface that is up and not
// loopback, in interface enumeration order.
type LANResolver struct {
	interfaces func() ([]Interface, error)
}

func NewLANResolver() *LANResolver {
	return &LANResolver{interfaces: systemInterfaces}
}

func (r *LANResolver) Resolve(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ifaces, err := r.interfaces()
	if err != nil {
		return "", fmt.Errorf("%w: failed to list network interfaces: %w", models.ErrResolution, err)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		for _, addr := range iface.Addrs {
			if ip := ipv4(addr); ip != nil && !ip.IsLoopback() && !ip.IsUnspecified() {
				return ip.String(), nil
			}
		}
	}

	return "", fmt.Errorf("%w: no non-loopback IPv4 address found", models.ErrResolution)
}

func ipv4(addr net.Addr) net.IP {
	var ip net.IP
	switch a := addr.(type) {
	case *net.IPNet:
		ip = a.IP
	case *net.IPAddr:
		ip = a.IP
	default:
		return nil
	}
	return ip.To4()
}

func systemInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	result := make([]Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			return nil, fmt.Errorf("failed to read addresses of %s: %w", iface.Name, err)
		}
		result = append(result, Interface{Name: iface.Name, Flags: iface.Flags, Addrs: addrs})
	}
	return result, nil
}

// StaticResolver returns a configured host, for machines reachable through an
// address no local interface carries (NAT, DNS name).
type StaticResolver struct {
	Host string
}

func (r StaticResolver) Resolve(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := ValidateHost(r.Host); err != nil {
		return "", err
	}
	return r.Host, nil
}

// ValidateHost accepts a bare host name or IP address. Anything that carries
// a port, scheme, path or brackets would produce unreachable URLs once the
// service port is appended, so it is rejected.
func ValidateHost(host string) error {
	if host == "" {
		return fmt.Errorf("%w: no public host configured", models.ErrResolution)
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	if strings.ContainsAny(host, ":/[]@?# \t") {
		return fmt.Errorf("%w: public host %q must be a host name or IP address without port or scheme", models.ErrResolution, host)
	}
	return nil
}

// New returns a StaticResolver when publicHost is set and a LANResolver otherwise.
func New(publicHost string) Resolver {
	if publicHost != "" {
		return StaticResolver{Host: publicHost}
	}
	return NewLANResolver()
}
