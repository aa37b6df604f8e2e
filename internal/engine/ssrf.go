package engine

import (
	"context"
	"fmt"
	"net"
	"net/netip"
)

// blockedRanges are address ranges a scrape target may never resolve to:
// loopback, link-local, RFC-1918 private space, and CGNAT.
var blockedRanges = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("0.0.0.0/8"),
}

// checkTargetAddress resolves the host and rejects it when any resolved
// address falls in a blocked range.
func checkTargetAddress(ctx context.Context, host string) error {
	if addr, err := netip.ParseAddr(host); err == nil {
		return checkAddr(addr)
	}

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		// Resolution failures surface later as connection errors; the
		// guard only rejects what it can prove is internal.
		return nil
	}
	for _, ip := range ips {
		addr, ok := netip.AddrFromSlice(ip.IP)
		if !ok {
			continue
		}
		if err := checkAddr(addr.Unmap()); err != nil {
			return err
		}
	}
	return nil
}

func checkAddr(addr netip.Addr) error {
	for _, p := range blockedRanges {
		if p.Contains(addr) {
			return fmt.Errorf("address %s is in blocked range %s", addr, p)
		}
	}
	return nil
}
