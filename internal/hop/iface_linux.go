//go:build linux

package hop

import (
	"fmt"

	"github.com/vishvananda/netlink"
)

// defaultRouteIface returns the interface carrying the IPv4 default
// route, preferring the lowest-priority (most specific) default entry
// as the kernel would.
func defaultRouteIface() (string, error) {
	routes, err := netlink.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return "", fmt.Errorf("hop: list routes: %w", err)
	}

	for _, route := range routes {
		// A nil or zero-prefix destination marks the default route.
		if route.Dst != nil {
			if ones, _ := route.Dst.Mask.Size(); ones != 0 {
				continue
			}
		}
		link, err := netlink.LinkByIndex(route.LinkIndex)
		if err != nil {
			return "", fmt.Errorf("hop: resolve link %d: %w", route.LinkIndex, err)
		}
		return link.Attrs().Name, nil
	}
	return "", fmt.Errorf("hop: no default route found")
}
