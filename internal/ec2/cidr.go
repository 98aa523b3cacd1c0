package ec2

import (
	"encoding/binary"
	"net/netip"
)

// parseCIDR parses an IPv4 or IPv6 CIDR in canonical (masked) form.
func parseCIDR(s string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, invalidParameterValue("CIDR block %s is malformed", s)
	}
	return p.Masked(), nil
}

// prefixesOverlap reports whether two prefixes share any address.
func prefixesOverlap(a, b netip.Prefix) bool {
	return a.Contains(b.Addr()) || b.Contains(a.Addr())
}

// prefixWithin reports whether inner is fully contained in outer.
func prefixWithin(outer, inner netip.Prefix) bool {
	return outer.Contains(inner.Addr()) && inner.Bits() >= outer.Bits()
}

// ipv4ToUint returns the address as a big-endian uint32. Only valid for
// IPv4 addresses.
func ipv4ToUint(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

func uintToIPv4(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}

// addrAt returns the n-th address of an IPv4 prefix, counting the network
// address as 0.
func addrAt(p netip.Prefix, n uint32) netip.Addr {
	return uintToIPv4(ipv4ToUint(p.Masked().Addr()) + n)
}

// broadcastAddr returns the highest address of an IPv4 prefix.
func broadcastAddr(p netip.Prefix) netip.Addr {
	size := uint32(1) << (32 - p.Bits())
	return addrAt(p, size-1)
}

// prefixSize returns the total address count of an IPv4 prefix.
func prefixSize(p netip.Prefix) uint32 {
	return uint32(1) << (32 - p.Bits())
}
