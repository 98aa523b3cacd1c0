package ec2

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// Resource ids follow the AWS convention of a type prefix plus random
// lower-case hex. The prefix is how ResourcesExist and the route target
// resolver dispatch on id strings, so every generator here must stay in
// sync with the dispatch tables in backend.go and route_table.go.
const (
	idPrefixVPC             = "vpc"
	idPrefixSubnet          = "subnet"
	idPrefixSecurityGroup   = "sg"
	idPrefixSecurityRule    = "sgr"
	idPrefixInternetGateway = "igw"
	idPrefixEgressOnlyGW    = "eigw"
	idPrefixCarrierGateway  = "cagw"
	idPrefixRouteTable      = "rtb"
	idPrefixRTBAssociation  = "rtbassoc"
	idPrefixDHCPOptions     = "dopt"
	idPrefixPeering         = "pcx"
	idPrefixENI             = "eni"
	idPrefixENIAttachment   = "eni-attach"
	idPrefixNatGateway      = "nat"
	idPrefixEndpoint        = "vpce"
	idPrefixEndpointService = "vpce-svc"
	idPrefixPrefixList      = "pl"
	idPrefixTransitGateway  = "tgw"
	idPrefixTGWRouteTable   = "tgw-rtb"
	idPrefixTGWAttachment   = "tgw-attach"
	idPrefixVPNGateway      = "vgw"
	idPrefixVPNConnection   = "vpn"
	idPrefixCustomerGW      = "cgw"
	idPrefixNetworkACL      = "acl"
	idPrefixNACLAssociation = "aclassoc"
	idPrefixCIDRAssociation = "vpc-cidr-assoc"
	idPrefixFlowLog         = "fl"
)

const hexDigits = "0123456789abcdef"

func randomHex(size int) string {
	var b strings.Builder
	b.Grow(size)
	for i := 0; i < size; i++ {
		b.WriteByte(hexDigits[rand.IntN(16)])
	}
	return b.String()
}

// newID builds a type-prefixed resource id, e.g. "vpc-0f3a9c...".
func newID(prefix string) string {
	return prefix + "-" + randomHex(17)
}

// routeID identifies a route within a route table. Routes have no id of
// their own in the API, so the composite of table id and destination is
// used everywhere a route must be named.
func routeID(routeTableID, destination string) string {
	return routeTableID + "~" + destination
}

// splitRouteID is the inverse of routeID.
func splitRouteID(id string) (routeTableID, destination string, ok bool) {
	routeTableID, destination, ok = strings.Cut(id, "~")
	return
}

// idPrefix extracts the type prefix from a resource id, e.g.
// "tgw-attach-0abc" -> "tgw-attach". Composite prefixes are matched
// longest-first.
func idPrefix(id string) string {
	i := strings.LastIndex(id, "-")
	if i < 0 {
		return id
	}
	return id[:i]
}

// randomPublicIP picks an address out of 54.214.0.0/16, which is within
// a real EC2 public range.
func randomPublicIP() string {
	return fmt.Sprintf("54.214.%d.%d", rand.IntN(256), rand.IntN(256))
}

// randomIPv6CIDR returns an amazon-provided style IPv6 /56 block.
func randomIPv6CIDR() string {
	return fmt.Sprintf("2400:6500:%s:%s00::/56", randomHex(4), randomHex(2))
}

// randomMAC returns a locally-administered unicast MAC address.
func randomMAC() string {
	return fmt.Sprintf("02:%s:%s:%s:%s:%s",
		randomHex(2), randomHex(2), randomHex(2), randomHex(2), randomHex(2))
}
