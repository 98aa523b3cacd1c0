// Package ec2 implements an in-memory emulation of the EC2 virtual
// networking resource graph: VPCs, subnets, routing, security groups,
// gateways, peering, endpoints, prefix lists and transit gateways. One
// Backend holds the state of a single (account, region) pair; backends
// are created lazily through a Directory.
package ec2

import (
	"maps"
	"slices"
	"strings"
	"sync"
)

// Backend is the resource store of one (account, region) pair. All
// exported operations are safe for concurrent use; a single mutex guards
// the whole graph so cross-resource invariants hold without ordering
// rules between stores.
type Backend struct {
	AccountID string
	Region    string

	mu  sync.Mutex
	dir *Directory

	vpcs               map[string]*VPC
	subnets            map[string]*Subnet
	routeTables        map[string]*RouteTable
	securityGroups     map[string]*SecurityGroup
	enis               map[string]*NetworkInterface
	internetGateways   map[string]*InternetGateway
	egressOnlyGateways map[string]*EgressOnlyInternetGateway
	carrierGateways    map[string]*CarrierGateway
	vpnGateways        map[string]*VPNGateway
	vpnConnections     map[string]*VPNConnection
	customerGateways   map[string]*CustomerGateway
	natGateways        map[string]*NatGateway
	dhcpOptionSets     map[string]*DHCPOptionSet
	endpoints          map[string]*VPCEndpoint
	endpointServices   map[string]*EndpointService
	prefixLists        map[string]*ManagedPrefixList
	transitGateways    map[string]*TransitGateway
	tgwRouteTables     map[string]*TransitGatewayRouteTable
	tgwAttachments     map[string]*TransitGatewayAttachment
	networkACLs        map[string]*NetworkACL

	defaultDHCPOptionsID string
}

func newBackend(dir *Directory, accountID, region string) *Backend {
	b := &Backend{
		AccountID: accountID,
		Region:    region,
		dir:       dir,
	}
	b.reset()
	return b
}

// reset reinitializes every store and recreates the region defaults:
// the default DHCP option set, the default VPC with its subnets, the
// AWS-managed prefix lists and the default endpoint services.
func (b *Backend) reset() {
	b.vpcs = make(map[string]*VPC)
	b.subnets = make(map[string]*Subnet)
	b.routeTables = make(map[string]*RouteTable)
	b.securityGroups = make(map[string]*SecurityGroup)
	b.enis = make(map[string]*NetworkInterface)
	b.internetGateways = make(map[string]*InternetGateway)
	b.egressOnlyGateways = make(map[string]*EgressOnlyInternetGateway)
	b.carrierGateways = make(map[string]*CarrierGateway)
	b.vpnGateways = make(map[string]*VPNGateway)
	b.vpnConnections = make(map[string]*VPNConnection)
	b.customerGateways = make(map[string]*CustomerGateway)
	b.natGateways = make(map[string]*NatGateway)
	b.dhcpOptionSets = make(map[string]*DHCPOptionSet)
	b.endpoints = make(map[string]*VPCEndpoint)
	b.endpointServices = make(map[string]*EndpointService)
	b.prefixLists = make(map[string]*ManagedPrefixList)
	b.transitGateways = make(map[string]*TransitGateway)
	b.tgwRouteTables = make(map[string]*TransitGatewayRouteTable)
	b.tgwAttachments = make(map[string]*TransitGatewayAttachment)
	b.networkACLs = make(map[string]*NetworkACL)

	b.defaultDHCPOptionsID = b.createDefaultDHCPOptions().ID
	b.createAWSManagedPrefixLists()
	b.createDefaultEndpointServices()
	b.ensureDefaultVPC()
}

// Reset wipes the backend back to its freshly-created state.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

// sortedByID returns a map's values ordered by their id key.
func sortedByID[T any](m map[string]*T) []*T {
	out := make([]*T, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out = append(out, m[k])
	}
	return out
}

// sortedKeys returns a map's keys in sorted order.
func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// taggedResource resolves a resource id to its tag set and resource
// type, across every store.
func (b *Backend) taggedResource(id string) (TagSet, string, error) {
	if v, ok := b.vpcs[id]; ok {
		return v.Tags, "vpc", nil
	}
	if s, ok := b.subnets[id]; ok {
		return s.Tags, "subnet", nil
	}
	if rt, ok := b.routeTables[id]; ok {
		return rt.Tags, "route-table", nil
	}
	if g, ok := b.securityGroups[id]; ok {
		return g.Tags, "security-group", nil
	}
	if e, ok := b.enis[id]; ok {
		return e.Tags, "network-interface", nil
	}
	if g, ok := b.internetGateways[id]; ok {
		return g.Tags, "internet-gateway", nil
	}
	if g, ok := b.egressOnlyGateways[id]; ok {
		return g.Tags, "egress-only-internet-gateway", nil
	}
	if g, ok := b.carrierGateways[id]; ok {
		return g.Tags, "carrier-gateway", nil
	}
	if g, ok := b.vpnGateways[id]; ok {
		return g.Tags, "vpn-gateway", nil
	}
	if c, ok := b.vpnConnections[id]; ok {
		return c.Tags, "vpn-connection", nil
	}
	if g, ok := b.customerGateways[id]; ok {
		return g.Tags, "customer-gateway", nil
	}
	if n, ok := b.natGateways[id]; ok {
		return n.Tags, "natgateway", nil
	}
	if d, ok := b.dhcpOptionSets[id]; ok {
		return d.Tags, "dhcp-options", nil
	}
	if ep, ok := b.endpoints[id]; ok {
		return ep.Tags, "vpc-endpoint", nil
	}
	if s, ok := b.endpointServices[id]; ok {
		return s.Tags, "vpc-endpoint-service", nil
	}
	if p, ok := b.prefixLists[id]; ok {
		return p.Tags, "prefix-list", nil
	}
	if t, ok := b.transitGateways[id]; ok {
		return t.Tags, "transit-gateway", nil
	}
	if rt, ok := b.tgwRouteTables[id]; ok {
		return rt.Tags, "transit-gateway-route-table", nil
	}
	if a, ok := b.tgwAttachments[id]; ok {
		return a.Tags, "transit-gateway-attachment", nil
	}
	if a, ok := b.networkACLs[id]; ok {
		return a.Tags, "network-acl", nil
	}
	if p, err := b.dir.peerings.get(id); err == nil && p.visibleTo(b.AccountID, b.Region) {
		return p.Tags, "vpc-peering-connection", nil
	}
	return nil, "", invalidParameterValue("The resource ID '%s' does not exist", id)
}

// CreateTags applies the given tags to each resource.
func (b *Backend) CreateTags(resourceIDs []string, tags map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range resourceIDs {
		set, _, err := b.taggedResource(id)
		if err != nil {
			return err
		}
		set.Merge(tags)
	}
	return nil
}

// DeleteTags removes tags from each resource. An empty value deletes the
// key unconditionally; a non-empty value deletes only an exact match.
func (b *Backend) DeleteTags(resourceIDs []string, tags map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range resourceIDs {
		set, _, err := b.taggedResource(id)
		if err != nil {
			return err
		}
		for k, v := range tags {
			set.Delete(k, v)
		}
	}
	return nil
}

// DescribeTags lists tags across all resources, optionally filtered by
// resource-id, resource-type, key and value.
func (b *Backend) DescribeTags(filters Filters) ([]Tag, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	type taggedEntry struct {
		id, resourceType string
		tags             TagSet
	}
	var entries []taggedEntry
	collect := func(id string) {
		set, typ, err := b.taggedResource(id)
		if err == nil && len(set) > 0 {
			entries = append(entries, taggedEntry{id: id, resourceType: typ, tags: set})
		}
	}
	for _, m := range [][]string{
		sortedKeys(b.vpcs), sortedKeys(b.subnets), sortedKeys(b.routeTables),
		sortedKeys(b.securityGroups), sortedKeys(b.enis), sortedKeys(b.internetGateways),
		sortedKeys(b.egressOnlyGateways), sortedKeys(b.carrierGateways),
		sortedKeys(b.vpnGateways), sortedKeys(b.vpnConnections), sortedKeys(b.customerGateways),
		sortedKeys(b.natGateways), sortedKeys(b.dhcpOptionSets), sortedKeys(b.endpoints),
		sortedKeys(b.endpointServices), sortedKeys(b.prefixLists), sortedKeys(b.transitGateways),
		sortedKeys(b.tgwRouteTables), sortedKeys(b.tgwAttachments), sortedKeys(b.networkACLs),
	} {
		for _, id := range m {
			collect(id)
		}
	}
	for _, p := range b.dir.peerings.listFor(b.AccountID, b.Region) {
		if len(p.Tags) > 0 {
			entries = append(entries, taggedEntry{id: p.ID, resourceType: "vpc-peering-connection", tags: p.Tags})
		}
	}

	var out []Tag
	for _, e := range entries {
		for _, tag := range e.tags.List() {
			if values, ok := filters["resource-id"]; ok && !matchAnyPattern(values, []string{e.id}) {
				continue
			}
			if values, ok := filters["resource-type"]; ok && !matchAnyPattern(values, []string{e.resourceType}) {
				continue
			}
			if values, ok := filters["key"]; ok && !matchAnyPattern(values, []string{tag.Key}) {
				continue
			}
			if values, ok := filters["value"]; ok && !matchAnyPattern(values, []string{tag.Value}) {
				continue
			}
			out = append(out, Tag{Key: tag.Key, Value: tag.Value, ResourceID: e.id})
		}
	}
	return out, nil
}

// ResourcesExist checks that every id names an existing resource,
// dispatching on the id's type prefix. The first missing resource is
// returned as its type's not-found error.
func (b *Backend) ResourcesExist(ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range ids {
		if err := b.resourceExists(id); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) resourceExists(id string) error {
	// Longest prefixes first so "tgw-attach" wins over "tgw".
	switch {
	case strings.HasPrefix(id, idPrefixCIDRAssociation+"-"):
		for _, vpc := range b.vpcs {
			for _, a := range vpc.CIDRAssociations {
				if a.ID == id {
					return nil
				}
			}
		}
		return notFoundCIDRAssociation(id)
	case strings.HasPrefix(id, idPrefixENIAttachment+"-"):
		for _, eni := range b.enis {
			if eni.Attachment != nil && eni.Attachment.ID == id {
				return nil
			}
		}
		return notFoundENIAttachment(id)
	case strings.HasPrefix(id, idPrefixTGWAttachment+"-"):
		if _, ok := b.tgwAttachments[id]; !ok {
			return notFoundTGWAttachment(id)
		}
	case strings.HasPrefix(id, idPrefixTGWRouteTable+"-"):
		if _, ok := b.tgwRouteTables[id]; !ok {
			return notFoundTGWRouteTable(id)
		}
	case strings.HasPrefix(id, idPrefixTransitGateway+"-"):
		if _, ok := b.transitGateways[id]; !ok {
			return notFoundTransitGateway(id)
		}
	case strings.HasPrefix(id, idPrefixEndpointService+"-"):
		if _, ok := b.endpointServices[id]; !ok {
			return notFoundEndpointService(id)
		}
	case strings.HasPrefix(id, idPrefixEndpoint+"-"):
		if _, ok := b.endpoints[id]; !ok {
			return notFoundEndpoint(id)
		}
	case strings.HasPrefix(id, idPrefixRTBAssociation+"-"):
		for _, rt := range b.routeTables {
			if _, ok := rt.Associations[id]; ok {
				return nil
			}
		}
		return notFoundAssociation(id)
	case strings.HasPrefix(id, idPrefixVPC+"-"):
		if _, ok := b.vpcs[id]; !ok {
			return notFoundVPC(id)
		}
	case strings.HasPrefix(id, idPrefixSubnet+"-"):
		if _, ok := b.subnets[id]; !ok {
			return notFoundSubnet(id)
		}
	case strings.HasPrefix(id, idPrefixSecurityGroup+"-"):
		if _, ok := b.securityGroups[id]; !ok {
			return notFoundSecurityGroup(id)
		}
	case strings.HasPrefix(id, idPrefixRouteTable+"-"):
		if _, ok := b.routeTables[id]; !ok {
			return notFoundRouteTable(id)
		}
	case strings.HasPrefix(id, idPrefixENI+"-"):
		if _, ok := b.enis[id]; !ok {
			return notFoundENI(id)
		}
	case strings.HasPrefix(id, idPrefixInternetGateway+"-"):
		if _, ok := b.internetGateways[id]; !ok {
			return notFoundInternetGateway(id)
		}
	case strings.HasPrefix(id, idPrefixEgressOnlyGW+"-"):
		if _, ok := b.egressOnlyGateways[id]; !ok {
			return notFoundEgressOnlyGateway(id)
		}
	case strings.HasPrefix(id, idPrefixCarrierGateway+"-"):
		if _, ok := b.carrierGateways[id]; !ok {
			return notFoundCarrierGateway(id)
		}
	case strings.HasPrefix(id, idPrefixVPNGateway+"-"):
		if _, ok := b.vpnGateways[id]; !ok {
			return notFoundVPNGateway(id)
		}
	case strings.HasPrefix(id, idPrefixVPNConnection+"-"):
		if _, ok := b.vpnConnections[id]; !ok {
			return notFoundVPNConnection(id)
		}
	case strings.HasPrefix(id, idPrefixCustomerGW+"-"):
		if _, ok := b.customerGateways[id]; !ok {
			return notFoundCustomerGateway(id)
		}
	case strings.HasPrefix(id, idPrefixNatGateway+"-"):
		if _, ok := b.natGateways[id]; !ok {
			return notFoundNatGateway(id)
		}
	case strings.HasPrefix(id, idPrefixDHCPOptions+"-"):
		if _, ok := b.dhcpOptionSets[id]; !ok {
			return notFoundDHCPOptions(id)
		}
	case strings.HasPrefix(id, idPrefixPeering+"-"):
		if _, err := b.dir.peerings.get(id); err != nil {
			return err
		}
	case strings.HasPrefix(id, idPrefixPrefixList+"-"):
		if _, ok := b.prefixLists[id]; !ok {
			return notFoundPrefixList(id)
		}
	case strings.HasPrefix(id, idPrefixNetworkACL+"-"):
		if _, ok := b.networkACLs[id]; !ok {
			return notFoundNetworkACL(id)
		}
	default:
		return invalidParameterValue("The resource ID '%s' is not recognized", id)
	}
	return nil
}
