package ec2

import (
	"fmt"
	"net/netip"
	"sort"
)

// AWS reserves the network address, the first three host addresses and
// the broadcast address of every subnet.
const reservedAddressesPerSubnet = 5

// ipAllocator hands out host addresses within one subnet. Released
// addresses go to a reuse pool that is drained before fresh addresses
// are taken, so churn does not exhaust the block.
type ipAllocator struct {
	prefix netip.Prefix
	next   uint32
	free   []netip.Addr
	used   map[netip.Addr]string
}

func newIPAllocator(prefix netip.Prefix) *ipAllocator {
	return &ipAllocator{
		prefix: prefix,
		// Offsets 0-3 (network plus three reserved hosts) are never
		// handed out.
		next: 4,
		used: make(map[netip.Addr]string),
	}
}

// Allocate returns the next free address, preferring previously released
// ones. owner records who holds the address, for diagnostics.
func (a *ipAllocator) Allocate(owner string) (netip.Addr, error) {
	for len(a.free) > 0 {
		addr := a.free[len(a.free)-1]
		a.free = a.free[:len(a.free)-1]
		if _, taken := a.used[addr]; !taken {
			a.used[addr] = owner
			return addr, nil
		}
	}
	broadcast := broadcastAddr(a.prefix)
	for a.next < prefixSize(a.prefix) {
		addr := addrAt(a.prefix, a.next)
		a.next++
		if addr == broadcast {
			break
		}
		if _, taken := a.used[addr]; !taken {
			a.used[addr] = owner
			return addr, nil
		}
	}
	return netip.Addr{}, apiErrorf("InsufficientFreeAddressesInSubnet",
		"There are not enough free addresses in subnet %s", a.prefix)
}

// Request reserves a specific address within the subnet.
func (a *ipAllocator) Request(addr netip.Addr, owner string) error {
	if !a.prefix.Contains(addr) {
		return invalidParameterValue("%s does not lie within subnet CIDR %s", addr, a.prefix)
	}
	off := ipv4ToUint(addr) - ipv4ToUint(a.prefix.Masked().Addr())
	if off < 4 || addr == broadcastAddr(a.prefix) {
		return invalidParameterValue("The address %s is reserved", addr)
	}
	if _, taken := a.used[addr]; taken {
		return apiErrorf("InvalidIPAddress.InUse", "The address %s is in use.", addr)
	}
	a.used[addr] = owner
	return nil
}

// Release returns an address to the reuse pool. Releasing an address that
// was never allocated is a no-op.
func (a *ipAllocator) Release(addr netip.Addr) {
	if _, taken := a.used[addr]; !taken {
		return
	}
	delete(a.used, addr)
	a.free = append(a.free, addr)
}

// Available returns the number of addresses still allocatable.
func (a *ipAllocator) Available() uint32 {
	return prefixSize(a.prefix) - reservedAddressesPerSubnet - uint32(len(a.used))
}

// Subnet is one subnet of a VPC, tied to a single availability zone.
type Subnet struct {
	ID                          string `json:"subnet_id"`
	VPCID                       string `json:"vpc_id"`
	CIDRBlock                   string `json:"cidr_block"`
	AvailabilityZone            string `json:"availability_zone"`
	AvailabilityZoneID          string `json:"availability_zone_id"`
	State                       string `json:"state"`
	DefaultForAZ                bool   `json:"default_for_az"`
	MapPublicIPOnLaunch         bool   `json:"map_public_ip_on_launch"`
	AssignIPv6AddressOnCreation bool   `json:"assign_ipv6_address_on_creation"`
	OwnerID                     string `json:"owner_id"`
	Tags                        TagSet `json:"tags"`

	prefix netip.Prefix
	ips    *ipAllocator
}

func (s *Subnet) tagSet() TagSet { return s.Tags }

// AvailableIPAddressCount reports how many addresses the subnet can still
// hand out.
func (s *Subnet) AvailableIPAddressCount() uint32 {
	return s.ips.Available()
}

var subnetFilters = filterTable[*Subnet]{
	"subnet-id": func(s *Subnet) []string { return []string{s.ID} },
	"vpc-id":    func(s *Subnet) []string { return []string{s.VPCID} },
	"cidr":      func(s *Subnet) []string { return []string{s.CIDRBlock} },
	"cidr-block": func(s *Subnet) []string {
		return []string{s.CIDRBlock}
	},
	"cidrBlock": func(s *Subnet) []string {
		return []string{s.CIDRBlock}
	},
	"availability-zone": func(s *Subnet) []string {
		return []string{s.AvailabilityZone}
	},
	"availability-zone-id": func(s *Subnet) []string {
		return []string{s.AvailabilityZoneID}
	},
	"state": func(s *Subnet) []string { return []string{s.State} },
	"default-for-az": func(s *Subnet) []string {
		return []string{boolStr(s.DefaultForAZ)}
	},
	"map-public-ip-on-launch": func(s *Subnet) []string {
		return []string{boolStr(s.MapPublicIPOnLaunch)}
	},
	"available-ip-address-count": func(s *Subnet) []string {
		return []string{fmt.Sprint(s.AvailableIPAddressCount())}
	},
	"owner-id": func(s *Subnet) []string { return []string{s.OwnerID} },
}

// CreateSubnetInput carries the parameters of CreateSubnet.
// AvailabilityZone takes a zone name or a zone id; empty selects the
// region's first zone.
type CreateSubnetInput struct {
	VPCID            string            `json:"vpc_id"`
	CIDRBlock        string            `json:"cidr_block"`
	AvailabilityZone string            `json:"availability_zone,omitempty"`
	Tags             map[string]string `json:"tags,omitempty"`
}

// CreateSubnet creates a subnet. The CIDR must lie within one of the
// VPC's associated IPv4 blocks and must not overlap a sibling subnet.
func (b *Backend) CreateSubnet(in CreateSubnetInput) (*Subnet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createSubnet(in)
}

func (b *Backend) createSubnet(in CreateSubnetInput) (*Subnet, error) {
	vpc, err := b.getVPC(in.VPCID)
	if err != nil {
		return nil, err
	}
	prefix, err := netip.ParsePrefix(in.CIDRBlock)
	if err != nil || !prefix.Addr().Is4() {
		return nil, invalidParameterValue(
			"Value (%s) for parameter cidrBlock is invalid. This is not a valid CIDR block.", in.CIDRBlock)
	}
	prefix = prefix.Masked()
	if prefix.Bits() < 16 || prefix.Bits() > 28 {
		return nil, apiErrorf("InvalidSubnet.Range", "The CIDR '%s' is invalid.", in.CIDRBlock)
	}

	within := false
	for _, cidr := range vpc.associatedCIDRs(false) {
		vp, perr := netip.ParsePrefix(cidr)
		if perr == nil && prefixWithin(vp, prefix) {
			within = true
			break
		}
	}
	if !within {
		return nil, apiErrorf("InvalidSubnet.Range", "The CIDR '%s' is invalid.", in.CIDRBlock)
	}
	for _, sibling := range b.subnets {
		if sibling.VPCID == vpc.ID && prefixesOverlap(sibling.prefix, prefix) {
			return nil, apiErrorf("InvalidSubnet.Conflict",
				"The CIDR '%s' conflicts with another subnet", in.CIDRBlock)
		}
	}
	zone, err := resolveZone(b.Region, in.AvailabilityZone)
	if err != nil {
		return nil, err
	}

	// The first subnet a VPC places in an availability zone is the
	// default for that zone and auto-assigns public addresses.
	defaultForAZ := true
	for _, sibling := range b.subnets {
		if sibling.VPCID == vpc.ID && sibling.AvailabilityZone == zone.Name {
			defaultForAZ = false
			break
		}
	}

	subnet := &Subnet{
		ID:                  newID(idPrefixSubnet),
		VPCID:               vpc.ID,
		CIDRBlock:           prefix.String(),
		AvailabilityZone:    zone.Name,
		AvailabilityZoneID:  zone.ID,
		State:               "available",
		DefaultForAZ:        defaultForAZ,
		MapPublicIPOnLaunch: defaultForAZ,
		OwnerID:             b.AccountID,
		Tags:                TagSet{},
		prefix:              prefix,
		ips:                 newIPAllocator(prefix),
	}
	subnet.Tags.Merge(in.Tags)
	b.subnets[subnet.ID] = subnet
	b.associateDefaultNetworkACL(subnet)
	return subnet, nil
}

// GetSubnet returns the subnet with the given id.
func (b *Backend) GetSubnet(id string) (*Subnet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getSubnet(id)
}

func (b *Backend) getSubnet(id string) (*Subnet, error) {
	subnet, ok := b.subnets[id]
	if !ok {
		return nil, notFoundSubnet(id)
	}
	return subnet, nil
}

// DescribeSubnets returns the subnets matching the given ids and filters.
func (b *Backend) DescribeSubnets(ids []string, filters Filters) ([]*Subnet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matches []*Subnet
	if len(ids) > 0 {
		for _, id := range ids {
			subnet, err := b.getSubnet(id)
			if err != nil {
				return nil, err
			}
			matches = append(matches, subnet)
		}
	} else {
		matches = sortedByID(b.subnets)
	}
	return applyFilters("DescribeSubnets", filters, subnetFilters, matches)
}

// DeleteSubnet deletes a subnet. Network interfaces in the subnet block
// deletion.
func (b *Backend) DeleteSubnet(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.getSubnet(id); err != nil {
		return err
	}
	for _, eni := range b.enis {
		if eni.SubnetID == id {
			return dependencyViolation(
				"The subnet '%s' has dependencies and cannot be deleted.", id)
		}
	}
	for _, rt := range b.routeTables {
		for _, assoc := range rt.Associations {
			if assoc.SubnetID == id {
				delete(rt.Associations, assoc.ID)
			}
		}
	}
	for _, acl := range b.networkACLs {
		for assocID, subnetID := range acl.Associations {
			if subnetID == id {
				delete(acl.Associations, assocID)
			}
		}
	}
	delete(b.subnets, id)
	return nil
}

// ModifySubnetAttribute sets map-public-ip-on-launch or
// assign-ipv6-address-on-creation.
func (b *Backend) ModifySubnetAttribute(subnetID, attribute string, value bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	subnet, err := b.getSubnet(subnetID)
	if err != nil {
		return err
	}
	switch attribute {
	case "MapPublicIpOnLaunch":
		subnet.MapPublicIPOnLaunch = value
	case "AssignIpv6AddressOnCreation":
		subnet.AssignIPv6AddressOnCreation = value
	default:
		return invalidParameterValue(
			"Value (%s) for parameter attribute is invalid. Unknown attribute.", attribute)
	}
	return nil
}

// subnetsByZone groups a VPC's subnets by availability zone name, each
// group sorted by CIDR for stable output.
func (b *Backend) subnetsByZone(vpcID string) map[string][]*Subnet {
	out := make(map[string][]*Subnet)
	for _, s := range b.subnets {
		if s.VPCID == vpcID {
			out[s.AvailabilityZone] = append(out[s.AvailabilityZone], s)
		}
	}
	for _, group := range out {
		sort.Slice(group, func(i, j int) bool { return group[i].CIDRBlock < group[j].CIDRBlock })
	}
	return out
}
