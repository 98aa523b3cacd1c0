package ec2

import (
	"fmt"
	"net/netip"
)

const (
	defaultVPCCIDR = "172.31.0.0/16"

	maxIPv4CIDRAssociations = 5
	maxIPv6CIDRAssociations = 1
)

// VPC is a virtual private cloud. The primary CIDR block is always the
// first entry of CIDRAssociations; further blocks are added through
// AssociateVPCCIDRBlock.
type VPC struct {
	ID                 string             `json:"vpc_id"`
	CIDRBlock          string             `json:"cidr_block"`
	State              string             `json:"state"`
	InstanceTenancy    string             `json:"instance_tenancy"`
	IsDefault          bool               `json:"is_default"`
	DHCPOptionsID      string             `json:"dhcp_options_id"`
	OwnerID            string             `json:"owner_id"`
	EnableDNSSupport   bool               `json:"enable_dns_support"`
	EnableDNSHostnames bool               `json:"enable_dns_hostnames"`
	CIDRAssociations   []*CIDRAssociation `json:"cidr_block_association_set"`
	Tags               TagSet             `json:"tags"`

	prefix netip.Prefix
}

// CIDRAssociation is one CIDR block associated with a VPC. Disassociated
// entries are kept with State "disassociated" until the association limit
// check purges them.
type CIDRAssociation struct {
	ID        string `json:"association_id"`
	CIDRBlock string `json:"cidr_block"`
	State     string `json:"state"`
	IsIPv6    bool   `json:"is_ipv6,omitempty"`
}

func (v *VPC) tagSet() TagSet { return v.Tags }

// primaryAssociation returns the association carrying the primary IPv4
// CIDR block.
func (v *VPC) primaryAssociation() *CIDRAssociation {
	for _, a := range v.CIDRAssociations {
		if !a.IsIPv6 && a.CIDRBlock == v.CIDRBlock {
			return a
		}
	}
	return nil
}

func (v *VPC) associatedCIDRs(ipv6 bool) []string {
	var out []string
	for _, a := range v.CIDRAssociations {
		if a.IsIPv6 == ipv6 && a.State != "disassociated" {
			out = append(out, a.CIDRBlock)
		}
	}
	return out
}

var vpcFilters = filterTable[*VPC]{
	"vpc-id":    func(v *VPC) []string { return []string{v.ID} },
	"cidr":      func(v *VPC) []string { return []string{v.CIDRBlock} },
	"cidr-block": func(v *VPC) []string {
		return []string{v.CIDRBlock}
	},
	"cidr-block-association.cidr-block": func(v *VPC) []string {
		return v.associatedCIDRs(false)
	},
	"cidr-block-association.association-id": func(v *VPC) []string {
		var out []string
		for _, a := range v.CIDRAssociations {
			if !a.IsIPv6 {
				out = append(out, a.ID)
			}
		}
		return out
	},
	"cidr-block-association.state": func(v *VPC) []string {
		var out []string
		for _, a := range v.CIDRAssociations {
			if !a.IsIPv6 {
				out = append(out, a.State)
			}
		}
		return out
	},
	"ipv6-cidr-block-association.ipv6-cidr-block": func(v *VPC) []string {
		return v.associatedCIDRs(true)
	},
	"ipv6-cidr-block-association.association-id": func(v *VPC) []string {
		var out []string
		for _, a := range v.CIDRAssociations {
			if a.IsIPv6 {
				out = append(out, a.ID)
			}
		}
		return out
	},
	"state":           func(v *VPC) []string { return []string{v.State} },
	"is-default":      func(v *VPC) []string { return []string{boolStr(v.IsDefault)} },
	"dhcp-options-id": func(v *VPC) []string { return []string{v.DHCPOptionsID} },
	"owner-id":        func(v *VPC) []string { return []string{v.OwnerID} },
	"instance-tenancy": func(v *VPC) []string {
		return []string{v.InstanceTenancy}
	},
}

// CreateVPCInput carries the parameters of CreateVPC.
type CreateVPCInput struct {
	CIDRBlock                   string            `json:"cidr_block"`
	InstanceTenancy             string            `json:"instance_tenancy,omitempty"`
	AmazonProvidedIPv6CIDRBlock bool              `json:"amazon_provided_ipv6_cidr_block,omitempty"`
	Tags                        map[string]string `json:"tags,omitempty"`
}

// CreateVPC creates a VPC along with its main route table, default
// security group and default network ACL.
func (b *Backend) CreateVPC(in CreateVPCInput) (*VPC, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createVPC(in, false)
}

func (b *Backend) createVPC(in CreateVPCInput, isDefault bool) (*VPC, error) {
	if in.CIDRBlock == "" {
		return nil, missingParameter("cidrBlock")
	}
	prefix, err := parseCIDR(in.CIDRBlock)
	if err != nil {
		return nil, apiErrorf("InvalidVpc.Range", "The CIDR '%s' is invalid.", in.CIDRBlock)
	}
	if !prefix.Addr().Is4() || prefix.Bits() < 16 || prefix.Bits() > 28 {
		return nil, apiErrorf("InvalidVpc.Range", "The CIDR '%s' is invalid.", in.CIDRBlock)
	}
	tenancy := in.InstanceTenancy
	if tenancy == "" {
		tenancy = "default"
	}

	vpc := &VPC{
		ID:               newID(idPrefixVPC),
		CIDRBlock:        prefix.String(),
		State:            "available",
		InstanceTenancy:  tenancy,
		IsDefault:        isDefault,
		DHCPOptionsID:    b.defaultDHCPOptionsID,
		OwnerID:          b.AccountID,
		EnableDNSSupport: true,
		// Hostnames default on only for the default VPC.
		EnableDNSHostnames: isDefault,
		Tags:               TagSet{},
		prefix:             prefix,
	}
	vpc.Tags.Merge(in.Tags)
	vpc.CIDRAssociations = []*CIDRAssociation{{
		ID:        newID(idPrefixCIDRAssociation),
		CIDRBlock: prefix.String(),
		State:     "associated",
	}}
	if in.AmazonProvidedIPv6CIDRBlock {
		vpc.CIDRAssociations = append(vpc.CIDRAssociations, &CIDRAssociation{
			ID:        newID(idPrefixCIDRAssociation),
			CIDRBlock: randomIPv6CIDR(),
			State:     "associated",
			IsIPv6:    true,
		})
	}
	b.vpcs[vpc.ID] = vpc

	// The companions pick up every CIDR association, so the IPv6 block
	// has to be in place first.
	b.createMainRouteTable(vpc.ID)
	b.createDefaultSecurityGroup(vpc.ID)
	b.createDefaultNetworkACL(vpc.ID)
	return vpc, nil
}

// ensureDefaultVPC creates the region's default VPC (172.31.0.0/16) with
// one /20 default subnet per availability zone.
func (b *Backend) ensureDefaultVPC() {
	vpc, err := b.createVPC(CreateVPCInput{CIDRBlock: defaultVPCCIDR}, true)
	if err != nil {
		panic(fmt.Sprintf("ec2: default VPC: %v", err))
	}
	zones, err := ZonesForRegion(b.Region)
	if err != nil {
		panic(fmt.Sprintf("ec2: default VPC: %v", err))
	}
	for i, zone := range zones {
		// Default subnets step through 172.31.0.0/20, 172.31.16.0/20, ...
		cidr := fmt.Sprintf("172.31.%d.0/20", i*16)
		if _, err := b.createSubnet(CreateSubnetInput{
			VPCID:            vpc.ID,
			CIDRBlock:        cidr,
			AvailabilityZone: zone.Name,
		}); err != nil {
			panic(fmt.Sprintf("ec2: default subnet %s: %v", cidr, err))
		}
	}
}

// GetVPC returns the VPC with the given id.
func (b *Backend) GetVPC(id string) (*VPC, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getVPC(id)
}

func (b *Backend) getVPC(id string) (*VPC, error) {
	vpc, ok := b.vpcs[id]
	if !ok {
		return nil, notFoundVPC(id)
	}
	return vpc, nil
}

// DefaultVPC returns the region's default VPC, or nil when it has been
// deleted.
func (b *Backend) DefaultVPC() *VPC {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, vpc := range b.vpcs {
		if vpc.IsDefault {
			return vpc
		}
	}
	return nil
}

// DescribeVPCs returns the VPCs matching the given ids and filters. An
// unknown id is an error; an unmatched filter is not.
func (b *Backend) DescribeVPCs(ids []string, filters Filters) ([]*VPC, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matches []*VPC
	if len(ids) > 0 {
		for _, id := range ids {
			vpc, err := b.getVPC(id)
			if err != nil {
				return nil, err
			}
			matches = append(matches, vpc)
		}
	} else {
		matches = sortedByID(b.vpcs)
	}
	return applyFilters("DescribeVpcs", filters, vpcFilters, matches)
}

// DeleteVPC deletes a VPC together with its main route table, its default
// security group and, when no other VPC references it, its DHCP option
// set. The VPC must have no VPN gateway attachments and no route tables
// beyond the main one.
func (b *Backend) DeleteVPC(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	vpc, err := b.getVPC(id)
	if err != nil {
		return err
	}
	for _, vgw := range b.vpnGateways {
		for _, att := range vgw.Attachments {
			if att.VPCID == id && att.State == "attached" {
				return dependencyViolation(
					"The vpc '%s' has dependencies and cannot be deleted.", id)
			}
		}
	}
	var mainTable *RouteTable
	for _, rt := range b.routeTables {
		if rt.VPCID != id {
			continue
		}
		if !rt.isMain() {
			return dependencyViolation(
				"The vpc '%s' has dependencies and cannot be deleted.", id)
		}
		mainTable = rt
	}
	if mainTable != nil {
		delete(b.routeTables, mainTable.ID)
	}
	for _, sg := range b.securityGroups {
		if sg.VPCID == id && sg.Name == "default" {
			delete(b.securityGroups, sg.ID)
		}
	}
	for _, acl := range b.networkACLs {
		if acl.VPCID == id {
			delete(b.networkACLs, acl.ID)
		}
	}
	if vpc.DHCPOptionsID != "" && vpc.DHCPOptionsID != b.defaultDHCPOptionsID {
		if set, ok := b.dhcpOptionSets[vpc.DHCPOptionsID]; ok && !b.dhcpOptionsInUse(set.ID, id) {
			delete(b.dhcpOptionSets, set.ID)
		}
	}
	delete(b.vpcs, id)
	return nil
}

// AssociateVPCCIDRBlockInput carries the parameters of
// AssociateVPCCIDRBlock. Exactly one of CIDRBlock or
// AmazonProvidedIPv6CIDRBlock must be set.
type AssociateVPCCIDRBlockInput struct {
	VPCID                       string `json:"vpc_id"`
	CIDRBlock                   string `json:"cidr_block,omitempty"`
	AmazonProvidedIPv6CIDRBlock bool   `json:"amazon_provided_ipv6_cidr_block,omitempty"`
}

// AssociateVPCCIDRBlock adds a secondary CIDR block to a VPC. Before the
// limit is checked, associations left in the "disassociated" state are
// purged.
func (b *Backend) AssociateVPCCIDRBlock(in AssociateVPCCIDRBlockInput) (*CIDRAssociation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	vpc, err := b.getVPC(in.VPCID)
	if err != nil {
		return nil, err
	}

	kept := vpc.CIDRAssociations[:0]
	for _, a := range vpc.CIDRAssociations {
		if a.State != "disassociated" {
			kept = append(kept, a)
		}
	}
	vpc.CIDRAssociations = kept

	ipv6 := in.AmazonProvidedIPv6CIDRBlock
	max, kind := maxIPv4CIDRAssociations, "IPv4"
	if ipv6 {
		max, kind = maxIPv6CIDRAssociations, "IPv6"
	}
	count := 0
	for _, a := range vpc.CIDRAssociations {
		if a.IsIPv6 == ipv6 {
			count++
		}
	}
	if count >= max {
		return nil, apiErrorf("CidrLimitExceeded",
			"This network '%s' has met its maximum number of allowed CIDRs: %d", kind, max)
	}

	cidr := in.CIDRBlock
	if ipv6 {
		cidr = randomIPv6CIDR()
	} else {
		p, err := parseCIDR(cidr)
		if err != nil {
			return nil, err
		}
		cidr = p.String()
	}
	assoc := &CIDRAssociation{
		ID:        newID(idPrefixCIDRAssociation),
		CIDRBlock: cidr,
		State:     "associated",
		IsIPv6:    ipv6,
	}
	vpc.CIDRAssociations = append(vpc.CIDRAssociations, assoc)
	return assoc, nil
}

// DisassociateVPCCIDRBlock marks a CIDR association as disassociated. The
// primary IPv4 block may not be disassociated.
func (b *Backend) DisassociateVPCCIDRBlock(associationID string) (*CIDRAssociation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, vpc := range b.vpcs {
		for _, a := range vpc.CIDRAssociations {
			if a.ID != associationID {
				continue
			}
			if a == vpc.primaryAssociation() {
				return nil, operationNotPermitted(
					"The vpc CIDR block with association ID %s may not be disassociated. It is the primary IPv4 CIDR block of the VPC.",
					associationID)
			}
			a.State = "disassociated"
			// Routes for the released block no longer lead anywhere.
			for _, rt := range b.routeTables {
				if rt.VPCID != vpc.ID {
					continue
				}
				for key, r := range rt.Routes {
					if r.DestinationCIDRBlock == a.CIDRBlock || r.DestinationIPv6CIDRBlock == a.CIDRBlock {
						delete(rt.Routes, key)
					}
				}
			}
			return a, nil
		}
	}
	return nil, notFoundCIDRAssociation(associationID)
}

// DescribeVPCAttribute returns the value of a single VPC attribute:
// enableDnsSupport or enableDnsHostnames.
func (b *Backend) DescribeVPCAttribute(vpcID, attribute string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	vpc, err := b.getVPC(vpcID)
	if err != nil {
		return false, err
	}
	switch attribute {
	case "enableDnsSupport":
		return vpc.EnableDNSSupport, nil
	case "enableDnsHostnames":
		return vpc.EnableDNSHostnames, nil
	}
	return false, invalidParameterValue(
		"Value (%s) for parameter attribute is invalid. Unknown attribute.", attribute)
}

// ModifyVPCAttribute sets enableDnsSupport or enableDnsHostnames.
func (b *Backend) ModifyVPCAttribute(vpcID, attribute string, value bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	vpc, err := b.getVPC(vpcID)
	if err != nil {
		return err
	}
	switch attribute {
	case "enableDnsSupport":
		vpc.EnableDNSSupport = value
	case "enableDnsHostnames":
		vpc.EnableDNSHostnames = value
	default:
		return invalidParameterValue(
			"Value (%s) for parameter attribute is invalid. Unknown attribute.", attribute)
	}
	return nil
}
