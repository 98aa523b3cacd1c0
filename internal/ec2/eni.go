package ec2

import (
	"net/netip"
)

// NetworkInterface is an elastic network interface living in one subnet.
// Its primary private address is held for the interface's whole lifetime
// and returned to the subnet's allocator on delete.
type NetworkInterface struct {
	ID              string         `json:"network_interface_id"`
	SubnetID        string         `json:"subnet_id"`
	VPCID           string         `json:"vpc_id"`
	Description     string         `json:"description"`
	PrivateIP       string         `json:"private_ip_address"`
	SecondaryIPs    []string       `json:"secondary_private_ip_addresses,omitempty"`
	MACAddress      string         `json:"mac_address"`
	GroupIDs        []string       `json:"groups"`
	SourceDestCheck bool           `json:"source_dest_check"`
	Status          string         `json:"status"`
	Attachment      *ENIAttachment `json:"attachment,omitempty"`
	OwnerID         string         `json:"owner_id"`
	Tags            TagSet         `json:"tags"`
}

// ENIAttachment records an interface's attachment to an instance.
type ENIAttachment struct {
	ID          string `json:"attachment_id"`
	InstanceID  string `json:"instance_id"`
	DeviceIndex int    `json:"device_index"`
	Status      string `json:"status"`
}

func (e *NetworkInterface) tagSet() TagSet { return e.Tags }

var eniFilters = filterTable[*NetworkInterface]{
	"network-interface-id": func(e *NetworkInterface) []string { return []string{e.ID} },
	"subnet-id":            func(e *NetworkInterface) []string { return []string{e.SubnetID} },
	"vpc-id":               func(e *NetworkInterface) []string { return []string{e.VPCID} },
	"status":               func(e *NetworkInterface) []string { return []string{e.Status} },
	"description": func(e *NetworkInterface) []string {
		return []string{e.Description}
	},
	"private-ip-address": func(e *NetworkInterface) []string {
		return append([]string{e.PrivateIP}, e.SecondaryIPs...)
	},
	"group-id": func(e *NetworkInterface) []string { return e.GroupIDs },
	"attachment.instance-id": func(e *NetworkInterface) []string {
		if e.Attachment == nil {
			return nil
		}
		return []string{e.Attachment.InstanceID}
	},
	"attachment.attachment-id": func(e *NetworkInterface) []string {
		if e.Attachment == nil {
			return nil
		}
		return []string{e.Attachment.ID}
	},
	"owner-id": func(e *NetworkInterface) []string { return []string{e.OwnerID} },
}

// CreateNetworkInterfaceInput carries the parameters of
// CreateNetworkInterface. An empty PrivateIP lets the subnet allocator
// pick the address; empty GroupIDs fall back to the VPC default group.
type CreateNetworkInterfaceInput struct {
	SubnetID    string            `json:"subnet_id"`
	PrivateIP   string            `json:"private_ip_address,omitempty"`
	Description string            `json:"description,omitempty"`
	GroupIDs    []string          `json:"groups,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// CreateNetworkInterface creates an interface in a subnet.
func (b *Backend) CreateNetworkInterface(in CreateNetworkInterfaceInput) (*NetworkInterface, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createNetworkInterface(in)
}

func (b *Backend) createNetworkInterface(in CreateNetworkInterfaceInput) (*NetworkInterface, error) {
	subnet, err := b.getSubnet(in.SubnetID)
	if err != nil {
		return nil, err
	}
	for _, gid := range in.GroupIDs {
		if _, err := b.getSecurityGroup(gid); err != nil {
			return nil, err
		}
	}

	id := newID(idPrefixENI)
	var addr netip.Addr
	if in.PrivateIP != "" {
		addr, err = netip.ParseAddr(in.PrivateIP)
		if err != nil {
			return nil, invalidParameterValue("invalid private address %s", in.PrivateIP)
		}
		if err := subnet.ips.Request(addr, id); err != nil {
			return nil, err
		}
	} else {
		addr, err = subnet.ips.Allocate(id)
		if err != nil {
			return nil, err
		}
	}

	groups := in.GroupIDs
	if len(groups) == 0 {
		if def := b.securityGroupByName("default", subnet.VPCID); def != nil {
			groups = []string{def.ID}
		}
	}
	eni := &NetworkInterface{
		ID:              id,
		SubnetID:        subnet.ID,
		VPCID:           subnet.VPCID,
		Description:     in.Description,
		PrivateIP:       addr.String(),
		MACAddress:      randomMAC(),
		GroupIDs:        groups,
		SourceDestCheck: true,
		Status:          "available",
		OwnerID:         b.AccountID,
		Tags:            TagSet{},
	}
	eni.Tags.Merge(in.Tags)
	b.enis[eni.ID] = eni
	return eni, nil
}

// GetNetworkInterface returns the interface with the given id.
func (b *Backend) GetNetworkInterface(id string) (*NetworkInterface, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getNetworkInterface(id)
}

func (b *Backend) getNetworkInterface(id string) (*NetworkInterface, error) {
	eni, ok := b.enis[id]
	if !ok {
		return nil, notFoundENI(id)
	}
	return eni, nil
}

// DescribeNetworkInterfaces returns the interfaces matching ids and
// filters.
func (b *Backend) DescribeNetworkInterfaces(ids []string, filters Filters) ([]*NetworkInterface, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matches []*NetworkInterface
	if len(ids) > 0 {
		for _, id := range ids {
			eni, err := b.getNetworkInterface(id)
			if err != nil {
				return nil, err
			}
			matches = append(matches, eni)
		}
	} else {
		matches = sortedByID(b.enis)
	}
	return applyFilters("DescribeNetworkInterfaces", filters, eniFilters, matches)
}

// DeleteNetworkInterface deletes an interface and releases its addresses
// back to the subnet. Attached interfaces cannot be deleted.
func (b *Backend) DeleteNetworkInterface(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	eni, err := b.getNetworkInterface(id)
	if err != nil {
		return err
	}
	if eni.Attachment != nil {
		return apiErrorf("InvalidNetworkInterface.InUse",
			"Network interface %s is currently in use.", id)
	}
	if subnet, ok := b.subnets[eni.SubnetID]; ok {
		b.releaseENIAddresses(subnet, eni)
	}
	delete(b.enis, id)
	return nil
}

func (b *Backend) releaseENIAddresses(subnet *Subnet, eni *NetworkInterface) {
	if addr, err := netip.ParseAddr(eni.PrivateIP); err == nil {
		subnet.ips.Release(addr)
	}
	for _, ip := range eni.SecondaryIPs {
		if addr, err := netip.ParseAddr(ip); err == nil {
			subnet.ips.Release(addr)
		}
	}
}

// AttachNetworkInterface attaches an interface to an instance and
// returns the attachment id.
func (b *Backend) AttachNetworkInterface(eniID, instanceID string, deviceIndex int) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	eni, err := b.getNetworkInterface(eniID)
	if err != nil {
		return "", err
	}
	if eni.Attachment != nil {
		return "", resourceAlreadyAssociated(eniID, eni.Attachment.InstanceID)
	}
	eni.Attachment = &ENIAttachment{
		ID:          newID(idPrefixENIAttachment),
		InstanceID:  instanceID,
		DeviceIndex: deviceIndex,
		Status:      "attached",
	}
	eni.Status = "in-use"
	return eni.Attachment.ID, nil
}

// DetachNetworkInterface removes an attachment by its id.
func (b *Backend) DetachNetworkInterface(attachmentID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, eni := range b.enis {
		if eni.Attachment != nil && eni.Attachment.ID == attachmentID {
			eni.Attachment = nil
			eni.Status = "available"
			return nil
		}
	}
	return notFoundENIAttachment(attachmentID)
}

// ModifyNetworkInterfaceInput carries the mutable attributes of an
// interface; nil fields are left unchanged.
type ModifyNetworkInterfaceInput struct {
	NetworkInterfaceID string   `json:"network_interface_id"`
	Description        *string  `json:"description,omitempty"`
	GroupIDs           []string `json:"groups,omitempty"`
	SourceDestCheck    *bool    `json:"source_dest_check,omitempty"`
}

// ModifyNetworkInterfaceAttribute updates an interface's description,
// security groups or source/dest check flag.
func (b *Backend) ModifyNetworkInterfaceAttribute(in ModifyNetworkInterfaceInput) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	eni, err := b.getNetworkInterface(in.NetworkInterfaceID)
	if err != nil {
		return err
	}
	if len(in.GroupIDs) > 0 {
		for _, gid := range in.GroupIDs {
			if _, err := b.getSecurityGroup(gid); err != nil {
				return err
			}
		}
		eni.GroupIDs = append([]string(nil), in.GroupIDs...)
	}
	if in.Description != nil {
		eni.Description = *in.Description
	}
	if in.SourceDestCheck != nil {
		eni.SourceDestCheck = *in.SourceDestCheck
	}
	return nil
}

// AssignPrivateIPAddresses adds secondary addresses to an interface,
// either the given ones or count fresh allocations.
func (b *Backend) AssignPrivateIPAddresses(eniID string, addresses []string, count int) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	eni, err := b.getNetworkInterface(eniID)
	if err != nil {
		return nil, err
	}
	subnet, err := b.getSubnet(eni.SubnetID)
	if err != nil {
		return nil, err
	}
	// The batch is all-or-nothing: a failure part-way returns every
	// address acquired so far to the subnet.
	var assigned []string
	rollback := func() {
		for _, ip := range assigned {
			if addr, perr := netip.ParseAddr(ip); perr == nil {
				subnet.ips.Release(addr)
			}
		}
	}
	for _, ip := range addresses {
		addr, perr := netip.ParseAddr(ip)
		if perr != nil {
			rollback()
			return nil, invalidParameterValue("invalid private address %s", ip)
		}
		if err := subnet.ips.Request(addr, eni.ID); err != nil {
			rollback()
			return nil, err
		}
		assigned = append(assigned, addr.String())
	}
	for i := 0; i < count; i++ {
		addr, aerr := subnet.ips.Allocate(eni.ID)
		if aerr != nil {
			rollback()
			return nil, aerr
		}
		assigned = append(assigned, addr.String())
	}
	eni.SecondaryIPs = append(eni.SecondaryIPs, assigned...)
	return assigned, nil
}

// UnassignPrivateIPAddresses releases secondary addresses from an
// interface. The primary address cannot be unassigned.
func (b *Backend) UnassignPrivateIPAddresses(eniID string, addresses []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	eni, err := b.getNetworkInterface(eniID)
	if err != nil {
		return err
	}
	subnet, err := b.getSubnet(eni.SubnetID)
	if err != nil {
		return err
	}
	for _, ip := range addresses {
		if ip == eni.PrivateIP {
			return invalidParameterValue(
				"the primary address %s of interface %s cannot be unassigned", ip, eniID)
		}
		found := false
		for i, have := range eni.SecondaryIPs {
			if have == ip {
				eni.SecondaryIPs = append(eni.SecondaryIPs[:i], eni.SecondaryIPs[i+1:]...)
				found = true
				break
			}
		}
		if !found {
			return invalidParameterValue(
				"address %s is not assigned to interface %s", ip, eniID)
		}
		if addr, perr := netip.ParseAddr(ip); perr == nil {
			subnet.ips.Release(addr)
		}
	}
	return nil
}
