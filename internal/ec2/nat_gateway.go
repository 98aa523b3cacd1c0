package ec2

import (
	"time"
)

// NAT gateway lifecycle states.
const (
	NatStatePending   = "pending"
	NatStateAvailable = "available"
	NatStateDeleting  = "deleting"
	NatStateDeleted   = "deleted"
)

// NatGateway performs source NAT for a subnet's outbound traffic. New
// gateways start in the pending state; the lifecycle sweeper promotes
// them to available after a short settling period.
type NatGateway struct {
	ID                 string    `json:"nat_gateway_id"`
	SubnetID           string    `json:"subnet_id"`
	VPCID              string    `json:"vpc_id"`
	ConnectivityType   string    `json:"connectivity_type"`
	AllocationID       string    `json:"allocation_id,omitempty"`
	NetworkInterfaceID string    `json:"network_interface_id"`
	PrivateIP          string    `json:"private_ip,omitempty"`
	PublicIP           string    `json:"public_ip,omitempty"`
	State              string    `json:"state"`
	CreateTime         time.Time `json:"create_time"`
	Tags               TagSet    `json:"tags"`
}

func (n *NatGateway) tagSet() TagSet { return n.Tags }

var natGatewayFilters = filterTable[*NatGateway]{
	"nat-gateway-id": func(n *NatGateway) []string { return []string{n.ID} },
	"subnet-id":      func(n *NatGateway) []string { return []string{n.SubnetID} },
	"vpc-id":         func(n *NatGateway) []string { return []string{n.VPCID} },
	"state":          func(n *NatGateway) []string { return []string{n.State} },
}

// CreateNatGatewayInput carries the parameters of CreateNatGateway.
// ConnectivityType is "public" (the default, requires an allocation id)
// or "private".
type CreateNatGatewayInput struct {
	SubnetID         string            `json:"subnet_id"`
	AllocationID     string            `json:"allocation_id,omitempty"`
	ConnectivityType string            `json:"connectivity_type,omitempty"`
	Tags             map[string]string `json:"tags,omitempty"`
}

// CreateNatGateway creates a NAT gateway in the pending state.
func (b *Backend) CreateNatGateway(in CreateNatGatewayInput) (*NatGateway, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subnet, err := b.getSubnet(in.SubnetID)
	if err != nil {
		return nil, err
	}
	connectivity := in.ConnectivityType
	if connectivity == "" {
		connectivity = "public"
	}
	if connectivity != "public" && connectivity != "private" {
		return nil, invalidParameterValue(
			"Value (%s) for parameter connectivityType is invalid.", in.ConnectivityType)
	}
	if connectivity == "public" && in.AllocationID == "" {
		return nil, missingParameter("AllocationId")
	}

	id := newID(idPrefixNatGateway)
	// The gateway lives in the subnet through an interface of its own,
	// which also supplies its private address.
	eni, err := b.createNetworkInterface(CreateNetworkInterfaceInput{
		SubnetID:    subnet.ID,
		Description: "Interface for NAT Gateway " + id,
	})
	if err != nil {
		return nil, err
	}
	n := &NatGateway{
		ID:                 id,
		SubnetID:           subnet.ID,
		VPCID:              subnet.VPCID,
		ConnectivityType:   connectivity,
		AllocationID:       in.AllocationID,
		NetworkInterfaceID: eni.ID,
		PrivateIP:          eni.PrivateIP,
		State:              NatStatePending,
		CreateTime:         time.Now().UTC(),
		Tags:               TagSet{},
	}
	if connectivity == "public" {
		n.PublicIP = randomPublicIP()
	}
	n.Tags.Merge(in.Tags)
	b.natGateways[n.ID] = n
	return n, nil
}

// GetNatGateway returns the gateway with the given id.
func (b *Backend) GetNatGateway(id string) (*NatGateway, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.natGateways[id]
	if !ok {
		return nil, notFoundNatGateway(id)
	}
	return n, nil
}

// DescribeNatGateways returns the gateways matching ids and filters.
func (b *Backend) DescribeNatGateways(ids []string, filters Filters) ([]*NatGateway, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matches []*NatGateway
	if len(ids) > 0 {
		for _, id := range ids {
			n, ok := b.natGateways[id]
			if !ok {
				return nil, notFoundNatGateway(id)
			}
			matches = append(matches, n)
		}
	} else {
		matches = sortedByID(b.natGateways)
	}
	return applyFilters("DescribeNatGateways", filters, natGatewayFilters, matches)
}

// DeleteNatGateway moves a gateway to the deleting state; the sweeper
// finishes the transition to deleted.
func (b *Backend) DeleteNatGateway(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.natGateways[id]
	if !ok {
		return notFoundNatGateway(id)
	}
	n.State = NatStateDeleting
	// The owned interface goes with the gateway, returning its address
	// to the subnet.
	if eni, ok := b.enis[n.NetworkInterfaceID]; ok {
		if subnet, ok := b.subnets[eni.SubnetID]; ok {
			b.releaseENIAddresses(subnet, eni)
		}
		delete(b.enis, n.NetworkInterfaceID)
	}
	return nil
}

// SweepNatGateways advances gateway states: pending gateways older than
// settle become available, deleting gateways become deleted. It returns
// the number of transitions made.
func (b *Backend) SweepNatGateways(now time.Time, settle time.Duration) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	transitions := 0
	for _, n := range b.natGateways {
		switch n.State {
		case NatStatePending:
			if now.Sub(n.CreateTime) >= settle {
				n.State = NatStateAvailable
				transitions++
			}
		case NatStateDeleting:
			n.State = NatStateDeleted
			transitions++
		}
	}
	return transitions
}
