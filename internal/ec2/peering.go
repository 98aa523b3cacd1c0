package ec2

import (
	"sort"
	"sync"
)

// Peering status codes.
const (
	PeeringInitiating        = "initiating-request"
	PeeringPendingAcceptance = "pending-acceptance"
	PeeringActive            = "active"
	PeeringRejected          = "rejected"
	PeeringDeleted           = "deleted"
	PeeringFailed            = "failed"
)

// PeeringStatus is the lifecycle state of a peering connection.
type PeeringStatus struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PeeringSide identifies one end of a peering connection.
type PeeringSide struct {
	AccountID string `json:"owner_id"`
	Region    string `json:"region"`
	VPCID     string `json:"vpc_id"`
	CIDRBlock string `json:"cidr_block"`
}

// VPCPeeringConnection links two VPCs, possibly across regions and
// accounts. Both regions observe the same connection object through the
// shared peering registry.
type VPCPeeringConnection struct {
	ID        string        `json:"vpc_peering_connection_id"`
	Requester PeeringSide   `json:"requester_vpc_info"`
	Accepter  PeeringSide   `json:"accepter_vpc_info"`
	Status    PeeringStatus `json:"status"`
	Tags      TagSet        `json:"tags"`
}

func (p *VPCPeeringConnection) tagSet() TagSet { return p.Tags }

func (p *VPCPeeringConnection) visibleTo(accountID, region string) bool {
	return (p.Requester.AccountID == accountID && p.Requester.Region == region) ||
		(p.Accepter.AccountID == accountID && p.Accepter.Region == region)
}

var peeringFilters = filterTable[*VPCPeeringConnection]{
	"vpc-peering-connection-id": func(p *VPCPeeringConnection) []string {
		return []string{p.ID}
	},
	"status-code": func(p *VPCPeeringConnection) []string {
		return []string{p.Status.Code}
	},
	"requester-vpc-info.vpc-id": func(p *VPCPeeringConnection) []string {
		return []string{p.Requester.VPCID}
	},
	"requester-vpc-info.owner-id": func(p *VPCPeeringConnection) []string {
		return []string{p.Requester.AccountID}
	},
	"requester-vpc-info.cidr-block": func(p *VPCPeeringConnection) []string {
		return []string{p.Requester.CIDRBlock}
	},
	"accepter-vpc-info.vpc-id": func(p *VPCPeeringConnection) []string {
		return []string{p.Accepter.VPCID}
	},
	"accepter-vpc-info.owner-id": func(p *VPCPeeringConnection) []string {
		return []string{p.Accepter.AccountID}
	},
	"accepter-vpc-info.cidr-block": func(p *VPCPeeringConnection) []string {
		return []string{p.Accepter.CIDRBlock}
	},
}

// peeringRegistry holds every peering connection of a directory. It has
// its own lock so cross-region operations never take two backend locks.
type peeringRegistry struct {
	mu          sync.RWMutex
	connections map[string]*VPCPeeringConnection
}

func newPeeringRegistry() *peeringRegistry {
	return &peeringRegistry{connections: make(map[string]*VPCPeeringConnection)}
}

func (r *peeringRegistry) add(p *VPCPeeringConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[p.ID] = p
}

func (r *peeringRegistry) get(id string) (*VPCPeeringConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.connections[id]
	if !ok {
		return nil, notFoundPeering(id)
	}
	return p, nil
}

func (r *peeringRegistry) listFor(accountID, region string) []*VPCPeeringConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*VPCPeeringConnection
	for _, p := range r.connections {
		if p.visibleTo(accountID, region) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CreateVPCPeeringConnectionInput carries the parameters of
// CreateVPCPeeringConnection. PeerRegion and PeerOwnerID default to the
// caller's own region and account.
type CreateVPCPeeringConnectionInput struct {
	VPCID       string            `json:"vpc_id"`
	PeerVPCID   string            `json:"peer_vpc_id"`
	PeerRegion  string            `json:"peer_region,omitempty"`
	PeerOwnerID string            `json:"peer_owner_id,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// CreateVPCPeeringConnection opens a peering request between two VPCs.
// The connection lands in pending-acceptance, waiting on the accepter
// side.
func (b *Backend) CreateVPCPeeringConnection(in CreateVPCPeeringConnectionInput) (*VPCPeeringConnection, error) {
	requesterVPC, err := b.GetVPC(in.VPCID)
	if err != nil {
		return nil, err
	}
	peerRegion := in.PeerRegion
	if peerRegion == "" {
		peerRegion = b.Region
	}
	peerAccount := in.PeerOwnerID
	if peerAccount == "" {
		peerAccount = b.AccountID
	}
	peerBackend, err := b.dir.Backend(peerAccount, peerRegion)
	if err != nil {
		return nil, err
	}
	accepterVPC, err := peerBackend.GetVPC(in.PeerVPCID)
	if err != nil {
		return nil, err
	}

	p := &VPCPeeringConnection{
		ID: newID(idPrefixPeering),
		Requester: PeeringSide{
			AccountID: b.AccountID,
			Region:    b.Region,
			VPCID:     requesterVPC.ID,
			CIDRBlock: requesterVPC.CIDRBlock,
		},
		Accepter: PeeringSide{
			AccountID: peerAccount,
			Region:    peerRegion,
			VPCID:     accepterVPC.ID,
			CIDRBlock: accepterVPC.CIDRBlock,
		},
		Status: PeeringStatus{
			Code:    PeeringPendingAcceptance,
			Message: "Pending Acceptance by " + peerAccount,
		},
		Tags: TagSet{},
	}
	p.Tags.Merge(in.Tags)
	b.dir.peerings.add(p)
	return p, nil
}

// GetVPCPeeringConnection returns a peering connection visible to this
// backend.
func (b *Backend) GetVPCPeeringConnection(id string) (*VPCPeeringConnection, error) {
	p, err := b.dir.peerings.get(id)
	if err != nil {
		return nil, err
	}
	if !p.visibleTo(b.AccountID, b.Region) {
		return nil, notFoundPeering(id)
	}
	return p, nil
}

// DescribeVPCPeeringConnections returns the connections visible to this
// backend matching ids and filters.
func (b *Backend) DescribeVPCPeeringConnections(ids []string, filters Filters) ([]*VPCPeeringConnection, error) {
	var matches []*VPCPeeringConnection
	if len(ids) > 0 {
		for _, id := range ids {
			p, err := b.GetVPCPeeringConnection(id)
			if err != nil {
				return nil, err
			}
			matches = append(matches, p)
		}
	} else {
		matches = b.dir.peerings.listFor(b.AccountID, b.Region)
	}
	return applyFilters("DescribeVpcPeeringConnections", filters, peeringFilters, matches)
}

// AcceptVPCPeeringConnection activates a pending connection. Only the
// accepter side's backend may accept.
func (b *Backend) AcceptVPCPeeringConnection(id string) (*VPCPeeringConnection, error) {
	return b.settlePeering(id, PeeringActive, "Active")
}

// RejectVPCPeeringConnection rejects a pending connection. Only the
// accepter side's backend may reject.
func (b *Backend) RejectVPCPeeringConnection(id string) (*VPCPeeringConnection, error) {
	return b.settlePeering(id, PeeringRejected, "Inactive")
}

func (b *Backend) settlePeering(id, code, message string) (*VPCPeeringConnection, error) {
	p, err := b.GetVPCPeeringConnection(id)
	if err != nil {
		return nil, err
	}

	b.dir.peerings.mu.Lock()
	defer b.dir.peerings.mu.Unlock()
	if p.Accepter.AccountID != b.AccountID || p.Accepter.Region != b.Region {
		return nil, operationNotPermitted(
			"Incorrect region (%s) specified for this request. VPC peering connection %s must be accepted or rejected in region %s",
			b.Region, id, p.Accepter.Region)
	}
	if p.Status.Code != PeeringPendingAcceptance {
		return nil, invalidStateTransition(
			"VPC peering connection %s is not in pending-acceptance state (current: %s)", id, p.Status.Code)
	}
	p.Status = PeeringStatus{Code: code, Message: message}
	return p, nil
}

// DeleteVPCPeeringConnection marks a connection deleted. Either side may
// delete; the connection stays visible with its deleted status.
func (b *Backend) DeleteVPCPeeringConnection(id string) (*VPCPeeringConnection, error) {
	p, err := b.GetVPCPeeringConnection(id)
	if err != nil {
		return nil, err
	}
	b.dir.peerings.mu.Lock()
	defer b.dir.peerings.mu.Unlock()
	p.Status = PeeringStatus{Code: PeeringDeleted, Message: "Deleted by " + b.AccountID}
	return p, nil
}
