package ec2

import (
	"sort"
	"strings"
)

// RouteTable routes traffic for the subnets associated with it. Every VPC
// has a main table, created with the VPC, that subnets fall back to when
// they have no explicit association. Routes are keyed by destination
// CIDR; the table's implicit local routes cover the VPC's own blocks.
type RouteTable struct {
	ID           string                            `json:"route_table_id"`
	VPCID        string                            `json:"vpc_id"`
	OwnerID      string                            `json:"owner_id"`
	Associations map[string]*RouteTableAssociation `json:"associations"`
	Routes       map[string]*Route                 `json:"routes"`
	Tags         TagSet                            `json:"tags"`
}

// RouteTableAssociation binds a subnet or a gateway to a route table. The
// main association has neither subnet nor gateway.
type RouteTableAssociation struct {
	ID        string `json:"route_table_association_id"`
	Main      bool   `json:"main"`
	SubnetID  string `json:"subnet_id,omitempty"`
	GatewayID string `json:"gateway_id,omitempty"`
}

// Route is one entry of a route table. Exactly one destination field and
// exactly one target field are set; local routes use Gateway "local".
type Route struct {
	ID                       string `json:"id"`
	DestinationCIDRBlock     string `json:"destination_cidr_block,omitempty"`
	DestinationIPv6CIDRBlock string `json:"destination_ipv6_cidr_block,omitempty"`
	DestinationPrefixListID  string `json:"destination_prefix_list_id,omitempty"`

	GatewayID              string `json:"gateway_id,omitempty"`
	NatGatewayID           string `json:"nat_gateway_id,omitempty"`
	NetworkInterfaceID     string `json:"network_interface_id,omitempty"`
	VPCPeeringConnectionID string `json:"vpc_peering_connection_id,omitempty"`
	EgressOnlyGatewayID    string `json:"egress_only_internet_gateway_id,omitempty"`
	TransitGatewayID       string `json:"transit_gateway_id,omitempty"`
	CarrierGatewayID       string `json:"carrier_gateway_id,omitempty"`
	VPCEndpointID          string `json:"vpc_endpoint_id,omitempty"`
	State                  string `json:"state"`
	Origin                 string `json:"origin"`
}

func (rt *RouteTable) tagSet() TagSet { return rt.Tags }

// destination returns the route's single destination specifier, with
// IPv6 taking precedence over a prefix list over IPv4.
func (r *Route) destination() string {
	switch {
	case r.DestinationIPv6CIDRBlock != "":
		return r.DestinationIPv6CIDRBlock
	case r.DestinationPrefixListID != "":
		return r.DestinationPrefixListID
	default:
		return r.DestinationCIDRBlock
	}
}

func (rt *RouteTable) isMain() bool {
	for _, a := range rt.Associations {
		if a.Main {
			return true
		}
	}
	return false
}

func (rt *RouteTable) sortedRoutes() []*Route {
	out := make([]*Route, 0, len(rt.Routes))
	for _, r := range rt.Routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].destination() < out[j].destination()
	})
	return out
}

var routeTableFilters = filterTable[*RouteTable]{
	"route-table-id": func(rt *RouteTable) []string { return []string{rt.ID} },
	"vpc-id":         func(rt *RouteTable) []string { return []string{rt.VPCID} },
	"owner-id":       func(rt *RouteTable) []string { return []string{rt.OwnerID} },
	"association.main": func(rt *RouteTable) []string {
		return []string{boolStr(rt.isMain())}
	},
	"association.route-table-association-id": func(rt *RouteTable) []string {
		var out []string
		for _, a := range rt.Associations {
			out = append(out, a.ID)
		}
		return out
	},
	"association.route-table-id": func(rt *RouteTable) []string {
		return []string{rt.ID}
	},
	"association.subnet-id": func(rt *RouteTable) []string {
		var out []string
		for _, a := range rt.Associations {
			if a.SubnetID != "" {
				out = append(out, a.SubnetID)
			}
		}
		return out
	},
	"route.destination-cidr-block": func(rt *RouteTable) []string {
		var out []string
		for _, r := range rt.Routes {
			if r.DestinationCIDRBlock != "" {
				out = append(out, r.DestinationCIDRBlock)
			}
		}
		return out
	},
	"route.destination-ipv6-cidr-block": func(rt *RouteTable) []string {
		var out []string
		for _, r := range rt.Routes {
			if r.DestinationIPv6CIDRBlock != "" {
				out = append(out, r.DestinationIPv6CIDRBlock)
			}
		}
		return out
	},
	"route.destination-prefix-list-id": func(rt *RouteTable) []string {
		var out []string
		for _, r := range rt.Routes {
			if r.DestinationPrefixListID != "" {
				out = append(out, r.DestinationPrefixListID)
			}
		}
		return out
	},
	"route.gateway-id": func(rt *RouteTable) []string {
		var out []string
		for _, r := range rt.Routes {
			if r.GatewayID != "" {
				out = append(out, r.GatewayID)
			}
		}
		return out
	},
	"route.nat-gateway-id": func(rt *RouteTable) []string {
		var out []string
		for _, r := range rt.Routes {
			if r.NatGatewayID != "" {
				out = append(out, r.NatGatewayID)
			}
		}
		return out
	},
	"route.transit-gateway-id": func(rt *RouteTable) []string {
		var out []string
		for _, r := range rt.Routes {
			if r.TransitGatewayID != "" {
				out = append(out, r.TransitGatewayID)
			}
		}
		return out
	},
	"route.vpc-peering-connection-id": func(rt *RouteTable) []string {
		var out []string
		for _, r := range rt.Routes {
			if r.VPCPeeringConnectionID != "" {
				out = append(out, r.VPCPeeringConnectionID)
			}
		}
		return out
	},
}

// createMainRouteTable builds the implicit main table of a new VPC.
func (b *Backend) createMainRouteTable(vpcID string) *RouteTable {
	rt := b.newRouteTable(vpcID)
	main := &RouteTableAssociation{ID: newID(idPrefixRTBAssociation), Main: true}
	rt.Associations[main.ID] = main
	return rt
}

func (b *Backend) newRouteTable(vpcID string) *RouteTable {
	rt := &RouteTable{
		ID:           newID(idPrefixRouteTable),
		VPCID:        vpcID,
		OwnerID:      b.AccountID,
		Associations: make(map[string]*RouteTableAssociation),
		Routes:       make(map[string]*Route),
		Tags:         TagSet{},
	}
	if vpc, ok := b.vpcs[vpcID]; ok {
		for _, cidr := range vpc.associatedCIDRs(false) {
			rt.Routes[cidr] = &Route{
				ID:                   routeID(rt.ID, cidr),
				DestinationCIDRBlock: cidr,
				GatewayID:            "local",
				State:                "active",
				Origin:               "CreateRouteTable",
			}
		}
		for _, cidr := range vpc.associatedCIDRs(true) {
			rt.Routes[cidr] = &Route{
				ID:                       routeID(rt.ID, cidr),
				DestinationIPv6CIDRBlock: cidr,
				GatewayID:                "local",
				State:                    "active",
				Origin:                   "CreateRouteTable",
			}
		}
	}
	b.routeTables[rt.ID] = rt
	return rt
}

// CreateRouteTable creates a route table in a VPC, seeded with local
// routes for each of the VPC's associated CIDR blocks.
func (b *Backend) CreateRouteTable(vpcID string, tags map[string]string) (*RouteTable, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.getVPC(vpcID); err != nil {
		return nil, err
	}
	rt := b.newRouteTable(vpcID)
	rt.Tags.Merge(tags)
	return rt, nil
}

// GetRouteTable returns the route table with the given id.
func (b *Backend) GetRouteTable(id string) (*RouteTable, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getRouteTable(id)
}

func (b *Backend) getRouteTable(id string) (*RouteTable, error) {
	rt, ok := b.routeTables[id]
	if !ok {
		return nil, notFoundRouteTable(id)
	}
	return rt, nil
}

// mainRouteTable returns the main table of a VPC, or nil.
func (b *Backend) mainRouteTable(vpcID string) *RouteTable {
	for _, rt := range b.routeTables {
		if rt.VPCID == vpcID && rt.isMain() {
			return rt
		}
	}
	return nil
}

// DescribeRouteTables returns the route tables matching ids and filters.
func (b *Backend) DescribeRouteTables(ids []string, filters Filters) ([]*RouteTable, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matches []*RouteTable
	if len(ids) > 0 {
		for _, id := range ids {
			rt, err := b.getRouteTable(id)
			if err != nil {
				return nil, err
			}
			matches = append(matches, rt)
		}
	} else {
		matches = sortedByID(b.routeTables)
	}
	return applyFilters("DescribeRouteTables", filters, routeTableFilters, matches)
}

// DeleteRouteTable deletes a route table. Tables with any association,
// the main association included, cannot be deleted.
func (b *Backend) DeleteRouteTable(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rt, err := b.getRouteTable(id)
	if err != nil {
		return err
	}
	if len(rt.Associations) > 0 {
		return dependencyViolation(
			"The routeTable '%s' has dependencies and cannot be deleted.", id)
	}
	delete(b.routeTables, id)
	return nil
}

// AssociateRouteTable associates a subnet or a gateway with a route
// table and returns the association id.
func (b *Backend) AssociateRouteTable(routeTableID, subnetID, gatewayID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rt, err := b.getRouteTable(routeTableID)
	if err != nil {
		return "", err
	}
	if subnetID != "" {
		if _, err := b.getSubnet(subnetID); err != nil {
			return "", err
		}
		// Re-associating the same subnet is idempotent.
		for _, a := range rt.Associations {
			if a.SubnetID == subnetID {
				return a.ID, nil
			}
		}
	} else if gatewayID == "" {
		return "", missingParameter("SubnetId")
	}
	assoc := &RouteTableAssociation{
		ID:        newID(idPrefixRTBAssociation),
		SubnetID:  subnetID,
		GatewayID: gatewayID,
	}
	rt.Associations[assoc.ID] = assoc
	return assoc.ID, nil
}

// DisassociateRouteTable removes a subnet or gateway association. The
// main association cannot be removed.
func (b *Backend) DisassociateRouteTable(associationID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, rt := range b.routeTables {
		assoc, ok := rt.Associations[associationID]
		if !ok {
			continue
		}
		if assoc.Main {
			return invalidParameterValue(
				"cannot disassociate the main route table association %s", associationID)
		}
		delete(rt.Associations, associationID)
		return nil
	}
	return notFoundAssociation(associationID)
}

// ReplaceRouteTableAssociation moves an existing association to another
// route table and returns the new association id. Replacing the main
// association makes the target table the VPC's main table.
func (b *Backend) ReplaceRouteTableAssociation(associationID, routeTableID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	newTable, err := b.getRouteTable(routeTableID)
	if err != nil {
		return "", err
	}
	for _, rt := range b.routeTables {
		assoc, ok := rt.Associations[associationID]
		if !ok {
			continue
		}
		delete(rt.Associations, associationID)
		replacement := &RouteTableAssociation{
			ID:        newID(idPrefixRTBAssociation),
			Main:      assoc.Main,
			SubnetID:  assoc.SubnetID,
			GatewayID: assoc.GatewayID,
		}
		newTable.Associations[replacement.ID] = replacement
		return replacement.ID, nil
	}
	return "", notFoundAssociation(associationID)
}

// RouteInput carries the parameters of CreateRoute and ReplaceRoute.
// Exactly one destination and exactly one target field must be set.
type RouteInput struct {
	RouteTableID             string `json:"route_table_id"`
	DestinationCIDRBlock     string `json:"destination_cidr_block,omitempty"`
	DestinationIPv6CIDRBlock string `json:"destination_ipv6_cidr_block,omitempty"`
	DestinationPrefixListID  string `json:"destination_prefix_list_id,omitempty"`

	GatewayID              string `json:"gateway_id,omitempty"`
	NatGatewayID           string `json:"nat_gateway_id,omitempty"`
	NetworkInterfaceID     string `json:"network_interface_id,omitempty"`
	VPCPeeringConnectionID string `json:"vpc_peering_connection_id,omitempty"`
	EgressOnlyGatewayID    string `json:"egress_only_internet_gateway_id,omitempty"`
	TransitGatewayID       string `json:"transit_gateway_id,omitempty"`
	CarrierGatewayID       string `json:"carrier_gateway_id,omitempty"`
	VPCEndpointID          string `json:"vpc_endpoint_id,omitempty"`
}

// resolveRouteDestination validates and normalizes the input's single
// destination and returns the key the route is stored under.
func (b *Backend) resolveRouteDestination(in *RouteInput) (string, error) {
	set := 0
	for _, d := range []string{in.DestinationCIDRBlock, in.DestinationIPv6CIDRBlock, in.DestinationPrefixListID} {
		if d != "" {
			set++
		}
	}
	if set > 1 {
		return "", invalidParameterValue(
			"only one of DestinationCidrBlock, DestinationIpv6CidrBlock and DestinationPrefixListId may be specified")
	}
	switch {
	case in.DestinationCIDRBlock != "":
		dest, err := parseCIDR(in.DestinationCIDRBlock)
		if err != nil || !dest.Addr().Is4() {
			return "", apiErrorf("InvalidDestinationCidrBlock",
				"Value (%s) for parameter destinationCidrBlock is invalid. This is not a valid CIDR block.",
				in.DestinationCIDRBlock)
		}
		in.DestinationCIDRBlock = dest.String()
		return in.DestinationCIDRBlock, nil
	case in.DestinationIPv6CIDRBlock != "":
		dest, err := parseCIDR(in.DestinationIPv6CIDRBlock)
		if err != nil || dest.Addr().Is4() {
			return "", apiErrorf("InvalidDestinationCidrBlock",
				"Value (%s) for parameter destinationIpv6CidrBlock is invalid. This is not a valid CIDR block.",
				in.DestinationIPv6CIDRBlock)
		}
		in.DestinationIPv6CIDRBlock = dest.String()
		return in.DestinationIPv6CIDRBlock, nil
	case in.DestinationPrefixListID != "":
		if _, ok := b.prefixLists[in.DestinationPrefixListID]; !ok {
			return "", notFoundPrefixList(in.DestinationPrefixListID)
		}
		return in.DestinationPrefixListID, nil
	}
	return "", missingParameter("DestinationCidrBlock")
}

// resolveRouteTarget validates the one target the input names.
func (b *Backend) resolveRouteTarget(in RouteInput) error {
	switch {
	case in.GatewayID != "" && in.GatewayID != "local":
		switch {
		case strings.HasPrefix(in.GatewayID, idPrefixInternetGateway+"-"):
			if _, ok := b.internetGateways[in.GatewayID]; !ok {
				return notFoundInternetGateway(in.GatewayID)
			}
		case strings.HasPrefix(in.GatewayID, idPrefixVPNGateway+"-"):
			if _, ok := b.vpnGateways[in.GatewayID]; !ok {
				return notFoundVPNGateway(in.GatewayID)
			}
		default:
			return invalidParameterValue("Invalid gateway ID %s", in.GatewayID)
		}
	case in.NatGatewayID != "":
		if _, ok := b.natGateways[in.NatGatewayID]; !ok {
			return notFoundNatGateway(in.NatGatewayID)
		}
	case in.NetworkInterfaceID != "":
		if _, ok := b.enis[in.NetworkInterfaceID]; !ok {
			return notFoundENI(in.NetworkInterfaceID)
		}
	case in.VPCPeeringConnectionID != "":
		if _, err := b.dir.peerings.get(in.VPCPeeringConnectionID); err != nil {
			return err
		}
	case in.EgressOnlyGatewayID != "":
		if _, ok := b.egressOnlyGateways[in.EgressOnlyGatewayID]; !ok {
			return notFoundEgressOnlyGateway(in.EgressOnlyGatewayID)
		}
	case in.TransitGatewayID != "":
		if _, ok := b.transitGateways[in.TransitGatewayID]; !ok {
			return notFoundTransitGateway(in.TransitGatewayID)
		}
	case in.CarrierGatewayID != "":
		if _, ok := b.carrierGateways[in.CarrierGatewayID]; !ok {
			return notFoundCarrierGateway(in.CarrierGatewayID)
		}
	case in.VPCEndpointID != "":
		ep, ok := b.endpoints[in.VPCEndpointID]
		if !ok {
			return notFoundEndpoint(in.VPCEndpointID)
		}
		if ep.Type != EndpointTypeGateway {
			return apiErrorf("RouteNotSupported",
				"Route table contains unsupported route target: %s. VPC Endpoints of this type cannot be used as route targets.",
				in.VPCEndpointID)
		}
	case in.GatewayID == "local":
	default:
		return missingParameter("GatewayId")
	}
	return nil
}

func routeFromInput(rt *RouteTable, in RouteInput, dest, origin string) *Route {
	return &Route{
		ID:                       routeID(rt.ID, dest),
		DestinationCIDRBlock:     in.DestinationCIDRBlock,
		DestinationIPv6CIDRBlock: in.DestinationIPv6CIDRBlock,
		DestinationPrefixListID:  in.DestinationPrefixListID,
		GatewayID:                in.GatewayID,
		NatGatewayID:             in.NatGatewayID,
		NetworkInterfaceID:       in.NetworkInterfaceID,
		VPCPeeringConnectionID:   in.VPCPeeringConnectionID,
		EgressOnlyGatewayID:      in.EgressOnlyGatewayID,
		TransitGatewayID:         in.TransitGatewayID,
		CarrierGatewayID:         in.CarrierGatewayID,
		VPCEndpointID:            in.VPCEndpointID,
		State:                    "active",
		Origin:                   origin,
	}
}

// CreateRoute adds a route to a table. A CIDR destination must not
// overlap the CIDR of any existing non-local route in the table.
func (b *Backend) CreateRoute(in RouteInput) (*Route, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rt, err := b.getRouteTable(in.RouteTableID)
	if err != nil {
		return nil, err
	}
	dest, err := b.resolveRouteDestination(&in)
	if err != nil {
		return nil, err
	}
	if err := b.resolveRouteTarget(in); err != nil {
		return nil, err
	}
	if _, exists := rt.Routes[dest]; exists {
		return nil, apiErrorf("RouteAlreadyExists",
			"The route identified by %s already exists", dest)
	}
	if in.DestinationPrefixListID == "" {
		destPrefix, _ := parseCIDR(dest)
		for _, r := range rt.Routes {
			if r.GatewayID == "local" {
				continue
			}
			existing := r.DestinationCIDRBlock
			if existing == "" {
				existing = r.DestinationIPv6CIDRBlock
			}
			if existing == "" {
				continue
			}
			if p, perr := parseCIDR(existing); perr == nil && prefixesOverlap(p, destPrefix) {
				return nil, apiErrorf("RouteAlreadyExists",
					"The route identified by %s already exists", dest)
			}
		}
	}
	route := routeFromInput(rt, in, dest, "CreateRoute")
	rt.Routes[dest] = route
	return route, nil
}

// ReplaceRoute replaces the route for an existing destination in place.
// Network-interface targets are not supported here.
func (b *Backend) ReplaceRoute(in RouteInput) (*Route, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rt, err := b.getRouteTable(in.RouteTableID)
	if err != nil {
		return nil, err
	}
	if in.NetworkInterfaceID != "" {
		return nil, apiErrorf("NotImplemented",
			"ReplaceRoute to NetworkInterfaceId is not yet implemented")
	}
	dest, err := b.resolveRouteDestination(&in)
	if err != nil {
		return nil, err
	}
	if _, exists := rt.Routes[dest]; !exists {
		return nil, notFoundRoute(rt.ID, dest)
	}
	if err := b.resolveRouteTarget(in); err != nil {
		return nil, err
	}
	route := routeFromInput(rt, in, dest, "CreateRoute")
	rt.Routes[dest] = route
	return route, nil
}

// DeleteRoute removes a route. When several destination forms are given
// the IPv6 CIDR wins over the prefix list over the IPv4 CIDR. Local
// routes cannot be deleted.
func (b *Backend) DeleteRoute(routeTableID, destinationCIDR, destinationIPv6CIDR, destinationPrefixListID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rt, err := b.getRouteTable(routeTableID)
	if err != nil {
		return err
	}
	var dest string
	switch {
	case destinationIPv6CIDR != "":
		p, perr := parseCIDR(destinationIPv6CIDR)
		if perr != nil {
			return perr
		}
		dest = p.String()
	case destinationPrefixListID != "":
		dest = destinationPrefixListID
	default:
		p, perr := parseCIDR(destinationCIDR)
		if perr != nil {
			return perr
		}
		dest = p.String()
	}
	route, exists := rt.Routes[dest]
	if !exists {
		return notFoundRoute(rt.ID, dest)
	}
	if route.GatewayID == "local" {
		return invalidParameterValue(
			"cannot remove local route %s in route table %s", dest, rt.ID)
	}
	delete(rt.Routes, dest)
	return nil
}
