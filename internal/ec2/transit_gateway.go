package ec2

// TransitGateway is a regional router interconnecting VPCs and VPN
// connections through attachments.
type TransitGateway struct {
	ID                           string `json:"transit_gateway_id"`
	Description                  string `json:"description,omitempty"`
	State                        string `json:"state"`
	AmazonSideASN                int64  `json:"amazon_side_asn"`
	DefaultRouteTableAssociation bool   `json:"default_route_table_association"`
	DefaultRouteTablePropagation bool   `json:"default_route_table_propagation"`
	AssociationDefaultTableID    string `json:"association_default_route_table_id,omitempty"`
	PropagationDefaultTableID    string `json:"propagation_default_route_table_id,omitempty"`
	OwnerID                      string `json:"owner_id"`
	Tags                         TagSet `json:"tags"`
}

func (t *TransitGateway) tagSet() TagSet { return t.Tags }

var transitGatewayFilters = filterTable[*TransitGateway]{
	"transit-gateway-id": func(t *TransitGateway) []string { return []string{t.ID} },
	"state":              func(t *TransitGateway) []string { return []string{t.State} },
	"owner-id":           func(t *TransitGateway) []string { return []string{t.OwnerID} },
}

// TransitGatewayRoute is one static route of a transit gateway route
// table. Deleted routes stay in the table with state "deleted".
type TransitGatewayRoute struct {
	DestinationCIDR string `json:"destination_cidr_block"`
	AttachmentID    string `json:"transit_gateway_attachment_id,omitempty"`
	Type            string `json:"type"`
	State           string `json:"state"`
}

// TransitGatewayRouteTable holds routes keyed by destination CIDR plus
// the attachment associations and propagations pointing at it.
type TransitGatewayRouteTable struct {
	ID                 string                          `json:"transit_gateway_route_table_id"`
	TransitGatewayID   string                          `json:"transit_gateway_id"`
	State              string                          `json:"state"`
	DefaultAssociation bool                            `json:"default_association_route_table"`
	DefaultPropagation bool                            `json:"default_propagation_route_table"`
	Routes             map[string]*TransitGatewayRoute `json:"routes"`
	Associations       map[string]string               `json:"associations"`
	Propagations       map[string]string               `json:"propagations"`
	Tags               TagSet                          `json:"tags"`
}

func (t *TransitGatewayRouteTable) tagSet() TagSet { return t.Tags }

var tgwRouteTableFilters = filterTable[*TransitGatewayRouteTable]{
	"transit-gateway-route-table-id": func(t *TransitGatewayRouteTable) []string {
		return []string{t.ID}
	},
	"transit-gateway-id": func(t *TransitGatewayRouteTable) []string {
		return []string{t.TransitGatewayID}
	},
	"state": func(t *TransitGatewayRouteTable) []string { return []string{t.State} },
	"default-association-route-table": func(t *TransitGatewayRouteTable) []string {
		return []string{boolStr(t.DefaultAssociation)}
	},
	"default-propagation-route-table": func(t *TransitGatewayRouteTable) []string {
		return []string{boolStr(t.DefaultPropagation)}
	},
}

// Transit gateway attachment resource types.
const (
	TGWAttachmentVPC     = "vpc"
	TGWAttachmentPeering = "peering"
	TGWAttachmentVPN     = "vpn"
)

// TransitGatewayAttachment binds a resource (VPC, peer transit gateway
// or VPN connection) to a transit gateway.
type TransitGatewayAttachment struct {
	ID               string   `json:"transit_gateway_attachment_id"`
	TransitGatewayID string   `json:"transit_gateway_id"`
	ResourceType     string   `json:"resource_type"`
	ResourceID       string   `json:"resource_id"`
	State            string   `json:"state"`
	SubnetIDs        []string `json:"subnet_ids,omitempty"`
	AssociatedTable  string   `json:"association_route_table_id,omitempty"`
	Tags             TagSet   `json:"tags"`
}

func (a *TransitGatewayAttachment) tagSet() TagSet { return a.Tags }

var tgwAttachmentFilters = filterTable[*TransitGatewayAttachment]{
	"transit-gateway-attachment-id": func(a *TransitGatewayAttachment) []string {
		return []string{a.ID}
	},
	"transit-gateway-id": func(a *TransitGatewayAttachment) []string {
		return []string{a.TransitGatewayID}
	},
	"resource-type": func(a *TransitGatewayAttachment) []string {
		return []string{a.ResourceType}
	},
	"resource-id": func(a *TransitGatewayAttachment) []string {
		return []string{a.ResourceID}
	},
	"state": func(a *TransitGatewayAttachment) []string { return []string{a.State} },
}

// CreateTransitGatewayInput carries the parameters of
// CreateTransitGateway.
type CreateTransitGatewayInput struct {
	Description                  string            `json:"description,omitempty"`
	AmazonSideASN                int64             `json:"amazon_side_asn,omitempty"`
	DefaultRouteTableAssociation bool              `json:"default_route_table_association"`
	DefaultRouteTablePropagation bool              `json:"default_route_table_propagation"`
	Tags                         map[string]string `json:"tags,omitempty"`
}

// CreateTransitGateway creates a transit gateway together with its
// default route table.
func (b *Backend) CreateTransitGateway(in CreateTransitGatewayInput) (*TransitGateway, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	asn := in.AmazonSideASN
	if asn == 0 {
		asn = 64512
	}
	t := &TransitGateway{
		ID:                           newID(idPrefixTransitGateway),
		Description:                  in.Description,
		State:                        "available",
		AmazonSideASN:                asn,
		DefaultRouteTableAssociation: in.DefaultRouteTableAssociation,
		DefaultRouteTablePropagation: in.DefaultRouteTablePropagation,
		OwnerID:                      b.AccountID,
		Tags:                         TagSet{},
	}
	t.Tags.Merge(in.Tags)
	b.transitGateways[t.ID] = t

	defaultTable := b.newTGWRouteTable(t.ID)
	defaultTable.DefaultAssociation = true
	defaultTable.DefaultPropagation = true
	t.AssociationDefaultTableID = defaultTable.ID
	t.PropagationDefaultTableID = defaultTable.ID
	return t, nil
}

// GetTransitGateway returns the gateway with the given id.
func (b *Backend) GetTransitGateway(id string) (*TransitGateway, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getTransitGateway(id)
}

func (b *Backend) getTransitGateway(id string) (*TransitGateway, error) {
	t, ok := b.transitGateways[id]
	if !ok {
		return nil, notFoundTransitGateway(id)
	}
	return t, nil
}

// DescribeTransitGateways returns the gateways matching ids and filters.
func (b *Backend) DescribeTransitGateways(ids []string, filters Filters) ([]*TransitGateway, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matches []*TransitGateway
	if len(ids) > 0 {
		for _, id := range ids {
			t, err := b.getTransitGateway(id)
			if err != nil {
				return nil, err
			}
			matches = append(matches, t)
		}
	} else {
		matches = sortedByID(b.transitGateways)
	}
	return applyFilters("DescribeTransitGateways", filters, transitGatewayFilters, matches)
}

// ModifyTransitGateway updates a gateway's description.
func (b *Backend) ModifyTransitGateway(id, description string) (*TransitGateway, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.getTransitGateway(id)
	if err != nil {
		return nil, err
	}
	if description != "" {
		t.Description = description
	}
	return t, nil
}

// DeleteTransitGateway deletes a gateway and its route tables. Live
// attachments block deletion.
func (b *Backend) DeleteTransitGateway(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.getTransitGateway(id); err != nil {
		return err
	}
	for _, att := range b.tgwAttachments {
		if att.TransitGatewayID == id && att.State != "deleted" {
			return dependencyViolation(
				"The transitGateway '%s' has dependencies and cannot be deleted.", id)
		}
	}
	for _, rt := range b.tgwRouteTables {
		if rt.TransitGatewayID == id {
			delete(b.tgwRouteTables, rt.ID)
		}
	}
	delete(b.transitGateways, id)
	return nil
}

func (b *Backend) newTGWRouteTable(tgwID string) *TransitGatewayRouteTable {
	rt := &TransitGatewayRouteTable{
		ID:               newID(idPrefixTGWRouteTable),
		TransitGatewayID: tgwID,
		State:            "available",
		Routes:           make(map[string]*TransitGatewayRoute),
		Associations:     make(map[string]string),
		Propagations:     make(map[string]string),
		Tags:             TagSet{},
	}
	b.tgwRouteTables[rt.ID] = rt
	return rt
}

// CreateTransitGatewayRouteTable creates a route table on a gateway.
func (b *Backend) CreateTransitGatewayRouteTable(tgwID string, tags map[string]string) (*TransitGatewayRouteTable, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.getTransitGateway(tgwID); err != nil {
		return nil, err
	}
	rt := b.newTGWRouteTable(tgwID)
	rt.Tags.Merge(tags)
	return rt, nil
}

// GetTransitGatewayRouteTable returns the route table with the given id.
func (b *Backend) GetTransitGatewayRouteTable(id string) (*TransitGatewayRouteTable, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getTGWRouteTable(id)
}

func (b *Backend) getTGWRouteTable(id string) (*TransitGatewayRouteTable, error) {
	rt, ok := b.tgwRouteTables[id]
	if !ok {
		return nil, notFoundTGWRouteTable(id)
	}
	return rt, nil
}

// DescribeTransitGatewayRouteTables returns the route tables matching
// ids and filters.
func (b *Backend) DescribeTransitGatewayRouteTables(ids []string, filters Filters) ([]*TransitGatewayRouteTable, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matches []*TransitGatewayRouteTable
	if len(ids) > 0 {
		for _, id := range ids {
			rt, err := b.getTGWRouteTable(id)
			if err != nil {
				return nil, err
			}
			matches = append(matches, rt)
		}
	} else {
		matches = sortedByID(b.tgwRouteTables)
	}
	return applyFilters("DescribeTransitGatewayRouteTables", filters, tgwRouteTableFilters, matches)
}

// DeleteTransitGatewayRouteTable deletes a route table. The gateway's
// default table cannot be deleted while the gateway exists.
func (b *Backend) DeleteTransitGatewayRouteTable(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rt, err := b.getTGWRouteTable(id)
	if err != nil {
		return err
	}
	if rt.DefaultAssociation {
		if _, ok := b.transitGateways[rt.TransitGatewayID]; ok {
			return operationNotPermitted(
				"the default association route table %s cannot be deleted", id)
		}
	}
	delete(b.tgwRouteTables, id)
	return nil
}

// CreateTGWVPCAttachmentInput carries the parameters of
// CreateTransitGatewayVPCAttachment.
type CreateTGWVPCAttachmentInput struct {
	TransitGatewayID string            `json:"transit_gateway_id"`
	VPCID            string            `json:"vpc_id"`
	SubnetIDs        []string          `json:"subnet_ids,omitempty"`
	Tags             map[string]string `json:"tags,omitempty"`
}

// CreateTransitGatewayVPCAttachment attaches a VPC to a gateway. When
// the gateway defaults route table association, the attachment is
// associated with the default table immediately.
func (b *Backend) CreateTransitGatewayVPCAttachment(in CreateTGWVPCAttachmentInput) (*TransitGatewayAttachment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tgw, err := b.getTransitGateway(in.TransitGatewayID)
	if err != nil {
		return nil, err
	}
	if _, err := b.getVPC(in.VPCID); err != nil {
		return nil, err
	}
	for _, subnetID := range in.SubnetIDs {
		if _, err := b.getSubnet(subnetID); err != nil {
			return nil, err
		}
	}

	att := &TransitGatewayAttachment{
		ID:               newID(idPrefixTGWAttachment),
		TransitGatewayID: tgw.ID,
		ResourceType:     TGWAttachmentVPC,
		ResourceID:       in.VPCID,
		State:            "available",
		SubnetIDs:        append([]string(nil), in.SubnetIDs...),
		Tags:             TagSet{},
	}
	att.Tags.Merge(in.Tags)
	b.tgwAttachments[att.ID] = att

	if tgw.DefaultRouteTableAssociation && tgw.AssociationDefaultTableID != "" {
		if rt, ok := b.tgwRouteTables[tgw.AssociationDefaultTableID]; ok {
			rt.Associations[att.ID] = "associated"
			att.AssociatedTable = rt.ID
		}
	}
	if tgw.DefaultRouteTablePropagation && tgw.PropagationDefaultTableID != "" {
		if rt, ok := b.tgwRouteTables[tgw.PropagationDefaultTableID]; ok {
			rt.Propagations[att.ID] = "enabled"
		}
	}
	return att, nil
}

// CreateTGWPeeringAttachmentInput carries the parameters of
// CreateTransitGatewayPeeringAttachment.
type CreateTGWPeeringAttachmentInput struct {
	TransitGatewayID     string            `json:"transit_gateway_id"`
	PeerTransitGatewayID string            `json:"peer_transit_gateway_id"`
	PeerRegion           string            `json:"peer_region,omitempty"`
	PeerAccountID        string            `json:"peer_account_id,omitempty"`
	Tags                 map[string]string `json:"tags,omitempty"`
}

// CreateTransitGatewayPeeringAttachment attaches a peer transit gateway.
func (b *Backend) CreateTransitGatewayPeeringAttachment(in CreateTGWPeeringAttachmentInput) (*TransitGatewayAttachment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.getTransitGateway(in.TransitGatewayID); err != nil {
		return nil, err
	}
	att := &TransitGatewayAttachment{
		ID:               newID(idPrefixTGWAttachment),
		TransitGatewayID: in.TransitGatewayID,
		ResourceType:     TGWAttachmentPeering,
		ResourceID:       in.PeerTransitGatewayID,
		State:            "available",
		Tags:             TagSet{},
	}
	att.Tags.Merge(in.Tags)
	b.tgwAttachments[att.ID] = att
	return att, nil
}

// DescribeTransitGatewayAttachments returns the attachments matching ids
// and filters.
func (b *Backend) DescribeTransitGatewayAttachments(ids []string, filters Filters) ([]*TransitGatewayAttachment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matches []*TransitGatewayAttachment
	if len(ids) > 0 {
		for _, id := range ids {
			att, ok := b.tgwAttachments[id]
			if !ok {
				return nil, notFoundTGWAttachment(id)
			}
			matches = append(matches, att)
		}
	} else {
		matches = sortedByID(b.tgwAttachments)
	}
	return applyFilters("DescribeTransitGatewayAttachments", filters, tgwAttachmentFilters, matches)
}

// DeleteTransitGatewayAttachment marks an attachment deleted and drops
// its associations and propagations.
func (b *Backend) DeleteTransitGatewayAttachment(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	att, ok := b.tgwAttachments[id]
	if !ok {
		return notFoundTGWAttachment(id)
	}
	att.State = "deleted"
	att.AssociatedTable = ""
	for _, rt := range b.tgwRouteTables {
		delete(rt.Associations, id)
		delete(rt.Propagations, id)
	}
	return nil
}

// TGWRouteInput carries the parameters of the transit gateway route
// operations.
type TGWRouteInput struct {
	RouteTableID         string `json:"transit_gateway_route_table_id"`
	DestinationCIDRBlock string `json:"destination_cidr_block"`
	AttachmentID         string `json:"transit_gateway_attachment_id,omitempty"`
	Blackhole            bool   `json:"blackhole,omitempty"`
}

// CreateTransitGatewayRoute adds a static route keyed by destination
// CIDR; an existing route for the destination is overwritten.
func (b *Backend) CreateTransitGatewayRoute(in TGWRouteInput) (*TransitGatewayRoute, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rt, err := b.getTGWRouteTable(in.RouteTableID)
	if err != nil {
		return nil, err
	}
	dest, err := parseCIDR(in.DestinationCIDRBlock)
	if err != nil {
		return nil, err
	}
	if in.AttachmentID != "" {
		if _, ok := b.tgwAttachments[in.AttachmentID]; !ok {
			return nil, notFoundTGWAttachment(in.AttachmentID)
		}
	}
	state := "active"
	if in.Blackhole {
		state = "blackhole"
	}
	route := &TransitGatewayRoute{
		DestinationCIDR: dest.String(),
		AttachmentID:    in.AttachmentID,
		Type:            "static",
		State:           state,
	}
	rt.Routes[route.DestinationCIDR] = route
	return route, nil
}

// ReplaceTransitGatewayRoute replaces the route for an existing
// destination.
func (b *Backend) ReplaceTransitGatewayRoute(in TGWRouteInput) (*TransitGatewayRoute, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rt, err := b.getTGWRouteTable(in.RouteTableID)
	if err != nil {
		return nil, err
	}
	dest, err := parseCIDR(in.DestinationCIDRBlock)
	if err != nil {
		return nil, err
	}
	if _, ok := rt.Routes[dest.String()]; !ok {
		return nil, notFoundRoute(rt.ID, dest.String())
	}
	state := "active"
	if in.Blackhole {
		state = "blackhole"
	}
	route := &TransitGatewayRoute{
		DestinationCIDR: dest.String(),
		AttachmentID:    in.AttachmentID,
		Type:            "static",
		State:           state,
	}
	rt.Routes[route.DestinationCIDR] = route
	return route, nil
}

// DeleteTransitGatewayRoute marks a route deleted. The entry stays in
// the table so searches can still report it.
func (b *Backend) DeleteTransitGatewayRoute(routeTableID, destinationCIDR string) (*TransitGatewayRoute, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rt, err := b.getTGWRouteTable(routeTableID)
	if err != nil {
		return nil, err
	}
	dest, err := parseCIDR(destinationCIDR)
	if err != nil {
		return nil, err
	}
	route, ok := rt.Routes[dest.String()]
	if !ok {
		return nil, notFoundRoute(rt.ID, dest.String())
	}
	route.State = "deleted"
	return route, nil
}

// Filter names SearchTransitGatewayRoutes understands.
var tgwRouteSearchFilters = map[string]bool{
	"type":                     true,
	"state":                    true,
	"route-search.exact-match": true,
}

// SearchTransitGatewayRoutes filters a snapshot of a table's routes by
// type, state and exact destination match. The live table is never
// mutated; callers get copies.
func (b *Backend) SearchTransitGatewayRoutes(routeTableID string, filters Filters, maxResults int) ([]*TransitGatewayRoute, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rt, err := b.getTGWRouteTable(routeTableID)
	if err != nil {
		return nil, err
	}
	for name := range filters {
		if !tgwRouteSearchFilters[name] {
			return nil, filterNotImplemented(name, "SearchTransitGatewayRoutes")
		}
	}

	var out []*TransitGatewayRoute
	for _, dest := range sortedKeys(rt.Routes) {
		route := rt.Routes[dest]
		if values, ok := filters["type"]; ok && !matchAnyPattern(values, []string{route.Type}) {
			continue
		}
		if values, ok := filters["state"]; ok && !matchAnyPattern(values, []string{route.State}) {
			continue
		}
		if values, ok := filters["route-search.exact-match"]; ok && !matchAnyPattern(values, []string{route.DestinationCIDR}) {
			continue
		}
		snapshot := *route
		out = append(out, &snapshot)
		if maxResults > 0 && len(out) >= maxResults {
			break
		}
	}
	return out, nil
}

// AssociateTransitGatewayRouteTable associates an attachment with a
// route table.
func (b *Backend) AssociateTransitGatewayRouteTable(attachmentID, routeTableID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	att, ok := b.tgwAttachments[attachmentID]
	if !ok {
		return notFoundTGWAttachment(attachmentID)
	}
	rt, err := b.getTGWRouteTable(routeTableID)
	if err != nil {
		return err
	}
	if att.AssociatedTable != "" {
		return resourceAlreadyAssociated(attachmentID, att.AssociatedTable)
	}
	rt.Associations[attachmentID] = "associated"
	att.AssociatedTable = rt.ID
	return nil
}

// DisassociateTransitGatewayRouteTable removes an attachment's
// association.
func (b *Backend) DisassociateTransitGatewayRouteTable(attachmentID, routeTableID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	att, ok := b.tgwAttachments[attachmentID]
	if !ok {
		return notFoundTGWAttachment(attachmentID)
	}
	rt, err := b.getTGWRouteTable(routeTableID)
	if err != nil {
		return err
	}
	if _, ok := rt.Associations[attachmentID]; !ok {
		return gatewayNotAttached(attachmentID, routeTableID)
	}
	delete(rt.Associations, attachmentID)
	att.AssociatedTable = ""
	return nil
}

// EnableTransitGatewayRouteTablePropagation enables route propagation
// from an attachment into a table.
func (b *Backend) EnableTransitGatewayRouteTablePropagation(attachmentID, routeTableID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.tgwAttachments[attachmentID]; !ok {
		return notFoundTGWAttachment(attachmentID)
	}
	rt, err := b.getTGWRouteTable(routeTableID)
	if err != nil {
		return err
	}
	rt.Propagations[attachmentID] = "enabled"
	return nil
}

// DisableTransitGatewayRouteTablePropagation disables an attachment's
// propagation into a table.
func (b *Backend) DisableTransitGatewayRouteTablePropagation(attachmentID, routeTableID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.tgwAttachments[attachmentID]; !ok {
		return notFoundTGWAttachment(attachmentID)
	}
	rt, err := b.getTGWRouteTable(routeTableID)
	if err != nil {
		return err
	}
	if _, ok := rt.Propagations[attachmentID]; !ok {
		return gatewayNotAttached(attachmentID, routeTableID)
	}
	delete(rt.Propagations, attachmentID)
	return nil
}
