package ec2

// InternetGateway routes traffic between a VPC and the internet. It is
// attached to at most one VPC at a time.
type InternetGateway struct {
	ID    string `json:"internet_gateway_id"`
	VPCID string `json:"vpc_id,omitempty"`
	Tags  TagSet `json:"tags"`
}

func (g *InternetGateway) tagSet() TagSet { return g.Tags }

func (g *InternetGateway) attachmentState() string {
	if g.VPCID == "" {
		return ""
	}
	return "available"
}

var internetGatewayFilters = filterTable[*InternetGateway]{
	"internet-gateway-id": func(g *InternetGateway) []string { return []string{g.ID} },
	"attachment.vpc-id": func(g *InternetGateway) []string {
		if g.VPCID == "" {
			return nil
		}
		return []string{g.VPCID}
	},
	"attachment.state": func(g *InternetGateway) []string {
		if s := g.attachmentState(); s != "" {
			return []string{s}
		}
		return nil
	},
}

// CreateInternetGateway creates a detached internet gateway.
func (b *Backend) CreateInternetGateway(tags map[string]string) *InternetGateway {
	b.mu.Lock()
	defer b.mu.Unlock()

	g := &InternetGateway{ID: newID(idPrefixInternetGateway), Tags: TagSet{}}
	g.Tags.Merge(tags)
	b.internetGateways[g.ID] = g
	return g
}

// GetInternetGateway returns the gateway with the given id.
func (b *Backend) GetInternetGateway(id string) (*InternetGateway, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getInternetGateway(id)
}

func (b *Backend) getInternetGateway(id string) (*InternetGateway, error) {
	g, ok := b.internetGateways[id]
	if !ok {
		return nil, notFoundInternetGateway(id)
	}
	return g, nil
}

// DescribeInternetGateways returns the gateways matching ids and
// filters.
func (b *Backend) DescribeInternetGateways(ids []string, filters Filters) ([]*InternetGateway, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matches []*InternetGateway
	if len(ids) > 0 {
		for _, id := range ids {
			g, err := b.getInternetGateway(id)
			if err != nil {
				return nil, err
			}
			matches = append(matches, g)
		}
	} else {
		matches = sortedByID(b.internetGateways)
	}
	return applyFilters("DescribeInternetGateways", filters, internetGatewayFilters, matches)
}

// AttachInternetGateway attaches a gateway to a VPC. A gateway already
// attached anywhere cannot be attached again.
func (b *Backend) AttachInternetGateway(gatewayID, vpcID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	g, err := b.getInternetGateway(gatewayID)
	if err != nil {
		return err
	}
	if _, err := b.getVPC(vpcID); err != nil {
		return err
	}
	if g.VPCID != "" {
		return resourceAlreadyAssociated(gatewayID, g.VPCID)
	}
	g.VPCID = vpcID
	return nil
}

// DetachInternetGateway detaches a gateway from the VPC it is attached
// to. The vpc id must match the current attachment.
func (b *Backend) DetachInternetGateway(gatewayID, vpcID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	g, err := b.getInternetGateway(gatewayID)
	if err != nil {
		return err
	}
	if g.VPCID == "" || g.VPCID != vpcID {
		return gatewayNotAttached(gatewayID, vpcID)
	}
	g.VPCID = ""
	return nil
}

// DeleteInternetGateway deletes a detached gateway.
func (b *Backend) DeleteInternetGateway(gatewayID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	g, err := b.getInternetGateway(gatewayID)
	if err != nil {
		return err
	}
	if g.VPCID != "" {
		return dependencyViolation(
			"The internetGateway '%s' has dependencies and cannot be deleted.", gatewayID)
	}
	delete(b.internetGateways, gatewayID)
	return nil
}

// EgressOnlyInternetGateway allows outbound-only IPv6 traffic from a
// VPC. It is bound to its VPC at creation.
type EgressOnlyInternetGateway struct {
	ID    string `json:"egress_only_internet_gateway_id"`
	VPCID string `json:"vpc_id"`
	State string `json:"state"`
	Tags  TagSet `json:"tags"`
}

func (g *EgressOnlyInternetGateway) tagSet() TagSet { return g.Tags }

var egressOnlyGatewayFilters = filterTable[*EgressOnlyInternetGateway]{
	"egress-only-internet-gateway-id": func(g *EgressOnlyInternetGateway) []string {
		return []string{g.ID}
	},
	"vpc-id": func(g *EgressOnlyInternetGateway) []string { return []string{g.VPCID} },
}

// CreateEgressOnlyInternetGateway creates a gateway attached to a VPC.
func (b *Backend) CreateEgressOnlyInternetGateway(vpcID string, tags map[string]string) (*EgressOnlyInternetGateway, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.getVPC(vpcID); err != nil {
		return nil, err
	}
	g := &EgressOnlyInternetGateway{
		ID:    newID(idPrefixEgressOnlyGW),
		VPCID: vpcID,
		State: "attached",
		Tags:  TagSet{},
	}
	g.Tags.Merge(tags)
	b.egressOnlyGateways[g.ID] = g
	return g, nil
}

// DescribeEgressOnlyInternetGateways returns the gateways matching ids
// and filters.
func (b *Backend) DescribeEgressOnlyInternetGateways(ids []string, filters Filters) ([]*EgressOnlyInternetGateway, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matches []*EgressOnlyInternetGateway
	if len(ids) > 0 {
		for _, id := range ids {
			g, ok := b.egressOnlyGateways[id]
			if !ok {
				return nil, notFoundEgressOnlyGateway(id)
			}
			matches = append(matches, g)
		}
	} else {
		matches = sortedByID(b.egressOnlyGateways)
	}
	return applyFilters("DescribeEgressOnlyInternetGateways", filters, egressOnlyGatewayFilters, matches)
}

// DeleteEgressOnlyInternetGateway deletes a gateway.
func (b *Backend) DeleteEgressOnlyInternetGateway(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.egressOnlyGateways[id]; !ok {
		return notFoundEgressOnlyGateway(id)
	}
	delete(b.egressOnlyGateways, id)
	return nil
}

// CarrierGateway routes traffic between a Wavelength Zone subnet and the
// carrier network.
type CarrierGateway struct {
	ID      string `json:"carrier_gateway_id"`
	VPCID   string `json:"vpc_id"`
	State   string `json:"state"`
	OwnerID string `json:"owner_id"`
	Tags    TagSet `json:"tags"`
}

func (g *CarrierGateway) tagSet() TagSet { return g.Tags }

var carrierGatewayFilters = filterTable[*CarrierGateway]{
	"carrier-gateway-id": func(g *CarrierGateway) []string { return []string{g.ID} },
	"vpc-id":             func(g *CarrierGateway) []string { return []string{g.VPCID} },
	"state":              func(g *CarrierGateway) []string { return []string{g.State} },
}

// CreateCarrierGateway creates a carrier gateway for a VPC.
func (b *Backend) CreateCarrierGateway(vpcID string, tags map[string]string) (*CarrierGateway, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.getVPC(vpcID); err != nil {
		return nil, err
	}
	g := &CarrierGateway{
		ID:      newID(idPrefixCarrierGateway),
		VPCID:   vpcID,
		State:   "available",
		OwnerID: b.AccountID,
		Tags:    TagSet{},
	}
	g.Tags.Merge(tags)
	b.carrierGateways[g.ID] = g
	return g, nil
}

// DescribeCarrierGateways returns the gateways matching ids and filters.
func (b *Backend) DescribeCarrierGateways(ids []string, filters Filters) ([]*CarrierGateway, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matches []*CarrierGateway
	if len(ids) > 0 {
		for _, id := range ids {
			g, ok := b.carrierGateways[id]
			if !ok {
				return nil, notFoundCarrierGateway(id)
			}
			matches = append(matches, g)
		}
	} else {
		matches = sortedByID(b.carrierGateways)
	}
	return applyFilters("DescribeCarrierGateways", filters, carrierGatewayFilters, matches)
}

// DeleteCarrierGateway deletes a carrier gateway.
func (b *Backend) DeleteCarrierGateway(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.carrierGateways[id]; !ok {
		return notFoundCarrierGateway(id)
	}
	delete(b.carrierGateways, id)
	return nil
}

// VPNGatewayAttachment records a VPN gateway's attachment to one VPC.
type VPNGatewayAttachment struct {
	VPCID string `json:"vpc_id"`
	State string `json:"state"`
}

// VPNGateway terminates VPN connections on the AWS side. Unlike an
// internet gateway it keeps a per-VPC attachment list.
type VPNGateway struct {
	ID               string                           `json:"vpn_gateway_id"`
	Type             string                           `json:"type"`
	State            string                           `json:"state"`
	AvailabilityZone string                           `json:"availability_zone,omitempty"`
	Attachments      map[string]*VPNGatewayAttachment `json:"vpc_attachments"`
	Tags             TagSet                           `json:"tags"`
}

func (g *VPNGateway) tagSet() TagSet { return g.Tags }

var vpnGatewayFilters = filterTable[*VPNGateway]{
	"vpn-gateway-id": func(g *VPNGateway) []string { return []string{g.ID} },
	"type":           func(g *VPNGateway) []string { return []string{g.Type} },
	"state":          func(g *VPNGateway) []string { return []string{g.State} },
	"attachment.vpc-id": func(g *VPNGateway) []string {
		var out []string
		for vpcID, att := range g.Attachments {
			if att.State == "attached" {
				out = append(out, vpcID)
			}
		}
		return out
	},
	"attachment.state": func(g *VPNGateway) []string {
		var out []string
		for _, att := range g.Attachments {
			out = append(out, att.State)
		}
		return out
	},
}

// CreateVPNGateway creates a VPN gateway of the given type (empty means
// ipsec.1).
func (b *Backend) CreateVPNGateway(gatewayType, availabilityZone string, tags map[string]string) *VPNGateway {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gatewayType == "" {
		gatewayType = "ipsec.1"
	}
	g := &VPNGateway{
		ID:               newID(idPrefixVPNGateway),
		Type:             gatewayType,
		State:            "available",
		AvailabilityZone: availabilityZone,
		Attachments:      make(map[string]*VPNGatewayAttachment),
		Tags:             TagSet{},
	}
	g.Tags.Merge(tags)
	b.vpnGateways[g.ID] = g
	return g
}

// GetVPNGateway returns the gateway with the given id.
func (b *Backend) GetVPNGateway(id string) (*VPNGateway, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getVPNGateway(id)
}

func (b *Backend) getVPNGateway(id string) (*VPNGateway, error) {
	g, ok := b.vpnGateways[id]
	if !ok {
		return nil, notFoundVPNGateway(id)
	}
	return g, nil
}

// DescribeVPNGateways returns the gateways matching ids and filters.
func (b *Backend) DescribeVPNGateways(ids []string, filters Filters) ([]*VPNGateway, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matches []*VPNGateway
	if len(ids) > 0 {
		for _, id := range ids {
			g, err := b.getVPNGateway(id)
			if err != nil {
				return nil, err
			}
			matches = append(matches, g)
		}
	} else {
		matches = sortedByID(b.vpnGateways)
	}
	return applyFilters("DescribeVpnGateways", filters, vpnGatewayFilters, matches)
}

// AttachVPNGateway attaches a gateway to a VPC.
func (b *Backend) AttachVPNGateway(gatewayID, vpcID string) (*VPNGatewayAttachment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	g, err := b.getVPNGateway(gatewayID)
	if err != nil {
		return nil, err
	}
	if _, err := b.getVPC(vpcID); err != nil {
		return nil, err
	}
	if att, ok := g.Attachments[vpcID]; ok && att.State == "attached" {
		return nil, resourceAlreadyAssociated(gatewayID, vpcID)
	}
	att := &VPNGatewayAttachment{VPCID: vpcID, State: "attached"}
	g.Attachments[vpcID] = att
	return att, nil
}

// DetachVPNGateway detaches a gateway from a VPC.
func (b *Backend) DetachVPNGateway(gatewayID, vpcID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	g, err := b.getVPNGateway(gatewayID)
	if err != nil {
		return err
	}
	att, ok := g.Attachments[vpcID]
	if !ok || att.State != "attached" {
		return gatewayNotAttached(gatewayID, vpcID)
	}
	delete(g.Attachments, vpcID)
	return nil
}

// DeleteVPNGateway deletes a gateway with no attachments.
func (b *Backend) DeleteVPNGateway(gatewayID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	g, err := b.getVPNGateway(gatewayID)
	if err != nil {
		return err
	}
	for _, att := range g.Attachments {
		if att.State == "attached" {
			return dependencyViolation(
				"The vpnGateway '%s' has dependencies and cannot be deleted.", gatewayID)
		}
	}
	delete(b.vpnGateways, gatewayID)
	return nil
}

// CustomerGateway is the customer-side endpoint of a VPN connection.
type CustomerGateway struct {
	ID        string `json:"customer_gateway_id"`
	Type      string `json:"type"`
	IPAddress string `json:"ip_address"`
	BGPASN    int    `json:"bgp_asn"`
	State     string `json:"state"`
	Tags      TagSet `json:"tags"`
}

func (g *CustomerGateway) tagSet() TagSet { return g.Tags }

var customerGatewayFilters = filterTable[*CustomerGateway]{
	"customer-gateway-id": func(g *CustomerGateway) []string { return []string{g.ID} },
	"type":                func(g *CustomerGateway) []string { return []string{g.Type} },
	"state":               func(g *CustomerGateway) []string { return []string{g.State} },
	"ip-address":          func(g *CustomerGateway) []string { return []string{g.IPAddress} },
}

// CreateCustomerGateway registers a customer gateway endpoint.
func (b *Backend) CreateCustomerGateway(gatewayType, ipAddress string, bgpASN int, tags map[string]string) *CustomerGateway {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gatewayType == "" {
		gatewayType = "ipsec.1"
	}
	g := &CustomerGateway{
		ID:        newID(idPrefixCustomerGW),
		Type:      gatewayType,
		IPAddress: ipAddress,
		BGPASN:    bgpASN,
		State:     "available",
		Tags:      TagSet{},
	}
	g.Tags.Merge(tags)
	b.customerGateways[g.ID] = g
	return g
}

// DescribeCustomerGateways returns the gateways matching ids and
// filters.
func (b *Backend) DescribeCustomerGateways(ids []string, filters Filters) ([]*CustomerGateway, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matches []*CustomerGateway
	if len(ids) > 0 {
		for _, id := range ids {
			g, ok := b.customerGateways[id]
			if !ok {
				return nil, notFoundCustomerGateway(id)
			}
			matches = append(matches, g)
		}
	} else {
		matches = sortedByID(b.customerGateways)
	}
	return applyFilters("DescribeCustomerGateways", filters, customerGatewayFilters, matches)
}

// DeleteCustomerGateway deletes a customer gateway.
func (b *Backend) DeleteCustomerGateway(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.customerGateways[id]; !ok {
		return notFoundCustomerGateway(id)
	}
	delete(b.customerGateways, id)
	return nil
}

// VPNConnection links a customer gateway to a VPN or transit gateway.
type VPNConnection struct {
	ID                string `json:"vpn_connection_id"`
	Type              string `json:"type"`
	CustomerGatewayID string `json:"customer_gateway_id"`
	VPNGatewayID      string `json:"vpn_gateway_id,omitempty"`
	TransitGatewayID  string `json:"transit_gateway_id,omitempty"`
	State             string `json:"state"`
	Tags              TagSet `json:"tags"`
}

func (c *VPNConnection) tagSet() TagSet { return c.Tags }

var vpnConnectionFilters = filterTable[*VPNConnection]{
	"vpn-connection-id": func(c *VPNConnection) []string { return []string{c.ID} },
	"customer-gateway-id": func(c *VPNConnection) []string {
		return []string{c.CustomerGatewayID}
	},
	"vpn-gateway-id": func(c *VPNConnection) []string {
		if c.VPNGatewayID == "" {
			return nil
		}
		return []string{c.VPNGatewayID}
	},
	"transit-gateway-id": func(c *VPNConnection) []string {
		if c.TransitGatewayID == "" {
			return nil
		}
		return []string{c.TransitGatewayID}
	},
	"state": func(c *VPNConnection) []string { return []string{c.State} },
	"type":  func(c *VPNConnection) []string { return []string{c.Type} },
}

// CreateVPNConnectionInput carries the parameters of CreateVPNConnection.
// Exactly one of VPNGatewayID or TransitGatewayID must be set.
type CreateVPNConnectionInput struct {
	Type              string            `json:"type,omitempty"`
	CustomerGatewayID string            `json:"customer_gateway_id"`
	VPNGatewayID      string            `json:"vpn_gateway_id,omitempty"`
	TransitGatewayID  string            `json:"transit_gateway_id,omitempty"`
	Tags              map[string]string `json:"tags,omitempty"`
}

// CreateVPNConnection creates a VPN connection.
func (b *Backend) CreateVPNConnection(in CreateVPNConnectionInput) (*VPNConnection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.customerGateways[in.CustomerGatewayID]; !ok {
		return nil, notFoundCustomerGateway(in.CustomerGatewayID)
	}
	switch {
	case in.VPNGatewayID != "":
		if _, err := b.getVPNGateway(in.VPNGatewayID); err != nil {
			return nil, err
		}
	case in.TransitGatewayID != "":
		if _, ok := b.transitGateways[in.TransitGatewayID]; !ok {
			return nil, notFoundTransitGateway(in.TransitGatewayID)
		}
	default:
		return nil, missingParameter("VpnGatewayId")
	}
	connType := in.Type
	if connType == "" {
		connType = "ipsec.1"
	}
	c := &VPNConnection{
		ID:                newID(idPrefixVPNConnection),
		Type:              connType,
		CustomerGatewayID: in.CustomerGatewayID,
		VPNGatewayID:      in.VPNGatewayID,
		TransitGatewayID:  in.TransitGatewayID,
		State:             "available",
		Tags:              TagSet{},
	}
	c.Tags.Merge(in.Tags)
	b.vpnConnections[c.ID] = c
	return c, nil
}

// DescribeVPNConnections returns the connections matching ids and
// filters.
func (b *Backend) DescribeVPNConnections(ids []string, filters Filters) ([]*VPNConnection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matches []*VPNConnection
	if len(ids) > 0 {
		for _, id := range ids {
			c, ok := b.vpnConnections[id]
			if !ok {
				return nil, notFoundVPNConnection(id)
			}
			matches = append(matches, c)
		}
	} else {
		matches = sortedByID(b.vpnConnections)
	}
	return applyFilters("DescribeVpnConnections", filters, vpnConnectionFilters, matches)
}

// DeleteVPNConnection deletes a VPN connection.
func (b *Backend) DeleteVPNConnection(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.vpnConnections[id]; !ok {
		return notFoundVPNConnection(id)
	}
	delete(b.vpnConnections, id)
	return nil
}
