package ec2

import (
	"testing"
)

func TestCreateRouteTable(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")
	if _, err := b.AssociateVPCCIDRBlock(AssociateVPCCIDRBlockInput{VPCID: vpc.ID, CIDRBlock: "10.1.0.0/16"}); err != nil {
		t.Fatalf("AssociateVPCCIDRBlock failed: %v", err)
	}

	rt, err := b.CreateRouteTable(vpc.ID, map[string]string{"Name": "private"})
	if err != nil {
		t.Fatalf("CreateRouteTable failed: %v", err)
	}
	if rt.isMain() {
		t.Error("Expected a non-main route table")
	}
	// Local routes for every associated CIDR block.
	for _, cidr := range []string{"10.0.0.0/16", "10.1.0.0/16"} {
		route, ok := rt.Routes[cidr]
		if !ok || route.GatewayID != "local" {
			t.Errorf("Expected local route for %s, got %+v", cidr, route)
		}
	}

	if _, err := b.CreateRouteTable("vpc-00000000000000000", nil); err == nil {
		t.Error("Expected error for unknown VPC")
	}
}

func TestCreateRoute(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")
	rt, _ := b.CreateRouteTable(vpc.ID, nil)
	igw := b.CreateInternetGateway(nil)
	if err := b.AttachInternetGateway(igw.ID, vpc.ID); err != nil {
		t.Fatalf("AttachInternetGateway failed: %v", err)
	}

	route, err := b.CreateRoute(RouteInput{
		RouteTableID:         rt.ID,
		DestinationCIDRBlock: "0.0.0.0/0",
		GatewayID:            igw.ID,
	})
	if err != nil {
		t.Fatalf("CreateRoute failed: %v", err)
	}
	if route.State != "active" || route.Origin != "CreateRoute" {
		t.Errorf("Unexpected route: %+v", route)
	}
	if route.ID != rt.ID+"~0.0.0.0/0" {
		t.Errorf("Unexpected route id %s", route.ID)
	}

	_, err = b.CreateRoute(RouteInput{
		RouteTableID:         rt.ID,
		DestinationCIDRBlock: "0.0.0.0/0",
		GatewayID:            igw.ID,
	})
	wantAPIError(t, err, "RouteAlreadyExists")

	// Destinations are canonicalized before the duplicate check.
	_, err = b.CreateRoute(RouteInput{
		RouteTableID:         rt.ID,
		DestinationCIDRBlock: "10.0.0.0/16",
		GatewayID:            igw.ID,
	})
	wantAPIError(t, err, "RouteAlreadyExists")

	tests := []struct {
		name string
		in   RouteInput
		code string
	}{
		{
			"unknown gateway",
			RouteInput{RouteTableID: rt.ID, DestinationCIDRBlock: "1.0.0.0/8", GatewayID: "igw-00000000000000000"},
			"InvalidInternetGatewayID.NotFound",
		},
		{
			"bad gateway prefix",
			RouteInput{RouteTableID: rt.ID, DestinationCIDRBlock: "1.0.0.0/8", GatewayID: "banana-1"},
			"InvalidParameterValue",
		},
		{
			"no target",
			RouteInput{RouteTableID: rt.ID, DestinationCIDRBlock: "1.0.0.0/8"},
			"MissingParameter",
		},
		{
			"unknown nat",
			RouteInput{RouteTableID: rt.ID, DestinationCIDRBlock: "1.0.0.0/8", NatGatewayID: "nat-00000000000000000"},
			"NatGatewayNotFound",
		},
		{
			"unknown table",
			RouteInput{RouteTableID: "rtb-00000000000000000", DestinationCIDRBlock: "1.0.0.0/8", GatewayID: igw.ID},
			"InvalidRouteTableID.NotFound",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.CreateRoute(tt.in)
			wantAPIError(t, err, tt.code)
		})
	}
}

func TestCreateRouteOverlap(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")
	rt, _ := b.CreateRouteTable(vpc.ID, nil)
	igw := b.CreateInternetGateway(nil)
	if err := b.AttachInternetGateway(igw.ID, vpc.ID); err != nil {
		t.Fatalf("AttachInternetGateway failed: %v", err)
	}

	if _, err := b.CreateRoute(RouteInput{
		RouteTableID: rt.ID, DestinationCIDRBlock: "172.16.0.0/16", GatewayID: igw.ID,
	}); err != nil {
		t.Fatalf("CreateRoute failed: %v", err)
	}

	// Any overlap with an existing non-local route's CIDR is a conflict,
	// whether narrower or wider.
	_, err := b.CreateRoute(RouteInput{
		RouteTableID: rt.ID, DestinationCIDRBlock: "172.16.1.0/24", GatewayID: igw.ID,
	})
	wantAPIError(t, err, "RouteAlreadyExists")
	_, err = b.CreateRoute(RouteInput{
		RouteTableID: rt.ID, DestinationCIDRBlock: "172.16.0.0/12", GatewayID: igw.ID,
	})
	wantAPIError(t, err, "RouteAlreadyExists")

	// Overlapping the local route is allowed.
	if _, err := b.CreateRoute(RouteInput{
		RouteTableID: rt.ID, DestinationCIDRBlock: "10.0.5.0/24", GatewayID: igw.ID,
	}); err != nil {
		t.Errorf("Expected route inside the VPC block to succeed: %v", err)
	}
}

func TestRouteDestinations(t *testing.T) {
	b := newTestBackend(t)
	vpc, err := b.CreateVPC(CreateVPCInput{CIDRBlock: "10.0.0.0/16", AmazonProvidedIPv6CIDRBlock: true})
	if err != nil {
		t.Fatalf("CreateVPC failed: %v", err)
	}
	v6 := vpc.associatedCIDRs(true)
	if len(v6) != 1 {
		t.Fatalf("Expected one IPv6 block, got %v", v6)
	}

	// The main table carries a local route for the IPv6 block too.
	main := b.mainRouteTable(vpc.ID)
	local, ok := main.Routes[v6[0]]
	if !ok || local.GatewayID != "local" || local.DestinationIPv6CIDRBlock != v6[0] {
		t.Fatalf("Expected IPv6 local route for %s, got %+v", v6[0], local)
	}

	rt, _ := b.CreateRouteTable(vpc.ID, nil)
	eigw, err := b.CreateEgressOnlyInternetGateway(vpc.ID, nil)
	if err != nil {
		t.Fatalf("CreateEgressOnlyInternetGateway failed: %v", err)
	}
	route, err := b.CreateRoute(RouteInput{
		RouteTableID:             rt.ID,
		DestinationIPv6CIDRBlock: "::/0",
		EgressOnlyGatewayID:      eigw.ID,
	})
	if err != nil {
		t.Fatalf("CreateRoute failed: %v", err)
	}
	if route.DestinationIPv6CIDRBlock != "::/0" || route.DestinationCIDRBlock != "" {
		t.Errorf("Unexpected destinations on %+v", route)
	}

	// Prefix-list destinations route by list id.
	pl, err := b.CreateManagedPrefixList(CreateManagedPrefixListInput{
		Name: "corp", MaxEntries: 5,
		Entries: []PrefixListEntry{{CIDR: "192.168.0.0/16"}},
	})
	if err != nil {
		t.Fatalf("CreateManagedPrefixList failed: %v", err)
	}
	igw := b.CreateInternetGateway(nil)
	b.AttachInternetGateway(igw.ID, vpc.ID)
	if _, err := b.CreateRoute(RouteInput{
		RouteTableID: rt.ID, DestinationPrefixListID: pl.ID, GatewayID: igw.ID,
	}); err != nil {
		t.Fatalf("CreateRoute failed: %v", err)
	}
	_, err = b.CreateRoute(RouteInput{
		RouteTableID: rt.ID, DestinationPrefixListID: "pl-00000000000000000", GatewayID: igw.ID,
	})
	wantAPIError(t, err, "InvalidPrefixListID.NotFound")

	// At most one destination form per route.
	_, err = b.CreateRoute(RouteInput{
		RouteTableID:         rt.ID,
		DestinationCIDRBlock: "1.0.0.0/8", DestinationIPv6CIDRBlock: "100::/64",
		GatewayID: igw.ID,
	})
	wantAPIError(t, err, "InvalidParameterValue")

	// Deleting with several destination forms prefers IPv6, then the
	// prefix list, then IPv4.
	if err := b.DeleteRoute(rt.ID, "", "::/0", pl.ID); err != nil {
		t.Fatalf("DeleteRoute failed: %v", err)
	}
	if _, ok := rt.Routes["::/0"]; ok {
		t.Error("Expected the IPv6 route deleted")
	}
	if _, ok := rt.Routes[pl.ID]; !ok {
		t.Error("Expected the prefix-list route kept")
	}
	if err := b.DeleteRoute(rt.ID, "", "", pl.ID); err != nil {
		t.Fatalf("DeleteRoute failed: %v", err)
	}
}

func TestCreateRoute_EndpointTarget(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")
	subnet := mustCreateSubnet(t, b, vpc.ID, "10.0.1.0/24")
	rt, _ := b.CreateRouteTable(vpc.ID, nil)

	gwEP, err := b.CreateVPCEndpoint(CreateVPCEndpointInput{
		VPCID:       vpc.ID,
		ServiceName: "com.amazonaws.us-east-1.s3",
	})
	if err != nil {
		t.Fatalf("CreateVPCEndpoint failed: %v", err)
	}
	if _, err := b.CreateRoute(RouteInput{
		RouteTableID:         rt.ID,
		DestinationCIDRBlock: "52.216.0.0/15",
		VPCEndpointID:        gwEP.ID,
	}); err != nil {
		t.Errorf("Expected gateway endpoint route to succeed: %v", err)
	}

	ifEP, err := b.CreateVPCEndpoint(CreateVPCEndpointInput{
		VPCID:       vpc.ID,
		ServiceName: "com.amazonaws.us-east-1.ec2",
		Type:        EndpointTypeInterface,
		SubnetIDs:   []string{subnet.ID},
	})
	if err != nil {
		t.Fatalf("CreateVPCEndpoint failed: %v", err)
	}
	_, err = b.CreateRoute(RouteInput{
		RouteTableID:         rt.ID,
		DestinationCIDRBlock: "1.2.3.0/24",
		VPCEndpointID:        ifEP.ID,
	})
	wantAPIError(t, err, "RouteNotSupported")
}

func TestReplaceAndDeleteRoute(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")
	rt, _ := b.CreateRouteTable(vpc.ID, nil)
	igw := b.CreateInternetGateway(nil)
	b.AttachInternetGateway(igw.ID, vpc.ID)
	vgw := b.CreateVPNGateway("", "", nil)

	if _, err := b.CreateRoute(RouteInput{
		RouteTableID: rt.ID, DestinationCIDRBlock: "0.0.0.0/0", GatewayID: igw.ID,
	}); err != nil {
		t.Fatalf("CreateRoute failed: %v", err)
	}

	route, err := b.ReplaceRoute(RouteInput{
		RouteTableID: rt.ID, DestinationCIDRBlock: "0.0.0.0/0", GatewayID: vgw.ID,
	})
	if err != nil {
		t.Fatalf("ReplaceRoute failed: %v", err)
	}
	if route.GatewayID != vgw.ID {
		t.Errorf("Expected replaced target %s, got %s", vgw.ID, route.GatewayID)
	}

	_, err = b.ReplaceRoute(RouteInput{
		RouteTableID: rt.ID, DestinationCIDRBlock: "9.9.9.0/24", GatewayID: igw.ID,
	})
	wantAPIError(t, err, "InvalidRoute.NotFound")

	wantAPIError(t, b.DeleteRoute(rt.ID, "10.0.0.0/16", "", ""), "InvalidParameterValue")
	if err := b.DeleteRoute(rt.ID, "0.0.0.0/0", "", ""); err != nil {
		t.Fatalf("DeleteRoute failed: %v", err)
	}
	wantAPIError(t, b.DeleteRoute(rt.ID, "0.0.0.0/0", "", ""), "InvalidRoute.NotFound")
}

func TestReplaceRouteInterfaceTarget(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")
	subnet := mustCreateSubnet(t, b, vpc.ID, "10.0.1.0/24")
	rt, _ := b.CreateRouteTable(vpc.ID, nil)
	igw := b.CreateInternetGateway(nil)
	b.AttachInternetGateway(igw.ID, vpc.ID)

	eni, err := b.CreateNetworkInterface(CreateNetworkInterfaceInput{SubnetID: subnet.ID})
	if err != nil {
		t.Fatalf("CreateNetworkInterface failed: %v", err)
	}
	if _, err := b.CreateRoute(RouteInput{
		RouteTableID: rt.ID, DestinationCIDRBlock: "0.0.0.0/0", GatewayID: igw.ID,
	}); err != nil {
		t.Fatalf("CreateRoute failed: %v", err)
	}

	_, err = b.ReplaceRoute(RouteInput{
		RouteTableID: rt.ID, DestinationCIDRBlock: "0.0.0.0/0", NetworkInterfaceID: eni.ID,
	})
	wantAPIError(t, err, "NotImplemented")
}

func TestRouteTableAssociations(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")
	subnet := mustCreateSubnet(t, b, vpc.ID, "10.0.1.0/24")
	rt, _ := b.CreateRouteTable(vpc.ID, nil)
	other, _ := b.CreateRouteTable(vpc.ID, nil)

	assocID, err := b.AssociateRouteTable(rt.ID, subnet.ID, "")
	if err != nil {
		t.Fatalf("AssociateRouteTable failed: %v", err)
	}

	// Associating the same subnet again returns the existing association.
	again, err := b.AssociateRouteTable(rt.ID, subnet.ID, "")
	if err != nil {
		t.Fatalf("AssociateRouteTable failed: %v", err)
	}
	if again != assocID {
		t.Errorf("Expected association id %s again, got %s", assocID, again)
	}
	if len(rt.Associations) != 1 {
		t.Errorf("Expected one association, got %d", len(rt.Associations))
	}

	// An associated table cannot be deleted.
	wantAPIError(t, b.DeleteRouteTable(rt.ID), "DependencyViolation")

	newAssoc, err := b.ReplaceRouteTableAssociation(assocID, other.ID)
	if err != nil {
		t.Fatalf("ReplaceRouteTableAssociation failed: %v", err)
	}
	if _, ok := rt.Associations[assocID]; ok {
		t.Error("Expected old association removed")
	}
	if other.Associations[newAssoc] == nil || other.Associations[newAssoc].SubnetID != subnet.ID {
		t.Error("Expected association moved to the other table")
	}

	if err := b.DisassociateRouteTable(newAssoc); err != nil {
		t.Fatalf("DisassociateRouteTable failed: %v", err)
	}
	wantAPIError(t, b.DisassociateRouteTable(newAssoc), "InvalidAssociationID.NotFound")

	// Both tables are unassociated now and can go.
	if err := b.DeleteRouteTable(rt.ID); err != nil {
		t.Fatalf("DeleteRouteTable failed: %v", err)
	}
	if err := b.DeleteRouteTable(other.ID); err != nil {
		t.Fatalf("DeleteRouteTable failed: %v", err)
	}
}

func TestMainRouteTableAssociation(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")

	main := b.mainRouteTable(vpc.ID)
	if main == nil {
		t.Fatal("Expected a main route table")
	}
	var mainAssoc string
	for id, a := range main.Associations {
		if a.Main {
			mainAssoc = id
		}
	}

	wantAPIError(t, b.DisassociateRouteTable(mainAssoc), "InvalidParameterValue")

	// Replacing the main association moves main-ness to the target table.
	other, _ := b.CreateRouteTable(vpc.ID, nil)
	if _, err := b.ReplaceRouteTableAssociation(mainAssoc, other.ID); err != nil {
		t.Fatalf("ReplaceRouteTableAssociation failed: %v", err)
	}
	if !other.isMain() {
		t.Error("Expected the target table to become main")
	}
	if main.isMain() {
		t.Error("Expected the old table to lose main-ness")
	}
}
