package ec2

import (
	"testing"
)

func TestDefaultVPC(t *testing.T) {
	b := newTestBackend(t)

	vpc := b.DefaultVPC()
	if vpc == nil {
		t.Fatal("Expected a default VPC")
	}
	if vpc.CIDRBlock != "172.31.0.0/16" {
		t.Errorf("Expected default CIDR 172.31.0.0/16, got %s", vpc.CIDRBlock)
	}
	if !vpc.IsDefault || !vpc.EnableDNSHostnames || !vpc.EnableDNSSupport {
		t.Error("Expected default VPC with DNS support and hostnames enabled")
	}

	subnets, err := b.DescribeSubnets(nil, Filters{"vpc-id": {vpc.ID}})
	if err != nil {
		t.Fatalf("DescribeSubnets failed: %v", err)
	}
	// One /20 per availability zone of us-east-1.
	if len(subnets) != 6 {
		t.Fatalf("Expected 6 default subnets, got %d", len(subnets))
	}
	seen := make(map[string]bool)
	for _, s := range subnets {
		if !s.DefaultForAZ || !s.MapPublicIPOnLaunch {
			t.Errorf("Expected subnet %s default-for-az with public IPs on launch", s.ID)
		}
		if seen[s.AvailabilityZone] {
			t.Errorf("Duplicate default subnet in zone %s", s.AvailabilityZone)
		}
		seen[s.AvailabilityZone] = true
	}
}

func TestCreateVPC_CIDRValidation(t *testing.T) {
	tests := []struct {
		name string
		cidr string
		code string
	}{
		{"missing", "", "MissingParameter"},
		{"malformed", "not-a-cidr", "InvalidVpc.Range"},
		{"too wide", "10.0.0.0/12", "InvalidVpc.Range"},
		{"too narrow", "10.0.0.0/29", "InvalidVpc.Range"},
		{"ipv6", "2001:db8::/32", "InvalidVpc.Range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBackend(t)
			_, err := b.CreateVPC(CreateVPCInput{CIDRBlock: tt.cidr})
			wantAPIError(t, err, tt.code)
		})
	}

	b := newTestBackend(t)
	vpc, err := b.CreateVPC(CreateVPCInput{CIDRBlock: "10.1.2.3/16"})
	if err != nil {
		t.Fatalf("CreateVPC failed: %v", err)
	}
	if vpc.CIDRBlock != "10.1.0.0/16" {
		t.Errorf("Expected canonicalized CIDR 10.1.0.0/16, got %s", vpc.CIDRBlock)
	}
}

func TestCreateVPC_Companions(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")

	if vpc.State != "available" || vpc.IsDefault {
		t.Errorf("Unexpected VPC state: %+v", vpc)
	}
	if vpc.EnableDNSHostnames {
		t.Error("Expected DNS hostnames off for a non-default VPC")
	}
	if vpc.DHCPOptionsID == "" {
		t.Error("Expected the default DHCP option set associated")
	}
	if len(vpc.CIDRAssociations) != 1 || vpc.CIDRAssociations[0].CIDRBlock != "10.0.0.0/16" {
		t.Errorf("Expected one primary CIDR association, got %+v", vpc.CIDRAssociations)
	}

	tables, err := b.DescribeRouteTables(nil, Filters{"vpc-id": {vpc.ID}, "association.main": {"true"}})
	if err != nil {
		t.Fatalf("DescribeRouteTables failed: %v", err)
	}
	if len(tables) != 1 {
		t.Fatalf("Expected one main route table, got %d", len(tables))
	}
	local, ok := tables[0].Routes["10.0.0.0/16"]
	if !ok || local.GatewayID != "local" {
		t.Errorf("Expected a local route for the primary CIDR, got %+v", tables[0].Routes)
	}

	groups, err := b.DescribeSecurityGroups(nil, nil, Filters{"vpc-id": {vpc.ID}})
	if err != nil {
		t.Fatalf("DescribeSecurityGroups failed: %v", err)
	}
	if len(groups) != 1 || groups[0].Name != "default" {
		t.Errorf("Expected the default security group, got %+v", groups)
	}

	acls, err := b.DescribeNetworkACLs(nil, Filters{"vpc-id": {vpc.ID}, "default": {"true"}})
	if err != nil {
		t.Fatalf("DescribeNetworkAcls failed: %v", err)
	}
	if len(acls) != 1 {
		t.Errorf("Expected a default network ACL, got %d", len(acls))
	}
}

func TestDeleteVPC(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")

	// A second route table blocks deletion until it is removed.
	rt, err := b.CreateRouteTable(vpc.ID, nil)
	if err != nil {
		t.Fatalf("CreateRouteTable failed: %v", err)
	}
	wantAPIError(t, b.DeleteVPC(vpc.ID), "DependencyViolation")
	if err := b.DeleteRouteTable(rt.ID); err != nil {
		t.Fatalf("DeleteRouteTable failed: %v", err)
	}

	if err := b.DeleteVPC(vpc.ID); err != nil {
		t.Fatalf("DeleteVPC failed: %v", err)
	}
	if _, err := b.GetVPC(vpc.ID); err == nil {
		t.Error("Expected VPC gone")
	}
	groups, _ := b.DescribeSecurityGroups(nil, nil, Filters{"vpc-id": {vpc.ID}})
	if len(groups) != 0 {
		t.Error("Expected the default security group removed with the VPC")
	}

	wantAPIError(t, b.DeleteVPC(vpc.ID), "InvalidVpcID.NotFound")
}

func TestDeleteVPC_BlockedByVPNGateway(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")
	vgw := b.CreateVPNGateway("", "", nil)

	if _, err := b.AttachVPNGateway(vgw.ID, vpc.ID); err != nil {
		t.Fatalf("AttachVPNGateway failed: %v", err)
	}
	wantAPIError(t, b.DeleteVPC(vpc.ID), "DependencyViolation")

	if err := b.DetachVPNGateway(vgw.ID, vpc.ID); err != nil {
		t.Fatalf("DetachVPNGateway failed: %v", err)
	}
	if err := b.DeleteVPC(vpc.ID); err != nil {
		t.Errorf("DeleteVPC failed after detach: %v", err)
	}
}

func TestAssociateVPCCIDRBlock(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")

	assoc, err := b.AssociateVPCCIDRBlock(AssociateVPCCIDRBlockInput{
		VPCID:     vpc.ID,
		CIDRBlock: "10.1.0.0/16",
	})
	if err != nil {
		t.Fatalf("AssociateVPCCIDRBlock failed: %v", err)
	}
	if assoc.State != "associated" {
		t.Errorf("Expected state associated, got %s", assoc.State)
	}

	// The primary block plus four secondaries hit the IPv4 limit.
	for _, cidr := range []string{"10.2.0.0/16", "10.3.0.0/16", "10.4.0.0/16"} {
		if _, err := b.AssociateVPCCIDRBlock(AssociateVPCCIDRBlockInput{VPCID: vpc.ID, CIDRBlock: cidr}); err != nil {
			t.Fatalf("AssociateVPCCIDRBlock(%s) failed: %v", cidr, err)
		}
	}
	_, err = b.AssociateVPCCIDRBlock(AssociateVPCCIDRBlockInput{VPCID: vpc.ID, CIDRBlock: "10.5.0.0/16"})
	wantAPIError(t, err, "CidrLimitExceeded")

	// Disassociating frees a slot; the stale entry is purged on the next
	// associate.
	if _, err := b.DisassociateVPCCIDRBlock(assoc.ID); err != nil {
		t.Fatalf("DisassociateVPCCIDRBlock failed: %v", err)
	}
	if _, err := b.AssociateVPCCIDRBlock(AssociateVPCCIDRBlockInput{VPCID: vpc.ID, CIDRBlock: "10.5.0.0/16"}); err != nil {
		t.Fatalf("AssociateVPCCIDRBlock failed after disassociate: %v", err)
	}

	primary := vpc.primaryAssociation()
	if primary == nil {
		t.Fatal("Expected a primary association")
	}
	_, err = b.DisassociateVPCCIDRBlock(primary.ID)
	wantAPIError(t, err, "OperationNotPermitted")

	_, err = b.DisassociateVPCCIDRBlock("vpc-cidr-assoc-00000000000000000")
	wantAPIError(t, err, "InvalidVpcCidrBlockAssociationIdError.NotFound")
}

func TestDisassociateVPCCIDRBlock_RemovesRoutes(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")
	assoc, err := b.AssociateVPCCIDRBlock(AssociateVPCCIDRBlockInput{
		VPCID:     vpc.ID,
		CIDRBlock: "10.1.0.0/16",
	})
	if err != nil {
		t.Fatalf("AssociateVPCCIDRBlock failed: %v", err)
	}

	// Tables created after the association carry its local route.
	rt, _ := b.CreateRouteTable(vpc.ID, nil)
	if _, ok := rt.Routes["10.1.0.0/16"]; !ok {
		t.Fatal("Expected a local route for the secondary block")
	}

	if _, err := b.DisassociateVPCCIDRBlock(assoc.ID); err != nil {
		t.Fatalf("DisassociateVPCCIDRBlock failed: %v", err)
	}
	if _, ok := rt.Routes["10.1.0.0/16"]; ok {
		t.Error("Expected the secondary block's route removed")
	}
	if _, ok := rt.Routes["10.0.0.0/16"]; !ok {
		t.Error("Expected the primary block's route kept")
	}
}

func TestAssociateVPCCIDRBlock_IPv6(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")

	assoc, err := b.AssociateVPCCIDRBlock(AssociateVPCCIDRBlockInput{
		VPCID:                       vpc.ID,
		AmazonProvidedIPv6CIDRBlock: true,
	})
	if err != nil {
		t.Fatalf("AssociateVPCCIDRBlock failed: %v", err)
	}
	if !assoc.IsIPv6 {
		t.Error("Expected an IPv6 association")
	}

	_, err = b.AssociateVPCCIDRBlock(AssociateVPCCIDRBlockInput{
		VPCID:                       vpc.ID,
		AmazonProvidedIPv6CIDRBlock: true,
	})
	wantAPIError(t, err, "CidrLimitExceeded")
}

func TestDescribeVPCs(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")
	mustCreateVPC(t, b, "192.168.0.0/16")

	all, err := b.DescribeVPCs(nil, nil)
	if err != nil {
		t.Fatalf("DescribeVPCs failed: %v", err)
	}
	if len(all) != 3 { // the default VPC plus two
		t.Fatalf("Expected 3 VPCs, got %d", len(all))
	}

	got, err := b.DescribeVPCs(nil, Filters{"cidr": {"10.0.0.0/16"}})
	if err != nil {
		t.Fatalf("DescribeVPCs failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != vpc.ID {
		t.Errorf("Expected the 10.0.0.0/16 VPC, got %+v", got)
	}

	got, err = b.DescribeVPCs(nil, Filters{"is-default": {"true"}})
	if err != nil {
		t.Fatalf("DescribeVPCs failed: %v", err)
	}
	if len(got) != 1 || !got[0].IsDefault {
		t.Errorf("Expected the default VPC, got %+v", got)
	}

	if _, err := b.DescribeVPCs([]string{"vpc-00000000000000000"}, nil); err == nil {
		t.Error("Expected error for an unknown id")
	}
	_, err = b.DescribeVPCs(nil, Filters{"no-such-filter": {"x"}})
	wantAPIError(t, err, "FilterNotImplemented")
}

func TestVPCAttributes(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")

	v, err := b.DescribeVPCAttribute(vpc.ID, "enableDnsSupport")
	if err != nil || !v {
		t.Errorf("Expected enableDnsSupport true, got %v (%v)", v, err)
	}
	v, err = b.DescribeVPCAttribute(vpc.ID, "enableDnsHostnames")
	if err != nil || v {
		t.Errorf("Expected enableDnsHostnames false, got %v (%v)", v, err)
	}

	if err := b.ModifyVPCAttribute(vpc.ID, "enableDnsHostnames", true); err != nil {
		t.Fatalf("ModifyVPCAttribute failed: %v", err)
	}
	v, _ = b.DescribeVPCAttribute(vpc.ID, "enableDnsHostnames")
	if !v {
		t.Error("Expected enableDnsHostnames true after modify")
	}

	_, err = b.DescribeVPCAttribute(vpc.ID, "bogus")
	wantAPIError(t, err, "InvalidParameterValue")
	wantAPIError(t, b.ModifyVPCAttribute(vpc.ID, "bogus", true), "InvalidParameterValue")
}
