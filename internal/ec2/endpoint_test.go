package ec2

import (
	"strings"
	"testing"
)

func TestCreateVPCEndpoint_Gateway(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")
	rt, err := b.CreateRouteTable(vpc.ID, nil)
	if err != nil {
		t.Fatalf("CreateRouteTable failed: %v", err)
	}

	ep, err := b.CreateVPCEndpoint(CreateVPCEndpointInput{
		VPCID:         vpc.ID,
		ServiceName:   "com.amazonaws.us-east-1.s3",
		RouteTableIDs: []string{rt.ID},
	})
	if err != nil {
		t.Fatalf("CreateVPCEndpoint failed: %v", err)
	}
	if ep.Type != EndpointTypeGateway {
		t.Errorf("Expected Gateway default type, got %s", ep.Type)
	}
	if ep.State != "available" || len(ep.RouteTableIDs) != 1 {
		t.Errorf("Unexpected endpoint: %+v", ep)
	}
	if ep.ClientToken == "" {
		t.Error("Expected a generated client token")
	}

	tests := []struct {
		name    string
		in      CreateVPCEndpointInput
		errCode string
	}{
		{"unknown service", CreateVPCEndpointInput{
			VPCID: vpc.ID, ServiceName: "com.amazonaws.us-east-1.nope",
		}, "InvalidParameterValue"},
		{"bad type", CreateVPCEndpointInput{
			VPCID: vpc.ID, ServiceName: "com.amazonaws.us-east-1.s3", Type: "Tunnel",
		}, "InvalidParameterValue"},
		{"unknown route table", CreateVPCEndpointInput{
			VPCID: vpc.ID, ServiceName: "com.amazonaws.us-east-1.s3",
			RouteTableIDs: []string{"rtb-00000000000000000"},
		}, "InvalidRouteTableID.NotFound"},
		{"unknown vpc", CreateVPCEndpointInput{
			VPCID: "vpc-00000000000000000", ServiceName: "com.amazonaws.us-east-1.s3",
		}, "InvalidVpcID.NotFound"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := b.CreateVPCEndpoint(test.in)
			wantAPIError(t, err, test.errCode)
		})
	}
}

func TestCreateVPCEndpoint_Interface(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")
	subnetA := mustCreateSubnet(t, b, vpc.ID, "10.0.1.0/24")
	subnetB := mustCreateSubnet(t, b, vpc.ID, "10.0.2.0/24")

	ep, err := b.CreateVPCEndpoint(CreateVPCEndpointInput{
		VPCID:             vpc.ID,
		ServiceName:       "com.amazonaws.us-east-1.ec2",
		Type:              EndpointTypeInterface,
		SubnetIDs:         []string{subnetA.ID, subnetB.ID},
		PrivateDNSEnabled: true,
	})
	if err != nil {
		t.Fatalf("CreateVPCEndpoint failed: %v", err)
	}
	if len(ep.NetworkInterfaceIDs) != 2 {
		t.Fatalf("Expected one interface per subnet, got %d", len(ep.NetworkInterfaceIDs))
	}
	for _, eniID := range ep.NetworkInterfaceIDs {
		eni, err := b.GetNetworkInterface(eniID)
		if err != nil {
			t.Fatalf("GetNetworkInterface failed: %v", err)
		}
		if !strings.HasPrefix(eni.Description, "VPC Endpoint Interface ") {
			t.Errorf("Unexpected interface description: %q", eni.Description)
		}
	}
}

func TestCreateVPCEndpoint_ClientToken(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")

	first, err := b.CreateVPCEndpoint(CreateVPCEndpointInput{
		VPCID:       vpc.ID,
		ServiceName: "com.amazonaws.us-east-1.s3",
		ClientToken: "retry-token",
	})
	if err != nil {
		t.Fatalf("CreateVPCEndpoint failed: %v", err)
	}
	// A retry with the same token returns the original endpoint.
	second, err := b.CreateVPCEndpoint(CreateVPCEndpointInput{
		VPCID:       vpc.ID,
		ServiceName: "com.amazonaws.us-east-1.dynamodb",
		ClientToken: "retry-token",
	})
	if err != nil {
		t.Fatalf("CreateVPCEndpoint retry failed: %v", err)
	}
	if second != first {
		t.Errorf("Expected the original endpoint back, got %s and %s", first.ID, second.ID)
	}
	eps, _ := b.DescribeVPCEndpoints(nil, nil)
	if len(eps) != 1 {
		t.Errorf("Expected 1 endpoint, got %d", len(eps))
	}
}

func TestModifyVPCEndpoint(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")
	subnet := mustCreateSubnet(t, b, vpc.ID, "10.0.1.0/24")
	rtA, _ := b.CreateRouteTable(vpc.ID, nil)
	rtB, _ := b.CreateRouteTable(vpc.ID, nil)

	ep, _ := b.CreateVPCEndpoint(CreateVPCEndpointInput{
		VPCID:         vpc.ID,
		ServiceName:   "com.amazonaws.us-east-1.s3",
		RouteTableIDs: []string{rtA.ID},
	})

	policy := `{"Statement":[]}`
	enabled := true
	if err := b.ModifyVPCEndpoint(ModifyVPCEndpointInput{
		VPCEndpointID:       ep.ID,
		AddRouteTableIDs:    []string{rtB.ID},
		RemoveRouteTableIDs: []string{rtA.ID},
		PolicyDocument:      &policy,
		PrivateDNSEnabled:   &enabled,
	}); err != nil {
		t.Fatalf("ModifyVPCEndpoint failed: %v", err)
	}
	if len(ep.RouteTableIDs) != 1 || ep.RouteTableIDs[0] != rtB.ID {
		t.Errorf("Unexpected route tables: %v", ep.RouteTableIDs)
	}
	if ep.PolicyDocument != policy || !ep.PrivateDNSEnabled {
		t.Errorf("Unexpected attributes: %+v", ep)
	}

	// Adding a subnet to an interface endpoint materializes an interface.
	iface, _ := b.CreateVPCEndpoint(CreateVPCEndpointInput{
		VPCID:       vpc.ID,
		ServiceName: "com.amazonaws.us-east-1.sts",
		Type:        EndpointTypeInterface,
	})
	if err := b.ModifyVPCEndpoint(ModifyVPCEndpointInput{
		VPCEndpointID: iface.ID,
		AddSubnetIDs:  []string{subnet.ID},
	}); err != nil {
		t.Fatalf("ModifyVPCEndpoint failed: %v", err)
	}
	if len(iface.NetworkInterfaceIDs) != 1 {
		t.Errorf("Expected one interface, got %d", len(iface.NetworkInterfaceIDs))
	}

	err := b.ModifyVPCEndpoint(ModifyVPCEndpointInput{VPCEndpointID: "vpce-00000000000000000"})
	wantAPIError(t, err, "InvalidVpcEndpointId.NotFound")
}

func TestDeleteVPCEndpoints(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")
	subnet := mustCreateSubnet(t, b, vpc.ID, "10.0.1.0/24")
	before := subnet.AvailableIPAddressCount()

	ep, _ := b.CreateVPCEndpoint(CreateVPCEndpointInput{
		VPCID:       vpc.ID,
		ServiceName: "com.amazonaws.us-east-1.ec2",
		Type:        EndpointTypeInterface,
		SubnetIDs:   []string{subnet.ID},
	})
	if subnet.AvailableIPAddressCount() != before-1 {
		t.Errorf("Expected one address consumed, got %d", subnet.AvailableIPAddressCount())
	}
	eniID := ep.NetworkInterfaceIDs[0]

	if err := b.DeleteVPCEndpoints([]string{ep.ID}); err != nil {
		t.Fatalf("DeleteVPCEndpoints failed: %v", err)
	}
	// The endpoint's interfaces and their addresses are released.
	_, err := b.GetNetworkInterface(eniID)
	wantAPIError(t, err, "InvalidNetworkInterfaceID.NotFound")
	if subnet.AvailableIPAddressCount() != before {
		t.Errorf("Expected the address released, got %d", subnet.AvailableIPAddressCount())
	}

	err = b.DeleteVPCEndpoints([]string{ep.ID})
	wantAPIError(t, err, "InvalidVpcEndpointId.NotFound")
}

func TestEndpointServices(t *testing.T) {
	b := newTestBackend(t)

	got, err := b.DescribeEndpointServices(nil, nil)
	if err != nil || len(got) != 5 {
		t.Fatalf("Expected 5 default services, got %d (%v)", len(got), err)
	}
	got, err = b.DescribeEndpointServices([]string{"com.amazonaws.us-east-1.s3"}, nil)
	if err != nil || len(got) != 1 || got[0].ServiceType != EndpointTypeGateway {
		t.Errorf("Unexpected s3 service: %v (%v)", got, err)
	}
	_, err = b.DescribeEndpointServices([]string{"com.amazonaws.us-east-1.nope"}, nil)
	wantAPIError(t, err, "InvalidParameterValue")

	// Managed services cannot be deleted.
	err = b.DeleteEndpointServices([]string{got[0].ID})
	wantAPIError(t, err, "OperationNotPermitted")
}

func TestCreateEndpointService(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")

	svc, err := b.CreateEndpointService(CreateEndpointServiceInput{
		AcceptanceRequired: true,
		PrivateDNSName:     "internal.example.com",
	})
	if err != nil {
		t.Fatalf("CreateEndpointService failed: %v", err)
	}
	if svc.ServiceName != "com.amazonaws.vpce.us-east-1."+svc.ID {
		t.Errorf("Unexpected service name: %s", svc.ServiceName)
	}
	if svc.ServiceType != EndpointTypeInterface || svc.Managed {
		t.Errorf("Unexpected service: %+v", svc)
	}

	// A live endpoint blocks service deletion.
	ep, err := b.CreateVPCEndpoint(CreateVPCEndpointInput{
		VPCID:       vpc.ID,
		ServiceName: svc.ServiceName,
		Type:        EndpointTypeInterface,
	})
	if err != nil {
		t.Fatalf("CreateVPCEndpoint failed: %v", err)
	}
	err = b.DeleteEndpointServices([]string{svc.ID})
	wantAPIError(t, err, "DependencyViolation")

	if err := b.DeleteVPCEndpoints([]string{ep.ID}); err != nil {
		t.Fatalf("DeleteVPCEndpoints failed: %v", err)
	}
	if err := b.DeleteEndpointServices([]string{svc.ID}); err != nil {
		t.Fatalf("DeleteEndpointServices failed: %v", err)
	}
	err = b.DeleteEndpointServices([]string{svc.ID})
	wantAPIError(t, err, "InvalidVpcEndpointServiceId.NotFound")
}
