package ec2

import (
	"testing"
)

// newTestBackend returns a fresh us-east-1 backend for the default
// account.
func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := NewDirectory().Backend("", "us-east-1")
	if err != nil {
		t.Fatalf("Backend failed: %v", err)
	}
	return b
}

func mustCreateVPC(t *testing.T, b *Backend, cidr string) *VPC {
	t.Helper()
	vpc, err := b.CreateVPC(CreateVPCInput{CIDRBlock: cidr})
	if err != nil {
		t.Fatalf("CreateVPC(%s) failed: %v", cidr, err)
	}
	return vpc
}

func mustCreateSubnet(t *testing.T, b *Backend, vpcID, cidr string) *Subnet {
	t.Helper()
	subnet, err := b.CreateSubnet(CreateSubnetInput{VPCID: vpcID, CIDRBlock: cidr})
	if err != nil {
		t.Fatalf("CreateSubnet(%s) failed: %v", cidr, err)
	}
	return subnet
}

// wantAPIError asserts that err is an APIError carrying the given code.
func wantAPIError(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected %s error, got nil", code)
	}
	ae, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Expected *APIError, got %T: %v", err, err)
	}
	if ae.Code != code {
		t.Errorf("Expected error code %s, got %s (%s)", code, ae.Code, ae.Message)
	}
}

func TestDirectory_Backend(t *testing.T) {
	dir := NewDirectory()

	b1, err := dir.Backend("", "us-east-1")
	if err != nil {
		t.Fatalf("Backend failed: %v", err)
	}
	if b1.AccountID != DefaultAccountID {
		t.Errorf("Expected default account %s, got %s", DefaultAccountID, b1.AccountID)
	}

	b2, err := dir.Backend("", "us-east-1")
	if err != nil {
		t.Fatalf("Backend failed: %v", err)
	}
	if b1 != b2 {
		t.Error("Expected the same backend for the same (account, region)")
	}

	other, err := dir.Backend("111111111111", "us-east-1")
	if err != nil {
		t.Fatalf("Backend failed: %v", err)
	}
	if other == b1 {
		t.Error("Expected a distinct backend per account")
	}

	if _, err := dir.Backend("", "mars-north-1"); err == nil {
		t.Error("Expected error for unknown region")
	}

	if _, err := dir.Backend("", "eu-west-1"); err != nil {
		t.Fatalf("Backend failed: %v", err)
	}
	active := dir.Active()
	if len(active) != 3 {
		t.Fatalf("Expected 3 active backends, got %d", len(active))
	}
	// Sorted by account, then region.
	if active[0].AccountID != "111111111111" {
		t.Errorf("Expected account 111111111111 first, got %s", active[0].AccountID)
	}
	if active[1].Region != "eu-west-1" || active[2].Region != "us-east-1" {
		t.Errorf("Expected regions sorted, got %s, %s", active[1].Region, active[2].Region)
	}
}

func TestBackend_Reset(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")

	b.Reset()

	if _, err := b.GetVPC(vpc.ID); err == nil {
		t.Error("Expected created VPC gone after reset")
	}
	if b.DefaultVPC() == nil {
		t.Error("Expected default VPC recreated after reset")
	}
	subnets, err := b.DescribeSubnets(nil, Filters{"default-for-az": {"true"}})
	if err != nil {
		t.Fatalf("DescribeSubnets failed: %v", err)
	}
	if len(subnets) != 6 {
		t.Errorf("Expected 6 default subnets after reset, got %d", len(subnets))
	}
}

func TestTags_CreateDeleteDescribe(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")
	subnet := mustCreateSubnet(t, b, vpc.ID, "10.0.1.0/24")

	err := b.CreateTags([]string{vpc.ID, subnet.ID}, map[string]string{
		"Name": "app",
		"Env":  "test",
	})
	if err != nil {
		t.Fatalf("CreateTags failed: %v", err)
	}
	if vpc.Tags.Get("Name") != "app" {
		t.Errorf("Expected Name tag on vpc, got %q", vpc.Tags.Get("Name"))
	}

	if err := b.CreateTags([]string{"vpc-0000000000000000f"}, map[string]string{"x": "y"}); err == nil {
		t.Error("Expected error tagging a missing resource")
	}

	tags, err := b.DescribeTags(Filters{"resource-id": {vpc.ID}})
	if err != nil {
		t.Fatalf("DescribeTags failed: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("Expected 2 tags for vpc, got %d", len(tags))
	}

	tags, err = b.DescribeTags(Filters{"key": {"Env"}, "resource-type": {"subnet"}})
	if err != nil {
		t.Fatalf("DescribeTags failed: %v", err)
	}
	if len(tags) != 1 || tags[0].ResourceID != subnet.ID {
		t.Errorf("Expected the subnet Env tag, got %+v", tags)
	}

	// A mismatched value leaves the tag in place; an empty value deletes
	// unconditionally.
	if err := b.DeleteTags([]string{vpc.ID}, map[string]string{"Env": "prod"}); err != nil {
		t.Fatalf("DeleteTags failed: %v", err)
	}
	if vpc.Tags.Get("Env") != "test" {
		t.Error("Expected mismatched-value delete to be a no-op")
	}
	if err := b.DeleteTags([]string{vpc.ID}, map[string]string{"Env": ""}); err != nil {
		t.Fatalf("DeleteTags failed: %v", err)
	}
	if vpc.Tags.Get("Env") != "" {
		t.Error("Expected Env tag deleted")
	}
}

func TestTags_FilterResources(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")
	if err := b.CreateTags([]string{vpc.ID}, map[string]string{"Name": "payments"}); err != nil {
		t.Fatalf("CreateTags failed: %v", err)
	}

	tests := []struct {
		name    string
		filters Filters
		want    int
	}{
		{"exact value", Filters{"tag:Name": {"payments"}}, 1},
		{"wildcard value", Filters{"tag:Name": {"pay*"}}, 1},
		{"no match", Filters{"tag:Name": {"billing"}}, 0},
		{"tag-key", Filters{"tag-key": {"Name"}}, 1},
		{"tag-value", Filters{"tag-value": {"payments"}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.DescribeVPCs(nil, tt.filters)
			if err != nil {
				t.Fatalf("DescribeVPCs failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Expected %d VPCs, got %d", tt.want, len(got))
			}
		})
	}
}

func TestResourcesExist(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")
	subnet := mustCreateSubnet(t, b, vpc.ID, "10.0.1.0/24")
	igw := b.CreateInternetGateway(nil)

	if err := b.ResourcesExist([]string{vpc.ID, subnet.ID, igw.ID}); err != nil {
		t.Errorf("ResourcesExist failed: %v", err)
	}
	if err := b.ResourcesExist([]string{vpc.CIDRAssociations[0].ID}); err != nil {
		t.Errorf("ResourcesExist(cidr association) failed: %v", err)
	}

	wantAPIError(t, b.ResourcesExist([]string{"subnet-00000000000000000"}), "InvalidSubnetID.NotFound")
	wantAPIError(t, b.ResourcesExist([]string{"nat-00000000000000000"}), "NatGatewayNotFound")
	wantAPIError(t, b.ResourcesExist([]string{"bogus"}), "InvalidParameterValue")

	// The first missing id wins even when later ids exist.
	err := b.ResourcesExist([]string{"igw-00000000000000000", vpc.ID})
	wantAPIError(t, err, "InvalidInternetGatewayID.NotFound")
}

func TestGlobMatch(t *testing.T) {
	tests := []struct {
		pattern, s string
		want       bool
	}{
		{"10.0.0.0/16", "10.0.0.0/16", true},
		{"10.0.*", "10.0.0.0/16", true},
		{"*", "anything", true},
		{"10.?.0.0/16", "10.5.0.0/16", true},
		{"10.?.0.0/16", "10.50.0.0/16", false},
		{"vpc-*", "subnet-abc", false},
		{"", "", true},
		{"*a", "bca", true},
	}
	for _, tt := range tests {
		if got := globMatch(tt.pattern, tt.s); got != tt.want {
			t.Errorf("globMatch(%q, %q) = %v, want %v", tt.pattern, tt.s, got, tt.want)
		}
	}
}
