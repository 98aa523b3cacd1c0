package ec2

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

func intPtr(v int) *int { return &v }

func TestDefaultSecurityGroup(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")

	groups, err := b.DescribeSecurityGroups(nil, nil, Filters{"vpc-id": {vpc.ID}})
	if err != nil {
		t.Fatalf("DescribeSecurityGroups failed: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("Expected one group, got %d", len(groups))
	}
	g := groups[0]
	if len(g.IngressRules) != 1 || len(g.IngressRules[0].SourceGroups) != 1 ||
		g.IngressRules[0].SourceGroups[0].GroupID != g.ID {
		t.Errorf("Expected self-referencing ingress rule, got %+v", g.IngressRules)
	}
	if len(g.EgressRules) != 1 || len(g.EgressRules[0].IPRanges) != 1 ||
		g.EgressRules[0].IPRanges[0].CIDR != "0.0.0.0/0" {
		t.Errorf("Expected allow-all egress rule, got %+v", g.EgressRules)
	}
}

func TestSecurityGroupIPv6Egress(t *testing.T) {
	b := newTestBackend(t)
	vpc, err := b.CreateVPC(CreateVPCInput{CIDRBlock: "10.0.0.0/16", AmazonProvidedIPv6CIDRBlock: true})
	if err != nil {
		t.Fatalf("CreateVPC failed: %v", err)
	}

	// Groups in a VPC with an IPv6 block allow all IPv6 egress too.
	assertAllowAll := func(t *testing.T, g *SecurityGroup) {
		t.Helper()
		if len(g.EgressRules) != 2 {
			t.Fatalf("Expected two egress rules, got %d", len(g.EgressRules))
		}
		cidrs := map[string]bool{}
		for _, r := range g.EgressRules {
			for _, ipr := range r.IPRanges {
				cidrs[ipr.CIDR] = true
			}
		}
		if !cidrs["0.0.0.0/0"] || !cidrs["::/0"] {
			t.Errorf("Expected allow-all IPv4 and IPv6 egress, got %v", cidrs)
		}
	}

	groups, err := b.DescribeSecurityGroups(nil, nil, Filters{"vpc-id": {vpc.ID}})
	if err != nil || len(groups) != 1 {
		t.Fatalf("Expected the default group, got %d (%v)", len(groups), err)
	}
	assertAllowAll(t, groups[0])

	g, err := b.CreateSecurityGroup(CreateSecurityGroupInput{
		Name: "web", Description: "web servers", VPCID: vpc.ID,
	})
	if err != nil {
		t.Fatalf("CreateSecurityGroup failed: %v", err)
	}
	assertAllowAll(t, g)
}

func TestCreateSecurityGroup(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")

	g, err := b.CreateSecurityGroup(CreateSecurityGroupInput{
		Name: "web", Description: "web servers", VPCID: vpc.ID,
	})
	if err != nil {
		t.Fatalf("CreateSecurityGroup failed: %v", err)
	}
	if len(g.EgressRules) != 1 {
		t.Errorf("Expected the default egress rule, got %d rules", len(g.EgressRules))
	}

	_, err = b.CreateSecurityGroup(CreateSecurityGroupInput{
		Name: "web", Description: "again", VPCID: vpc.ID,
	})
	wantAPIError(t, err, "InvalidGroup.Duplicate")

	_, err = b.CreateSecurityGroup(CreateSecurityGroupInput{Name: "nodesc", VPCID: vpc.ID})
	wantAPIError(t, err, "MissingParameter")

	// The same name in another VPC is fine.
	other := mustCreateVPC(t, b, "10.1.0.0/16")
	if _, err := b.CreateSecurityGroup(CreateSecurityGroupInput{
		Name: "web", Description: "web servers", VPCID: other.ID,
	}); err != nil {
		t.Errorf("Expected duplicate name across VPCs to succeed: %v", err)
	}
}

func TestAuthorizeIngress_Merge(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")
	g, err := b.CreateSecurityGroup(CreateSecurityGroupInput{
		Name: "web", Description: "web", VPCID: vpc.ID,
	})
	if err != nil {
		t.Fatalf("CreateSecurityGroup failed: %v", err)
	}

	base := RulePermissionInput{
		GroupID:  g.ID,
		Protocol: "tcp",
		FromPort: intPtr(443),
		ToPort:   intPtr(443),
	}

	first := base
	first.CIDRs = []string{"10.0.0.0/8"}
	if _, err := b.AuthorizeSecurityGroupIngress(first); err != nil {
		t.Fatalf("AuthorizeSecurityGroupIngress failed: %v", err)
	}

	// Same protocol and ports merge onto the existing rule.
	second := base
	second.CIDRs = []string{"192.168.0.0/16"}
	rule, err := b.AuthorizeSecurityGroupIngress(second)
	if err != nil {
		t.Fatalf("AuthorizeSecurityGroupIngress failed: %v", err)
	}
	if len(g.IngressRules) != 1 {
		t.Fatalf("Expected one merged rule, got %d", len(g.IngressRules))
	}
	if len(rule.IPRanges) != 2 {
		t.Errorf("Expected 2 CIDRs on the merged rule, got %d", len(rule.IPRanges))
	}

	// A different port range becomes its own rule.
	third := base
	third.FromPort, third.ToPort = intPtr(80), intPtr(80)
	third.CIDRs = []string{"10.0.0.0/8"}
	if _, err := b.AuthorizeSecurityGroupIngress(third); err != nil {
		t.Fatalf("AuthorizeSecurityGroupIngress failed: %v", err)
	}
	if len(g.IngressRules) != 2 {
		t.Errorf("Expected two rules, got %d", len(g.IngressRules))
	}

	// Re-adding a CIDR already on the rule is a duplicate.
	_, err = b.AuthorizeSecurityGroupIngress(first)
	wantAPIError(t, err, "InvalidPermission.Duplicate")

	bad := base
	bad.CIDRs = []string{"not-a-cidr"}
	_, err = b.AuthorizeSecurityGroupIngress(bad)
	wantAPIError(t, err, "InvalidParameterValue")

	noProto := RulePermissionInput{GroupID: g.ID, CIDRs: []string{"10.0.0.0/8"}}
	_, err = b.AuthorizeSecurityGroupIngress(noProto)
	wantAPIError(t, err, "MissingParameter")
}

func TestAuthorize_SourceGroups(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")
	web, _ := b.CreateSecurityGroup(CreateSecurityGroupInput{Name: "web", Description: "web", VPCID: vpc.ID})
	db, _ := b.CreateSecurityGroup(CreateSecurityGroupInput{Name: "db", Description: "db", VPCID: vpc.ID})

	rule, err := b.AuthorizeSecurityGroupIngress(RulePermissionInput{
		GroupID:        db.ID,
		Protocol:       "tcp",
		FromPort:       intPtr(5432),
		ToPort:         intPtr(5432),
		SourceGroupIDs: []string{web.ID},
	})
	if err != nil {
		t.Fatalf("AuthorizeSecurityGroupIngress failed: %v", err)
	}
	if len(rule.SourceGroups) != 1 || rule.SourceGroups[0].GroupName != "web" {
		t.Errorf("Expected source group web, got %+v", rule.SourceGroups)
	}

	// Group names resolve within the VPC.
	if _, err := b.AuthorizeSecurityGroupIngress(RulePermissionInput{
		GroupID:          db.ID,
		VPCID:            vpc.ID,
		Protocol:         "tcp",
		FromPort:         intPtr(6432),
		ToPort:           intPtr(6432),
		SourceGroupNames: []string{"web"},
	}); err != nil {
		t.Fatalf("AuthorizeSecurityGroupIngress by name failed: %v", err)
	}

	// The referencing rule blocks deletion of the source group.
	wantAPIError(t, b.DeleteSecurityGroup(web.ID, ""), "DependencyViolation")
}

func TestAuthorize_RuleLimit(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")
	g, _ := b.CreateSecurityGroup(CreateSecurityGroupInput{Name: "big", Description: "big", VPCID: vpc.ID})

	cidrs := make([]string, maxRulesPerVPCGroup)
	for i := range cidrs {
		cidrs[i] = fmt.Sprintf("10.%d.0.0/24", i)
	}
	if _, err := b.AuthorizeSecurityGroupIngress(RulePermissionInput{
		GroupID:  g.ID,
		Protocol: "tcp",
		FromPort: intPtr(443),
		ToPort:   intPtr(443),
		CIDRs:    cidrs,
	}); err != nil {
		t.Fatalf("AuthorizeSecurityGroupIngress failed: %v", err)
	}

	_, err := b.AuthorizeSecurityGroupIngress(RulePermissionInput{
		GroupID:  g.ID,
		Protocol: "tcp",
		FromPort: intPtr(443),
		ToPort:   intPtr(443),
		CIDRs:    []string{"192.168.0.0/16"},
	})
	wantAPIError(t, err, "RulesPerSecurityGroupLimitExceeded")

	// The failed authorize must not leave the extra entry behind.
	if len(g.IngressRules) != 1 || g.IngressRules[0].entryCount() != maxRulesPerVPCGroup {
		t.Errorf("Expected rule restored to %d entries, got %d",
			maxRulesPerVPCGroup, g.IngressRules[0].entryCount())
	}
}

func TestRevokeIngress(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")
	g, _ := b.CreateSecurityGroup(CreateSecurityGroupInput{Name: "web", Description: "web", VPCID: vpc.ID})

	in := RulePermissionInput{
		GroupID:  g.ID,
		Protocol: "tcp",
		FromPort: intPtr(443),
		ToPort:   intPtr(443),
		CIDRs:    []string{"10.0.0.0/8", "192.168.0.0/16"},
	}
	if _, err := b.AuthorizeSecurityGroupIngress(in); err != nil {
		t.Fatalf("AuthorizeSecurityGroupIngress failed: %v", err)
	}

	one := in
	one.CIDRs = []string{"10.0.0.0/8"}
	if err := b.RevokeSecurityGroupIngress(one); err != nil {
		t.Fatalf("RevokeSecurityGroupIngress failed: %v", err)
	}
	if len(g.IngressRules) != 1 || len(g.IngressRules[0].IPRanges) != 1 {
		t.Fatalf("Expected one CIDR left, got %+v", g.IngressRules)
	}

	// Revoking something not present fails, including when part of the
	// request is present.
	both := in
	both.CIDRs = []string{"192.168.0.0/16", "172.16.0.0/12"}
	wantAPIError(t, b.RevokeSecurityGroupIngress(both), "InvalidPermission.NotFound")
	if len(g.IngressRules[0].IPRanges) != 1 {
		t.Error("Expected failed revoke to leave the rule untouched")
	}

	// Removing the last entry removes the rule itself.
	last := in
	last.CIDRs = []string{"192.168.0.0/16"}
	if err := b.RevokeSecurityGroupIngress(last); err != nil {
		t.Fatalf("RevokeSecurityGroupIngress failed: %v", err)
	}
	if len(g.IngressRules) != 0 {
		t.Errorf("Expected no ingress rules, got %+v", g.IngressRules)
	}

	wantAPIError(t, b.RevokeSecurityGroupIngress(last), "InvalidPermission.NotFound")
}

func TestDeleteSecurityGroup(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")
	subnet := mustCreateSubnet(t, b, vpc.ID, "10.0.1.0/24")
	g, _ := b.CreateSecurityGroup(CreateSecurityGroupInput{Name: "web", Description: "web", VPCID: vpc.ID})

	wantAPIError(t, b.DeleteSecurityGroup("default", vpc.ID), "CannotDelete")

	eni, err := b.CreateNetworkInterface(CreateNetworkInterfaceInput{
		SubnetID: subnet.ID,
		GroupIDs: []string{g.ID},
	})
	if err != nil {
		t.Fatalf("CreateNetworkInterface failed: %v", err)
	}
	wantAPIError(t, b.DeleteSecurityGroup(g.ID, ""), "DependencyViolation")

	if err := b.DeleteNetworkInterface(eni.ID); err != nil {
		t.Fatalf("DeleteNetworkInterface failed: %v", err)
	}
	// Deletion by name needs the VPC scope.
	if err := b.DeleteSecurityGroup("web", vpc.ID); err != nil {
		t.Fatalf("DeleteSecurityGroup by name failed: %v", err)
	}
	wantAPIError(t, b.DeleteSecurityGroup(g.ID, ""), "InvalidGroup.NotFound")
}

func TestDescribeSecurityGroups_ByName(t *testing.T) {
	b := newTestBackend(t)
	vpc := mustCreateVPC(t, b, "10.0.0.0/16")
	b.CreateSecurityGroup(CreateSecurityGroupInput{Name: "web", Description: "web", VPCID: vpc.ID})

	got, err := b.DescribeSecurityGroups(nil, []string{"web"}, nil)
	if err != nil {
		t.Fatalf("DescribeSecurityGroups failed: %v", err)
	}
	if len(got) != 1 || got[0].Name != "web" {
		t.Errorf("Expected the web group, got %+v", got)
	}

	_, err = b.DescribeSecurityGroups(nil, []string{"nope"}, nil)
	wantAPIError(t, err, "InvalidGroup.NotFound")
}

// Authorizing a set of distinct CIDRs one at a time, under one protocol
// and port signature, always ends with exactly one rule carrying each
// CIDR exactly once; revoking them in any order empties the rule.
func TestAuthorizeRevoke_Roundtrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		b := newTestBackend(t)
		vpc := mustCreateVPC(t, b, "10.0.0.0/16")
		g, err := b.CreateSecurityGroup(CreateSecurityGroupInput{
			Name: "prop", Description: "prop", VPCID: vpc.ID,
		})
		if err != nil {
			rt.Fatalf("CreateSecurityGroup failed: %v", err)
		}

		n := rapid.IntRange(1, 40).Draw(rt, "n")
		port := rapid.IntRange(1, 65535).Draw(rt, "port")
		cidrs := make([]string, n)
		for i := 0; i < n; i++ {
			cidrs[i] = fmt.Sprintf("10.%d.%d.0/24", i/256, i%256)
		}

		for _, cidr := range cidrs {
			_, err := b.AuthorizeSecurityGroupIngress(RulePermissionInput{
				GroupID:  g.ID,
				Protocol: "tcp",
				FromPort: intPtr(port),
				ToPort:   intPtr(port),
				CIDRs:    []string{cidr},
			})
			if err != nil {
				rt.Fatalf("Authorize(%s) failed: %v", cidr, err)
			}
		}
		if len(g.IngressRules) != 1 {
			rt.Fatalf("Expected one merged rule, got %d", len(g.IngressRules))
		}
		if got := len(g.IngressRules[0].IPRanges); got != n {
			rt.Fatalf("Expected %d CIDRs, got %d", n, got)
		}

		perm := rapid.Permutation(cidrs).Draw(rt, "order")
		for _, cidr := range perm {
			err := b.RevokeSecurityGroupIngress(RulePermissionInput{
				GroupID:  g.ID,
				Protocol: "tcp",
				FromPort: intPtr(port),
				ToPort:   intPtr(port),
				CIDRs:    []string{cidr},
			})
			if err != nil {
				rt.Fatalf("Revoke(%s) failed: %v", cidr, err)
			}
		}
		if len(g.IngressRules) != 0 {
			rt.Fatalf("Expected no rules after revoking everything, got %d", len(g.IngressRules))
		}
	})
}
