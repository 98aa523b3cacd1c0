package ec2

import (
	"fmt"
	"strings"
)

// Per-direction rule limits, counted as the total number of ip ranges,
// source group references and prefix list references across a group's
// rules in one direction.
const (
	maxRulesPerVPCGroup     = 60
	maxRulesPerClassicGroup = 100
)

// IPRange is one CIDR entry of a security group rule.
type IPRange struct {
	CIDR        string `json:"cidr_ip"`
	Description string `json:"description,omitempty"`
}

// GroupRef references another security group as a rule source or target.
type GroupRef struct {
	GroupID     string `json:"group_id"`
	GroupName   string `json:"group_name,omitempty"`
	Description string `json:"description,omitempty"`
}

// PrefixListRef references a managed prefix list in a rule.
type PrefixListRef struct {
	PrefixListID string `json:"prefix_list_id"`
	Description  string `json:"description,omitempty"`
}

// SecurityRule is one permission entry of a security group. Rules with
// the same protocol and port range are merged structurally: their ip
// ranges, source groups and prefix lists accumulate on a single rule.
type SecurityRule struct {
	ID            string          `json:"security_group_rule_id"`
	Protocol      string          `json:"ip_protocol"`
	FromPort      *int            `json:"from_port,omitempty"`
	ToPort        *int            `json:"to_port,omitempty"`
	IPRanges      []IPRange       `json:"ip_ranges"`
	SourceGroups  []GroupRef      `json:"user_id_group_pairs"`
	PrefixListIDs []PrefixListRef `json:"prefix_list_ids"`
	IsEgress      bool            `json:"is_egress"`
}

// entryCount is the rule's weight against the per-direction limit.
func (r *SecurityRule) entryCount() int {
	return len(r.IPRanges) + len(r.SourceGroups) + len(r.PrefixListIDs)
}

// sameSignature reports whether two rules cover the same protocol and
// port range, which is the merge key for structural rule merging.
func (r *SecurityRule) sameSignature(other *SecurityRule) bool {
	if !strings.EqualFold(r.Protocol, other.Protocol) {
		return false
	}
	return intPtrEq(r.FromPort, other.FromPort) && intPtrEq(r.ToPort, other.ToPort)
}

// equal reports full rule equality: same signature and the same multiset
// of ip ranges, source groups and prefix lists, regardless of order.
func (r *SecurityRule) equal(other *SecurityRule) bool {
	if !r.sameSignature(other) {
		return false
	}
	if len(r.IPRanges) != len(other.IPRanges) ||
		len(r.SourceGroups) != len(other.SourceGroups) ||
		len(r.PrefixListIDs) != len(other.PrefixListIDs) {
		return false
	}
	for _, ipr := range other.IPRanges {
		if !containsIPRange(r.IPRanges, ipr.CIDR) {
			return false
		}
	}
	for _, g := range other.SourceGroups {
		if !containsGroupRef(r.SourceGroups, g.GroupID) {
			return false
		}
	}
	for _, p := range other.PrefixListIDs {
		if !containsPrefixRef(r.PrefixListIDs, p.PrefixListID) {
			return false
		}
	}
	return true
}

func (r *SecurityRule) clone() *SecurityRule {
	c := *r
	c.IPRanges = append([]IPRange(nil), r.IPRanges...)
	c.SourceGroups = append([]GroupRef(nil), r.SourceGroups...)
	c.PrefixListIDs = append([]PrefixListRef(nil), r.PrefixListIDs...)
	return &c
}

func intPtrEq(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func containsIPRange(ranges []IPRange, cidr string) bool {
	for _, r := range ranges {
		if r.CIDR == cidr {
			return true
		}
	}
	return false
}

func containsGroupRef(groups []GroupRef, id string) bool {
	for _, g := range groups {
		if g.GroupID == id {
			return true
		}
	}
	return false
}

func containsPrefixRef(refs []PrefixListRef, id string) bool {
	for _, p := range refs {
		if p.PrefixListID == id {
			return true
		}
	}
	return false
}

// SecurityGroup is a stateful firewall attached to network interfaces.
type SecurityGroup struct {
	ID           string          `json:"group_id"`
	Name         string          `json:"group_name"`
	Description  string          `json:"description"`
	VPCID        string          `json:"vpc_id,omitempty"`
	OwnerID      string          `json:"owner_id"`
	IngressRules []*SecurityRule `json:"ip_permissions"`
	EgressRules  []*SecurityRule `json:"ip_permissions_egress"`
	Tags         TagSet          `json:"tags"`
}

func (g *SecurityGroup) tagSet() TagSet { return g.Tags }

func (g *SecurityGroup) ruleLimit() int {
	if g.VPCID != "" {
		return maxRulesPerVPCGroup
	}
	return maxRulesPerClassicGroup
}

func (g *SecurityGroup) rules(egress bool) *[]*SecurityRule {
	if egress {
		return &g.EgressRules
	}
	return &g.IngressRules
}

var securityGroupFilters = filterTable[*SecurityGroup]{
	"group-id":   func(g *SecurityGroup) []string { return []string{g.ID} },
	"group-name": func(g *SecurityGroup) []string { return []string{g.Name} },
	"vpc-id":     func(g *SecurityGroup) []string { return []string{g.VPCID} },
	"description": func(g *SecurityGroup) []string {
		return []string{g.Description}
	},
	"owner-id": func(g *SecurityGroup) []string { return []string{g.OwnerID} },
	"ip-permission.protocol": func(g *SecurityGroup) []string {
		var out []string
		for _, r := range g.IngressRules {
			out = append(out, r.Protocol)
		}
		return out
	},
	"ip-permission.from-port": func(g *SecurityGroup) []string {
		var out []string
		for _, r := range g.IngressRules {
			if r.FromPort != nil {
				out = append(out, fmt.Sprint(*r.FromPort))
			}
		}
		return out
	},
	"ip-permission.to-port": func(g *SecurityGroup) []string {
		var out []string
		for _, r := range g.IngressRules {
			if r.ToPort != nil {
				out = append(out, fmt.Sprint(*r.ToPort))
			}
		}
		return out
	},
	"ip-permission.cidr": func(g *SecurityGroup) []string {
		var out []string
		for _, r := range g.IngressRules {
			for _, ipr := range r.IPRanges {
				out = append(out, ipr.CIDR)
			}
		}
		return out
	},
	"ip-permission.group-id": func(g *SecurityGroup) []string {
		var out []string
		for _, r := range g.IngressRules {
			for _, sg := range r.SourceGroups {
				out = append(out, sg.GroupID)
			}
		}
		return out
	},
}

// createDefaultSecurityGroup builds a VPC's default group: all traffic
// from the group itself on ingress, all traffic everywhere on egress.
func (b *Backend) createDefaultSecurityGroup(vpcID string) *SecurityGroup {
	g := &SecurityGroup{
		ID:          newID(idPrefixSecurityGroup),
		Name:        "default",
		Description: "default VPC security group",
		VPCID:       vpcID,
		OwnerID:     b.AccountID,
		Tags:        TagSet{},
	}
	g.IngressRules = []*SecurityRule{{
		ID:           newID(idPrefixSecurityRule),
		Protocol:     "-1",
		SourceGroups: []GroupRef{{GroupID: g.ID, GroupName: g.Name}},
	}}
	g.EgressRules = b.defaultEgressRules(vpcID)
	b.securityGroups[g.ID] = g
	return g
}

// defaultEgressRules builds the allow-all egress rules of a new group.
// VPCs with an IPv6 block get an all-IPv6 rule next to the IPv4 one.
func (b *Backend) defaultEgressRules(vpcID string) []*SecurityRule {
	rules := []*SecurityRule{{
		ID:       newID(idPrefixSecurityRule),
		Protocol: "-1",
		IPRanges: []IPRange{{CIDR: "0.0.0.0/0"}},
		IsEgress: true,
	}}
	if vpc, ok := b.vpcs[vpcID]; ok && len(vpc.associatedCIDRs(true)) > 0 {
		rules = append(rules, &SecurityRule{
			ID:       newID(idPrefixSecurityRule),
			Protocol: "-1",
			IPRanges: []IPRange{{CIDR: "::/0"}},
			IsEgress: true,
		})
	}
	return rules
}

// CreateSecurityGroupInput carries the parameters of
// CreateSecurityGroup.
type CreateSecurityGroupInput struct {
	Name        string            `json:"group_name"`
	Description string            `json:"description"`
	VPCID       string            `json:"vpc_id,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// CreateSecurityGroup creates a group with the default allow-all egress
// rule. Names must be unique within a VPC.
func (b *Backend) CreateSecurityGroup(in CreateSecurityGroupInput) (*SecurityGroup, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if in.Description == "" {
		return nil, missingParameter("GroupDescription")
	}
	if in.VPCID != "" {
		if _, err := b.getVPC(in.VPCID); err != nil {
			return nil, err
		}
	}
	if b.securityGroupByName(in.Name, in.VPCID) != nil {
		return nil, apiErrorf("InvalidGroup.Duplicate",
			"The security group '%s' already exists", in.Name)
	}

	g := &SecurityGroup{
		ID:          newID(idPrefixSecurityGroup),
		Name:        in.Name,
		Description: in.Description,
		VPCID:       in.VPCID,
		OwnerID:     b.AccountID,
		Tags:        TagSet{},
	}
	g.Tags.Merge(in.Tags)
	g.EgressRules = b.defaultEgressRules(in.VPCID)
	b.securityGroups[g.ID] = g
	return g, nil
}

// GetSecurityGroup returns the group with the given id.
func (b *Backend) GetSecurityGroup(id string) (*SecurityGroup, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getSecurityGroup(id)
}

func (b *Backend) getSecurityGroup(id string) (*SecurityGroup, error) {
	g, ok := b.securityGroups[id]
	if !ok {
		return nil, notFoundSecurityGroup(id)
	}
	return g, nil
}

func (b *Backend) securityGroupByName(name, vpcID string) *SecurityGroup {
	for _, g := range b.securityGroups {
		if g.Name == name && g.VPCID == vpcID {
			return g
		}
	}
	return nil
}

// resolveSecurityGroup accepts either a group id or a group name scoped
// to a VPC.
func (b *Backend) resolveSecurityGroup(idOrName, vpcID string) (*SecurityGroup, error) {
	if g, ok := b.securityGroups[idOrName]; ok {
		return g, nil
	}
	if g := b.securityGroupByName(idOrName, vpcID); g != nil {
		return g, nil
	}
	return nil, notFoundSecurityGroup(idOrName)
}

// DescribeSecurityGroups returns groups matching the given ids, names
// and filters.
func (b *Backend) DescribeSecurityGroups(ids, names []string, filters Filters) ([]*SecurityGroup, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matches []*SecurityGroup
	if len(ids) > 0 || len(names) > 0 {
		for _, id := range ids {
			g, err := b.getSecurityGroup(id)
			if err != nil {
				return nil, err
			}
			matches = append(matches, g)
		}
		for _, name := range names {
			found := false
			for _, g := range sortedByID(b.securityGroups) {
				if g.Name == name {
					matches = append(matches, g)
					found = true
				}
			}
			if !found {
				return nil, notFoundSecurityGroup(name)
			}
		}
	} else {
		matches = sortedByID(b.securityGroups)
	}
	return applyFilters("DescribeSecurityGroups", filters, securityGroupFilters, matches)
}

// DeleteSecurityGroup deletes a group by id or name. The default group
// cannot be deleted, and groups referenced by network interfaces or by
// other groups' rules cannot either.
func (b *Backend) DeleteSecurityGroup(idOrName, vpcID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	g, err := b.resolveSecurityGroup(idOrName, vpcID)
	if err != nil {
		return err
	}
	if g.Name == "default" {
		return apiErrorf("CannotDelete", "the specified group: %q name: \"default\" cannot be deleted by a user", g.ID)
	}
	for _, eni := range b.enis {
		for _, gid := range eni.GroupIDs {
			if gid == g.ID {
				return dependencyViolation(
					"resource %s has a dependent object", g.ID)
			}
		}
	}
	for _, other := range b.securityGroups {
		if other.ID == g.ID {
			continue
		}
		for _, rule := range append(other.IngressRules, other.EgressRules...) {
			if containsGroupRef(rule.SourceGroups, g.ID) {
				return dependencyViolation(
					"resource %s has a dependent object", g.ID)
			}
		}
	}
	delete(b.securityGroups, g.ID)
	return nil
}

// RulePermissionInput carries one permission for the authorize and
// revoke operations.
type RulePermissionInput struct {
	GroupID          string   `json:"group_id"`
	GroupName        string   `json:"group_name,omitempty"`
	VPCID            string   `json:"vpc_id,omitempty"`
	Protocol         string   `json:"ip_protocol"`
	FromPort         *int     `json:"from_port,omitempty"`
	ToPort           *int     `json:"to_port,omitempty"`
	CIDRs            []string `json:"cidr_ips,omitempty"`
	Description      string   `json:"description,omitempty"`
	SourceGroupIDs   []string `json:"source_group_ids,omitempty"`
	SourceGroupNames []string `json:"source_group_names,omitempty"`
	PrefixListIDs    []string `json:"prefix_list_ids,omitempty"`
}

func (b *Backend) buildRule(in RulePermissionInput, egress bool) (*SecurityRule, error) {
	if in.Protocol == "" {
		return nil, missingParameter("IpProtocol")
	}
	rule := &SecurityRule{
		ID:       newID(idPrefixSecurityRule),
		Protocol: strings.ToLower(in.Protocol),
		FromPort: in.FromPort,
		ToPort:   in.ToPort,
		IsEgress: egress,
	}
	for _, cidr := range in.CIDRs {
		if _, err := parseCIDR(cidr); err != nil {
			return nil, invalidParameterValue("CIDR block %s is malformed", cidr)
		}
		rule.IPRanges = append(rule.IPRanges, IPRange{CIDR: cidr, Description: in.Description})
	}
	for _, id := range in.SourceGroupIDs {
		src, err := b.getSecurityGroup(id)
		if err != nil {
			return nil, err
		}
		rule.SourceGroups = append(rule.SourceGroups, GroupRef{GroupID: src.ID, GroupName: src.Name})
	}
	for _, name := range in.SourceGroupNames {
		src := b.securityGroupByName(name, in.VPCID)
		if src == nil {
			return nil, notFoundSecurityGroup(name)
		}
		rule.SourceGroups = append(rule.SourceGroups, GroupRef{GroupID: src.ID, GroupName: src.Name})
	}
	for _, pl := range in.PrefixListIDs {
		if _, ok := b.prefixLists[pl]; !ok {
			return nil, notFoundPrefixList(pl)
		}
		rule.PrefixListIDs = append(rule.PrefixListIDs, PrefixListRef{PrefixListID: pl})
	}
	return rule, nil
}

// AuthorizeSecurityGroupIngress adds an ingress permission.
func (b *Backend) AuthorizeSecurityGroupIngress(in RulePermissionInput) (*SecurityRule, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.authorize(in, false)
}

// AuthorizeSecurityGroupEgress adds an egress permission.
func (b *Backend) AuthorizeSecurityGroupEgress(in RulePermissionInput) (*SecurityRule, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.authorize(in, true)
}

// authorize merges the new permission into the group. Rules sharing a
// protocol and port range merge into one entry; re-adding an item that
// is already present is a duplicate error. The per-direction entry limit
// is checked after the merge and the previous state restored when it is
// exceeded.
func (b *Backend) authorize(in RulePermissionInput, egress bool) (*SecurityRule, error) {
	g, err := b.resolveSecurityGroup(in.GroupID, in.VPCID)
	if err != nil {
		return nil, err
	}
	newRule, err := b.buildRule(in, egress)
	if err != nil {
		return nil, err
	}

	rules := g.rules(egress)
	snapshot := make([]*SecurityRule, len(*rules))
	for i, r := range *rules {
		snapshot[i] = r.clone()
	}

	var result *SecurityRule
	merged := false
	for _, existing := range *rules {
		if !existing.sameSignature(newRule) {
			continue
		}
		for _, ipr := range newRule.IPRanges {
			if containsIPRange(existing.IPRanges, ipr.CIDR) {
				return nil, apiErrorf("InvalidPermission.Duplicate",
					"the specified rule \"peer: %s, %s, ALLOW\" already exists", ipr.CIDR, describeProto(newRule))
			}
		}
		for _, sg := range newRule.SourceGroups {
			if containsGroupRef(existing.SourceGroups, sg.GroupID) {
				return nil, apiErrorf("InvalidPermission.Duplicate",
					"the specified rule \"peer: %s, %s, ALLOW\" already exists", sg.GroupID, describeProto(newRule))
			}
		}
		for _, pl := range newRule.PrefixListIDs {
			if containsPrefixRef(existing.PrefixListIDs, pl.PrefixListID) {
				return nil, apiErrorf("InvalidPermission.Duplicate",
					"the specified rule \"peer: %s, %s, ALLOW\" already exists", pl.PrefixListID, describeProto(newRule))
			}
		}
		existing.IPRanges = append(existing.IPRanges, newRule.IPRanges...)
		existing.SourceGroups = append(existing.SourceGroups, newRule.SourceGroups...)
		existing.PrefixListIDs = append(existing.PrefixListIDs, newRule.PrefixListIDs...)
		result = existing
		merged = true
		break
	}
	if !merged {
		*rules = append(*rules, newRule)
		result = newRule
	}

	total := 0
	for _, r := range *rules {
		total += r.entryCount()
	}
	if total > g.ruleLimit() {
		*rules = snapshot
		return nil, apiErrorf("RulesPerSecurityGroupLimitExceeded",
			"The maximum number of rules per security group has been reached.")
	}
	return result, nil
}

func describeProto(r *SecurityRule) string {
	if r.Protocol == "-1" {
		return "ALL"
	}
	if r.FromPort == nil || r.ToPort == nil {
		return strings.ToUpper(r.Protocol)
	}
	return fmt.Sprintf("%s, from port: %d, to port: %d", strings.ToUpper(r.Protocol), *r.FromPort, *r.ToPort)
}

// RevokeSecurityGroupIngress removes an ingress permission.
func (b *Backend) RevokeSecurityGroupIngress(in RulePermissionInput) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.revoke(in, false)
}

// RevokeSecurityGroupEgress removes an egress permission.
func (b *Backend) RevokeSecurityGroupEgress(in RulePermissionInput) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.revoke(in, true)
}

// revoke removes the named items from the rule matching the permission's
// protocol and port range. A rule left with no items disappears. Items
// that are not present make the whole revoke fail.
func (b *Backend) revoke(in RulePermissionInput, egress bool) error {
	g, err := b.resolveSecurityGroup(in.GroupID, in.VPCID)
	if err != nil {
		return err
	}
	toRemove, err := b.buildRule(in, egress)
	if err != nil {
		return err
	}

	rules := g.rules(egress)
	for i, existing := range *rules {
		if !existing.sameSignature(toRemove) {
			continue
		}
		for _, ipr := range toRemove.IPRanges {
			if !containsIPRange(existing.IPRanges, ipr.CIDR) {
				return apiErrorf("InvalidPermission.NotFound",
					"The specified rule does not exist in this security group")
			}
		}
		for _, sg := range toRemove.SourceGroups {
			if !containsGroupRef(existing.SourceGroups, sg.GroupID) {
				return apiErrorf("InvalidPermission.NotFound",
					"The specified rule does not exist in this security group")
			}
		}
		for _, pl := range toRemove.PrefixListIDs {
			if !containsPrefixRef(existing.PrefixListIDs, pl.PrefixListID) {
				return apiErrorf("InvalidPermission.NotFound",
					"The specified rule does not exist in this security group")
			}
		}
		existing.IPRanges = removeIPRanges(existing.IPRanges, toRemove.IPRanges)
		existing.SourceGroups = removeGroupRefs(existing.SourceGroups, toRemove.SourceGroups)
		existing.PrefixListIDs = removePrefixRefs(existing.PrefixListIDs, toRemove.PrefixListIDs)
		if existing.entryCount() == 0 {
			*rules = append((*rules)[:i], (*rules)[i+1:]...)
		}
		return nil
	}
	return apiErrorf("InvalidPermission.NotFound",
		"The specified rule does not exist in this security group")
}

func removeIPRanges(have, drop []IPRange) []IPRange {
	out := have[:0]
	for _, r := range have {
		if !containsIPRange(drop, r.CIDR) {
			out = append(out, r)
		}
	}
	return out
}

func removeGroupRefs(have, drop []GroupRef) []GroupRef {
	out := have[:0]
	for _, g := range have {
		if !containsGroupRef(drop, g.GroupID) {
			out = append(out, g)
		}
	}
	return out
}

func removePrefixRefs(have, drop []PrefixListRef) []PrefixListRef {
	out := have[:0]
	for _, p := range have {
		if !containsPrefixRef(drop, p.PrefixListID) {
			out = append(out, p)
		}
	}
	return out
}
