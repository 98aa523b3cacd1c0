package ec2

import (
	"sort"
)

// NetworkACLEntry is one numbered rule of a network ACL.
type NetworkACLEntry struct {
	RuleNumber int    `json:"rule_number"`
	Protocol   string `json:"protocol"`
	RuleAction string `json:"rule_action"`
	Egress     bool   `json:"egress"`
	CIDRBlock  string `json:"cidr_block"`
	FromPort   *int   `json:"from_port,omitempty"`
	ToPort     *int   `json:"to_port,omitempty"`
}

// NetworkACL is a stateless subnet-level firewall. Subnets bind to it
// through associations; new subnets land on the VPC's default ACL.
type NetworkACL struct {
	ID           string             `json:"network_acl_id"`
	VPCID        string             `json:"vpc_id"`
	IsDefault    bool               `json:"is_default"`
	Entries      []*NetworkACLEntry `json:"entries"`
	Associations map[string]string  `json:"associations"`
	OwnerID      string             `json:"owner_id"`
	Tags         TagSet             `json:"tags"`
}

func (a *NetworkACL) tagSet() TagSet { return a.Tags }

func (a *NetworkACL) sortedEntries() []*NetworkACLEntry {
	out := append([]*NetworkACLEntry(nil), a.Entries...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Egress != out[j].Egress {
			return !out[i].Egress
		}
		return out[i].RuleNumber < out[j].RuleNumber
	})
	return out
}

var networkACLFilters = filterTable[*NetworkACL]{
	"network-acl-id": func(a *NetworkACL) []string { return []string{a.ID} },
	"vpc-id":         func(a *NetworkACL) []string { return []string{a.VPCID} },
	"default":        func(a *NetworkACL) []string { return []string{boolStr(a.IsDefault)} },
	"association.subnet-id": func(a *NetworkACL) []string {
		var out []string
		for _, subnetID := range a.Associations {
			out = append(out, subnetID)
		}
		return out
	},
	"association.association-id": func(a *NetworkACL) []string {
		var out []string
		for id := range a.Associations {
			out = append(out, id)
		}
		return out
	},
	"entry.cidr": func(a *NetworkACL) []string {
		var out []string
		for _, e := range a.Entries {
			out = append(out, e.CIDRBlock)
		}
		return out
	},
	"entry.rule-action": func(a *NetworkACL) []string {
		var out []string
		for _, e := range a.Entries {
			out = append(out, e.RuleAction)
		}
		return out
	},
}

// createDefaultNetworkACL builds a VPC's default ACL with its implicit
// allow-all entries in both directions.
func (b *Backend) createDefaultNetworkACL(vpcID string) *NetworkACL {
	acl := &NetworkACL{
		ID:           newID(idPrefixNetworkACL),
		VPCID:        vpcID,
		IsDefault:    true,
		Associations: make(map[string]string),
		OwnerID:      b.AccountID,
		Tags:         TagSet{},
	}
	for _, egress := range []bool{false, true} {
		acl.Entries = append(acl.Entries, &NetworkACLEntry{
			RuleNumber: 100,
			Protocol:   "-1",
			RuleAction: "allow",
			Egress:     egress,
			CIDRBlock:  "0.0.0.0/0",
		})
	}
	b.networkACLs[acl.ID] = acl
	return acl
}

// defaultNetworkACL returns the default ACL of a VPC, or nil.
func (b *Backend) defaultNetworkACL(vpcID string) *NetworkACL {
	for _, acl := range b.networkACLs {
		if acl.VPCID == vpcID && acl.IsDefault {
			return acl
		}
	}
	return nil
}

// associateDefaultNetworkACL puts a new subnet on its VPC's default ACL.
func (b *Backend) associateDefaultNetworkACL(subnet *Subnet) {
	if acl := b.defaultNetworkACL(subnet.VPCID); acl != nil {
		acl.Associations[newID(idPrefixNACLAssociation)] = subnet.ID
	}
}

// CreateNetworkACL creates an empty, non-default ACL in a VPC.
func (b *Backend) CreateNetworkACL(vpcID string, tags map[string]string) (*NetworkACL, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.getVPC(vpcID); err != nil {
		return nil, err
	}
	acl := &NetworkACL{
		ID:           newID(idPrefixNetworkACL),
		VPCID:        vpcID,
		Associations: make(map[string]string),
		OwnerID:      b.AccountID,
		Tags:         TagSet{},
	}
	acl.Tags.Merge(tags)
	b.networkACLs[acl.ID] = acl
	return acl, nil
}

// GetNetworkACL returns the ACL with the given id.
func (b *Backend) GetNetworkACL(id string) (*NetworkACL, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getNetworkACL(id)
}

func (b *Backend) getNetworkACL(id string) (*NetworkACL, error) {
	acl, ok := b.networkACLs[id]
	if !ok {
		return nil, notFoundNetworkACL(id)
	}
	return acl, nil
}

// DescribeNetworkACLs returns the ACLs matching ids and filters.
func (b *Backend) DescribeNetworkACLs(ids []string, filters Filters) ([]*NetworkACL, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matches []*NetworkACL
	if len(ids) > 0 {
		for _, id := range ids {
			acl, err := b.getNetworkACL(id)
			if err != nil {
				return nil, err
			}
			matches = append(matches, acl)
		}
	} else {
		matches = sortedByID(b.networkACLs)
	}
	return applyFilters("DescribeNetworkAcls", filters, networkACLFilters, matches)
}

// DeleteNetworkACL deletes an ACL. Default ACLs and ACLs with subnet
// associations cannot be deleted.
func (b *Backend) DeleteNetworkACL(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	acl, err := b.getNetworkACL(id)
	if err != nil {
		return err
	}
	if acl.IsDefault {
		return operationNotPermitted("the default network acl %s cannot be deleted", id)
	}
	if len(acl.Associations) > 0 {
		return dependencyViolation(
			"The networkAcl '%s' has dependencies and cannot be deleted.", id)
	}
	delete(b.networkACLs, id)
	return nil
}

// NetworkACLEntryInput carries the parameters of the entry operations.
type NetworkACLEntryInput struct {
	NetworkACLID string `json:"network_acl_id"`
	RuleNumber   int    `json:"rule_number"`
	Protocol     string `json:"protocol"`
	RuleAction   string `json:"rule_action"`
	Egress       bool   `json:"egress"`
	CIDRBlock    string `json:"cidr_block"`
	FromPort     *int   `json:"from_port,omitempty"`
	ToPort       *int   `json:"to_port,omitempty"`
}

func (in NetworkACLEntryInput) validate() (*NetworkACLEntry, error) {
	if in.RuleAction != "allow" && in.RuleAction != "deny" {
		return nil, invalidParameterValue(
			"Value (%s) for parameter ruleAction is invalid.", in.RuleAction)
	}
	if _, err := parseCIDR(in.CIDRBlock); err != nil {
		return nil, err
	}
	return &NetworkACLEntry{
		RuleNumber: in.RuleNumber,
		Protocol:   in.Protocol,
		RuleAction: in.RuleAction,
		Egress:     in.Egress,
		CIDRBlock:  in.CIDRBlock,
		FromPort:   in.FromPort,
		ToPort:     in.ToPort,
	}, nil
}

// CreateNetworkACLEntry adds a numbered rule to an ACL. Rule numbers are
// unique per direction.
func (b *Backend) CreateNetworkACLEntry(in NetworkACLEntryInput) (*NetworkACLEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	acl, err := b.getNetworkACL(in.NetworkACLID)
	if err != nil {
		return nil, err
	}
	for _, e := range acl.Entries {
		if e.RuleNumber == in.RuleNumber && e.Egress == in.Egress {
			return nil, apiErrorf("NetworkAclEntryAlreadyExists",
				"The network acl entry identified by %d already exists.", in.RuleNumber)
		}
	}
	entry, err := in.validate()
	if err != nil {
		return nil, err
	}
	acl.Entries = append(acl.Entries, entry)
	return entry, nil
}

// ReplaceNetworkACLEntry overwrites the rule with the input's number and
// direction.
func (b *Backend) ReplaceNetworkACLEntry(in NetworkACLEntryInput) (*NetworkACLEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	acl, err := b.getNetworkACL(in.NetworkACLID)
	if err != nil {
		return nil, err
	}
	for i, e := range acl.Entries {
		if e.RuleNumber == in.RuleNumber && e.Egress == in.Egress {
			entry, err := in.validate()
			if err != nil {
				return nil, err
			}
			acl.Entries[i] = entry
			return entry, nil
		}
	}
	return nil, notFoundNetworkACLEntry(in.RuleNumber)
}

// DeleteNetworkACLEntry removes a rule by number and direction.
func (b *Backend) DeleteNetworkACLEntry(aclID string, ruleNumber int, egress bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	acl, err := b.getNetworkACL(aclID)
	if err != nil {
		return err
	}
	for i, e := range acl.Entries {
		if e.RuleNumber == ruleNumber && e.Egress == egress {
			acl.Entries = append(acl.Entries[:i], acl.Entries[i+1:]...)
			return nil
		}
	}
	return notFoundNetworkACLEntry(ruleNumber)
}

// ReplaceNetworkACLAssociation moves a subnet association to another ACL
// and returns the new association id.
func (b *Backend) ReplaceNetworkACLAssociation(associationID, aclID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	target, err := b.getNetworkACL(aclID)
	if err != nil {
		return "", err
	}
	for _, acl := range b.networkACLs {
		subnetID, ok := acl.Associations[associationID]
		if !ok {
			continue
		}
		delete(acl.Associations, associationID)
		newAssoc := newID(idPrefixNACLAssociation)
		target.Associations[newAssoc] = subnetID
		return newAssoc, nil
	}
	return "", notFoundAssociation(associationID)
}
