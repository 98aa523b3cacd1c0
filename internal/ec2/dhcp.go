package ec2

// Option keys accepted by CreateDHCPOptions. The list-valued server
// options cap out at four entries each.
var dhcpOptionKeys = map[string]bool{
	"domain-name":          true,
	"domain-name-servers":  true,
	"ntp-servers":          true,
	"netbios-name-servers": true,
	"netbios-node-type":    true,
}

var dhcpServerOptions = []string{"domain-name-servers", "ntp-servers", "netbios-name-servers"}

var netbiosNodeTypes = map[string]bool{"1": true, "2": true, "4": true, "8": true}

// DHCPOptionSet holds the DHCP configuration VPCs hand to their
// instances.
type DHCPOptionSet struct {
	ID      string              `json:"dhcp_options_id"`
	Options map[string][]string `json:"dhcp_configurations"`
	OwnerID string              `json:"owner_id"`
	Tags    TagSet              `json:"tags"`
}

func (d *DHCPOptionSet) tagSet() TagSet { return d.Tags }

var dhcpOptionsFilters = filterTable[*DHCPOptionSet]{
	"dhcp-options-id": func(d *DHCPOptionSet) []string { return []string{d.ID} },
	"key": func(d *DHCPOptionSet) []string {
		var out []string
		for k := range d.Options {
			out = append(out, k)
		}
		return out
	},
	"value": func(d *DHCPOptionSet) []string {
		var out []string
		for _, vs := range d.Options {
			out = append(out, vs...)
		}
		return out
	},
	"owner-id": func(d *DHCPOptionSet) []string { return []string{d.OwnerID} },
}

// createDefaultDHCPOptions builds the region's default option set that
// new VPCs associate with.
func (b *Backend) createDefaultDHCPOptions() *DHCPOptionSet {
	domain := "ec2.internal"
	if b.Region != "us-east-1" {
		domain = b.Region + ".compute.internal"
	}
	d := &DHCPOptionSet{
		ID: newID(idPrefixDHCPOptions),
		Options: map[string][]string{
			"domain-name":         {domain},
			"domain-name-servers": {"AmazonProvidedDNS"},
		},
		OwnerID: b.AccountID,
		Tags:    TagSet{},
	}
	b.dhcpOptionSets[d.ID] = d
	return d
}

// CreateDHCPOptions validates and stores a DHCP option set.
func (b *Backend) CreateDHCPOptions(options map[string][]string, tags map[string]string) (*DHCPOptionSet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(options) == 0 {
		return nil, missingParameter("DhcpConfiguration")
	}
	stored := make(map[string][]string, len(options))
	for key, values := range options {
		if !dhcpOptionKeys[key] {
			return nil, invalidParameterValue(
				"Value (%s) for parameter name is invalid. Unknown DHCP option", key)
		}
		stored[key] = append([]string(nil), values...)
	}
	for _, key := range dhcpServerOptions {
		if len(stored[key]) > 4 {
			return nil, invalidParameterValue(
				"Value (%d) for parameter %s is invalid. Only 4 servers are allowed.", len(stored[key]), key)
		}
	}
	for _, v := range stored["netbios-node-type"] {
		if !netbiosNodeTypes[v] {
			return nil, invalidParameterValue(
				"Value (%s) for parameter netbios-node-type is invalid. Only 1, 2, 4 or 8 are allowed.", v)
		}
	}

	d := &DHCPOptionSet{
		ID:      newID(idPrefixDHCPOptions),
		Options: stored,
		OwnerID: b.AccountID,
		Tags:    TagSet{},
	}
	d.Tags.Merge(tags)
	b.dhcpOptionSets[d.ID] = d
	return d, nil
}

// GetDHCPOptions returns the option set with the given id.
func (b *Backend) GetDHCPOptions(id string) (*DHCPOptionSet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getDHCPOptions(id)
}

func (b *Backend) getDHCPOptions(id string) (*DHCPOptionSet, error) {
	d, ok := b.dhcpOptionSets[id]
	if !ok {
		return nil, notFoundDHCPOptions(id)
	}
	return d, nil
}

// DescribeDHCPOptions returns the option sets matching ids and filters.
func (b *Backend) DescribeDHCPOptions(ids []string, filters Filters) ([]*DHCPOptionSet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matches []*DHCPOptionSet
	if len(ids) > 0 {
		for _, id := range ids {
			d, err := b.getDHCPOptions(id)
			if err != nil {
				return nil, err
			}
			matches = append(matches, d)
		}
	} else {
		matches = sortedByID(b.dhcpOptionSets)
	}
	return applyFilters("DescribeDhcpOptions", filters, dhcpOptionsFilters, matches)
}

// AssociateDHCPOptions binds an option set to a VPC. The sentinel id
// "default" restores the region default set.
func (b *Backend) AssociateDHCPOptions(optionsID, vpcID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	vpc, err := b.getVPC(vpcID)
	if err != nil {
		return err
	}
	if optionsID == "default" {
		vpc.DHCPOptionsID = b.defaultDHCPOptionsID
		return nil
	}
	d, err := b.getDHCPOptions(optionsID)
	if err != nil {
		return err
	}
	vpc.DHCPOptionsID = d.ID
	return nil
}

// dhcpOptionsInUse reports whether any VPC other than excludeVPC still
// references the option set.
func (b *Backend) dhcpOptionsInUse(optionsID, excludeVPC string) bool {
	for _, vpc := range b.vpcs {
		if vpc.ID != excludeVPC && vpc.DHCPOptionsID == optionsID {
			return true
		}
	}
	return false
}

// DeleteDHCPOptions deletes an option set that no VPC references.
func (b *Backend) DeleteDHCPOptions(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.getDHCPOptions(id); err != nil {
		return err
	}
	if b.dhcpOptionsInUse(id, "") {
		return dependencyViolation(
			"The dhcpOptions '%s' has dependencies and cannot be deleted.", id)
	}
	delete(b.dhcpOptionSets, id)
	return nil
}
