package ec2

import (
	"fmt"
	"time"
)

// Prefix list lifecycle states.
const (
	PrefixListCreateComplete   = "create-complete"
	PrefixListModifyComplete   = "modify-complete"
	PrefixListDeleteInProgress = "delete-in-progress"
	PrefixListDeleteComplete   = "delete-complete"
)

// How long a deleted prefix list lingers before the sweeper finalizes
// it.
const prefixListDeleteLinger = 2 * time.Minute

// PrefixListEntry is one CIDR of a managed prefix list.
type PrefixListEntry struct {
	CIDR        string `json:"cidr"`
	Description string `json:"description,omitempty"`
}

// ManagedPrefixList is a versioned, named set of CIDR blocks. Every
// modification bumps the version and keeps the previous entry sets
// readable. Deletion is soft: the list sits in delete-in-progress until
// DeleteAfter passes and the sweeper settles it.
type ManagedPrefixList struct {
	ID            string    `json:"prefix_list_id"`
	Name          string    `json:"prefix_list_name"`
	AddressFamily string    `json:"address_family"`
	MaxEntries    int       `json:"max_entries"`
	Version       int64     `json:"version"`
	State         string    `json:"state"`
	OwnerID       string    `json:"owner_id"`
	DeleteAfter   time.Time `json:"-"`
	Tags          TagSet    `json:"tags"`

	versions map[int64][]PrefixListEntry
}

func (p *ManagedPrefixList) tagSet() TagSet { return p.Tags }

// Entries returns the entry set of a version; 0 means current.
func (p *ManagedPrefixList) Entries(version int64) ([]PrefixListEntry, error) {
	if version == 0 {
		version = p.Version
	}
	entries, ok := p.versions[version]
	if !ok {
		return nil, invalidParameterValue(
			"Value (%d) for parameter TargetVersion is invalid. Invalid version.", version)
	}
	return entries, nil
}

var prefixListFilters = filterTable[*ManagedPrefixList]{
	"prefix-list-id":   func(p *ManagedPrefixList) []string { return []string{p.ID} },
	"prefix-list-name": func(p *ManagedPrefixList) []string { return []string{p.Name} },
	"state":            func(p *ManagedPrefixList) []string { return []string{p.State} },
	"owner-id":         func(p *ManagedPrefixList) []string { return []string{p.OwnerID} },
}

// createAWSManagedPrefixLists seeds the region's AWS-managed lists.
func (b *Backend) createAWSManagedPrefixLists() {
	for _, short := range []string{"s3", "dynamodb"} {
		p := &ManagedPrefixList{
			ID:            newID(idPrefixPrefixList),
			Name:          fmt.Sprintf("com.amazonaws.%s.%s", b.Region, short),
			AddressFamily: "IPv4",
			MaxEntries:    1000,
			Version:       1,
			State:         PrefixListCreateComplete,
			OwnerID:       "AWS",
			Tags:          TagSet{},
			versions:      map[int64][]PrefixListEntry{1: {{CIDR: "52.216.0.0/15"}}},
		}
		b.prefixLists[p.ID] = p
	}
}

// PrefixListByName resolves a prefix list by its name, the way rules
// reference the AWS-managed lists.
func (b *Backend) PrefixListByName(name string) (*ManagedPrefixList, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range b.prefixLists {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, notFoundPrefixList(name)
}

// CreateManagedPrefixListInput carries the parameters of
// CreateManagedPrefixList.
type CreateManagedPrefixListInput struct {
	Name          string            `json:"prefix_list_name"`
	AddressFamily string            `json:"address_family,omitempty"`
	MaxEntries    int               `json:"max_entries"`
	Entries       []PrefixListEntry `json:"entries,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
}

// CreateManagedPrefixList creates a prefix list at version 1.
func (b *Backend) CreateManagedPrefixList(in CreateManagedPrefixListInput) (*ManagedPrefixList, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if in.Name == "" {
		return nil, missingParameter("PrefixListName")
	}
	if in.MaxEntries <= 0 {
		return nil, missingParameter("MaxEntries")
	}
	if len(in.Entries) > in.MaxEntries {
		return nil, apiErrorf("PrefixListMaxEntriesExceeded",
			"The number of entries exceeds the maximum of %d", in.MaxEntries)
	}
	family := in.AddressFamily
	if family == "" {
		family = "IPv4"
	}
	entries := make([]PrefixListEntry, 0, len(in.Entries))
	for _, e := range in.Entries {
		if _, err := parseCIDR(e.CIDR); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	p := &ManagedPrefixList{
		ID:            newID(idPrefixPrefixList),
		Name:          in.Name,
		AddressFamily: family,
		MaxEntries:    in.MaxEntries,
		Version:       1,
		State:         PrefixListCreateComplete,
		OwnerID:       b.AccountID,
		Tags:          TagSet{},
		versions:      map[int64][]PrefixListEntry{1: entries},
	}
	p.Tags.Merge(in.Tags)
	b.prefixLists[p.ID] = p
	return p, nil
}

// GetManagedPrefixList returns the list with the given id.
func (b *Backend) GetManagedPrefixList(id string) (*ManagedPrefixList, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getManagedPrefixList(id)
}

func (b *Backend) getManagedPrefixList(id string) (*ManagedPrefixList, error) {
	p, ok := b.prefixLists[id]
	if !ok {
		return nil, notFoundPrefixList(id)
	}
	return p, nil
}

// DescribeManagedPrefixLists returns the lists matching ids and filters.
func (b *Backend) DescribeManagedPrefixLists(ids []string, filters Filters) ([]*ManagedPrefixList, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matches []*ManagedPrefixList
	if len(ids) > 0 {
		for _, id := range ids {
			p, err := b.getManagedPrefixList(id)
			if err != nil {
				return nil, err
			}
			matches = append(matches, p)
		}
	} else {
		matches = sortedByID(b.prefixLists)
	}
	return applyFilters("DescribeManagedPrefixLists", filters, prefixListFilters, matches)
}

// GetManagedPrefixListEntries returns the entries of a version of a
// list; version 0 means the current one.
func (b *Backend) GetManagedPrefixListEntries(id string, version int64) ([]PrefixListEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.getManagedPrefixList(id)
	if err != nil {
		return nil, err
	}
	return p.Entries(version)
}

// ModifyManagedPrefixListInput carries entry additions and removals.
// CurrentVersion names the version the changes are based on; 0 means
// the latest.
type ModifyManagedPrefixListInput struct {
	PrefixListID   string            `json:"prefix_list_id"`
	CurrentVersion int64             `json:"current_version,omitempty"`
	Name           string            `json:"prefix_list_name,omitempty"`
	AddEntries     []PrefixListEntry `json:"add_entries,omitempty"`
	RemoveEntries  []string          `json:"remove_entries,omitempty"`
}

// ModifyManagedPrefixList applies additions and removals as a new
// version of the list.
func (b *Backend) ModifyManagedPrefixList(in ModifyManagedPrefixListInput) (*ManagedPrefixList, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.getManagedPrefixList(in.PrefixListID)
	if err != nil {
		return nil, err
	}
	if p.State == PrefixListDeleteInProgress || p.State == PrefixListDeleteComplete {
		return nil, invalidStateTransition(
			"prefix list %s is being deleted and cannot be modified", p.ID)
	}
	if in.Name != "" {
		p.Name = in.Name
	}
	if len(in.AddEntries) == 0 && len(in.RemoveEntries) == 0 {
		return p, nil
	}

	// The new version is built from the entries at the caller's named
	// version, or the latest when none is given. A stale version silently
	// bases the modification on that older snapshot.
	base := p.Version
	if in.CurrentVersion != 0 {
		if _, ok := p.versions[in.CurrentVersion]; !ok {
			return nil, invalidParameterValue(
				"prefix list %s has no version %d", p.ID, in.CurrentVersion)
		}
		base = in.CurrentVersion
	}
	current := p.versions[base]
	next := make([]PrefixListEntry, 0, len(current)+len(in.AddEntries))
	for _, e := range current {
		removed := false
		for _, cidr := range in.RemoveEntries {
			if e.CIDR == cidr {
				removed = true
				break
			}
		}
		if !removed {
			next = append(next, e)
		}
	}
	for _, e := range in.AddEntries {
		if _, err := parseCIDR(e.CIDR); err != nil {
			return nil, err
		}
		replaced := false
		for i, have := range next {
			if have.CIDR == e.CIDR {
				next[i] = e
				replaced = true
				break
			}
		}
		if !replaced {
			next = append(next, e)
		}
	}
	if len(next) > p.MaxEntries {
		return nil, apiErrorf("PrefixListMaxEntriesExceeded",
			"The number of entries exceeds the maximum of %d", p.MaxEntries)
	}

	p.Version++
	p.versions[p.Version] = next
	p.State = PrefixListModifyComplete
	return p, nil
}

// DeleteManagedPrefixList starts the soft delete of a list. The list
// stays describable in delete-in-progress until the sweeper finalizes
// it after DeleteAfter.
func (b *Backend) DeleteManagedPrefixList(id string) (*ManagedPrefixList, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.getManagedPrefixList(id)
	if err != nil {
		return nil, err
	}
	if p.OwnerID == "AWS" {
		return nil, operationNotPermitted("the prefix list %s is AWS-managed and cannot be deleted", id)
	}
	for _, g := range b.securityGroups {
		for _, rule := range append(g.IngressRules, g.EgressRules...) {
			if containsPrefixRef(rule.PrefixListIDs, id) {
				return nil, dependencyViolation(
					"The prefixList '%s' has dependencies and cannot be deleted.", id)
			}
		}
	}
	p.State = PrefixListDeleteInProgress
	p.DeleteAfter = time.Now().UTC().Add(prefixListDeleteLinger)
	return p, nil
}

// SweepPrefixLists finalizes soft-deleted lists whose linger period has
// passed. It returns the number of lists settled.
func (b *Backend) SweepPrefixLists(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	settled := 0
	for _, p := range b.prefixLists {
		if p.State == PrefixListDeleteInProgress && now.After(p.DeleteAfter) {
			p.State = PrefixListDeleteComplete
			settled++
		}
	}
	return settled
}
