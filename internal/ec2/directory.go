package ec2

import (
	"sort"
	"sync"
)

// DefaultAccountID is used when callers do not name an account.
const DefaultAccountID = "123456789012"

// Directory hands out backends per (account, region), creating them
// lazily on first use. It also owns the peering registry shared by all
// of its backends, which is what lets peering connections span regions.
type Directory struct {
	mu       sync.Mutex
	backends map[string]*Backend
	peerings *peeringRegistry
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		backends: make(map[string]*Backend),
		peerings: newPeeringRegistry(),
	}
}

// Backend returns the backend of an (account, region) pair, creating it
// on first use. An empty account resolves to DefaultAccountID; the
// region must be known.
func (d *Directory) Backend(accountID, region string) (*Backend, error) {
	if accountID == "" {
		accountID = DefaultAccountID
	}
	if _, err := ZonesForRegion(region); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	key := accountID + "/" + region
	if b, ok := d.backends[key]; ok {
		return b, nil
	}
	b := newBackend(d, accountID, region)
	d.backends[key] = b
	return b, nil
}

// Active returns the backends created so far, sorted by account and
// region.
func (d *Directory) Active() []*Backend {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*Backend, 0, len(d.backends))
	for _, k := range sortedKeys(d.backends) {
		out = append(out, d.backends[k])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AccountID != out[j].AccountID {
			return out[i].AccountID < out[j].AccountID
		}
		return out[i].Region < out[j].Region
	})
	return out
}
