package ec2

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed zones.yaml
var zonesYAML []byte

// Zone is one availability zone of a region.
type Zone struct {
	Name   string `yaml:"name" json:"zone_name"`
	ID     string `yaml:"id" json:"zone_id"`
	Region string `yaml:"-" json:"region_name"`
	State  string `yaml:"-" json:"state"`
}

var loadZones = sync.OnceValue(func() map[string][]Zone {
	var doc struct {
		Regions map[string][]Zone `yaml:"regions"`
	}
	if err := yaml.Unmarshal(zonesYAML, &doc); err != nil {
		panic(fmt.Sprintf("ec2: bad embedded zone table: %v", err))
	}
	for region, zones := range doc.Regions {
		for i := range zones {
			zones[i].Region = region
			zones[i].State = "available"
		}
	}
	return doc.Regions
})

// Regions returns the known region names, sorted.
func Regions() []string {
	table := loadZones()
	out := make([]string, 0, len(table))
	for r := range table {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// ZonesForRegion returns the availability zones of a region in their
// stable order.
func ZonesForRegion(region string) ([]Zone, error) {
	zones, ok := loadZones()[region]
	if !ok {
		return nil, invalidParameterValue("Invalid region: %s", region)
	}
	return zones, nil
}

// resolveZone maps an availability zone name or zone id to its Zone. An
// empty input resolves to the region's first zone.
func resolveZone(region, nameOrID string) (Zone, error) {
	zones, err := ZonesForRegion(region)
	if err != nil {
		return Zone{}, err
	}
	if nameOrID == "" {
		return zones[0], nil
	}
	for _, z := range zones {
		if z.Name == nameOrID || z.ID == nameOrID {
			return z, nil
		}
	}
	return Zone{}, invalidParameterValue(
		"Value (%s) for parameter availabilityZone is invalid. Subnets can currently only be created in the following availability zones: %s.",
		nameOrID, zoneNames(zones))
}

func zoneNames(zones []Zone) string {
	s := ""
	for i, z := range zones {
		if i > 0 {
			s += ", "
		}
		s += z.Name
	}
	return s
}
