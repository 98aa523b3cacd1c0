package ec2

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VPC endpoint types.
const (
	EndpointTypeGateway   = "Gateway"
	EndpointTypeInterface = "Interface"
)

// VPCEndpoint connects a VPC privately to a service. Gateway endpoints
// hang off route tables; Interface endpoints materialize one network
// interface per subnet.
type VPCEndpoint struct {
	ID                  string    `json:"vpc_endpoint_id"`
	VPCID               string    `json:"vpc_id"`
	ServiceName         string    `json:"service_name"`
	Type                string    `json:"vpc_endpoint_type"`
	State               string    `json:"state"`
	RouteTableIDs       []string  `json:"route_table_ids,omitempty"`
	SubnetIDs           []string  `json:"subnet_ids,omitempty"`
	NetworkInterfaceIDs []string  `json:"network_interface_ids,omitempty"`
	GroupIDs            []string  `json:"groups,omitempty"`
	PrivateDNSEnabled   bool      `json:"private_dns_enabled"`
	PolicyDocument      string    `json:"policy_document,omitempty"`
	ClientToken         string    `json:"client_token"`
	CreationTimestamp   time.Time `json:"creation_timestamp"`
	OwnerID             string    `json:"owner_id"`
	Tags                TagSet    `json:"tags"`
}

func (e *VPCEndpoint) tagSet() TagSet { return e.Tags }

var endpointFilters = filterTable[*VPCEndpoint]{
	"vpc-endpoint-id": func(e *VPCEndpoint) []string { return []string{e.ID} },
	"vpc-id":          func(e *VPCEndpoint) []string { return []string{e.VPCID} },
	"service-name":    func(e *VPCEndpoint) []string { return []string{e.ServiceName} },
	"vpc-endpoint-type": func(e *VPCEndpoint) []string {
		return []string{e.Type}
	},
	"vpc-endpoint-state": func(e *VPCEndpoint) []string { return []string{e.State} },
}

// EndpointService is a service reachable through VPC endpoints, either
// one of the region's AWS-managed defaults or a user-created service
// configuration.
type EndpointService struct {
	ID                 string   `json:"service_id"`
	ServiceName        string   `json:"service_name"`
	ServiceType        string   `json:"service_type"`
	AcceptanceRequired bool     `json:"acceptance_required"`
	AvailabilityZones  []string `json:"availability_zones"`
	Managed            bool     `json:"managed"`
	PrivateDNSName     string   `json:"private_dns_name,omitempty"`
	State              string   `json:"service_state"`
	OwnerID            string   `json:"owner"`
	Tags               TagSet   `json:"tags"`
}

func (s *EndpointService) tagSet() TagSet { return s.Tags }

var endpointServiceFilters = filterTable[*EndpointService]{
	"service-id":   func(s *EndpointService) []string { return []string{s.ID} },
	"service-name": func(s *EndpointService) []string { return []string{s.ServiceName} },
	"service-type": func(s *EndpointService) []string { return []string{s.ServiceType} },
}

// createDefaultEndpointServices seeds the AWS-managed services of the
// region.
func (b *Backend) createDefaultEndpointServices() {
	defaults := []struct {
		short string
		typ   string
	}{
		{"s3", EndpointTypeGateway},
		{"dynamodb", EndpointTypeGateway},
		{"ec2", EndpointTypeInterface},
		{"sts", EndpointTypeInterface},
		{"logs", EndpointTypeInterface},
	}
	zones, _ := ZonesForRegion(b.Region)
	var zoneNames []string
	for _, z := range zones {
		zoneNames = append(zoneNames, z.Name)
	}
	for _, d := range defaults {
		s := &EndpointService{
			ID:                newID(idPrefixEndpointService),
			ServiceName:       fmt.Sprintf("com.amazonaws.%s.%s", b.Region, d.short),
			ServiceType:       d.typ,
			AvailabilityZones: zoneNames,
			Managed:           true,
			State:             "Available",
			OwnerID:           "amazon",
			Tags:              TagSet{},
		}
		b.endpointServices[s.ID] = s
	}
}

func (b *Backend) endpointServiceByName(name string) *EndpointService {
	for _, s := range b.endpointServices {
		if s.ServiceName == name {
			return s
		}
	}
	return nil
}

// CreateVPCEndpointInput carries the parameters of CreateVPCEndpoint.
type CreateVPCEndpointInput struct {
	VPCID             string            `json:"vpc_id"`
	ServiceName       string            `json:"service_name"`
	Type              string            `json:"vpc_endpoint_type,omitempty"`
	RouteTableIDs     []string          `json:"route_table_ids,omitempty"`
	SubnetIDs         []string          `json:"subnet_ids,omitempty"`
	GroupIDs          []string          `json:"groups,omitempty"`
	PrivateDNSEnabled bool              `json:"private_dns_enabled,omitempty"`
	PolicyDocument    string            `json:"policy_document,omitempty"`
	ClientToken       string            `json:"client_token,omitempty"`
	Tags              map[string]string `json:"tags,omitempty"`
}

// CreateVPCEndpoint creates an endpoint for a service. Gateway endpoints
// attach to the given route tables; Interface endpoints get one network
// interface in each given subnet.
func (b *Backend) CreateVPCEndpoint(in CreateVPCEndpointInput) (*VPCEndpoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	vpc, err := b.getVPC(in.VPCID)
	if err != nil {
		return nil, err
	}
	// Retries with the same client token get the original endpoint back.
	if in.ClientToken != "" {
		for _, ep := range b.endpoints {
			if ep.ClientToken == in.ClientToken {
				return ep, nil
			}
		}
	} else {
		in.ClientToken = uuid.NewString()
	}
	svc := b.endpointServiceByName(in.ServiceName)
	if svc == nil {
		return nil, invalidParameterValue(
			"The Vpc Endpoint Service '%s' does not exist", in.ServiceName)
	}
	epType := in.Type
	if epType == "" {
		epType = EndpointTypeGateway
	}
	if epType != EndpointTypeGateway && epType != EndpointTypeInterface {
		return nil, invalidParameterValue(
			"Value (%s) for parameter VpcEndpointType is invalid.", in.Type)
	}

	ep := &VPCEndpoint{
		ID:                newID(idPrefixEndpoint),
		VPCID:             vpc.ID,
		ServiceName:       svc.ServiceName,
		Type:              epType,
		State:             "available",
		PrivateDNSEnabled: in.PrivateDNSEnabled,
		PolicyDocument:    in.PolicyDocument,
		ClientToken:       in.ClientToken,
		CreationTimestamp: time.Now().UTC(),
		OwnerID:           b.AccountID,
		Tags:              TagSet{},
	}
	ep.Tags.Merge(in.Tags)

	switch epType {
	case EndpointTypeGateway:
		for _, rtbID := range in.RouteTableIDs {
			if _, err := b.getRouteTable(rtbID); err != nil {
				return nil, err
			}
		}
		ep.RouteTableIDs = append([]string(nil), in.RouteTableIDs...)
	case EndpointTypeInterface:
		for _, subnetID := range in.SubnetIDs {
			eni, err := b.createNetworkInterface(CreateNetworkInterfaceInput{
				SubnetID:    subnetID,
				Description: "VPC Endpoint Interface " + ep.ID,
				GroupIDs:    in.GroupIDs,
			})
			if err != nil {
				return nil, err
			}
			ep.NetworkInterfaceIDs = append(ep.NetworkInterfaceIDs, eni.ID)
		}
		ep.SubnetIDs = append([]string(nil), in.SubnetIDs...)
		ep.GroupIDs = append([]string(nil), in.GroupIDs...)
	}
	b.endpoints[ep.ID] = ep
	return ep, nil
}

// GetVPCEndpoint returns the endpoint with the given id.
func (b *Backend) GetVPCEndpoint(id string) (*VPCEndpoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ep, ok := b.endpoints[id]
	if !ok {
		return nil, notFoundEndpoint(id)
	}
	return ep, nil
}

// DescribeVPCEndpoints returns the endpoints matching ids and filters.
func (b *Backend) DescribeVPCEndpoints(ids []string, filters Filters) ([]*VPCEndpoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matches []*VPCEndpoint
	if len(ids) > 0 {
		for _, id := range ids {
			ep, ok := b.endpoints[id]
			if !ok {
				return nil, notFoundEndpoint(id)
			}
			matches = append(matches, ep)
		}
	} else {
		matches = sortedByID(b.endpoints)
	}
	return applyFilters("DescribeVpcEndpoints", filters, endpointFilters, matches)
}

// ModifyVPCEndpointInput carries endpoint attribute changes. Add and
// remove lists apply to route tables for Gateway endpoints and subnets
// for Interface endpoints.
type ModifyVPCEndpointInput struct {
	VPCEndpointID       string   `json:"vpc_endpoint_id"`
	AddRouteTableIDs    []string `json:"add_route_table_ids,omitempty"`
	RemoveRouteTableIDs []string `json:"remove_route_table_ids,omitempty"`
	AddSubnetIDs        []string `json:"add_subnet_ids,omitempty"`
	PolicyDocument      *string  `json:"policy_document,omitempty"`
	PrivateDNSEnabled   *bool    `json:"private_dns_enabled,omitempty"`
}

// ModifyVPCEndpoint updates an endpoint's route tables, subnets or
// policy.
func (b *Backend) ModifyVPCEndpoint(in ModifyVPCEndpointInput) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ep, ok := b.endpoints[in.VPCEndpointID]
	if !ok {
		return notFoundEndpoint(in.VPCEndpointID)
	}
	for _, rtbID := range in.AddRouteTableIDs {
		if _, err := b.getRouteTable(rtbID); err != nil {
			return err
		}
		ep.RouteTableIDs = append(ep.RouteTableIDs, rtbID)
	}
	for _, rtbID := range in.RemoveRouteTableIDs {
		for i, have := range ep.RouteTableIDs {
			if have == rtbID {
				ep.RouteTableIDs = append(ep.RouteTableIDs[:i], ep.RouteTableIDs[i+1:]...)
				break
			}
		}
	}
	for _, subnetID := range in.AddSubnetIDs {
		eni, err := b.createNetworkInterface(CreateNetworkInterfaceInput{
			SubnetID:    subnetID,
			Description: "VPC Endpoint Interface " + ep.ID,
			GroupIDs:    ep.GroupIDs,
		})
		if err != nil {
			return err
		}
		ep.SubnetIDs = append(ep.SubnetIDs, subnetID)
		ep.NetworkInterfaceIDs = append(ep.NetworkInterfaceIDs, eni.ID)
	}
	if in.PolicyDocument != nil {
		ep.PolicyDocument = *in.PolicyDocument
	}
	if in.PrivateDNSEnabled != nil {
		ep.PrivateDNSEnabled = *in.PrivateDNSEnabled
	}
	return nil
}

// DeleteVPCEndpoints deletes endpoints by id, releasing any interface
// endpoints' network interfaces.
func (b *Backend) DeleteVPCEndpoints(ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range ids {
		ep, ok := b.endpoints[id]
		if !ok {
			return notFoundEndpoint(id)
		}
		for _, eniID := range ep.NetworkInterfaceIDs {
			if eni, ok := b.enis[eniID]; ok {
				if subnet, ok := b.subnets[eni.SubnetID]; ok {
					b.releaseENIAddresses(subnet, eni)
				}
				delete(b.enis, eniID)
			}
		}
		delete(b.endpoints, id)
	}
	return nil
}

// CreateEndpointServiceInput carries the parameters of
// CreateVPCEndpointServiceConfiguration.
type CreateEndpointServiceInput struct {
	ServiceType        string            `json:"service_type,omitempty"`
	AcceptanceRequired bool              `json:"acceptance_required,omitempty"`
	PrivateDNSName     string            `json:"private_dns_name,omitempty"`
	Tags               map[string]string `json:"tags,omitempty"`
}

// CreateEndpointService registers a user-provided endpoint service.
func (b *Backend) CreateEndpointService(in CreateEndpointServiceInput) (*EndpointService, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	svcType := in.ServiceType
	if svcType == "" {
		svcType = EndpointTypeInterface
	}
	s := &EndpointService{
		ID:                 newID(idPrefixEndpointService),
		ServiceType:        svcType,
		AcceptanceRequired: in.AcceptanceRequired,
		PrivateDNSName:     in.PrivateDNSName,
		State:              "Available",
		OwnerID:            b.AccountID,
		Tags:               TagSet{},
	}
	s.ServiceName = fmt.Sprintf("com.amazonaws.vpce.%s.%s", b.Region, s.ID)
	s.Tags.Merge(in.Tags)
	b.endpointServices[s.ID] = s
	return s, nil
}

// DescribeEndpointServices returns the services matching the given names
// and filters.
func (b *Backend) DescribeEndpointServices(names []string, filters Filters) ([]*EndpointService, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matches []*EndpointService
	if len(names) > 0 {
		for _, name := range names {
			s := b.endpointServiceByName(name)
			if s == nil {
				return nil, invalidParameterValue(
					"The Vpc Endpoint Service '%s' does not exist", name)
			}
			matches = append(matches, s)
		}
	} else {
		matches = sortedByID(b.endpointServices)
	}
	return applyFilters("DescribeVpcEndpointServices", filters, endpointServiceFilters, matches)
}

// DeleteEndpointServices removes user-created service configurations.
// AWS-managed services cannot be deleted, and services with live
// endpoints cannot either.
func (b *Backend) DeleteEndpointServices(ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range ids {
		s, ok := b.endpointServices[id]
		if !ok {
			return notFoundEndpointService(id)
		}
		if s.Managed {
			return operationNotPermitted("the service %s is managed and cannot be deleted", id)
		}
		for _, ep := range b.endpoints {
			if ep.ServiceName == s.ServiceName {
				return dependencyViolation(
					"The service '%s' has dependencies and cannot be deleted.", id)
			}
		}
		delete(b.endpointServices, id)
	}
	return nil
}
