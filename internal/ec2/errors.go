package ec2

import (
	"errors"
	"fmt"
	"strings"
)

// APIError is the error type returned by every backend operation. Code is
// the AWS error code string (for example "InvalidVpcID.NotFound") and
// Message is the human-readable detail.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

func apiErrorf(code, format string, args ...any) *APIError {
	return &APIError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err is an APIError whose code marks a missing
// resource.
func IsNotFound(err error) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	return strings.HasSuffix(ae.Code, ".NotFound")
}

func notFoundVPC(id string) *APIError {
	return apiErrorf("InvalidVpcID.NotFound", "VpcID %s does not exist.", id)
}

func notFoundSubnet(id string) *APIError {
	return apiErrorf("InvalidSubnetID.NotFound", "The subnet ID '%s' does not exist", id)
}

func notFoundRouteTable(id string) *APIError {
	return apiErrorf("InvalidRouteTableID.NotFound", "The routeTable ID '%s' does not exist", id)
}

func notFoundRoute(rtbID, cidr string) *APIError {
	return apiErrorf("InvalidRoute.NotFound", "no route with destination-cidr-block %s in route table %s", cidr, rtbID)
}

func notFoundAssociation(id string) *APIError {
	return apiErrorf("InvalidAssociationID.NotFound", "The association ID '%s' does not exist", id)
}

func notFoundSecurityGroup(name string) *APIError {
	return apiErrorf("InvalidGroup.NotFound", "The security group '%s' does not exist", name)
}

func notFoundInternetGateway(id string) *APIError {
	return apiErrorf("InvalidInternetGatewayID.NotFound", "InternetGatewayID %s does not exist.", id)
}

func notFoundEgressOnlyGateway(id string) *APIError {
	return apiErrorf("InvalidGatewayID.NotFound", "The eigw ID '%s' does not exist", id)
}

func notFoundCarrierGateway(id string) *APIError {
	return apiErrorf("InvalidCarrierGatewayID.NotFound", "The CarrierGateway ID '%s' does not exist", id)
}

func notFoundVPNGateway(id string) *APIError {
	return apiErrorf("InvalidVpnGatewayID.NotFound", "VpnGatewayID %s does not exist.", id)
}

func notFoundVPNConnection(id string) *APIError {
	return apiErrorf("InvalidVpnConnectionID.NotFound", "VpnConnectionID %s does not exist.", id)
}

func notFoundCustomerGateway(id string) *APIError {
	return apiErrorf("InvalidCustomerGatewayID.NotFound", "CustomerGatewayID %s does not exist.", id)
}

func notFoundNatGateway(id string) *APIError {
	return apiErrorf("NatGatewayNotFound", "NatGatewayID %s does not exist.", id)
}

func notFoundDHCPOptions(id string) *APIError {
	return apiErrorf("InvalidDhcpOptionID.NotFound", "DhcpOptionID %s does not exist.", id)
}

func notFoundPeering(id string) *APIError {
	return apiErrorf("InvalidVpcPeeringConnectionId.NotFound", "VpcPeeringConnectionID %s does not exist.", id)
}

func notFoundCIDRAssociation(id string) *APIError {
	return apiErrorf("InvalidVpcCidrBlockAssociationIdError.NotFound",
		"The vpc CIDR block association ID '%s' does not exist", id)
}

func notFoundENI(id string) *APIError {
	return apiErrorf("InvalidNetworkInterfaceID.NotFound", "The network interface ID '%s' does not exist", id)
}

func notFoundENIAttachment(id string) *APIError {
	return apiErrorf("InvalidAttachmentID.NotFound", "The network interface attachment ID '%s' does not exist", id)
}

func notFoundEndpoint(id string) *APIError {
	return apiErrorf("InvalidVpcEndpointId.NotFound", "The VpcEndpoint ID '%s' does not exist", id)
}

func notFoundEndpointService(id string) *APIError {
	return apiErrorf("InvalidVpcEndpointServiceId.NotFound", "The VpcEndpointService Id '%s' does not exist", id)
}

func notFoundPrefixList(id string) *APIError {
	return apiErrorf("InvalidPrefixListID.NotFound", "The managed prefix list '%s' does not exist", id)
}

func notFoundTransitGateway(id string) *APIError {
	return apiErrorf("InvalidTransitGatewayID.NotFound", "The transitGateway ID '%s' does not exist", id)
}

func notFoundTGWRouteTable(id string) *APIError {
	return apiErrorf("InvalidRouteTableID.NotFound", "The transitGatewayRouteTable ID '%s' does not exist", id)
}

func notFoundTGWAttachment(id string) *APIError {
	return apiErrorf("InvalidTransitGatewayAttachmentID.NotFound",
		"The transitGatewayAttachment ID '%s' does not exist", id)
}

func notFoundNetworkACL(id string) *APIError {
	return apiErrorf("InvalidNetworkAclID.NotFound", "The network acl ID '%s' does not exist", id)
}

func notFoundNetworkACLEntry(ruleNumber int) *APIError {
	return apiErrorf("InvalidNetworkAclEntry.NotFound",
		"The network acl entry (rule number %d) does not exist", ruleNumber)
}

func dependencyViolation(format string, args ...any) *APIError {
	return apiErrorf("DependencyViolation", format, args...)
}

func invalidParameterValue(format string, args ...any) *APIError {
	return apiErrorf("InvalidParameterValue", format, args...)
}

func missingParameter(name string) *APIError {
	return apiErrorf("MissingParameter",
		"The request must contain the parameter %s", name)
}

func operationNotPermitted(format string, args ...any) *APIError {
	return apiErrorf("OperationNotPermitted", format, args...)
}

func invalidStateTransition(format string, args ...any) *APIError {
	return apiErrorf("InvalidStateTransition", format, args...)
}

func gatewayNotAttached(gatewayID, vpcID string) *APIError {
	return apiErrorf("Gateway.NotAttached",
		"resource %s is not attached to network %s", gatewayID, vpcID)
}

func resourceAlreadyAssociated(resourceID, vpcID string) *APIError {
	return apiErrorf("Resource.AlreadyAssociated",
		"resource %s is already attached to network %s", resourceID, vpcID)
}

func filterNotImplemented(filterName, method string) *APIError {
	return apiErrorf("FilterNotImplemented",
		"The filter '%s' for %s has not been implemented", filterName, method)
}
