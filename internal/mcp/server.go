package mcp

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/paularlott/mcp"

	"github.com/martinsuchenak/vpcd/internal/ec2"
	"github.com/martinsuchenak/vpcd/internal/log"
)

// Server wraps the MCP server with the resource directory
type Server struct {
	mcpServer   *mcp.Server
	dir         *ec2.Directory
	bearerToken string
}

// NewServer creates a new MCP server for network resource management
func NewServer(dir *ec2.Directory, bearerToken string) *Server {
	s := &Server{
		mcpServer:   mcp.NewServer("vpcd", "1.0.0"),
		dir:         dir,
		bearerToken: bearerToken,
	}
	s.registerTools()
	return s
}

// registerTools registers all resource management tools
func (s *Server) registerTools() {
	// vpc_list - List VPCs in a region
	s.mcpServer.RegisterTool(
		mcp.NewTool("vpc_list", "List VPCs in a region, including the default VPC",
			mcp.String("region", "Region name (e.g., us-east-1)", mcp.Required()),
			mcp.String("account", "Account ID (defaults to the primary account)"),
		),
		s.handleVPCList,
	)

	// vpc_create - Create a VPC
	s.mcpServer.RegisterTool(
		mcp.NewTool("vpc_create", "Create a VPC with the given IPv4 CIDR block (prefix length 16 to 28)",
			mcp.String("region", "Region name", mcp.Required()),
			mcp.String("cidr_block", "IPv4 CIDR block (e.g., 10.0.0.0/16)", mcp.Required()),
			mcp.String("name", "Value for the Name tag"),
			mcp.String("account", "Account ID"),
		),
		s.handleVPCCreate,
	)

	// subnet_list - List subnets
	s.mcpServer.RegisterTool(
		mcp.NewTool("subnet_list", "List subnets in a region, optionally scoped to one VPC",
			mcp.String("region", "Region name", mcp.Required()),
			mcp.String("vpc_id", "Restrict to this VPC"),
			mcp.String("account", "Account ID"),
		),
		s.handleSubnetList,
	)

	// subnet_create - Create a subnet
	s.mcpServer.RegisterTool(
		mcp.NewTool("subnet_create", "Create a subnet inside a VPC. The CIDR must lie within the VPC and not overlap existing subnets.",
			mcp.String("region", "Region name", mcp.Required()),
			mcp.String("vpc_id", "VPC ID", mcp.Required()),
			mcp.String("cidr_block", "Subnet IPv4 CIDR block", mcp.Required()),
			mcp.String("availability_zone", "Availability zone name or ID (defaults to the region's first zone)"),
			mcp.String("account", "Account ID"),
		),
		s.handleSubnetCreate,
	)

	// route_add - Add a route to a route table
	s.mcpServer.RegisterTool(
		mcp.NewTool("route_add", "Add a route to a route table. The target is inferred from the target ID's prefix (igw-, nat-, pcx-, eni-, tgw-, eigw-, cagw-, vpce-).",
			mcp.String("region", "Region name", mcp.Required()),
			mcp.String("route_table_id", "Route table ID", mcp.Required()),
			mcp.String("destination_cidr_block", "Destination CIDR block", mcp.Required()),
			mcp.String("target_id", "Target resource ID", mcp.Required()),
			mcp.String("account", "Account ID"),
		),
		s.handleRouteAdd,
	)

	// sg_authorize - Authorize a security group rule
	s.mcpServer.RegisterTool(
		mcp.NewTool("sg_authorize", "Authorize an ingress or egress rule on a security group",
			mcp.String("region", "Region name", mcp.Required()),
			mcp.String("group_id", "Security group ID", mcp.Required()),
			mcp.String("direction", "Rule direction: ingress or egress (default ingress)"),
			mcp.String("protocol", "IP protocol (tcp, udp, icmp or -1)", mcp.Required()),
			mcp.String("from_port", "Start of the port range"),
			mcp.String("to_port", "End of the port range"),
			mcp.String("cidr", "Source or destination CIDR block", mcp.Required()),
			mcp.String("account", "Account ID"),
		),
		s.handleSGAuthorize,
	)

	// peering_status - Inspect a VPC peering connection
	s.mcpServer.RegisterTool(
		mcp.NewTool("peering_status", "Show the state of a VPC peering connection as seen from a region",
			mcp.String("region", "Region name", mcp.Required()),
			mcp.String("id", "Peering connection ID", mcp.Required()),
			mcp.String("account", "Account ID"),
		),
		s.handlePeeringStatus,
	)

	// tgw_route_search - Search transit gateway routes
	s.mcpServer.RegisterTool(
		mcp.NewTool("tgw_route_search", "Search the routes of a transit gateway route table",
			mcp.String("region", "Region name", mcp.Required()),
			mcp.String("route_table_id", "Transit gateway route table ID", mcp.Required()),
			mcp.String("exact_match", "Return only the route for this exact destination CIDR"),
			mcp.String("state", "Filter by route state (active, blackhole, deleted)"),
			mcp.String("account", "Account ID"),
		),
		s.handleTGWRouteSearch,
	)

	// resource_lookup - Check resource existence and tags
	s.mcpServer.RegisterTool(
		mcp.NewTool("resource_lookup", "Check that resources exist in a region and show their tags",
			mcp.String("region", "Region name", mcp.Required()),
			mcp.StringArray("ids", "Resource IDs to look up"),
			mcp.String("account", "Account ID"),
		),
		s.handleResourceLookup,
	)
}

// backend resolves the region/account tool parameters to a backend.
func (s *Server) backend(req *mcp.ToolRequest) (*ec2.Backend, error) {
	region, err := req.String("region")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("region is required: " + err.Error())
	}
	backend, err := s.dir.Backend(req.StringOr("account", ""), region)
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams(err.Error())
	}
	return backend, nil
}

// HandleRequest handles MCP HTTP requests with optional bearer token authentication
func (s *Server) HandleRequest(w http.ResponseWriter, r *http.Request) {
	log.Debug("MCP request received", "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)

	// Check bearer token if configured
	if s.bearerToken != "" {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			log.Warn("MCP request missing Authorization header", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Missing Authorization header", http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(auth, "Bearer ") {
			log.Warn("MCP request invalid Authorization format", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Invalid Authorization format", http.StatusUnauthorized)
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")
		if token != s.bearerToken {
			log.Warn("MCP request invalid token", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}
	}

	s.mcpServer.HandleRequest(w, r)
}

func (s *Server) handleVPCList(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	backend, err := s.backend(req)
	if err != nil {
		return nil, err
	}

	vpcs, err := backend.DescribeVPCs(nil, nil)
	if err != nil {
		return nil, mcp.NewToolErrorInternal("failed to list VPCs: " + err.Error())
	}

	log.Info("MCP vpc list completed", "region", backend.Region, "count", len(vpcs))

	if len(vpcs) == 0 {
		return mcp.NewToolResponseText("No VPCs found"), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Found %d VPCs in %s:\n\n", len(vpcs), backend.Region))
	for _, v := range vpcs {
		result.WriteString(s.formatVPCSummary(v))
		result.WriteString("\n")
	}
	return mcp.NewToolResponseText(result.String()), nil
}

func (s *Server) handleVPCCreate(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	backend, err := s.backend(req)
	if err != nil {
		return nil, err
	}
	cidr, err := req.String("cidr_block")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("cidr_block is required: " + err.Error())
	}

	in := ec2.CreateVPCInput{CIDRBlock: cidr}
	if name := req.StringOr("name", ""); name != "" {
		in.Tags = map[string]string{"Name": name}
	}

	vpc, err := backend.CreateVPC(in)
	if err != nil {
		return nil, mcp.NewToolErrorInternal("failed to create VPC: " + err.Error())
	}

	log.Info("MCP VPC created", "id", vpc.ID, "cidr", vpc.CIDRBlock, "region", backend.Region)
	return mcp.NewToolResponseText(fmt.Sprintf("VPC created: %s (%s)", vpc.ID, vpc.CIDRBlock)), nil
}

func (s *Server) handleSubnetList(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	backend, err := s.backend(req)
	if err != nil {
		return nil, err
	}

	var filters ec2.Filters
	if vpcID := req.StringOr("vpc_id", ""); vpcID != "" {
		filters = ec2.Filters{"vpc-id": {vpcID}}
	}
	subnets, err := backend.DescribeSubnets(nil, filters)
	if err != nil {
		return nil, mcp.NewToolErrorInternal("failed to list subnets: " + err.Error())
	}

	if len(subnets) == 0 {
		return mcp.NewToolResponseText("No subnets found"), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Found %d subnets in %s:\n\n", len(subnets), backend.Region))
	for _, sn := range subnets {
		result.WriteString(fmt.Sprintf("ID: %s\nVPC: %s\nCIDR: %s\nZone: %s\nAvailable IPs: %d\n\n",
			sn.ID, sn.VPCID, sn.CIDRBlock, sn.AvailabilityZone, sn.AvailableIPAddressCount()))
	}
	return mcp.NewToolResponseText(result.String()), nil
}

func (s *Server) handleSubnetCreate(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	backend, err := s.backend(req)
	if err != nil {
		return nil, err
	}
	vpcID, err := req.String("vpc_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("vpc_id is required: " + err.Error())
	}
	cidr, err := req.String("cidr_block")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("cidr_block is required: " + err.Error())
	}

	subnet, err := backend.CreateSubnet(ec2.CreateSubnetInput{
		VPCID:            vpcID,
		CIDRBlock:        cidr,
		AvailabilityZone: req.StringOr("availability_zone", ""),
	})
	if err != nil {
		return nil, mcp.NewToolErrorInternal("failed to create subnet: " + err.Error())
	}

	log.Info("MCP subnet created", "id", subnet.ID, "vpc", vpcID, "cidr", cidr)
	return mcp.NewToolResponseText(fmt.Sprintf("Subnet created: %s in %s (%s, zone %s)",
		subnet.ID, subnet.VPCID, subnet.CIDRBlock, subnet.AvailabilityZone)), nil
}

func (s *Server) handleRouteAdd(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	backend, err := s.backend(req)
	if err != nil {
		return nil, err
	}
	routeTableID, err := req.String("route_table_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("route_table_id is required: " + err.Error())
	}
	destination, err := req.String("destination_cidr_block")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("destination_cidr_block is required: " + err.Error())
	}
	targetID, err := req.String("target_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("target_id is required: " + err.Error())
	}

	in := ec2.RouteInput{RouteTableID: routeTableID, DestinationCIDRBlock: destination}
	switch {
	case strings.HasPrefix(targetID, "nat-"):
		in.NatGatewayID = targetID
	case strings.HasPrefix(targetID, "pcx-"):
		in.VPCPeeringConnectionID = targetID
	case strings.HasPrefix(targetID, "eni-"):
		in.NetworkInterfaceID = targetID
	case strings.HasPrefix(targetID, "eigw-"):
		in.EgressOnlyGatewayID = targetID
	case strings.HasPrefix(targetID, "tgw-"):
		in.TransitGatewayID = targetID
	case strings.HasPrefix(targetID, "cagw-"):
		in.CarrierGatewayID = targetID
	case strings.HasPrefix(targetID, "vpce-"):
		in.VPCEndpointID = targetID
	default:
		in.GatewayID = targetID
	}

	route, err := backend.CreateRoute(in)
	if err != nil {
		return nil, mcp.NewToolErrorInternal("failed to add route: " + err.Error())
	}

	log.Info("MCP route added", "route_table", routeTableID, "destination", destination, "target", targetID)
	return mcp.NewToolResponseText(fmt.Sprintf("Route added: %s -> %s in %s",
		route.DestinationCIDRBlock, targetID, routeTableID)), nil
}

func (s *Server) handleSGAuthorize(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	backend, err := s.backend(req)
	if err != nil {
		return nil, err
	}
	groupID, err := req.String("group_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("group_id is required: " + err.Error())
	}
	protocol, err := req.String("protocol")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("protocol is required: " + err.Error())
	}
	cidr, err := req.String("cidr")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("cidr is required: " + err.Error())
	}

	in := ec2.RulePermissionInput{
		GroupID:  groupID,
		Protocol: protocol,
		CIDRs:    []string{cidr},
	}
	for _, param := range []struct {
		name string
		dst  **int
	}{{"from_port", &in.FromPort}, {"to_port", &in.ToPort}} {
		if raw := req.StringOr(param.name, ""); raw != "" {
			port, err := strconv.Atoi(raw)
			if err != nil {
				return nil, mcp.NewToolErrorInvalidParams(param.name + " must be a number")
			}
			*param.dst = &port
		}
	}

	direction := req.StringOr("direction", "ingress")
	var rule *ec2.SecurityRule
	switch direction {
	case "ingress":
		rule, err = backend.AuthorizeSecurityGroupIngress(in)
	case "egress":
		rule, err = backend.AuthorizeSecurityGroupEgress(in)
	default:
		return nil, mcp.NewToolErrorInvalidParams("direction must be ingress or egress")
	}
	if err != nil {
		return nil, mcp.NewToolErrorInternal("failed to authorize rule: " + err.Error())
	}

	log.Info("MCP security group rule authorized", "group", groupID, "direction", direction, "rule", rule.ID)
	return mcp.NewToolResponseText(fmt.Sprintf("Rule %s authorized on %s (%s %s %s)",
		rule.ID, groupID, direction, protocol, cidr)), nil
}

func (s *Server) handlePeeringStatus(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	backend, err := s.backend(req)
	if err != nil {
		return nil, err
	}
	id, err := req.String("id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("id is required: " + err.Error())
	}

	peering, err := backend.GetVPCPeeringConnection(id)
	if err != nil {
		return nil, mcp.NewToolErrorInternal("peering connection not found: " + err.Error())
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("ID: %s\n", peering.ID))
	result.WriteString(fmt.Sprintf("Status: %s (%s)\n", peering.Status.Code, peering.Status.Message))
	result.WriteString(fmt.Sprintf("Requester: %s in %s (account %s)\n",
		peering.Requester.VPCID, peering.Requester.Region, peering.Requester.AccountID))
	result.WriteString(fmt.Sprintf("Accepter: %s in %s (account %s)\n",
		peering.Accepter.VPCID, peering.Accepter.Region, peering.Accepter.AccountID))
	return mcp.NewToolResponseText(result.String()), nil
}

func (s *Server) handleTGWRouteSearch(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	backend, err := s.backend(req)
	if err != nil {
		return nil, err
	}
	routeTableID, err := req.String("route_table_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("route_table_id is required: " + err.Error())
	}

	filters := ec2.Filters{}
	if exact := req.StringOr("exact_match", ""); exact != "" {
		filters["route-search.exact-match"] = []string{exact}
	}
	if state := req.StringOr("state", ""); state != "" {
		filters["state"] = []string{state}
	}
	if len(filters) == 0 {
		filters = nil
	}

	routes, err := backend.SearchTransitGatewayRoutes(routeTableID, filters, 0)
	if err != nil {
		return nil, mcp.NewToolErrorInternal("route search failed: " + err.Error())
	}

	if len(routes) == 0 {
		return mcp.NewToolResponseText("No matching routes"), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Found %d routes in %s:\n\n", len(routes), routeTableID))
	for _, route := range routes {
		result.WriteString(fmt.Sprintf("  %s -> %s (%s, %s)\n",
			route.DestinationCIDR, route.AttachmentID, route.Type, route.State))
	}
	return mcp.NewToolResponseText(result.String()), nil
}

func (s *Server) handleResourceLookup(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	backend, err := s.backend(req)
	if err != nil {
		return nil, err
	}
	ids, err := req.StringSlice("ids")
	if err != nil || len(ids) == 0 {
		return nil, mcp.NewToolErrorInvalidParams("ids is required")
	}

	if err := backend.ResourcesExist(ids); err != nil {
		return mcp.NewToolResponseText("Lookup failed: " + err.Error()), nil
	}

	tags, err := backend.DescribeTags(ec2.Filters{"resource-id": ids})
	if err != nil {
		return nil, mcp.NewToolErrorInternal("failed to read tags: " + err.Error())
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("All %d resources exist in %s\n", len(ids), backend.Region))
	for _, tag := range tags {
		result.WriteString(fmt.Sprintf("  %s: %s=%s\n", tag.ResourceID, tag.Key, tag.Value))
	}
	return mcp.NewToolResponseText(result.String()), nil
}

func (s *Server) formatVPCSummary(vpc *ec2.VPC) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("ID: %s\n", vpc.ID))
	result.WriteString(fmt.Sprintf("CIDR: %s\n", vpc.CIDRBlock))
	result.WriteString(fmt.Sprintf("State: %s\n", vpc.State))
	if vpc.IsDefault {
		result.WriteString("Default: yes\n")
	}
	if name := vpc.Tags.Get("Name"); name != "" {
		result.WriteString(fmt.Sprintf("Name: %s\n", name))
	}
	return result.String()
}

// GetHTTPHandler returns the HTTP handler for the MCP server
func (s *Server) GetHTTPHandler() http.HandlerFunc {
	return s.HandleRequest
}

// LogStartup logs MCP server startup information
func (s *Server) LogStartup() {
	log.Info("MCP Server initialized", "version", "1.0.0")
	if s.bearerToken != "" {
		log.Info("MCP authentication enabled", "type", "Bearer token")
	} else {
		log.Info("MCP authentication disabled")
	}
	tools := s.mcpServer.ListTools()
	log.Info("MCP tools registered", "count", len(tools))
	for _, tool := range tools {
		log.Debug("MCP tool registered", "name", tool.Name, "description", tool.Description)
	}
}
