package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/martinsuchenak/vpcd/internal/ec2"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(ec2.NewDirectory()).RegisterRoutes(mux)
	return mux
}

// doJSON performs a request against the mux and decodes the JSON
// response into out (when out is non-nil).
func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body, out interface{}) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if out != nil && w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("unmarshal response %q: %v", w.Body.String(), err)
		}
	}
	return w.Code
}

func TestHandler_ListRegions(t *testing.T) {
	mux := newTestMux(t)

	var regions []string
	if code := doJSON(t, mux, "GET", "/api/regions", nil, &regions); code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}
	if len(regions) == 0 {
		t.Fatal("Expected at least one region")
	}
}

func TestHandler_ListZones_UnknownRegion(t *testing.T) {
	mux := newTestMux(t)

	if code := doJSON(t, mux, "GET", "/api/regions/mars-central-1/zones", nil, nil); code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown region, got %d", code)
	}
}

func TestHandler_VPCLifecycle(t *testing.T) {
	mux := newTestMux(t)

	var vpc ec2.VPC
	code := doJSON(t, mux, "POST", "/api/regions/us-east-1/vpcs",
		map[string]interface{}{"cidr_block": "10.0.0.0/16"}, &vpc)
	if code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", code)
	}
	if vpc.ID == "" || vpc.CIDRBlock != "10.0.0.0/16" {
		t.Fatalf("Unexpected VPC response: %+v", vpc)
	}

	var got ec2.VPC
	if code := doJSON(t, mux, "GET", "/api/regions/us-east-1/vpcs/"+vpc.ID, nil, &got); code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}
	if got.ID != vpc.ID {
		t.Errorf("Expected VPC %s, got %s", vpc.ID, got.ID)
	}

	if code := doJSON(t, mux, "DELETE", "/api/regions/us-east-1/vpcs/"+vpc.ID, nil, nil); code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", code)
	}
	if code := doJSON(t, mux, "GET", "/api/regions/us-east-1/vpcs/"+vpc.ID, nil, nil); code != http.StatusNotFound {
		t.Errorf("Expected status 404 after delete, got %d", code)
	}
}

func TestHandler_CreateVPC_InvalidCIDR(t *testing.T) {
	mux := newTestMux(t)

	code := doJSON(t, mux, "POST", "/api/regions/us-east-1/vpcs",
		map[string]interface{}{"cidr_block": "10.0.0.0/12"}, nil)
	if code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for /12 VPC, got %d", code)
	}
}

func TestHandler_ListVPCs_FilterByCIDR(t *testing.T) {
	mux := newTestMux(t)

	doJSON(t, mux, "POST", "/api/regions/us-east-1/vpcs",
		map[string]interface{}{"cidr_block": "10.1.0.0/16"}, nil)
	doJSON(t, mux, "POST", "/api/regions/us-east-1/vpcs",
		map[string]interface{}{"cidr_block": "10.2.0.0/16"}, nil)

	var vpcs []ec2.VPC
	code := doJSON(t, mux, "GET", "/api/regions/us-east-1/vpcs?cidr=10.1.0.0/16", nil, &vpcs)
	if code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}
	if len(vpcs) != 1 || vpcs[0].CIDRBlock != "10.1.0.0/16" {
		t.Errorf("Expected one VPC with CIDR 10.1.0.0/16, got %d", len(vpcs))
	}
}

func TestHandler_ListVPCs_UnknownFilter(t *testing.T) {
	mux := newTestMux(t)

	if code := doJSON(t, mux, "GET", "/api/regions/us-east-1/vpcs?bogus-filter=x", nil, nil); code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown filter, got %d", code)
	}
}

func TestHandler_SubnetLifecycle(t *testing.T) {
	mux := newTestMux(t)

	var vpc ec2.VPC
	doJSON(t, mux, "POST", "/api/regions/us-east-1/vpcs",
		map[string]interface{}{"cidr_block": "10.0.0.0/16"}, &vpc)

	var subnet ec2.Subnet
	code := doJSON(t, mux, "POST", "/api/regions/us-east-1/subnets",
		map[string]interface{}{"vpc_id": vpc.ID, "cidr_block": "10.0.1.0/24"}, &subnet)
	if code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", code)
	}
	if subnet.VPCID != vpc.ID {
		t.Errorf("Expected subnet in VPC %s, got %s", vpc.ID, subnet.VPCID)
	}

	// Overlapping sibling is rejected.
	code = doJSON(t, mux, "POST", "/api/regions/us-east-1/subnets",
		map[string]interface{}{"vpc_id": vpc.ID, "cidr_block": "10.0.1.0/25"}, nil)
	if code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for overlapping subnet, got %d", code)
	}

	if code := doJSON(t, mux, "DELETE", "/api/regions/us-east-1/subnets/"+subnet.ID, nil, nil); code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", code)
	}
}

func TestHandler_RouteLifecycle(t *testing.T) {
	mux := newTestMux(t)

	var vpc ec2.VPC
	doJSON(t, mux, "POST", "/api/regions/us-east-1/vpcs",
		map[string]interface{}{"cidr_block": "10.0.0.0/16"}, &vpc)

	var igw ec2.InternetGateway
	doJSON(t, mux, "POST", "/api/regions/us-east-1/internet-gateways", nil, &igw)
	code := doJSON(t, mux, "POST", "/api/regions/us-east-1/internet-gateways/"+igw.ID+"/attach",
		map[string]string{"vpc_id": vpc.ID}, nil)
	if code != http.StatusNoContent {
		t.Fatalf("Expected status 204 attaching gateway, got %d", code)
	}

	var rt ec2.RouteTable
	doJSON(t, mux, "POST", "/api/regions/us-east-1/route-tables",
		map[string]interface{}{"vpc_id": vpc.ID}, &rt)

	var route ec2.Route
	code = doJSON(t, mux, "POST", "/api/regions/us-east-1/route-tables/"+rt.ID+"/routes",
		map[string]string{"destination_cidr_block": "0.0.0.0/0", "gateway_id": igw.ID}, &route)
	if code != http.StatusCreated {
		t.Fatalf("Expected status 201 creating route, got %d", code)
	}

	// Duplicate destination conflicts.
	code = doJSON(t, mux, "POST", "/api/regions/us-east-1/route-tables/"+rt.ID+"/routes",
		map[string]string{"destination_cidr_block": "0.0.0.0/0", "gateway_id": igw.ID}, nil)
	if code != http.StatusConflict {
		t.Errorf("Expected status 409 for duplicate route, got %d", code)
	}

	path := fmt.Sprintf("/api/regions/us-east-1/route-tables/%s/routes?destination=0.0.0.0/0", rt.ID)
	if code := doJSON(t, mux, "DELETE", path, nil, nil); code != http.StatusNoContent {
		t.Errorf("Expected status 204 deleting route, got %d", code)
	}
}

func TestHandler_SecurityGroupRules(t *testing.T) {
	mux := newTestMux(t)

	var vpc ec2.VPC
	doJSON(t, mux, "POST", "/api/regions/us-east-1/vpcs",
		map[string]interface{}{"cidr_block": "10.0.0.0/16"}, &vpc)

	var group ec2.SecurityGroup
	code := doJSON(t, mux, "POST", "/api/regions/us-east-1/security-groups",
		map[string]interface{}{"group_name": "web", "description": "web tier", "vpc_id": vpc.ID}, &group)
	if code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", code)
	}

	rule := map[string]interface{}{
		"ip_protocol": "tcp",
		"from_port":   443,
		"to_port":     443,
		"cidr_ips":    []string{"0.0.0.0/0"},
	}
	code = doJSON(t, mux, "POST", "/api/regions/us-east-1/security-groups/"+group.ID+"/ingress", rule, nil)
	if code != http.StatusCreated {
		t.Fatalf("Expected status 201 authorizing, got %d", code)
	}

	// Same permission again is a duplicate.
	code = doJSON(t, mux, "POST", "/api/regions/us-east-1/security-groups/"+group.ID+"/ingress", rule, nil)
	if code != http.StatusConflict {
		t.Errorf("Expected status 409 for duplicate permission, got %d", code)
	}

	code = doJSON(t, mux, "POST", "/api/regions/us-east-1/security-groups/"+group.ID+"/ingress/revoke", rule, nil)
	if code != http.StatusNoContent {
		t.Errorf("Expected status 204 revoking, got %d", code)
	}
}

func TestHandler_PeeringAcceptWrongRegion(t *testing.T) {
	mux := newTestMux(t)

	var requester ec2.VPC
	doJSON(t, mux, "POST", "/api/regions/us-east-1/vpcs",
		map[string]interface{}{"cidr_block": "10.0.0.0/16"}, &requester)
	var accepter ec2.VPC
	doJSON(t, mux, "POST", "/api/regions/eu-west-1/vpcs",
		map[string]interface{}{"cidr_block": "10.1.0.0/16"}, &accepter)

	var peering ec2.VPCPeeringConnection
	code := doJSON(t, mux, "POST", "/api/regions/us-east-1/vpc-peering-connections",
		map[string]string{"vpc_id": requester.ID, "peer_vpc_id": accepter.ID, "peer_region": "eu-west-1"}, &peering)
	if code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", code)
	}

	// Accept must happen on the accepter side.
	code = doJSON(t, mux, "POST", "/api/regions/us-east-1/vpc-peering-connections/"+peering.ID+"/accept", nil, nil)
	if code != http.StatusBadRequest {
		t.Errorf("Expected status 400 accepting from requester region, got %d", code)
	}

	code = doJSON(t, mux, "POST", "/api/regions/eu-west-1/vpc-peering-connections/"+peering.ID+"/accept", nil, &peering)
	if code != http.StatusOK {
		t.Fatalf("Expected status 200 accepting from accepter region, got %d", code)
	}
	if peering.Status.Code != "active" {
		t.Errorf("Expected status active, got %s", peering.Status.Code)
	}
}

func TestHandler_Tags(t *testing.T) {
	mux := newTestMux(t)

	var vpc ec2.VPC
	doJSON(t, mux, "POST", "/api/regions/us-east-1/vpcs",
		map[string]interface{}{"cidr_block": "10.0.0.0/16"}, &vpc)

	code := doJSON(t, mux, "POST", "/api/regions/us-east-1/tags",
		map[string]interface{}{"resource_ids": []string{vpc.ID}, "tags": map[string]string{"Name": "primary"}}, nil)
	if code != http.StatusNoContent {
		t.Fatalf("Expected status 204 tagging, got %d", code)
	}

	var tags []ec2.Tag
	code = doJSON(t, mux, "GET", "/api/regions/us-east-1/tags?resource-id="+vpc.ID, nil, &tags)
	if code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}
	if len(tags) != 1 || tags[0].Key != "Name" || tags[0].Value != "primary" {
		t.Errorf("Unexpected tags: %+v", tags)
	}
}

func TestHandler_ResetBackend(t *testing.T) {
	mux := newTestMux(t)

	var vpc ec2.VPC
	doJSON(t, mux, "POST", "/api/regions/us-east-1/vpcs",
		map[string]interface{}{"cidr_block": "10.0.0.0/16"}, &vpc)

	if code := doJSON(t, mux, "POST", "/api/regions/us-east-1/reset", nil, nil); code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", code)
	}
	if code := doJSON(t, mux, "GET", "/api/regions/us-east-1/vpcs/"+vpc.ID, nil, nil); code != http.StatusNotFound {
		t.Errorf("Expected status 404 after reset, got %d", code)
	}
}

func TestHandler_AccountScoping(t *testing.T) {
	mux := newTestMux(t)

	var vpc ec2.VPC
	doJSON(t, mux, "POST", "/api/regions/us-east-1/vpcs?account=111111111111",
		map[string]interface{}{"cidr_block": "10.0.0.0/16"}, &vpc)

	// The default account does not see another account's VPC.
	code := doJSON(t, mux, "GET", "/api/regions/us-east-1/vpcs/"+vpc.ID, nil, nil)
	if code != http.StatusNotFound {
		t.Errorf("Expected status 404 in default account, got %d", code)
	}
	code = doJSON(t, mux, "GET", "/api/regions/us-east-1/vpcs/"+vpc.ID+"?account=111111111111", nil, nil)
	if code != http.StatusOK {
		t.Errorf("Expected status 200 in owning account, got %d", code)
	}
}
