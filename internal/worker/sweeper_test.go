package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/martinsuchenak/vpcd/internal/ec2"
)

func TestPool_SubmitAndResult(t *testing.T) {
	pool := NewPool(2)
	pool.Start()
	defer pool.Stop()

	result := make(chan error, 1)
	err := pool.Submit(Job{
		ID:      "ok",
		Handler: func(ctx context.Context) error { return nil },
		Result:  result,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	select {
	case err := <-result:
		if err != nil {
			t.Errorf("Expected nil result, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for job result")
	}

	result = make(chan error, 1)
	pool.Submit(Job{
		ID:      "fail",
		Handler: func(ctx context.Context) error { return errors.New("boom") },
		Result:  result,
	})
	select {
	case err := <-result:
		if err == nil {
			t.Error("Expected error result")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for job result")
	}
}

func TestSweeper_SettlesNatGateways(t *testing.T) {
	dir := ec2.NewDirectory()
	backend, err := dir.Backend("", "us-east-1")
	if err != nil {
		t.Fatalf("Backend failed: %v", err)
	}
	subnets, err := backend.DescribeSubnets(nil, nil)
	if err != nil || len(subnets) == 0 {
		t.Fatalf("Expected default subnets, got %d (%v)", len(subnets), err)
	}

	nat, err := backend.CreateNatGateway(ec2.CreateNatGatewayInput{
		SubnetID:         subnets[0].ID,
		ConnectivityType: "private",
	})
	if err != nil {
		t.Fatalf("CreateNatGateway failed: %v", err)
	}
	if nat.State != ec2.NatStatePending {
		t.Fatalf("Expected pending NAT gateway, got %s", nat.State)
	}

	sweeper := NewSweeper(dir, time.Hour, 0)
	sweeper.pool.Start()
	defer sweeper.pool.Stop()
	sweeper.Sweep()

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := backend.GetNatGateway(nat.ID)
		if err != nil {
			t.Fatalf("GetNatGateway failed: %v", err)
		}
		if got.State == ec2.NatStateAvailable {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("NAT gateway never settled, state %s", got.State)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
