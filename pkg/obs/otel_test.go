package obs_test

import (
	"context"
	"testing"

	"live-fixture-service/pkg/obs"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := obs.Setup(context.Background(), "test-service", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// 不可路由地址, 不会真正导出
	shutdown, err := obs.Setup(context.Background(), "test-service", "http://192.0.2.1:4318")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}
