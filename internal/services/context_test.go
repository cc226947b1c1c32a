package services_test

import (
	"context"
	"testing"

	"finpod/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithCompany(ctx, "ACME")
	ctx = services.WithPeriod(ctx, "2024-Q1")
	ctx = services.WithStage(ctx, "structure")
	ctx = services.WithRequestID(ctx, "req-123")

	if v, ok := services.CompanyFromContext(ctx); !ok || v != "ACME" {
		t.Fatalf("unexpected company: %v %v", v, ok)
	}
	if v, ok := services.PeriodFromContext(ctx); !ok || v != "2024-Q1" {
		t.Fatalf("unexpected period: %v %v", v, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "structure" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
}
