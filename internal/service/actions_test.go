package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/kalebecaldas/zorahapp/internal/model"
	"github.com/kalebecaldas/zorahapp/internal/pkg/cache"
	"github.com/kalebecaldas/zorahapp/internal/pricing"
	"github.com/kalebecaldas/zorahapp/internal/repository"
)

func setupActionService(t *testing.T) *ActionService {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&model.Clinic{}, &model.Insurance{}, &model.Procedure{}, &model.ProcedurePrice{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ins := &model.Insurance{Code: "unimed", Name: "Unimed"}
	acup := &model.Procedure{Code: "acupuntura", Name: "Acupuntura", BasePrice: 100}
	rpg := &model.Procedure{Code: "rpg", Name: "RPG", BasePrice: 120}
	for _, rec := range []any{ins, acup, rpg} {
		if err := db.Create(rec).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if err := db.Create(&model.ProcedurePrice{
		ClinicID: 1, ProcedureID: acup.ID, InsuranceID: &ins.ID, Price: 50,
	}).Error; err != nil {
		t.Fatalf("seed price: %v", err)
	}

	insRepo := repository.NewInsuranceRepository(db)
	procRepo := repository.NewProcedureRepository(db)
	resolver := pricing.NewResolver(
		procRepo, insRepo,
		repository.NewClinicRepository(db),
		repository.NewPriceRepository(db),
		cache.New(time.Minute),
	)
	return NewActionService(insRepo, procRepo, resolver)
}

func TestActionListProcedures(t *testing.T) {
	s := setupActionService(t)

	out, err := s.Execute(context.Background(), ActionListProcedures, nil,
		map[string]any{"insurance": "unimed"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	text, ok := out.(string)
	if !ok || !strings.Contains(text, "1. Acupuntura") {
		t.Fatalf("out = %v", out)
	}

	// no insurance in context is a node execution error, the engine
	// keeps the cursor for a retry
	if _, err := s.Execute(context.Background(), ActionListProcedures, nil, map[string]any{}); err == nil {
		t.Fatal("expected an error without an insurance")
	}
}

func TestActionPriceQuote(t *testing.T) {
	s := setupActionService(t)

	out, err := s.Execute(context.Background(), ActionPriceQuote, nil,
		map[string]any{"procedure": "acupuntura"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "Acupuntura: R$ 100.00" {
		t.Fatalf("out = %v", out)
	}

	out, err = s.Execute(context.Background(), ActionPriceQuote,
		map[string]string{"procedure_key": "proc"},
		map[string]any{"proc": "botox"})
	if err != nil {
		t.Fatalf("Execute unknown procedure: %v", err)
	}
	if out != "não encontrei esse procedimento na nossa tabela" {
		t.Fatalf("out = %v", out)
	}
}

func TestActionWebhook(t *testing.T) {
	s := setupActionService(t)

	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"appointment_id": "apt-1"}`))
	}))
	defer srv.Close()

	out, err := s.Execute(context.Background(), ActionWebhook,
		map[string]string{"url": srv.URL},
		map[string]any{"procedure": "acupuntura", "input": "sim"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	result, ok := out.(map[string]any)
	if !ok || result["appointment_id"] != "apt-1" {
		t.Fatalf("out = %v", out)
	}
	if received["procedure"] != "acupuntura" {
		t.Fatalf("webhook did not receive the context: %v", received)
	}
}

func TestActionUnknownName(t *testing.T) {
	s := setupActionService(t)
	if _, err := s.Execute(context.Background(), "teleport", nil, nil); err == nil {
		t.Fatal("expected an error for an unknown action")
	}
}
