package service

import (
	"fmt"

	"github.com/kalebecaldas/zorahapp/internal/model"
	"github.com/kalebecaldas/zorahapp/internal/pkg/cache"
	"github.com/kalebecaldas/zorahapp/internal/repository"
)

// CatalogService is the admin surface over clinics, insurances,
// procedures and prices. Writes flush the read cache so quotes do not
// serve stale prices for up to a TTL.
type CatalogService struct {
	clinics    repository.ClinicRepository
	insurances repository.InsuranceRepository
	procedures repository.ProcedureRepository
	prices     repository.PriceRepository
	cache      *cache.Cache
}

func NewCatalogService(
	clinics repository.ClinicRepository,
	insurances repository.InsuranceRepository,
	procedures repository.ProcedureRepository,
	prices repository.PriceRepository,
	c *cache.Cache,
) *CatalogService {
	return &CatalogService{
		clinics:    clinics,
		insurances: insurances,
		procedures: procedures,
		prices:     prices,
		cache:      c,
	}
}

func (s *CatalogService) ListClinics() ([]model.Clinic, error) {
	return s.clinics.List()
}

func (s *CatalogService) SaveClinic(c *model.Clinic) error {
	if c.Code == "" || c.Name == "" {
		return fmt.Errorf("clinic requires code and name")
	}
	defer s.cache.Flush()
	if c.ID == 0 {
		return s.clinics.Create(c)
	}
	return s.clinics.Save(c)
}

func (s *CatalogService) DeleteClinic(id uint) error {
	defer s.cache.Flush()
	return s.clinics.Delete(id)
}

func (s *CatalogService) ListInsurances() ([]model.Insurance, error) {
	return s.insurances.List()
}

func (s *CatalogService) SaveInsurance(i *model.Insurance) error {
	if i.Code == "" || i.Name == "" {
		return fmt.Errorf("insurance requires code and name")
	}
	defer s.cache.Flush()
	if i.ID == 0 {
		return s.insurances.Create(i)
	}
	return s.insurances.Save(i)
}

func (s *CatalogService) DeleteInsurance(id uint) error {
	defer s.cache.Flush()
	return s.insurances.Delete(id)
}

func (s *CatalogService) ListProcedures() ([]model.Procedure, error) {
	return s.procedures.List()
}

func (s *CatalogService) SaveProcedure(p *model.Procedure) error {
	if p.Code == "" || p.Name == "" {
		return fmt.Errorf("procedure requires code and name")
	}
	defer s.cache.Flush()
	if p.ID == 0 {
		return s.procedures.Create(p)
	}
	return s.procedures.Save(p)
}

func (s *CatalogService) DeleteProcedure(id uint) error {
	defer s.cache.Flush()
	return s.procedures.Delete(id)
}

func (s *CatalogService) ListPricesByClinic(clinicID uint) ([]model.ProcedurePrice, error) {
	return s.prices.ListByClinic(clinicID)
}

func (s *CatalogService) SavePrice(p *model.ProcedurePrice) error {
	if p.ClinicID == 0 || p.ProcedureID == 0 {
		return fmt.Errorf("price requires clinic and procedure")
	}
	defer s.cache.Flush()
	if p.ID == 0 {
		return s.prices.Create(p)
	}
	return s.prices.Save(p)
}

func (s *CatalogService) DeletePrice(id uint) error {
	defer s.cache.Flush()
	return s.prices.Delete(id)
}
