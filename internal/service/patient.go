package service

import (
	"fmt"

	"github.com/kalebecaldas/zorahapp/internal/model"
	"github.com/kalebecaldas/zorahapp/internal/repository"
)

type PatientService struct {
	patients repository.PatientRepository
}

func NewPatientService(patients repository.PatientRepository) *PatientService {
	return &PatientService{patients: patients}
}

func (s *PatientService) List() ([]model.Patient, error) {
	return s.patients.List()
}

func (s *PatientService) Get(id uint) (*model.Patient, error) {
	return s.patients.Get(id)
}

func (s *PatientService) Save(p *model.Patient) error {
	if p.Phone == "" {
		return fmt.Errorf("patient requires a phone")
	}
	if p.ID == 0 {
		return s.patients.Create(p)
	}
	return s.patients.Save(p)
}

func (s *PatientService) Delete(id uint) error {
	return s.patients.Delete(id)
}
