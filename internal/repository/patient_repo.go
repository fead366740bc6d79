package repository

import (
	"errors"

	"github.com/kalebecaldas/zorahapp/internal/model"
	"gorm.io/gorm"
)

type patientRepository struct {
	db *gorm.DB
}

func NewPatientRepository(db *gorm.DB) PatientRepository {
	return &patientRepository{db: db}
}

func (r *patientRepository) Create(p *model.Patient) error {
	return r.db.Create(p).Error
}

func (r *patientRepository) Get(id uint) (*model.Patient, error) {
	var p model.Patient
	if err := r.db.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *patientRepository) GetByPhone(phone string) (*model.Patient, error) {
	var p model.Patient
	if err := r.db.Where("phone = ?", phone).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *patientRepository) List() ([]model.Patient, error) {
	var ps []model.Patient
	err := r.db.Order("created_at desc").Find(&ps).Error
	return ps, err
}

func (r *patientRepository) Save(p *model.Patient) error {
	return r.db.Save(p).Error
}

func (r *patientRepository) Delete(id uint) error {
	return r.db.Delete(&model.Patient{}, id).Error
}
