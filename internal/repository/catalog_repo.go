package repository

import (
	"errors"

	"github.com/kalebecaldas/zorahapp/internal/model"
	"gorm.io/gorm"
)

type clinicRepository struct {
	db *gorm.DB
}

func NewClinicRepository(db *gorm.DB) ClinicRepository {
	return &clinicRepository{db: db}
}

func (r *clinicRepository) Create(c *model.Clinic) error {
	return r.db.Create(c).Error
}

func (r *clinicRepository) List() ([]model.Clinic, error) {
	var cs []model.Clinic
	err := r.db.Order("name asc").Find(&cs).Error
	return cs, err
}

func (r *clinicRepository) Get(id uint) (*model.Clinic, error) {
	var c model.Clinic
	if err := r.db.First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *clinicRepository) GetByCode(code string) (*model.Clinic, error) {
	var c model.Clinic
	if err := r.db.Where("code = ?", code).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *clinicRepository) Save(c *model.Clinic) error {
	return r.db.Save(c).Error
}

func (r *clinicRepository) Delete(id uint) error {
	return r.db.Delete(&model.Clinic{}, id).Error
}

type insuranceRepository struct {
	db *gorm.DB
}

func NewInsuranceRepository(db *gorm.DB) InsuranceRepository {
	return &insuranceRepository{db: db}
}

func (r *insuranceRepository) Create(i *model.Insurance) error {
	return r.db.Create(i).Error
}

func (r *insuranceRepository) List() ([]model.Insurance, error) {
	var is []model.Insurance
	err := r.db.Order("name asc").Find(&is).Error
	return is, err
}

func (r *insuranceRepository) Get(id uint) (*model.Insurance, error) {
	var i model.Insurance
	if err := r.db.First(&i, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &i, nil
}

func (r *insuranceRepository) GetByCode(code string) (*model.Insurance, error) {
	var i model.Insurance
	if err := r.db.Where("code = ?", code).First(&i).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &i, nil
}

func (r *insuranceRepository) Save(i *model.Insurance) error {
	return r.db.Save(i).Error
}

func (r *insuranceRepository) Delete(id uint) error {
	return r.db.Delete(&model.Insurance{}, id).Error
}

type procedureRepository struct {
	db *gorm.DB
}

func NewProcedureRepository(db *gorm.DB) ProcedureRepository {
	return &procedureRepository{db: db}
}

func (r *procedureRepository) Create(p *model.Procedure) error {
	return r.db.Create(p).Error
}

func (r *procedureRepository) List() ([]model.Procedure, error) {
	var ps []model.Procedure
	err := r.db.Where("is_active = ?", true).Order("name asc").Find(&ps).Error
	return ps, err
}

func (r *procedureRepository) ListByInsurance(insuranceID uint) ([]model.Procedure, error) {
	var ps []model.Procedure
	err := r.db.
		Joins("JOIN procedure_prices ON procedure_prices.procedure_id = procedures.id").
		Where("procedure_prices.insurance_id = ? AND procedures.is_active = ?", insuranceID, true).
		Distinct().
		Order("procedures.name asc").
		Find(&ps).Error
	return ps, err
}

func (r *procedureRepository) Get(id uint) (*model.Procedure, error) {
	var p model.Procedure
	if err := r.db.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *procedureRepository) GetByCode(code string) (*model.Procedure, error) {
	var p model.Procedure
	if err := r.db.Where("code = ?", code).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *procedureRepository) Save(p *model.Procedure) error {
	return r.db.Save(p).Error
}

func (r *procedureRepository) Delete(id uint) error {
	return r.db.Delete(&model.Procedure{}, id).Error
}

type priceRepository struct {
	db *gorm.DB
}

func NewPriceRepository(db *gorm.DB) PriceRepository {
	return &priceRepository{db: db}
}

func (r *priceRepository) Create(p *model.ProcedurePrice) error {
	return r.db.Create(p).Error
}

func (r *priceRepository) ListByClinic(clinicID uint) ([]model.ProcedurePrice, error) {
	var ps []model.ProcedurePrice
	err := r.db.Where("clinic_id = ?", clinicID).Find(&ps).Error
	return ps, err
}

func (r *priceRepository) FindExact(clinicID, insuranceID, procedureID uint) (*model.ProcedurePrice, error) {
	var p model.ProcedurePrice
	err := r.db.Where("clinic_id = ? AND insurance_id = ? AND procedure_id = ?",
		clinicID, insuranceID, procedureID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *priceRepository) FindClinicDefault(clinicID, procedureID uint) (*model.ProcedurePrice, error) {
	var p model.ProcedurePrice
	err := r.db.Where("clinic_id = ? AND procedure_id = ? AND insurance_id IS NULL",
		clinicID, procedureID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *priceRepository) Save(p *model.ProcedurePrice) error {
	return r.db.Save(p).Error
}

func (r *priceRepository) Delete(id uint) error {
	return r.db.Delete(&model.ProcedurePrice{}, id).Error
}
