package repository

import (
	"errors"

	"github.com/kalebecaldas/zorahapp/internal/model"
	"gorm.io/gorm"
)

type workflowRepository struct {
	db *gorm.DB
}

func NewWorkflowRepository(db *gorm.DB) WorkflowRepository {
	return &workflowRepository{db: db}
}

func (r *workflowRepository) Create(wf *model.Workflow) error {
	return r.db.Create(wf).Error
}

func (r *workflowRepository) List() ([]model.Workflow, error) {
	var wfs []model.Workflow
	err := r.db.Order("created_at desc").Find(&wfs).Error
	return wfs, err
}

func (r *workflowRepository) Get(id uint) (*model.Workflow, error) {
	var wf model.Workflow
	if err := r.db.First(&wf, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &wf, nil
}

func (r *workflowRepository) GetActive() (*model.Workflow, error) {
	var wf model.Workflow
	if err := r.db.Where("is_active = ?", true).First(&wf).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &wf, nil
}

func (r *workflowRepository) Save(wf *model.Workflow) error {
	return r.db.Save(wf).Error
}

func (r *workflowRepository) Delete(id uint) error {
	return r.db.Delete(&model.Workflow{}, id).Error
}

func (r *workflowRepository) Activate(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Workflow{}).Where("is_active = ?", true).Update("is_active", false).Error; err != nil {
			return err
		}
		res := tx.Model(&model.Workflow{}).Where("id = ?", id).Update("is_active", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
