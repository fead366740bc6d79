// Package pricing resolves what a patient pays for a procedure at a
// clinic under an insurance plan.
package pricing

import (
	"errors"
	"fmt"

	"github.com/kalebecaldas/zorahapp/internal/model"
	"github.com/kalebecaldas/zorahapp/internal/pkg/cache"
	"github.com/kalebecaldas/zorahapp/internal/repository"
	"k8s.io/klog/v2"
)

// Resolution is the ephemeral result of a price lookup; it is derived
// per request and never persisted.
type Resolution struct {
	ProcedureCode      string  `json:"procedure_code"`
	ProcedureName      string  `json:"procedure_name"`
	BasePrice          float64 `json:"base_price"`
	PatientPays        float64 `json:"patient_pays"`
	PackageDescription string  `json:"package_description,omitempty"`
	Source             string  `json:"source"` // insurance_override, clinic_default, base_price
}

// Resolution sources, from most to least specific.
const (
	SourceInsuranceOverride = "insurance_override"
	SourceClinicDefault     = "clinic_default"
	SourceBasePrice         = "base_price"
)

type Resolver struct {
	procedures repository.ProcedureRepository
	insurances repository.InsuranceRepository
	clinics    repository.ClinicRepository
	prices     repository.PriceRepository
	cache      *cache.Cache
}

func NewResolver(
	procedures repository.ProcedureRepository,
	insurances repository.InsuranceRepository,
	clinics repository.ClinicRepository,
	prices repository.PriceRepository,
	c *cache.Cache,
) *Resolver {
	return &Resolver{
		procedures: procedures,
		insurances: insurances,
		clinics:    clinics,
		prices:     prices,
		cache:      c,
	}
}

// Resolve looks up the price for a procedure with three-tier
// precedence: (clinic, insurance, procedure) override, then the
// clinic's insurance-agnostic default, then the procedure's base
// price. It returns nil only when the procedure code is unknown;
// unknown insurance or clinic codes degrade to the next tier.
func (r *Resolver) Resolve(procedureCode, insuranceCode, clinicCode string) (*Resolution, error) {
	key := fmt.Sprintf("price:%s:%s:%s", procedureCode, insuranceCode, clinicCode)
	if r.cache != nil {
		if v, ok := r.cache.Get(key); ok {
			return v.(*Resolution), nil
		}
	}

	proc, err := r.procedures.GetByCode(procedureCode)
	if errors.Is(err, repository.ErrNotFound) {
		klog.V(6).Infof("price lookup for unknown procedure %q", procedureCode)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	res := &Resolution{
		ProcedureCode: proc.Code,
		ProcedureName: proc.Name,
		BasePrice:     proc.BasePrice,
		PatientPays:   proc.BasePrice,
		Source:        SourceBasePrice,
	}

	clinic := r.lookupClinic(clinicCode)
	if clinic != nil {
		if ins := r.lookupInsurance(insuranceCode); ins != nil {
			if p, err := r.prices.FindExact(clinic.ID, ins.ID, proc.ID); err == nil {
				res.PatientPays = p.Price
				res.PackageDescription = p.PackageDescription
				res.Source = SourceInsuranceOverride
				return r.store(key, res), nil
			} else if !errors.Is(err, repository.ErrNotFound) {
				return nil, err
			}
		}
		if p, err := r.prices.FindClinicDefault(clinic.ID, proc.ID); err == nil {
			res.PatientPays = p.Price
			res.PackageDescription = p.PackageDescription
			res.Source = SourceClinicDefault
			return r.store(key, res), nil
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	return r.store(key, res), nil
}

func (r *Resolver) store(key string, res *Resolution) *Resolution {
	if r.cache != nil {
		r.cache.Set(key, res)
	}
	return res
}

func (r *Resolver) lookupClinic(code string) *model.Clinic {
	if code == "" {
		return nil
	}
	c, err := r.clinics.GetByCode(code)
	if err != nil {
		return nil
	}
	return c
}

func (r *Resolver) lookupInsurance(code string) *model.Insurance {
	if code == "" {
		return nil
	}
	i, err := r.insurances.GetByCode(code)
	if err != nil {
		return nil
	}
	return i
}
