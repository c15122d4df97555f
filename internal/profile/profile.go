// Package profile manages lawyers' public profiles and the directory clients
// use to find a lawyer.
package profile

import (
	"context"
	"strings"

	"consultlaw-api/internal/model"
)

// Repository persists profiles. CreateProfile fails with model.ErrConflict
// when the lawyer already has one; UpdateProfile and ProfileByLawyer fail
// with model.ErrNotFound when they have none.
type Repository interface {
	CreateProfile(ctx context.Context, p *model.Profile) error
	UpdateProfile(ctx context.Context, p *model.Profile) error
	ProfileByLawyer(ctx context.Context, lawyerID string) (*model.Profile, error)
	SearchLawyers(ctx context.Context, q model.LawyerQuery) ([]model.Lawyer, error)
}

// Input is the editable part of a profile.
type Input struct {
	Bio             string
	Specialties     string
	ExperienceYears int
	Languages       string
	FeeMinor        int64
}

type Directory struct {
	repo Repository
}

func New(repo Repository) *Directory {
	return &Directory{repo: repo}
}

func (d *Directory) Create(ctx context.Context, actor model.Identity, in Input) (*model.Profile, error) {
	if actor.Role != model.RoleLawyer {
		return nil, model.Errorf(model.ErrRole, "only lawyers can create a profile")
	}
	p, err := build(actor.ID, in)
	if err != nil {
		return nil, err
	}
	if err := d.repo.CreateProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (d *Directory) Update(ctx context.Context, actor model.Identity, in Input) (*model.Profile, error) {
	if actor.Role != model.RoleLawyer {
		return nil, model.Errorf(model.ErrRole, "only lawyers can update a profile")
	}
	p, err := build(actor.ID, in)
	if err != nil {
		return nil, err
	}
	if err := d.repo.UpdateProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Mine returns the acting lawyer's own profile.
func (d *Directory) Mine(ctx context.Context, actor model.Identity) (*model.Profile, error) {
	if actor.Role != model.RoleLawyer {
		return nil, model.Errorf(model.ErrRole, "only lawyers have a profile")
	}
	return d.repo.ProfileByLawyer(ctx, actor.ID)
}

// Search lists lawyers with a profile matching q. It needs no identity.
func (d *Directory) Search(ctx context.Context, q model.LawyerQuery) ([]model.Lawyer, error) {
	if q.MinFee != nil && q.MaxFee != nil && *q.MinFee > *q.MaxFee {
		return nil, model.Errorf(model.ErrValidation, "min fee is above max fee")
	}
	q.Specialty = strings.TrimSpace(q.Specialty)
	q.Language = strings.TrimSpace(q.Language)
	q.Search = strings.TrimSpace(q.Search)
	return d.repo.SearchLawyers(ctx, q)
}

func build(lawyerID string, in Input) (*model.Profile, error) {
	p := &model.Profile{
		LawyerID:        lawyerID,
		Bio:             strings.TrimSpace(in.Bio),
		Specialties:     strings.TrimSpace(in.Specialties),
		ExperienceYears: in.ExperienceYears,
		Languages:       strings.TrimSpace(in.Languages),
		FeeMinor:        in.FeeMinor,
	}
	switch {
	case p.Specialties == "":
		return nil, model.Errorf(model.ErrValidation, "specialties are required")
	case p.Languages == "":
		return nil, model.Errorf(model.ErrValidation, "languages are required")
	case p.ExperienceYears < 0:
		return nil, model.Errorf(model.ErrValidation, "experience_years cannot be negative")
	case p.FeeMinor < 0:
		return nil, model.Errorf(model.ErrValidation, "fee cannot be negative")
	}
	return p, nil
}
