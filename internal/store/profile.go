package store

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"consultlaw-api/internal/model"
)

func (s *Store) CreateProfile(ctx context.Context, p *model.Profile) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO lawyer_profiles (lawyer_id, bio, specialties, experience_years, languages, fee_minor)
		 VALUES ($1,$2,$3,$4,$5,$6) RETURNING updated_at`,
		p.LawyerID, p.Bio, p.Specialties, p.ExperienceYears, p.Languages, p.FeeMinor,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return mapErr(err, "profile already exists")
	}
	return nil
}

func (s *Store) UpdateProfile(ctx context.Context, p *model.Profile) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE lawyer_profiles
		 SET bio = $2, specialties = $3, experience_years = $4, languages = $5, fee_minor = $6, updated_at = now()
		 WHERE lawyer_id = $1
		 RETURNING updated_at`,
		p.LawyerID, p.Bio, p.Specialties, p.ExperienceYears, p.Languages, p.FeeMinor,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return mapErr(err, "profile")
	}
	return nil
}

func (s *Store) ProfileByLawyer(ctx context.Context, lawyerID string) (*model.Profile, error) {
	p := &model.Profile{}
	err := s.pool.QueryRow(ctx,
		`SELECT lawyer_id, bio, specialties, experience_years, languages, fee_minor, updated_at
		 FROM lawyer_profiles WHERE lawyer_id = $1`, lawyerID,
	).Scan(&p.LawyerID, &p.Bio, &p.Specialties, &p.ExperienceYears, &p.Languages, &p.FeeMinor, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err, "profile")
	}
	return p, nil
}

// SearchLawyers lists lawyers that have a profile. Empty filters match
// everything.
func (s *Store) SearchLawyers(ctx context.Context, q model.LawyerQuery) ([]model.Lawyer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT u.id, u.email, u.first_name, u.last_name, u.phone, u.address, u.role, u.created_at,
		        p.bio, p.specialties, p.experience_years, p.languages, p.fee_minor, p.updated_at
		 FROM users u
		 JOIN lawyer_profiles p ON p.lawyer_id = u.id
		 WHERE u.role = 'lawyer'
		   AND (@specialty::text = '' OR p.specialties ILIKE @specialty)
		   AND (@language::text = '' OR p.languages ILIKE @language)
		   AND (@min_fee::bigint IS NULL OR p.fee_minor >= @min_fee)
		   AND (@max_fee::bigint IS NULL OR p.fee_minor <= @max_fee)
		   AND (@search::text = '' OR u.first_name ILIKE @search OR u.last_name ILIKE @search OR p.specialties ILIKE @search)
		 ORDER BY u.first_name, u.last_name, u.id`,
		pgx.NamedArgs{
			"specialty": likePattern(q.Specialty),
			"language":  likePattern(q.Language),
			"min_fee":   q.MinFee,
			"max_fee":   q.MaxFee,
			"search":    likePattern(q.Search),
		},
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Lawyer
	for rows.Next() {
		var (
			l    model.Lawyer
			role string
		)
		if err := rows.Scan(&l.User.ID, &l.User.Email, &l.User.FirstName, &l.User.LastName,
			&l.User.Phone, &l.User.Address, &role, &l.User.CreatedAt,
			&l.Profile.Bio, &l.Profile.Specialties, &l.Profile.ExperienceYears,
			&l.Profile.Languages, &l.Profile.FeeMinor, &l.Profile.UpdatedAt); err != nil {
			return nil, err
		}
		l.User.Role = model.Role(role)
		l.Profile.LawyerID = l.User.ID
		out = append(out, l)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a substring pattern for ILIKE, or "" for no filter.
func likePattern(s string) string {
	if s == "" {
		return ""
	}
	return "%" + likeEscaper.Replace(s) + "%"
}
