package locations

import (
	"context"
	"errors"
	"strings"

	"backend-fieldroute/internal/advisor"
	"backend-fieldroute/internal/db"
	"backend-fieldroute/internal/geofence"
	"backend-fieldroute/internal/shared/geo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound     = errors.New("location not found")
	ErrNameRequired = errors.New("name required")
)

type Service struct {
	db      db.Querier
	rangeKm float64
}

// NewService builds the service; rangeKm <= 0 means advisor.DefaultRangeKm.
func NewService(db db.Querier, rangeKm float64) *Service {
	if rangeKm <= 0 {
		rangeKm = advisor.DefaultRangeKm
	}
	return &Service{db: db, rangeKm: rangeKm}
}

func (s *Service) RangeKm() float64 { return s.rangeKm }

// Create vets the site against existing coverage, then stores it. The
// vetting result is informational; out-of-range sites are still stored.
func (s *Service) Create(ctx context.Context, input FieldLocation) (Created, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Created{}, ErrNameRequired
	}
	if err := geo.ValidCoordinate(input.Lat, input.Lng); err != nil {
		return Created{}, err
	}

	vetting, err := s.Vet(ctx, input.Lat, input.Lng)
	if err != nil {
		return Created{}, err
	}

	input.ID = uuid.NewString()
	row := s.db.QueryRow(ctx, `
		INSERT INTO field_locations (id, name, lat, lng, created_by)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, input.ID, input.Name, input.Lat, input.Lng, input.CreatedBy)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Created{}, err
	}
	return Created{Location: input, Vetting: vetting}, nil
}

func (s *Service) Get(ctx context.Context, id string) (FieldLocation, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, lat, lng, created_by, created_at
		FROM field_locations WHERE id=$1
	`, id)
	var l FieldLocation
	if err := row.Scan(&l.ID, &l.Name, &l.Lat, &l.Lng, &l.CreatedBy, &l.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FieldLocation{}, ErrNotFound
		}
		return FieldLocation{}, err
	}
	return l, nil
}

func (s *Service) List(ctx context.Context) ([]FieldLocation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, lat, lng, created_by, created_at
		FROM field_locations
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []FieldLocation{}
	for rows.Next() {
		var l FieldLocation
		if err := rows.Scan(&l.ID, &l.Name, &l.Lat, &l.Lng, &l.CreatedBy, &l.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

func (s *Service) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM field_locations WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Vet finds the stored location nearest to (lat, lng).
func (s *Service) Vet(ctx context.Context, lat, lng float64) (Vetting, error) {
	if err := geo.ValidCoordinate(lat, lng); err != nil {
		return Vetting{}, err
	}
	all, err := s.List(ctx)
	if err != nil {
		return Vetting{}, err
	}
	res, found := advisor.NearestPoint(lat, lng, all, s.rangeKm)
	return vettingFrom(res, found, s.rangeKm), nil
}

// Filter returns the stored locations inside poly.
func (s *Service) Filter(ctx context.Context, poly geo.Polygon) ([]FieldLocation, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return geofence.Filter(all, poly), nil
}
