package services

import (
	"errors"
	"fmt"

	logrus "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"van_tracker/internal/models"
)

// TemplateService owns reusable route templates and their stops.
type TemplateService struct {
	DB *gorm.DB
}

func NewTemplateService(db *gorm.DB) *TemplateService {
	return &TemplateService{DB: db}
}

// StopInput is one authored stop in a create/replace payload.
type StopInput struct {
	StudentID          *uint   `json:"student_id"`
	Seq                int     `json:"seq"`
	Lat                float64 `json:"lat"`
	Lng                float64 `json:"lng"`
	IsFinalDestination bool    `json:"is_final_destination"`
}

type CreateTemplateInput struct {
	Name        string
	Description string
	Direction   string
	Geometry    []byte // WKB, converted from GeoJSON at the boundary
	Stops       []StopInput
}

// UpdateTemplateInput is the closed set of fields an edit may change.
// Nil means "leave unchanged"; a non-nil Stops slice replaces all stops.
type UpdateTemplateInput struct {
	Name        *string
	Description *string
	Direction   *string
	Geometry    *[]byte
	Stops       *[]StopInput
}

// StudentRef is the minimal student projection returned on reads.
type StudentRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type TemplateStopView struct {
	ID                 uint        `json:"id"`
	Seq                int         `json:"seq"`
	Lat                float64     `json:"lat"`
	Lng                float64     `json:"lng"`
	IsFinalDestination bool        `json:"is_final_destination"`
	Student            *StudentRef `json:"student,omitempty"`
}

type TemplateView struct {
	ID          uint               `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Direction   string             `json:"direction"`
	Geometry    []byte             `json:"-"`
	Stops       []TemplateStopView `json:"stops"`
}

// validateStops enforces the stop-list shape: positive authored order on
// student stops, a student on every non-final stop, and at most one
// final-destination stop (which carries no student).
func validateStops(stops []StopInput) error {
	finals := 0
	for _, s := range stops {
		if s.IsFinalDestination {
			finals++
			if s.StudentID != nil {
				return fmt.Errorf("%w: final destination stop cannot reference a student", ErrValidation)
			}
			continue
		}
		if s.StudentID == nil {
			return fmt.Errorf("%w: only the final destination stop may omit a student", ErrValidation)
		}
		if s.Seq <= 0 {
			return fmt.Errorf("%w: stop order must be a positive integer", ErrValidation)
		}
	}
	if finals > 1 {
		return fmt.Errorf("%w: template has more than one final destination stop", ErrValidation)
	}
	return nil
}

func validateDirection(direction string) error {
	if direction != models.DirectionOutbound && direction != models.DirectionReturn {
		return fmt.Errorf("%w: direction must be %q or %q", ErrValidation, models.DirectionOutbound, models.DirectionReturn)
	}
	return nil
}

// buildTemplateStops converts inputs to rows, assigning the final
// destination the largest order when the author left it implicit.
func buildTemplateStops(templateID uint, stops []StopInput) []models.TemplateStop {
	maxSeq := 0
	for _, s := range stops {
		if !s.IsFinalDestination && s.Seq > maxSeq {
			maxSeq = s.Seq
		}
	}
	rows := make([]models.TemplateStop, 0, len(stops))
	for _, s := range stops {
		seq := s.Seq
		if s.IsFinalDestination && seq <= 0 {
			seq = maxSeq + 1
		}
		rows = append(rows, models.TemplateStop{
			RouteTemplateID:    templateID,
			StudentID:          s.StudentID,
			Seq:                seq,
			Lat:                s.Lat,
			Lng:                s.Lng,
			IsFinalDestination: s.IsFinalDestination,
		})
	}
	return rows
}

// Create persists a template and its stops atomically.
func (s *TemplateService) Create(driverID uint, input CreateTemplateInput) (*TemplateView, error) {
	if err := validateDirection(input.Direction); err != nil {
		return nil, err
	}
	if err := validateStops(input.Stops); err != nil {
		return nil, err
	}

	template := models.RouteTemplate{
		Name:        input.Name,
		Description: input.Description,
		Direction:   input.Direction,
		DriverID:    driverID,
		Geometry:    input.Geometry,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&template).Error; err != nil {
			return err
		}
		rows := buildTemplateStops(template.ID, input.Stops)
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logrus.WithError(err).WithField("driver_id", driverID).Error("Create template failed")
		return nil, err
	}
	return s.Get(driverID, template.ID)
}

// Edit applies partial field updates and, when Stops is set, replaces the
// full stop list (delete all, re-insert).
func (s *TemplateService) Edit(driverID, templateID uint, input UpdateTemplateInput) (*TemplateView, error) {
	var template models.RouteTemplate
	if err := s.DB.First(&template, templateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: template %d", ErrNotFound, templateID)
		}
		return nil, err
	}
	if template.DriverID != driverID {
		return nil, fmt.Errorf("%w: template belongs to another driver", ErrForbidden)
	}

	if input.Name != nil {
		template.Name = *input.Name
	}
	if input.Description != nil {
		template.Description = *input.Description
	}
	if input.Direction != nil {
		if err := validateDirection(*input.Direction); err != nil {
			return nil, err
		}
		template.Direction = *input.Direction
	}
	if input.Geometry != nil {
		template.Geometry = *input.Geometry
	}
	if input.Stops != nil {
		if err := validateStops(*input.Stops); err != nil {
			return nil, err
		}
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&template).Error; err != nil {
			return err
		}
		if input.Stops == nil {
			return nil
		}
		if err := tx.Where("route_template_id = ?", template.ID).Delete(&models.TemplateStop{}).Error; err != nil {
			return err
		}
		rows := buildTemplateStops(template.ID, *input.Stops)
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logrus.WithError(err).WithField("template_id", templateID).Error("Edit template failed")
		return nil, err
	}
	return s.Get(driverID, template.ID)
}

// Delete removes a template and cascades its stops.
func (s *TemplateService) Delete(driverID, templateID uint) error {
	var template models.RouteTemplate
	if err := s.DB.First(&template, templateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: template %d", ErrNotFound, templateID)
		}
		return err
	}
	if template.DriverID != driverID {
		return fmt.Errorf("%w: template belongs to another driver", ErrForbidden)
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("route_template_id = ?", template.ID).Delete(&models.TemplateStop{}).Error; err != nil {
			return err
		}
		return tx.Delete(&template).Error
	})
}

// Get returns one template with stops ordered ascending by authored order
// and students reduced to the (id, name) projection.
func (s *TemplateService) Get(driverID, templateID uint) (*TemplateView, error) {
	var template models.RouteTemplate
	err := s.DB.Preload("Stops", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC, id ASC")
	}).Preload("Stops.Student").First(&template, templateID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: template %d", ErrNotFound, templateID)
		}
		return nil, err
	}
	if template.DriverID != driverID {
		return nil, fmt.Errorf("%w: template belongs to another driver", ErrForbidden)
	}
	view := toTemplateView(template)
	return &view, nil
}

// ListForDriver returns all of a driver's templates, stops ordered.
func (s *TemplateService) ListForDriver(driverID uint) ([]TemplateView, error) {
	var templates []models.RouteTemplate
	err := s.DB.Preload("Stops", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC, id ASC")
	}).Preload("Stops.Student").
		Where("driver_id = ?", driverID).
		Order("id ASC").
		Find(&templates).Error
	if err != nil {
		return nil, err
	}
	views := make([]TemplateView, 0, len(templates))
	for _, t := range templates {
		views = append(views, toTemplateView(t))
	}
	return views, nil
}

func toTemplateView(t models.RouteTemplate) TemplateView {
	view := TemplateView{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Direction:   t.Direction,
		Geometry:    t.Geometry,
		Stops:       make([]TemplateStopView, 0, len(t.Stops)),
	}
	for _, stop := range t.Stops {
		sv := TemplateStopView{
			ID:                 stop.ID,
			Seq:                stop.Seq,
			Lat:                stop.Lat,
			Lng:                stop.Lng,
			IsFinalDestination: stop.IsFinalDestination,
		}
		if stop.Student != nil {
			sv.Student = &StudentRef{ID: stop.Student.ID, Name: stop.Student.Name}
		}
		view.Stops = append(view.Stops, sv)
	}
	return view
}
