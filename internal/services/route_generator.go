package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	logrus "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"van_tracker/internal/live"
	"van_tracker/internal/models"
	"van_tracker/internal/notify"
)

// RouteService generates daily routes from templates and tracks their
// execution. All state-changing operations run as a single transaction;
// notification dispatch happens after commit and is fire-and-forget.
type RouteService struct {
	DB         *gorm.DB
	Dispatcher notify.Dispatcher
	Live       live.Broadcast
}

func NewRouteService(db *gorm.DB, dispatcher notify.Dispatcher, broadcast live.Broadcast) *RouteService {
	return &RouteService{DB: db, Dispatcher: dispatcher, Live: broadcast}
}

type RouteStopView struct {
	ID                 uint        `json:"id"`
	Seq                int         `json:"seq"`
	Lat                float64     `json:"lat"`
	Lng                float64     `json:"lng"`
	PickedUp           bool        `json:"picked_up"`
	Delivered          bool        `json:"delivered"`
	IsFinalDestination bool        `json:"is_final_destination"`
	Student            *StudentRef `json:"student,omitempty"`
}

type ActiveRouteView struct {
	ID              uint            `json:"id"`
	DriverID        uint            `json:"driver_id"`
	RouteTemplateID uint            `json:"route_template_id"`
	Date            time.Time       `json:"date"`
	Status          string          `json:"status"`
	StartedAt       time.Time       `json:"started_at"`
	EndedAt         *time.Time      `json:"ended_at,omitempty"`
	Stops           []RouteStopView `json:"stops"`
}

// GenerateDailyRoute instantiates a template into today's route for the
// driver, excluding students marked absent. Fails with ErrConflict while
// another route is active, ErrForbidden on someone else's template, and
// ErrNoEligibleStudents when no student stop survives the attendance
// filter (in which case nothing is written).
func (s *RouteService) GenerateDailyRoute(driverID, templateID uint) (*ActiveRouteView, error) {
	var template models.RouteTemplate
	err := s.DB.Preload("Stops", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC, id ASC")
	}).First(&template, templateID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: template %d", ErrNotFound, templateID)
		}
		return nil, err
	}
	if template.DriverID != driverID {
		return nil, fmt.Errorf("%w: template belongs to another driver", ErrForbidden)
	}

	today := models.DateOnly(time.Now())
	route := models.ActiveRoute{
		DriverID:        driverID,
		RouteTemplateID: template.ID,
		Date:            today,
		Status:          models.RouteStatusActive,
		StartedAt:       time.Now(),
	}

	var studentIDs []uint
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.ActiveRoute
		err := tx.Where("driver_id = ? AND status = ?", driverID, models.RouteStatusActive).
			First(&existing).Error
		if err == nil {
			return fmt.Errorf("%w: route already in progress", ErrConflict)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		stops, ids, err := buildRouteStops(tx, template.Stops, today)
		if err != nil {
			return err
		}
		studentIDs = ids

		if err := tx.Create(&route).Error; err != nil {
			return err
		}
		for i := range stops {
			stops[i].ActiveRouteID = route.ID
		}
		return tx.Create(&stops).Error
	})
	if err != nil {
		// The partial unique index on (driver_id) WHERE status='active'
		// backstops the read-then-write check under concurrent requests.
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: route already in progress", ErrConflict)
		}
		return nil, err
	}

	tokens, tokErr := s.guardianTokens(studentIDs)
	if tokErr != nil {
		logrus.WithError(tokErr).WithField("route_id", route.ID).Warn("Could not collect guardian tokens for route-started notification")
	} else {
		s.dispatch(notify.Event{
			Kind:   notify.KindRouteStarted,
			Title:  "Route started",
			Body:   "The van is on its way.",
			Tokens: tokens,
		})
	}
	s.Live.Start(driverID)

	return s.getRouteView(route.ID)
}

// buildRouteStops applies the attendance filter to the ordered template
// stops and renumbers survivors 1..K, appending the final-destination stop
// (if the template defines one) as K+1. Returns the surviving student ids.
func buildRouteStops(tx *gorm.DB, templateStops []models.TemplateStop, date time.Time) ([]models.RouteStop, []uint, error) {
	var finalStop *models.TemplateStop
	var stops []models.RouteStop
	var studentIDs []uint
	seq := 0

	for i := range templateStops {
		ts := templateStops[i]
		if ts.IsFinalDestination {
			finalStop = &templateStops[i]
			continue
		}
		attending, err := IsAttending(tx, *ts.StudentID, date)
		if err != nil {
			return nil, nil, err
		}
		if !attending {
			continue
		}
		seq++
		stops = append(stops, models.RouteStop{
			StudentID: ts.StudentID,
			Seq:       seq,
			Lat:       ts.Lat,
			Lng:       ts.Lng,
		})
		studentIDs = append(studentIDs, *ts.StudentID)
	}

	if len(stops) == 0 {
		return nil, nil, ErrNoEligibleStudents
	}

	if finalStop != nil {
		stops = append(stops, models.RouteStop{
			Seq:                seq + 1,
			Lat:                finalStop.Lat,
			Lng:                finalStop.Lng,
			IsFinalDestination: true,
		})
	}
	return stops, studentIDs, nil
}

// guardianTokens returns the distinct device tokens of the guardians of
// the given students.
func (s *RouteService) guardianTokens(studentIDs []uint) ([]string, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	var tokens []string
	err := s.DB.Model(&models.DeviceToken{}).
		Joins("JOIN guardians ON guardians.user_id = device_tokens.user_id").
		Joins("JOIN students ON students.guardian_id = guardians.id").
		Where("students.id IN ?", studentIDs).
		Distinct().
		Pluck("device_tokens.token", &tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// dispatch sends an event and absorbs any failure. A committed state
// transition is never rolled back or blocked by the push transport.
func (s *RouteService) dispatch(event notify.Event) {
	if len(event.Tokens) == 0 {
		return
	}
	if err := s.Dispatcher.Send(event); err != nil {
		logrus.WithError(err).WithField("kind", event.Kind).Warn("Notification dispatch failed")
	}
}

func (s *RouteService) getRouteView(routeID uint) (*ActiveRouteView, error) {
	var route models.ActiveRoute
	err := s.DB.Preload("Stops", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC")
	}).Preload("Stops.Student").First(&route, routeID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: route %d", ErrNotFound, routeID)
		}
		return nil, err
	}
	view := toRouteView(route)
	return &view, nil
}

func toRouteView(route models.ActiveRoute) ActiveRouteView {
	view := ActiveRouteView{
		ID:              route.ID,
		DriverID:        route.DriverID,
		RouteTemplateID: route.RouteTemplateID,
		Date:            route.Date,
		Status:          route.Status,
		StartedAt:       route.StartedAt,
		EndedAt:         route.EndedAt,
		Stops:           make([]RouteStopView, 0, len(route.Stops)),
	}
	for _, stop := range route.Stops {
		view.Stops = append(view.Stops, toStopView(stop))
	}
	return view
}

func toStopView(stop models.RouteStop) RouteStopView {
	sv := RouteStopView{
		ID:                 stop.ID,
		Seq:                stop.Seq,
		Lat:                stop.Lat,
		Lng:                stop.Lng,
		PickedUp:           stop.PickedUp,
		Delivered:          stop.Delivered,
		IsFinalDestination: stop.IsFinalDestination,
	}
	if stop.Student != nil {
		sv.Student = &StudentRef{ID: stop.Student.ID, Name: stop.Student.Name}
	}
	return sv
}

func isUniqueViolation(err error) bool {
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
