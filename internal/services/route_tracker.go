package services

import (
	"errors"
	"fmt"
	"time"

	logrus "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"van_tracker/internal/models"
	"van_tracker/internal/notify"
)

// loadOwnedStop fetches a stop and its parent route, enforcing driver
// ownership.
func (s *RouteService) loadOwnedStop(driverID, stopID uint) (*models.RouteStop, *models.ActiveRoute, error) {
	var stop models.RouteStop
	if err := s.DB.Preload("Student").First(&stop, stopID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: stop %d", ErrNotFound, stopID)
		}
		return nil, nil, err
	}
	var route models.ActiveRoute
	if err := s.DB.First(&route, stop.ActiveRouteID).Error; err != nil {
		return nil, nil, err
	}
	if route.DriverID != driverID {
		return nil, nil, fmt.Errorf("%w: stop belongs to another driver's route", ErrForbidden)
	}
	return &stop, &route, nil
}

// activeRouteSubquery matches the stop's parent route only while it is
// still active, so flag writes carry their own precondition.
func activeRouteSubquery(tx *gorm.DB, routeID uint) *gorm.DB {
	return tx.Model(&models.ActiveRoute{}).Select("id").
		Where("id = ? AND status = ?", routeID, models.RouteStatusActive)
}

// MarkPickedUp flips the stop's picked_up flag and notifies the student's
// guardian. The write is conditional on the flag being unset and the
// parent route still active, so a repeat call or a route finalized by a
// concurrent request is a conflict regardless of what this request read.
func (s *RouteService) MarkPickedUp(driverID, stopID uint) (*RouteStopView, error) {
	stop, route, err := s.loadOwnedStop(driverID, stopID)
	if err != nil {
		return nil, err
	}
	if stop.IsFinalDestination {
		return nil, fmt.Errorf("%w: final destination stop has no pickup action", ErrValidation)
	}

	res := s.DB.Model(&models.RouteStop{}).
		Where("id = ? AND picked_up = ?", stop.ID, false).
		Where("active_route_id IN (?)", activeRouteSubquery(s.DB, route.ID)).
		Update("picked_up", true)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: stop already picked up or route no longer active", ErrConflict)
	}
	stop.PickedUp = true

	if stop.Student != nil {
		s.dispatch(notify.Event{
			Kind:   notify.KindPickedUp,
			Title:  "Student picked up",
			Body:   fmt.Sprintf("%s boarded the van.", stop.Student.Name),
			Tokens: s.guardianTokensOrWarn([]uint{stop.Student.ID}, route.ID),
		})
	}

	view := toStopView(*stop)
	return &view, nil
}

// MarkDelivered flips the stop's delivered flag, conditional on the flag
// being unset and the route still active. Delivering the
// final-destination stop also finalizes the parent route, stamps its end
// time and clears the driver's live broadcast. The returned bool reports
// whether that happened.
func (s *RouteService) MarkDelivered(driverID, stopID uint) (*RouteStopView, bool, error) {
	stop, route, err := s.loadOwnedStop(driverID, stopID)
	if err != nil {
		return nil, false, err
	}

	finalizes := stop.IsFinalDestination
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.RouteStop{}).
			Where("id = ? AND delivered = ?", stop.ID, false).
			Where("active_route_id IN (?)", activeRouteSubquery(tx, route.ID)).
			Update("delivered", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: stop already delivered or route no longer active", ErrConflict)
		}
		if !finalizes {
			return nil
		}
		now := time.Now()
		res = tx.Model(&models.ActiveRoute{}).
			Where("id = ? AND status = ?", route.ID, models.RouteStatusActive).
			Updates(map[string]interface{}{
				"status":   models.RouteStatusFinalized,
				"ended_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: route no longer active", ErrConflict)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	stop.Delivered = true

	if finalizes {
		s.finishRouteSideEffects(route)
	} else if stop.Student != nil {
		s.dispatch(notify.Event{
			Kind:   notify.KindDelivered,
			Title:  "Student delivered",
			Body:   fmt.Sprintf("%s left the van.", stop.Student.Name),
			Tokens: s.guardianTokensOrWarn([]uint{stop.Student.ID}, route.ID),
		})
	}

	view := toStopView(*stop)
	return &view, finalizes, nil
}

// Finalize terminates a route independently of stop completion. Calling
// it on an already-finalized route is a conflict.
func (s *RouteService) Finalize(driverID, routeID uint) error {
	var route models.ActiveRoute
	if err := s.DB.First(&route, routeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: route %d", ErrNotFound, routeID)
		}
		return err
	}
	if route.DriverID != driverID {
		return fmt.Errorf("%w: route belongs to another driver", ErrForbidden)
	}

	now := time.Now()
	res := s.DB.Model(&models.ActiveRoute{}).
		Where("id = ? AND status = ?", route.ID, models.RouteStatusActive).
		Updates(map[string]interface{}{
			"status":   models.RouteStatusFinalized,
			"ended_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: route is not active", ErrConflict)
	}

	s.finishRouteSideEffects(&route)
	return nil
}

// finishRouteSideEffects clears the live broadcast and notifies the
// guardians of every student on the route. Runs after commit only.
func (s *RouteService) finishRouteSideEffects(route *models.ActiveRoute) {
	s.Live.Stop(route.DriverID)
	s.dispatch(notify.Event{
		Kind:   notify.KindRouteFinished,
		Title:  "Route finished",
		Body:   "The van completed its route.",
		Tokens: s.guardianTokensOrWarn(s.routeStudentIDs(route.ID), route.ID),
	})
}

// Recalculate replaces all of an active route's stops with a fresh
// generation pass over the template and current attendance. The route row
// itself (id, date, status) is untouched. Used when attendance changes
// mid-morning.
func (s *RouteService) Recalculate(driverID, routeID uint) (*ActiveRouteView, error) {
	var route models.ActiveRoute
	if err := s.DB.First(&route, routeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: route %d", ErrNotFound, routeID)
		}
		return nil, err
	}
	if route.DriverID != driverID {
		return nil, fmt.Errorf("%w: route belongs to another driver", ErrForbidden)
	}

	var template models.RouteTemplate
	err := s.DB.Preload("Stops", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC, id ASC")
	}).First(&template, route.RouteTemplateID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: template %d", ErrNotFound, route.RouteTemplateID)
		}
		return nil, err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		// Re-read the status here so the stop replacement cannot land on
		// a route finalized since the ownership check.
		var current models.ActiveRoute
		if err := tx.First(&current, route.ID).Error; err != nil {
			return err
		}
		if current.Status != models.RouteStatusActive {
			return fmt.Errorf("%w: route is not active", ErrConflict)
		}
		if err := tx.Where("active_route_id = ?", route.ID).Delete(&models.RouteStop{}).Error; err != nil {
			return err
		}
		stops, _, err := buildRouteStops(tx, template.Stops, route.Date)
		if err != nil {
			return err
		}
		for i := range stops {
			stops[i].ActiveRouteID = route.ID
		}
		return tx.Create(&stops).Error
	})
	if err != nil {
		return nil, err
	}
	return s.getRouteView(route.ID)
}

// GetActiveRoute returns the driver's current active route with ordered
// stops, or ErrNotFound when none is in progress.
func (s *RouteService) GetActiveRoute(driverID uint) (*ActiveRouteView, error) {
	var route models.ActiveRoute
	err := s.DB.Preload("Stops", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC")
	}).Preload("Stops.Student").
		Where("driver_id = ? AND status = ?", driverID, models.RouteStatusActive).
		First(&route).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no active route", ErrNotFound)
		}
		return nil, err
	}
	view := toRouteView(route)
	return &view, nil
}

// GetStop returns a single stop scoped to the requesting driver.
func (s *RouteService) GetStop(driverID, stopID uint) (*RouteStopView, error) {
	stop, _, err := s.loadOwnedStop(driverID, stopID)
	if err != nil {
		return nil, err
	}
	view := toStopView(*stop)
	return &view, nil
}

// ListStopsForActiveRoute returns the ordered stops of the driver's
// active route.
func (s *RouteService) ListStopsForActiveRoute(driverID uint) ([]RouteStopView, error) {
	route, err := s.GetActiveRoute(driverID)
	if err != nil {
		return nil, err
	}
	return route.Stops, nil
}

// ListRoutesByDate returns the driver's routes (any status) for one day.
// Finalized routes are kept forever as the historical record.
func (s *RouteService) ListRoutesByDate(driverID uint, date time.Time) ([]ActiveRouteView, error) {
	var routes []models.ActiveRoute
	err := s.DB.Preload("Stops", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC")
	}).Preload("Stops.Student").
		Where("driver_id = ? AND date = ?", driverID, models.DateOnly(date)).
		Order("id ASC").
		Find(&routes).Error
	if err != nil {
		return nil, err
	}
	views := make([]ActiveRouteView, 0, len(routes))
	for _, r := range routes {
		views = append(views, toRouteView(r))
	}
	return views, nil
}

// routeStudentIDs lists the distinct students on a route's current stops.
func (s *RouteService) routeStudentIDs(routeID uint) []uint {
	var ids []uint
	if err := s.DB.Model(&models.RouteStop{}).
		Where("active_route_id = ? AND student_id IS NOT NULL", routeID).
		Distinct().
		Pluck("student_id", &ids).Error; err != nil {
		return nil
	}
	return ids
}

// guardianTokensOrWarn wraps guardianTokens for notification call sites,
// where a lookup failure only costs the notification.
func (s *RouteService) guardianTokensOrWarn(studentIDs []uint, routeID uint) []string {
	tokens, err := s.guardianTokens(studentIDs)
	if err != nil {
		logrus.WithError(err).WithField("route_id", routeID).Warn("Could not collect guardian tokens")
		return nil
	}
	return tokens
}
