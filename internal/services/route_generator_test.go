package services

import (
	"errors"
	"testing"
	"time"

	"van_tracker/internal/models"
	"van_tracker/internal/notify"
)

// fixture bundles the usual cast: one driver, one guardian with a device
// token, three students and an outbound template ending at the school.
type fixture struct {
	driver   *models.Driver
	guardian *models.Guardian
	ana      *models.Student
	bruno    *models.Student
	carla    *models.Student
	template *TemplateView
}

func newRouteFixture(t *testing.T, svc *RouteService) *fixture {
	t.Helper()
	db := svc.DB
	driver := seedDriver(t, db)
	guardian := seedGuardian(t, db, "tok-guardian")
	ana := seedStudent(t, db, guardian, driver, "Ana")
	bruno := seedStudent(t, db, guardian, driver, "Bruno")
	carla := seedStudent(t, db, guardian, driver, "Carla")

	template, err := NewTemplateService(db).Create(driver.ID, CreateTemplateInput{
		Name:      "Morning Route",
		Direction: models.DirectionOutbound,
		Stops: []StopInput{
			studentStop(ana.ID, 10), // authored order has gaps on purpose
			studentStop(bruno.ID, 20),
			studentStop(carla.ID, 30),
			finalStop(40),
		},
	})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	return &fixture{driver: driver, guardian: guardian, ana: ana, bruno: bruno, carla: carla, template: template}
}

func TestGenerateRouteRenumbersContiguously(t *testing.T) {
	db := newTestDB(t)
	svc, _, _ := newTestRouteService(db)
	fx := newRouteFixture(t, svc)

	route, err := svc.GenerateDailyRoute(fx.driver.ID, fx.template.ID)
	if err != nil {
		t.Fatalf("GenerateDailyRoute: %v", err)
	}

	if len(route.Stops) != 4 {
		t.Fatalf("expected 4 stops, got %d", len(route.Stops))
	}
	for i, stop := range route.Stops {
		if stop.Seq != i+1 {
			t.Errorf("stop %d: seq = %d, want %d (no gaps from authored order)", i, stop.Seq, i+1)
		}
	}
	last := route.Stops[3]
	if !last.IsFinalDestination || last.Student != nil {
		t.Errorf("expected last stop to be the studentless final destination, got %+v", last)
	}
	if route.Status != models.RouteStatusActive {
		t.Errorf("status = %q, want active", route.Status)
	}
}

func TestGenerateRouteExcludesAbsentStudents(t *testing.T) {
	db := newTestDB(t)
	svc, _, _ := newTestRouteService(db)
	fx := newRouteFixture(t, svc)

	if _, err := NewAttendanceService(db).Set(fx.guardian.ID, fx.bruno.ID, time.Now(), false); err != nil {
		t.Fatalf("set attendance: %v", err)
	}

	route, err := svc.GenerateDailyRoute(fx.driver.ID, fx.template.ID)
	if err != nil {
		t.Fatalf("GenerateDailyRoute: %v", err)
	}

	if len(route.Stops) != 3 {
		t.Fatalf("expected 3 stops (Bruno excluded), got %d", len(route.Stops))
	}
	for _, stop := range route.Stops {
		if stop.Student != nil && stop.Student.ID == fx.bruno.ID {
			t.Error("absent student Bruno appeared in the generated route")
		}
	}
	// Survivors keep their relative order, renumbered 1..K, final at K+1.
	if route.Stops[0].Student.ID != fx.ana.ID || route.Stops[1].Student.ID != fx.carla.ID {
		t.Errorf("unexpected survivor order: %+v", route.Stops)
	}
	if route.Stops[2].Seq != 3 || !route.Stops[2].IsFinalDestination {
		t.Errorf("expected final destination at seq 3, got %+v", route.Stops[2])
	}
}

func TestGenerateRouteConflictWhileActive(t *testing.T) {
	db := newTestDB(t)
	svc, _, _ := newTestRouteService(db)
	fx := newRouteFixture(t, svc)

	if _, err := svc.GenerateDailyRoute(fx.driver.ID, fx.template.ID); err != nil {
		t.Fatalf("first generation: %v", err)
	}

	var routesBefore, stopsBefore int64
	db.Model(&models.ActiveRoute{}).Count(&routesBefore)
	db.Model(&models.RouteStop{}).Count(&stopsBefore)

	_, err := svc.GenerateDailyRoute(fx.driver.ID, fx.template.ID)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	var routesAfter, stopsAfter int64
	db.Model(&models.ActiveRoute{}).Count(&routesAfter)
	db.Model(&models.RouteStop{}).Count(&stopsAfter)
	if routesAfter != routesBefore || stopsAfter != stopsBefore {
		t.Errorf("conflicting generation wrote rows: routes %d->%d stops %d->%d",
			routesBefore, routesAfter, stopsBefore, stopsAfter)
	}
}

func TestGenerateRouteOwnershipAndExistence(t *testing.T) {
	db := newTestDB(t)
	svc, _, _ := newTestRouteService(db)
	fx := newRouteFixture(t, svc)
	other := seedDriver(t, db)

	if _, err := svc.GenerateDailyRoute(other.ID, fx.template.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("other driver's template: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.GenerateDailyRoute(fx.driver.ID, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown template: expected ErrNotFound, got %v", err)
	}
}

func TestGenerateRouteNoEligibleStudents(t *testing.T) {
	db := newTestDB(t)
	svc, dispatcher, broadcast := newTestRouteService(db)
	fx := newRouteFixture(t, svc)

	attendance := NewAttendanceService(db)
	for _, student := range []*models.Student{fx.ana, fx.bruno, fx.carla} {
		if _, err := attendance.Set(fx.guardian.ID, student.ID, time.Now(), false); err != nil {
			t.Fatalf("set attendance: %v", err)
		}
	}

	_, err := svc.GenerateDailyRoute(fx.driver.ID, fx.template.ID)
	if !errors.Is(err, ErrNoEligibleStudents) {
		t.Fatalf("expected ErrNoEligibleStudents, got %v", err)
	}

	var routes, stops int64
	db.Model(&models.ActiveRoute{}).Count(&routes)
	db.Model(&models.RouteStop{}).Count(&stops)
	if routes != 0 || stops != 0 {
		t.Errorf("failed generation must not write: routes=%d stops=%d", routes, stops)
	}
	if len(dispatcher.events) != 0 {
		t.Errorf("no notification expected, got %d", len(dispatcher.events))
	}
	if len(broadcast.started) != 0 {
		t.Errorf("broadcast must not start, got %v", broadcast.started)
	}
}

func TestGenerateRouteNotifiesDistinctGuardianTokens(t *testing.T) {
	db := newTestDB(t)
	svc, dispatcher, broadcast := newTestRouteService(db)
	fx := newRouteFixture(t, svc)

	if _, err := svc.GenerateDailyRoute(fx.driver.ID, fx.template.ID); err != nil {
		t.Fatalf("GenerateDailyRoute: %v", err)
	}

	started := dispatcher.eventsOfKind(notify.KindRouteStarted)
	if len(started) != 1 {
		t.Fatalf("expected one route-started event, got %d", len(started))
	}
	// Three students share one guardian: the token set is deduplicated.
	if len(started[0].Tokens) != 1 || started[0].Tokens[0] != "tok-guardian" {
		t.Errorf("tokens = %v, want exactly [tok-guardian]", started[0].Tokens)
	}
	if len(broadcast.started) != 1 || broadcast.started[0] != fx.driver.ID {
		t.Errorf("expected live broadcast started for driver %d, got %v", fx.driver.ID, broadcast.started)
	}
}

func TestGenerateRouteSurvivesDispatchFailure(t *testing.T) {
	db := newTestDB(t)
	svc, dispatcher, _ := newTestRouteService(db)
	fx := newRouteFixture(t, svc)
	dispatcher.err = errors.New("push service down")

	route, err := svc.GenerateDailyRoute(fx.driver.ID, fx.template.ID)
	if err != nil {
		t.Fatalf("dispatch failure must not fail generation: %v", err)
	}
	if route.Status != models.RouteStatusActive {
		t.Errorf("status = %q, want active", route.Status)
	}
}
