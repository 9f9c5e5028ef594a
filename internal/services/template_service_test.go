package services

import (
	"errors"
	"testing"

	"van_tracker/internal/models"
)

func TestCreateTemplateReturnsStopsOrdered(t *testing.T) {
	db := newTestDB(t)
	driver := seedDriver(t, db)
	guardian := seedGuardian(t, db, "")
	a := seedStudent(t, db, guardian, driver, "Ana")
	b := seedStudent(t, db, guardian, driver, "Bruno")
	c := seedStudent(t, db, guardian, driver, "Carla")
	svc := NewTemplateService(db)

	// Insertion order deliberately scrambled.
	view, err := svc.Create(driver.ID, CreateTemplateInput{
		Name:      "Morning Route",
		Direction: models.DirectionOutbound,
		Stops: []StopInput{
			studentStop(c.ID, 3),
			studentStop(a.ID, 1),
			finalStop(4),
			studentStop(b.ID, 2),
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if len(view.Stops) != 4 {
		t.Fatalf("expected 4 stops, got %d", len(view.Stops))
	}
	for i, wantSeq := range []int{1, 2, 3, 4} {
		if view.Stops[i].Seq != wantSeq {
			t.Errorf("stop %d: seq = %d, want %d", i, view.Stops[i].Seq, wantSeq)
		}
	}
	if view.Stops[0].Student == nil || view.Stops[0].Student.Name != "Ana" {
		t.Errorf("expected first stop to resolve student Ana, got %+v", view.Stops[0].Student)
	}
	if !view.Stops[3].IsFinalDestination {
		t.Error("expected last stop to be the final destination")
	}
}

func TestCreateTemplateAssignsFinalStopLargestOrder(t *testing.T) {
	db := newTestDB(t)
	driver := seedDriver(t, db)
	guardian := seedGuardian(t, db, "")
	a := seedStudent(t, db, guardian, driver, "Ana")
	svc := NewTemplateService(db)

	// Final stop order left implicit (zero).
	view, err := svc.Create(driver.ID, CreateTemplateInput{
		Name:      "Morning Route",
		Direction: models.DirectionOutbound,
		Stops:     []StopInput{studentStop(a.ID, 5), finalStop(0)},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	last := view.Stops[len(view.Stops)-1]
	if !last.IsFinalDestination || last.Seq != 6 {
		t.Errorf("expected final stop at seq 6, got seq %d (final=%v)", last.Seq, last.IsFinalDestination)
	}
}

func TestCreateTemplateValidation(t *testing.T) {
	db := newTestDB(t)
	driver := seedDriver(t, db)
	guardian := seedGuardian(t, db, "")
	a := seedStudent(t, db, guardian, driver, "Ana")
	svc := NewTemplateService(db)

	cases := []struct {
		name  string
		input CreateTemplateInput
	}{
		{
			name: "two final destinations",
			input: CreateTemplateInput{
				Name: "r", Direction: models.DirectionOutbound,
				Stops: []StopInput{studentStop(a.ID, 1), finalStop(2), finalStop(3)},
			},
		},
		{
			name: "non-positive order",
			input: CreateTemplateInput{
				Name: "r", Direction: models.DirectionOutbound,
				Stops: []StopInput{studentStop(a.ID, 0)},
			},
		},
		{
			name: "student stop without student",
			input: CreateTemplateInput{
				Name: "r", Direction: models.DirectionOutbound,
				Stops: []StopInput{{Seq: 1}},
			},
		},
		{
			name: "unknown direction",
			input: CreateTemplateInput{
				Name: "r", Direction: "sideways",
				Stops: []StopInput{studentStop(a.ID, 1)},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(driver.ID, tc.input); !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestEditTemplateReplacesAllStops(t *testing.T) {
	db := newTestDB(t)
	driver := seedDriver(t, db)
	guardian := seedGuardian(t, db, "")
	a := seedStudent(t, db, guardian, driver, "Ana")
	b := seedStudent(t, db, guardian, driver, "Bruno")
	svc := NewTemplateService(db)

	view, err := svc.Create(driver.ID, CreateTemplateInput{
		Name:      "Morning Route",
		Direction: models.DirectionOutbound,
		Stops:     []StopInput{studentStop(a.ID, 1), finalStop(2)},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	newName := "Afternoon Route"
	replacement := []StopInput{studentStop(b.ID, 1)}
	updated, err := svc.Edit(driver.ID, view.ID, UpdateTemplateInput{
		Name:  &newName,
		Stops: &replacement,
	})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}

	if updated.Name != "Afternoon Route" {
		t.Errorf("name = %q, want Afternoon Route", updated.Name)
	}
	if len(updated.Stops) != 1 {
		t.Fatalf("expected stop list fully replaced, got %d stops", len(updated.Stops))
	}
	if updated.Stops[0].Student == nil || updated.Stops[0].Student.ID != b.ID {
		t.Errorf("expected replacement stop for Bruno, got %+v", updated.Stops[0].Student)
	}

	var count int64
	db.Model(&models.TemplateStop{}).Where("route_template_id = ?", view.ID).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 stop row after replacement, got %d", count)
	}
}

func TestEditTemplateErrors(t *testing.T) {
	db := newTestDB(t)
	owner := seedDriver(t, db)
	other := seedDriver(t, db)
	guardian := seedGuardian(t, db, "")
	a := seedStudent(t, db, guardian, owner, "Ana")
	svc := NewTemplateService(db)

	view, err := svc.Create(owner.ID, CreateTemplateInput{
		Name:      "Morning Route",
		Direction: models.DirectionOutbound,
		Stops:     []StopInput{studentStop(a.ID, 1)},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Edit(owner.ID, 9999, UpdateTemplateInput{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Edit(other.ID, view.ID, UpdateTemplateInput{}); !errors.Is(err, ErrForbidden) {
		t.Errorf("other driver: expected ErrForbidden, got %v", err)
	}
}

func TestDeleteTemplateCascadesStops(t *testing.T) {
	db := newTestDB(t)
	driver := seedDriver(t, db)
	guardian := seedGuardian(t, db, "")
	a := seedStudent(t, db, guardian, driver, "Ana")
	svc := NewTemplateService(db)

	view, err := svc.Create(driver.ID, CreateTemplateInput{
		Name:      "Morning Route",
		Direction: models.DirectionOutbound,
		Stops:     []StopInput{studentStop(a.ID, 1), finalStop(2)},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Delete(driver.ID, view.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var count int64
	db.Model(&models.TemplateStop{}).Where("route_template_id = ?", view.ID).Count(&count)
	if count != 0 {
		t.Errorf("expected stops deleted with template, found %d", count)
	}
	if _, err := svc.Get(driver.ID, view.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
