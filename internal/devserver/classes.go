package devserver

import (
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/campus/internal/platform"
	"github.com/felixgeelhaar/campus/internal/role"
)

func seedClasses(a *accounts) []platform.Class {
	var teachers []*account
	a.mu.RLock()
	for _, acc := range a.byUsername {
		if acc.Role == role.Teacher {
			teachers = append(teachers, acc)
		}
	}
	a.mu.RUnlock()

	start := time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)
	templates := []struct {
		name, course, level, room, schedule string
	}{
		{"IELTS Foundation A", "IELTS", "B1", "R101", "Mon/Wed 18:00"},
		{"Young Learners 3", "Kids English", "A2", "R204", "Sat 09:00"},
		{"Business English", "Business", "B2", "R305", "Tue/Thu 19:00"},
		{"TOEIC Intensive", "TOEIC", "B1", "R102", "Fri 18:30"},
	}

	classes := make([]platform.Class, 0, len(templates))
	for i, tpl := range templates {
		c := platform.Class{
			ID:        uuid.NewString(),
			Name:      tpl.name,
			Course:    tpl.course,
			Level:     tpl.level,
			Room:      tpl.room,
			Schedule:  tpl.schedule,
			Students:  12 + i*3,
			StartDate: start,
			EndDate:   start.AddDate(0, 3, 0),
		}
		if len(teachers) > 0 {
			t := teachers[i%len(teachers)]
			c.TeacherID = t.EmployeeID
			c.TeacherName = t.FullName
		}
		classes = append(classes, c)
	}
	return classes
}
