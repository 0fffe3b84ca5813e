package stub

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/farganamar/evv-portal/internal/model"
)

// Store is the stub backend's in-memory state. Users are provisioned on
// first login; appointments come from the seeder; logs are append-only.
type Store struct {
	mu           sync.Mutex
	users        map[string]model.User
	appointments map[string]*model.Appointment
	logs         map[string][]model.AppointmentLog
}

func NewStore() *Store {
	return &Store{
		users:        make(map[string]model.User),
		appointments: make(map[string]*model.Appointment),
		logs:         make(map[string][]model.AppointmentLog),
	}
}

func (s *Store) UpsertUser(username string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[username]; ok {
		return user
	}
	user := model.User{
		UserID:     uuid.NewString(),
		Username:   username,
		Email:      username + "@demo.local",
		IsVerified: true,
		Roles:      []string{"caregiver"},
	}
	s.users[username] = user
	return user
}

func (s *Store) PutAppointment(appt model.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments[appt.AppointmentID] = &appt
}

func (s *Store) Appointment(id string) (model.Appointment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, false
	}
	return *appt, true
}

func (s *Store) ListAppointments(caregiverID string, status model.AppointmentStatus) []model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := make([]model.Appointment, 0)
	for _, appt := range s.appointments {
		if appt.CaregiverID != caregiverID {
			continue
		}
		if status != "" && appt.Status != status {
			continue
		}
		matched = append(matched, *appt)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartTime.Before(matched[j].StartTime)
	})
	return matched
}

// Transition moves an appointment to the given status and appends the
// matching visit log entry in one step, keeping status and log consistent.
func (s *Store) Transition(id string, status model.AppointmentStatus, entry model.AppointmentLog) (model.Appointment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, false
	}
	appt.Status = status
	appt.UpdatedAt = time.Now().UTC()
	s.logs[id] = append(s.logs[id], entry)
	return *appt, true
}

func (s *Store) AppendLog(id string, entry model.AppointmentLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[id] = append(s.logs[id], entry)
}

// Logs returns entries in ascending timestamp order, as the API promises.
func (s *Store) Logs(id string) []model.AppointmentLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]model.AppointmentLog, len(s.logs[id]))
	copy(entries, s.logs[id])
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries
}
