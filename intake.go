package blogapi

import (
	"strings"
	"time"
)

// IntakeService accepts newsletter subscriptions and contact messages.
type IntakeService struct {
	store *Store
	now   func() time.Time
}

// NewIntakeService wires an IntakeService.
func NewIntakeService(store *Store, now func() time.Time) *IntakeService {
	return &IntakeService{store: store, now: now}
}

// Subscribe adds email to the newsletter. The only validation is that the
// address is non-empty and contains "@".
func (s *IntakeService) Subscribe(email string) (Subscriber, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return Subscriber{}, validationError("Valid email is required")
	}
	return s.store.CreateSubscriber(email, s.now().UTC())
}

// SubmitContact stores a contact message; every field is required.
func (s *IntakeService) SubmitContact(name, email, subject, message string) (Contact, error) {
	c := Contact{
		Name:    strings.TrimSpace(name),
		Email:   strings.TrimSpace(email),
		Subject: strings.TrimSpace(subject),
		Message: strings.TrimSpace(message),
		SentAt:  s.now().UTC(),
	}
	if c.Name == "" || c.Email == "" || c.Subject == "" || c.Message == "" {
		return Contact{}, validationError("All fields are required")
	}
	return s.store.CreateContact(c)
}

func (s *IntakeService) ListSubscribers() ([]Subscriber, error) {
	return s.store.ListSubscribers()
}

func (s *IntakeService) ListContacts() ([]Contact, error) {
	return s.store.ListContacts()
}
