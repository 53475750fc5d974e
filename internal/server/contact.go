package server

import (
	"fmt"
	"net/http"
	"time"

	"document-gateway/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contactResponse struct {
	Message        string `json:"message"`
	ContactID      string `json:"contactId"`
	Timestamp      string `json:"timestamp"`
	VisitorCount   int64  `json:"visitor_count"`
	DocumentsCount int    `json:"documents_count"`
}

// newContactID returns contact_<unix seconds>_<8 hex chars>.
func newContactID(now time.Time) string {
	return fmt.Sprintf("contact_%d_%s", now.Unix(), uuid.NewString()[:8])
}

// handleContact stores a submission, bumps the visitor counter, counts the
// contact's documents and sends the optional notification.
func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	log := s.requestLogger(r)
	ctx := r.Context()
	now := time.Now().UTC()

	contact := store.Contact{
		ID:        newContactID(now),
		Name:      req.Name,
		Email:     req.Email,
		Company:   req.Company,
		Service:   req.Service,
		Budget:    req.Budget,
		Message:   req.Message,
		Timestamp: now,
		Source:    req.Source,
		UserAgent: req.UserAgent,
		PageURL:   req.PageURL,
	}
	if contact.UserAgent == "" {
		contact.UserAgent = r.UserAgent()
	}

	id, err := s.db.CreateContact(ctx, contact)
	if err != nil {
		log.Error("create contact failed", zap.String("contact_id", contact.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to submit contact: "+err.Error())
		return
	}

	visitors := s.db.IncrementVisitorCount(ctx)
	s.metrics.SetVisitorCount(visitors)
	docs := s.db.GetContactDocuments(ctx, id)

	if s.notifier != nil {
		n := ContactNotification{
			ContactID: id,
			Name:      contact.Name,
			Email:     contact.Email,
			Company:   orDefault(contact.Company, "Not specified"),
			Service:   orDefault(contact.Service, "Not specified"),
			Budget:    orDefault(contact.Budget, "Not specified"),
			Message:   contact.Message,
			Timestamp: now,
		}
		if err := s.notifier.NotifyContact(ctx, n); err != nil {
			log.Warn("contact notification failed", zap.String("contact_id", id), zap.Error(err))
		}
	}

	s.metrics.ContactSubmitted(orDefault(contact.Source, "website"), orDefault(contact.Service, "Not specified"))
	log.Info("contact submitted", zap.String("contact_id", id))

	writeJSON(w, http.StatusOK, contactResponse{
		Message:        "Contact form submitted successfully!",
		ContactID:      id,
		Timestamp:      isoTimestamp(now),
		VisitorCount:   visitors,
		DocumentsCount: len(docs),
	})
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
