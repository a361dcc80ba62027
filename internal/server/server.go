//go:generate mockgen -source ./server.go -destination=./mocks/server.go -package=mock_server
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecorescue/foodshare/internal/auth"
	"github.com/ecorescue/foodshare/internal/report"
	"github.com/ecorescue/foodshare/internal/storage"
)

// Kept under the server's write timeout so an empty poll still gets its
// changed=false response out.
const watchTimeout = 8 * time.Second

type Storage interface {
	Publish(ctx context.Context, input storage.PublishInput) (*storage.Donation, error)
	Reserve(ctx context.Context, donationID, volunteerName string) (string, error)
	Complete(ctx context.Context, donationID, submittedCode string) (bool, error)
	Remove(ctx context.Context, donationID string, hard bool) error
	ListActive(ctx context.Context, filter storage.ActiveFilter) ([]storage.Donation, error)
	ListHistory(ctx context.Context, reservedBy string) ([]storage.Donation, error)
	GetDonation(ctx context.Context, donationID string) (*storage.Donation, error)
	GetDonationHistory(ctx context.Context, donationID string) ([]storage.HistoryEntry, error)
	Subscribe() (<-chan struct{}, func())
}

type Authenticator interface {
	Register(ctx context.Context, name, email, password string, role auth.Role) error
	Login(ctx context.Context, email, password string) (*auth.Session, error)
}

type SessionResolver interface {
	Resolve(token string) (*auth.Session, bool)
}

type Server struct {
	storage      Storage
	authSvc      Authenticator
	sessions     SessionResolver
	server       *http.Server
	AuditManager *AuditManager
}

func New(storage Storage, authSvc Authenticator, sessions SessionResolver, auditManager *AuditManager) *Server {
	return &Server{
		storage:      storage,
		authSvc:      authSvc,
		sessions:     sessions,
		AuditManager: auditManager,
	}
}

func (s *Server) Run(ctx context.Context, port string) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.AuditManager.Start(ctx)

	log.Printf("Server starting on port %s", port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	log.Println("HTTP server shutdown completed")

	s.AuditManager.Shutdown(ctx)
	log.Println("Server shutdown completed successfully")

	return nil
}

func (s *Server) setupRoutes() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	router.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/").Subrouter()
	api.Use(s.auditLogMiddleware, s.sessionMiddleware)

	api.HandleFunc("/donations", s.requireRole(auth.RoleDonor, s.handlePublishDonation)).Methods(http.MethodPost)
	api.HandleFunc("/donations", s.handleListDonations).Methods(http.MethodGet)
	api.HandleFunc("/donations/watch", s.handleWatchDonations).Methods(http.MethodGet)
	api.HandleFunc("/donations/{id}", s.handleGetDonation).Methods(http.MethodGet)
	api.HandleFunc("/donations/{id}", s.requireRole(auth.RoleDonor, s.handleRemoveDonation)).Methods(http.MethodDelete)
	api.HandleFunc("/donations/{id}/reserve", s.requireRole(auth.RoleVolunteer, s.handleReserveDonation)).Methods(http.MethodPost)
	api.HandleFunc("/donations/{id}/complete", s.requireRole(auth.RoleDonor, s.handleCompleteDonation)).Methods(http.MethodPost)
	api.HandleFunc("/donations/{id}/code.png", s.handlePickupCodePNG).Methods(http.MethodGet)
	api.HandleFunc("/donations/{id}/history", s.handleDonationHistory).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/report/stats", s.requireRole(auth.RoleDonor, s.handleReportStats)).Methods(http.MethodGet)
	api.HandleFunc("/report/export", s.requireRole(auth.RoleDonor, s.handleReportExport)).Methods(http.MethodGet)

	return router
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var registerRequest struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}

	if err := json.NewDecoder(r.Body).Decode(&registerRequest); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	role, err := auth.ParseRole(registerRequest.Role)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Role must be DONOR or VOLUNTEER")
		return
	}

	err = s.authSvc.Register(r.Context(), registerRequest.Name, registerRequest.Email, registerRequest.Password, role)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingField):
			respondError(w, http.StatusBadRequest, "Missing name, email or password")
		case errors.Is(err, auth.ErrEmailTaken):
			respondError(w, http.StatusConflict, "Email already registered")
		default:
			respondError(w, http.StatusInternalServerError, "Failed to register")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"message": "Registered successfully",
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&loginRequest); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := s.authSvc.Login(r.Context(), loginRequest.Email, loginRequest.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handlePublishDonation(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	var publishRequest struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Quantity    string `json:"quantity"`
		ImageURL    string `json:"image_url"`
	}

	if err := json.NewDecoder(r.Body).Decode(&publishRequest); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	donation, err := s.storage.Publish(r.Context(), storage.PublishInput{
		Title:       publishRequest.Title,
		Description: publishRequest.Description,
		Quantity:    publishRequest.Quantity,
		ImageURL:    publishRequest.ImageURL,
		DonorName:   session.Name,
	})
	if err != nil {
		if errors.Is(err, storage.ErrValidation) {
			respondError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to publish donation")
		return
	}

	respondJSON(w, http.StatusCreated, donation)
}

func (s *Server) handleListDonations(w http.ResponseWriter, r *http.Request) {
	filter := storage.ActiveFilter(r.URL.Query().Get("filter"))
	if filter == "" {
		filter = storage.FilterAll
	}

	donations, err := s.storage.ListActive(r.Context(), filter)
	if err != nil {
		if errors.Is(err, storage.ErrValidation) {
			respondError(w, http.StatusBadRequest, "Invalid value for 'filter' parameter")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to list donations")
		return
	}

	// Pickup codes are shared secrets between the reserving volunteer and
	// the donor; the public listing never carries them.
	session := sessionFromContext(r.Context())
	for i := range donations {
		if session != nil && session.Role == auth.RoleVolunteer && donations[i].ReservedBy != session.Name {
			donations[i].PickupCode = ""
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"donations": donations})
}

func (s *Server) handleGetDonation(w http.ResponseWriter, r *http.Request) {
	donationID := mux.Vars(r)["id"]

	donation, err := s.storage.GetDonation(r.Context(), donationID)
	if err != nil {
		if storage.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "Donation not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to get donation")
		return
	}

	session := sessionFromContext(r.Context())
	if session != nil && session.Role == auth.RoleVolunteer && donation.ReservedBy != session.Name {
		donation.PickupCode = ""
	}

	respondJSON(w, http.StatusOK, donation)
}

func (s *Server) handleReserveDonation(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	donationID := mux.Vars(r)["id"]

	code, err := s.storage.Reserve(r.Context(), donationID, session.Name)
	if err != nil {
		switch {
		case storage.IsNotFound(err):
			respondError(w, http.StatusNotFound, "Donation not found")
		case errors.Is(err, storage.ErrAlreadyReserved):
			respondError(w, http.StatusConflict, "Donation is already reserved")
		case errors.Is(err, storage.ErrCompleted):
			respondError(w, http.StatusConflict, "Donation is already completed")
		default:
			respondError(w, http.StatusInternalServerError, "Failed to reserve donation")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message":     "Donation reserved",
		"pickup_code": code,
	})
}

func (s *Server) handleCompleteDonation(w http.ResponseWriter, r *http.Request) {
	donationID := mux.Vars(r)["id"]

	var completeRequest struct {
		Code string `json:"code"`
	}

	if err := json.NewDecoder(r.Body).Decode(&completeRequest); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	completed, err := s.storage.Complete(r.Context(), donationID, completeRequest.Code)
	if err != nil {
		switch {
		case storage.IsNotFound(err):
			respondError(w, http.StatusNotFound, "Donation not found")
		case errors.Is(err, storage.ErrNotReserved):
			respondError(w, http.StatusConflict, "Donation is not reserved")
		case errors.Is(err, storage.ErrCompleted):
			respondError(w, http.StatusConflict, "Donation is already completed")
		default:
			respondError(w, http.StatusInternalServerError, "Failed to complete donation")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"completed": completed,
	})
}

func (s *Server) handleRemoveDonation(w http.ResponseWriter, r *http.Request) {
	donationID := mux.Vars(r)["id"]
	hard := r.URL.Query().Get("hard") == "true"

	if err := s.storage.Remove(r.Context(), donationID, hard); err != nil {
		switch {
		case storage.IsNotFound(err):
			respondError(w, http.StatusNotFound, "Donation not found")
		case errors.Is(err, storage.ErrCompleted):
			respondError(w, http.StatusConflict, "Completed donations cannot be removed")
		default:
			respondError(w, http.StatusInternalServerError, "Failed to remove donation")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Donation removed",
	})
}

func (s *Server) handlePickupCodePNG(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	donationID := mux.Vars(r)["id"]

	donation, err := s.storage.GetDonation(r.Context(), donationID)
	if err != nil {
		if storage.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "Donation not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to get donation")
		return
	}

	if !donation.IsReserved || donation.PickupCode == "" {
		respondError(w, http.StatusConflict, "Donation is not reserved")
		return
	}
	if session != nil && session.Role == auth.RoleVolunteer && donation.ReservedBy != session.Name {
		respondError(w, http.StatusForbidden, "Pickup code belongs to another volunteer")
		return
	}

	png, err := report.PickupCodePNG(donation.PickupCode)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to render pickup code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// handleWatchDonations long-polls the change notifier. The response arrives
// when any donation changes, or after the timeout with changed=false. Either
// way the client re-fetches the listing it is watching.
func (s *Server) handleWatchDonations(w http.ResponseWriter, r *http.Request) {
	changes, cancel := s.storage.Subscribe()
	defer cancel()

	timer := time.NewTimer(watchTimeout)
	defer timer.Stop()

	select {
	case <-changes:
		respondJSON(w, http.StatusOK, map[string]bool{"changed": true})
	case <-timer.C:
		respondJSON(w, http.StatusOK, map[string]bool{"changed": false})
	case <-r.Context().Done():
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	if session == nil {
		respondError(w, http.StatusUnauthorized, "Missing session")
		return
	}

	// Volunteers only ever see their own reservations; donors see the full
	// history for reporting.
	reservedBy := ""
	if session.Role == auth.RoleVolunteer {
		reservedBy = session.Name
	}

	donations, err := s.storage.ListHistory(r.Context(), reservedBy)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"donations": donations})
}

func (s *Server) handleDonationHistory(w http.ResponseWriter, r *http.Request) {
	donationID := mux.Vars(r)["id"]

	entries, err := s.storage.GetDonationHistory(r.Context(), donationID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get donation history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"history": entries})
}

func (s *Server) handleReportStats(w http.ResponseWriter, r *http.Request) {
	donations, err := s.storage.ListHistory(r.Context(), "")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}

	stats := report.ComputeStats(donations)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"available":       stats.Available,
		"reserved":        stats.Reserved,
		"completed":       stats.Completed,
		"total":           stats.Total,
		"success_percent": stats.SuccessPercent(),
	})
}

func (s *Server) handleReportExport(w http.ResponseWriter, r *http.Request) {
	donations, err := s.storage.ListHistory(r.Context(), "")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}

	stats := report.ComputeStats(donations)
	pdfBytes, err := report.RenderPDF(stats, time.Now())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to render report")
		return
	}

	filename := fmt.Sprintf("foodshare-report-%s.pdf", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdfBytes)
}
