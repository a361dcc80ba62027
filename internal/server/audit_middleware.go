package server

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"
)

func (s *Server) auditLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entry := AuditLogEntry{
			Timestamp: time.Now(),
			Method:    r.Method,
			Path:      r.URL.Path,
			Handler:   handlerName(r.URL.Path, r.Method),
		}

		if token := bearerToken(r); token != "" {
			if session, ok := s.sessions.Resolve(token); ok {
				entry.UserEmail = session.Email
				entry.Role = string(session.Role)
			}
		}

		if parts := strings.Split(r.URL.Path, "/"); len(parts) > 2 && parts[1] == "donations" {
			entry.DonationID = parts[2]
		}

		if r.Body != nil {
			requestBody, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(requestBody))
			entry.Request = string(requestBody)
		}

		wrw := newResponseWriterWrapper(w)

		next.ServeHTTP(wrw, r)

		entry.StatusCode = wrw.GetStatusCode()
		entry.Response = string(wrw.GetBody())

		s.AuditManager.LogEntry(r.Context(), entry)
	})
}

func handlerName(path string, method string) string {
	switch {
	case strings.HasSuffix(path, "/reserve"):
		return "handleReserveDonation"
	case strings.HasSuffix(path, "/complete"):
		return "handleCompleteDonation"
	case strings.HasSuffix(path, "/code.png"):
		return "handlePickupCodePNG"
	case strings.HasPrefix(path, "/donations") && strings.HasSuffix(path, "/history"):
		return "handleDonationHistory"
	case path == "/donations/watch":
		return "handleWatchDonations"
	case path == "/donations" && method == http.MethodPost:
		return "handlePublishDonation"
	case path == "/donations" && method == http.MethodGet:
		return "handleListDonations"
	case strings.HasPrefix(path, "/donations") && method == http.MethodGet:
		return "handleGetDonation"
	case strings.HasPrefix(path, "/donations") && method == http.MethodDelete:
		return "handleRemoveDonation"
	case path == "/history":
		return "handleHistory"
	case path == "/report/stats":
		return "handleReportStats"
	case path == "/report/export":
		return "handleReportExport"
	}
	return "unknown"
}
