package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/pixshare/pixshare/internal/auth"
	"github.com/pixshare/pixshare/internal/metrics"
	"github.com/pixshare/pixshare/internal/share"
)

// Request/response structures. Field names follow the original frontend
// contract (shareStr, photoId, expirySeconds, presignedUrl).

type createShareRequest struct {
	PhotoID       string `json:"photoId"`
	ExpirySeconds *int64 `json:"expirySeconds"`
}

type createShareResponse struct {
	ShareStr  string `json:"shareStr"`
	PhotoID   string `json:"photoId"`
	ExpiresAt int64  `json:"expiresAt"`
	CreatedAt string `json:"createdAt"`
}

type shareLinkResponse struct {
	LinkID    string `json:"linkId"`
	OwnerID   string `json:"ownerId"`
	PhotoID   string `json:"photoId"`
	ExpiresAt int64  `json:"expiresAt"`
	CreatedAt string `json:"createdAt"`
}

type renewShareRequest struct {
	LinkID        string `json:"linkId"`
	ExpirySeconds *int64 `json:"expirySeconds"`
	ExpiryDate    string `json:"expiryDate"` // RFC3339, alternative to expirySeconds
}

type resolveResponse struct {
	PresignedURL string `json:"presignedUrl"`
	PhotoID      string `json:"photoId"`
	ExpiresAt    int64  `json:"expiresAt"`
}

func (s *Server) registerRoutes(router *mux.Router) {
	// Owner-scoped lifecycle endpoints require a caller identity
	authed := router.PathPrefix("/photos/sharing").Subrouter()
	authed.Use(s.verifier.Middleware())
	authed.HandleFunc("", s.handleCreateShareLink).Methods("POST", "OPTIONS")
	authed.HandleFunc("", s.handleRenewShareLink).Methods("PATCH", "OPTIONS")
	authed.HandleFunc("", s.handleRevokeShareLink).Methods("DELETE", "OPTIONS")
	authed.HandleFunc("/links", s.handleListShareLinks).Methods("GET", "OPTIONS")
	authed.HandleFunc("/mine", s.handleListOwnShareLinks).Methods("GET", "OPTIONS")
	authed.HandleFunc("/qr", s.handleShareLinkQR).Methods("GET", "OPTIONS")

	// Unauthenticated read path: the link id itself is the capability
	router.HandleFunc("/photos/shared", s.handleResolveShareLink).Methods("GET", "OPTIONS")

	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.config.Metrics.Enable {
		router.Handle(s.config.Metrics.Path, s.metricsManager.Handler()).Methods("GET")
	}
}

func (s *Server) handleCreateShareLink(w http.ResponseWriter, r *http.Request) {
	var req createShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metricsManager.RecordShareOp(metricCreate, "invalid_argument")
		s.writeError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	ownerID := auth.CallerIDFromContext(r.Context())

	link, err := s.shareManager.Create(r.Context(), ownerID, req.PhotoID, req.ExpirySeconds)
	if err != nil {
		s.shareError(w, metricCreate, err)
		return
	}

	s.metricsManager.RecordShareOp(metricCreate, "ok")
	s.writeJSON(w, http.StatusOK, createShareResponse{
		ShareStr:  link.LinkID,
		PhotoID:   link.PhotoID,
		ExpiresAt: link.ExpiresAt.Unix(),
		CreatedAt: link.CreatedAt.Format(time.RFC3339),
	})
}

func (s *Server) handleListShareLinks(w http.ResponseWriter, r *http.Request) {
	photoID := r.URL.Query().Get("photoId")
	if photoID == "" {
		s.metricsManager.RecordShareOp(metricList, "invalid_argument")
		s.writeError(w, "Missing photoId query parameter", http.StatusBadRequest)
		return
	}

	links, err := s.shareManager.ListForPhoto(r.Context(), photoID)
	if err != nil {
		s.shareError(w, metricList, err)
		return
	}

	s.metricsManager.RecordShareOp(metricList, "ok")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"photoId":    photoID,
		"shareLinks": toLinkResponses(links),
	})
}

func (s *Server) handleListOwnShareLinks(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.CallerIDFromContext(r.Context())

	links, err := s.shareManager.ListForOwner(r.Context(), ownerID)
	if err != nil {
		s.shareError(w, metricList, err)
		return
	}

	s.metricsManager.RecordShareOp(metricList, "ok")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"shareLinks": toLinkResponses(links),
	})
}

func (s *Server) handleRenewShareLink(w http.ResponseWriter, r *http.Request) {
	var req renewShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metricsManager.RecordShareOp(metricRenew, "invalid_argument")
		s.writeError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	renew := share.RenewRequest{TTLSeconds: req.ExpirySeconds}
	if req.ExpiryDate != "" {
		at, err := time.Parse(time.RFC3339, req.ExpiryDate)
		if err != nil {
			s.metricsManager.RecordShareOp(metricRenew, "invalid_argument")
			s.writeError(w, "Invalid expiryDate, want RFC3339", http.StatusBadRequest)
			return
		}
		renew.ExpiryDate = &at
	}

	ownerID := auth.CallerIDFromContext(r.Context())

	link, err := s.shareManager.Renew(r.Context(), ownerID, req.LinkID, renew)
	if err != nil {
		s.shareError(w, metricRenew, err)
		return
	}

	s.metricsManager.RecordShareOp(metricRenew, "ok")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"linkId":    link.LinkID,
		"expiresAt": link.ExpiresAt.Unix(),
	})
}

func (s *Server) handleRevokeShareLink(w http.ResponseWriter, r *http.Request) {
	linkID := r.URL.Query().Get("linkId")
	if linkID == "" {
		s.metricsManager.RecordShareOp(metricRevoke, "invalid_argument")
		s.writeError(w, "Missing linkId query parameter", http.StatusBadRequest)
		return
	}

	ownerID := auth.CallerIDFromContext(r.Context())

	if err := s.shareManager.Revoke(r.Context(), ownerID, linkID); err != nil {
		s.shareError(w, metricRevoke, err)
		return
	}

	s.metricsManager.RecordShareOp(metricRevoke, "ok")
	s.writeJSON(w, http.StatusOK, map[string]string{"linkId": linkID})
}

// handleResolveShareLink is the unauthenticated read path: it exchanges a
// link id for a presigned photo URL. Absent and expired links produce the
// same response so callers cannot probe when a link expired.
func (s *Server) handleResolveShareLink(w http.ResponseWriter, r *http.Request) {
	linkID := r.URL.Query().Get("linkId")
	if linkID == "" {
		s.metricsManager.RecordResolve("invalid_argument")
		s.writeError(w, "Missing linkId query parameter", http.StatusBadRequest)
		return
	}

	grant, err := s.resolver.Resolve(r.Context(), linkID)
	if err != nil {
		switch {
		case errors.Is(err, share.ErrLinkNotFound):
			s.metricsManager.RecordResolve("not_found")
			s.writeError(w, "Share link not found or expired", http.StatusNotFound)
		case errors.Is(err, share.ErrLinkExpired):
			s.metricsManager.RecordResolve("expired")
			s.writeError(w, "Share link not found or expired", http.StatusNotFound)
		case errors.Is(err, share.ErrIssuerFailure):
			s.metricsManager.RecordResolve("issuer_failure")
			s.writeError(w, "Failed to generate presigned URL", http.StatusBadGateway)
		default:
			s.metricsManager.RecordResolve("error")
			s.writeError(w, "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	s.metricsManager.RecordResolve("ok")
	s.writeJSON(w, http.StatusOK, resolveResponse{
		PresignedURL: grant.URL,
		PhotoID:      grant.PhotoID,
		ExpiresAt:    grant.ExpiresAt.Unix(),
	})
}

// handleShareLinkQR renders the viewer URL for an existing link as a PNG QR
// code.
func (s *Server) handleShareLinkQR(w http.ResponseWriter, r *http.Request) {
	linkID := r.URL.Query().Get("linkId")
	if linkID == "" {
		s.writeError(w, "Missing linkId query parameter", http.StatusBadRequest)
		return
	}

	if _, err := s.store.GetByID(r.Context(), linkID); err != nil {
		if errors.Is(err, share.ErrLinkNotFound) {
			s.writeError(w, "Share link not found", http.StatusNotFound)
			return
		}
		s.writeError(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	viewerURL := s.config.PublicShareURL + "?linkId=" + linkID

	png, err := qrcode.Encode(viewerURL, qrcode.Medium, 256)
	if err != nil {
		logrus.WithError(err).WithField("link_id", linkID).Error("Failed to encode QR code")
		s.writeError(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"system":         metrics.CollectSystemStats(s.config.DataDir),
	})
}

// Metric operation labels
const (
	metricCreate = "create"
	metricList   = "list"
	metricRenew  = "renew"
	metricRevoke = "revoke"
)

// shareError maps domain errors to responses. NotFound and Forbidden share
// one status and message: the service never tells a non-owner whether a link
// exists.
func (s *Server) shareError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, share.ErrInvalidArgument):
		s.metricsManager.RecordShareOp(op, "invalid_argument")
		s.writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, share.ErrLinkNotFound):
		s.metricsManager.RecordShareOp(op, "not_found")
		s.writeError(w, "Share link not found", http.StatusNotFound)
	case errors.Is(err, share.ErrForbidden):
		s.metricsManager.RecordShareOp(op, "forbidden")
		s.writeError(w, "Share link not found", http.StatusNotFound)
	case errors.Is(err, share.ErrRetriesExhausted):
		s.metricsManager.RecordShareOp(op, "retries_exhausted")
		s.writeError(w, "Internal Server Error", http.StatusInternalServerError)
	default:
		s.metricsManager.RecordShareOp(op, "error")
		logrus.WithError(err).Error("Share operation failed")
		s.writeError(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func toLinkResponses(links []*share.ShareLink) []shareLinkResponse {
	out := make([]shareLinkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, shareLinkResponse{
			LinkID:    l.LinkID,
			OwnerID:   l.OwnerID,
			PhotoID:   l.PhotoID,
			ExpiresAt: l.ExpiresAt.Unix(),
			CreatedAt: l.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}

// Helper methods
func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
