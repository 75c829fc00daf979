package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/carebridge/booking-gateway/internal/appointment"
	"github.com/carebridge/booking-gateway/internal/backend"
	"github.com/carebridge/booking-gateway/internal/metrics"
	"github.com/carebridge/booking-gateway/internal/session"
	"github.com/carebridge/booking-gateway/internal/slot"
)

// doctorSearchParams are the only query parameters forwarded to the doctor
// search endpoint; anything else on the inbound URL is dropped.
var doctorSearchParams = []string{
	"skip", "limit", "sort_by", "sort_order",
	"search_name", "search_address", "filter_speciality",
}

var slotListParams = []string{"doctor_id", "start_date", "end_date", "status"}

// listKeys name the appointment listing views for notification markers.
const (
	doctorListKey  = "doctor-appointments"
	patientListKey = "my-appointments"
)

// Handlers hosts the proxy endpoints. They are deliberately thin: the edge
// guard has already resolved credentials, so each handler forwards the call
// through the gateway client and translates failures at the boundary.
type Handlers struct {
	gateway *backend.Client
	slots   *slot.Service
	markers *appointment.MarkerStore
	logger  *logrus.Logger
	metrics *metrics.GatewayMetrics
	now     func() time.Time
}

func NewHandlers(gateway *backend.Client, slots *slot.Service, markers *appointment.MarkerStore, logger *logrus.Logger, m *metrics.GatewayMetrics) *Handlers {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handlers{
		gateway: gateway,
		slots:   slots,
		markers: markers,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// proxy forwards one call to the backend and writes the reply verbatim.
func (h *Handlers) proxy(w http.ResponseWriter, r *http.Request, method, path string, query url.Values, body any) {
	resp, err := h.gateway.Do(r.Context(), method, path, query, body, authFrom(r.Context()))
	if err != nil {
		h.metrics.ObserveProxy(method, "error")
		writeDomainError(w, err)
		return
	}
	h.metrics.ObserveProxy(method, statusClass(resp.StatusCode))
	writeRaw(w, resp.StatusCode, resp.Body)
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// filterQuery keeps only the allowed parameters from the inbound URL.
func filterQuery(r *http.Request, allowed []string) url.Values {
	in := r.URL.Query()
	out := url.Values{}
	for _, k := range allowed {
		if v := in.Get(k); v != "" {
			out.Set(k, v)
		}
	}
	return out
}

// decodeBody reads a JSON request body into a raw message for forwarding.
func decodeBody(r *http.Request) (json.RawMessage, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Login is the entry point unauthenticated callers are redirected to.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"detail": "login required"})
}

// ListDoctors proxies paginated doctor search.
func (h *Handlers) ListDoctors(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, http.MethodGet, "/doctors", filterQuery(r, doctorSearchParams), nil)
}

// appointmentListResponse wraps a role-scoped listing with its derived
// notification status.
type appointmentListResponse struct {
	Appointments       json.RawMessage                `json:"appointments"`
	NotificationStatus appointment.NotificationStatus `json:"notification_status"`
}

func (h *Handlers) DoctorAppointments(w http.ResponseWriter, r *http.Request) {
	h.listAppointments(w, r, appointment.RoleDoctor, "/appointments/doctor-appointments", doctorListKey)
}

func (h *Handlers) PatientAppointments(w http.ResponseWriter, r *http.Request) {
	h.listAppointments(w, r, appointment.RolePatient, "/appointments/my-appointments", patientListKey)
}

func (h *Handlers) listAppointments(w http.ResponseWriter, r *http.Request, role appointment.Role, path, listKey string) {
	resp, err := h.gateway.Do(r.Context(), http.MethodGet, path, r.URL.Query(), nil, authFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var appts []appointment.Appointment
	if err := resp.Decode(&appts); err != nil {
		writeDomainError(w, err)
		return
	}

	status := appointment.NotificationNone
	sessionKey := credentialsFrom(r.Context()).SessionKey()
	if sessionKey != "" {
		lastSeen, err := h.markers.LastSeen(r.Context(), sessionKey, role, listKey)
		if err != nil {
			// The listing is still useful without the marker.
			logEntry(r.Context()).WithError(err).Warn("failed to load last seen marker")
		}
		status = appointment.Notification(role, appts, lastSeen)
	}

	writeJSON(w, http.StatusOK, appointmentListResponse{
		Appointments:       resp.Body,
		NotificationStatus: status,
	})
}

// MarkSeen records that the viewer has arrived at an appointment listing.
// The marker store dedups repeat calls within one arrival.
func (h *Handlers) MarkSeen(w http.ResponseWriter, r *http.Request) {
	role := appointment.Role(chi.URLParam(r, "role"))
	if !role.Valid() {
		writeError(w, http.StatusBadRequest, "role must be doctor or patient")
		return
	}
	listKey := doctorListKey
	if role == appointment.RolePatient {
		listKey = patientListKey
	}

	sessionKey := credentialsFrom(r.Context()).SessionKey()
	if sessionKey == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	moved, err := h.markers.MarkSeen(r.Context(), sessionKey, role, listKey, h.now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"moved": moved})
}

// ListSlots proxies the slot listing with the read-time expiry sweep applied
// and held_by_current_user derived for the caller.
func (h *Handlers) ListSlots(w http.ResponseWriter, r *http.Request) {
	auth := authFrom(r.Context())
	viewer, _ := session.Subject(auth.AccessToken)
	slots, err := h.slots.List(r.Context(), auth, viewer, filterQuery(r, slotListParams))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (h *Handlers) HoldSlot(w http.ResponseWriter, r *http.Request) {
	h.slotOp(w, r, h.slots.Hold)
}

func (h *Handlers) ReleaseSlot(w http.ResponseWriter, r *http.Request) {
	h.slotOp(w, r, h.slots.Release)
}

func (h *Handlers) BlockSlot(w http.ResponseWriter, r *http.Request) {
	h.slotOp(w, r, h.slots.Block)
}

func (h *Handlers) UnblockSlot(w http.ResponseWriter, r *http.Request) {
	h.slotOp(w, r, h.slots.Unblock)
}

func (h *Handlers) ConfirmSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := slotID(w, r)
	if !ok {
		return
	}
	appt, err := h.slots.Confirm(r.Context(), authFrom(r.Context()), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (h *Handlers) slotOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, auth backend.AuthContext, id uuid.UUID) (*slot.Slot, error)) {
	id, ok := slotID(w, r)
	if !ok {
		return
	}
	sl, err := op(r.Context(), authFrom(r.Context()), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sl)
}

func slotID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// Profile proxies.

func (h *Handlers) GetDoctorProfile(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, http.MethodGet, "/profile/doctor", nil, nil)
}

func (h *Handlers) PatchDoctorProfile(w http.ResponseWriter, r *http.Request) {
	h.patchProfile(w, r, "/profile/doctor")
}

func (h *Handlers) GetPatientProfile(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, http.MethodGet, "/profile/patient", nil, nil)
}

func (h *Handlers) PatchPatientProfile(w http.ResponseWriter, r *http.Request) {
	h.patchProfile(w, r, "/profile/patient")
}

func (h *Handlers) patchProfile(w http.ResponseWriter, r *http.Request, path string) {
	body, err := decodeBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not parse JSON")
		return
	}
	h.proxy(w, r, http.MethodPatch, path, nil, body)
}

// Password reset proxies. The reset token is backend-owned: 15-minute
// expiry, single use.

func (h *Handlers) PasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	h.forwardJSON(w, r, "/auth/password-reset/request")
}

func (h *Handlers) PasswordResetValidate(w http.ResponseWriter, r *http.Request) {
	h.forwardJSON(w, r, "/auth/password-reset/validate")
}

func (h *Handlers) PasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	h.forwardJSON(w, r, "/auth/password-reset/confirm")
}

func (h *Handlers) forwardJSON(w http.ResponseWriter, r *http.Request, path string) {
	body, err := decodeBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not parse JSON")
		return
	}
	h.proxy(w, r, http.MethodPost, path, nil, body)
}
