package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/haven-id/haven-id/internal/account"
	"github.com/haven-id/haven-id/internal/observability"
	"github.com/haven-id/haven-id/internal/platform/httpx"
	"github.com/haven-id/haven-id/internal/profile"
	"github.com/haven-id/haven-id/internal/shared"
)

// Mailer delivers token links out of band.
type Mailer interface {
	SendVerification(ctx context.Context, email, rawToken string) error
	SendLoginLink(ctx context.Context, email, rawToken string) error
	SendPasswordReset(ctx context.Context, email, rawToken string) error
}

// Handler wires HTTP endpoints for the authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	mailer         Mailer
	metrics        *observability.Metrics
	audit          *shared.AuditLogger
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance. metrics and audit may be nil.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager, mailer Mailer, metrics *observability.Metrics, audit *shared.AuditLogger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		mailer:         mailer,
		metrics:        metrics,
		audit:          audit,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	// Credential-bearing endpoints get a tighter per-IP budget than the
	// global limiter.
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
		r.Post("/login-link", h.handleLoginLinkRequest)
		r.Post("/password-reset", h.handlePasswordResetRequest)
		r.Post("/password-reset/confirm", h.handlePasswordResetConfirm)
	})
	r.Get("/verify", h.handleVerify)
	r.Get("/login-link/consume", h.handleLoginLinkConsume)
	r.Get("/csrf", h.handleCSRF)
	r.Get("/me", h.handleMe)
	r.Post("/logout", h.handleLogout)
	r.Post("/close", h.handleClose)
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetConfirmRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type closeRequest struct {
	Password string `json:"password" validate:"required"`
}

type accountResponse struct {
	ID     int64  `json:"id"`
	Email  string `json:"email"`
	Status string `json:"status"`
}

func toAccountResponse(acct *account.Account) accountResponse {
	return accountResponse{ID: acct.ID, Email: acct.Email, Status: string(acct.Status)}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if errs := h.validate(req); len(errs) > 0 {
		httpx.Unprocessable(w, errs)
		return
	}

	reg, err := h.service.Register(r.Context(), req.Email, req.Password, map[string]string{profile.FieldName: req.Name})
	if err != nil {
		h.logRejected("register", err)
		httpx.RespondError(w, err)
		return
	}

	if err := h.mailer.SendVerification(r.Context(), reg.Account.Email, reg.VerificationToken); err != nil {
		// The account exists either way; the link can be re-requested.
		h.logger.Warn("enqueue verification mail", slog.Any("error", err))
	}
	h.metrics.RecordRegistration()
	h.recordAudit(r.Context(), reg.Account.ID, shared.AuditAccountRegister, nil)
	httpx.JSON(w, http.StatusCreated, toAccountResponse(reg.Account))
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	acct, err := h.service.Verify(r.Context(), raw)
	if err != nil {
		h.logRejected("verify", err)
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r.Context(), acct.ID, shared.AuditAccountVerify, nil)
	httpx.JSON(w, http.StatusOK, toAccountResponse(acct))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if errs := h.validate(req); len(errs) > 0 {
		httpx.Unprocessable(w, errs)
		return
	}

	acct, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.metrics.RecordLoginFailure()
		h.logRejected("login", err)
		httpx.RespondError(w, err)
		return
	}

	h.establishSession(w, r, acct, "password")
}

func (h *Handler) handleLoginLinkRequest(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if errs := h.validate(req); len(errs) > 0 {
		httpx.Unprocessable(w, errs)
		return
	}

	raw, acct, err := h.service.RequestLoginLink(r.Context(), req.Email)
	if err == nil {
		if err := h.mailer.SendLoginLink(r.Context(), acct.Email, raw); err != nil {
			h.logger.Warn("enqueue login link mail", slog.Any("error", err))
		}
	} else {
		// The response must not reveal whether the email is registered.
		h.logRejected("login-link", err)
	}
	h.accepted(w)
}

func (h *Handler) handleLoginLinkConsume(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	acct, err := h.service.ConsumeLoginLink(r.Context(), raw)
	if err != nil {
		h.metrics.RecordLoginFailure()
		h.logRejected("login-link-consume", err)
		httpx.RespondError(w, err)
		return
	}

	h.establishSession(w, r, acct, "link")
}

func (h *Handler) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if errs := h.validate(req); len(errs) > 0 {
		httpx.Unprocessable(w, errs)
		return
	}

	raw, acct, err := h.service.RequestPasswordReset(r.Context(), req.Email)
	if err == nil {
		if err := h.mailer.SendPasswordReset(r.Context(), acct.Email, raw); err != nil {
			h.logger.Warn("enqueue reset mail", slog.Any("error", err))
		}
	} else {
		h.logRejected("password-reset", err)
	}
	h.accepted(w)
}

func (h *Handler) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if errs := h.validate(req); len(errs) > 0 {
		httpx.Unprocessable(w, errs)
		return
	}

	acct, err := h.service.ConfirmPasswordReset(r.Context(), req.Token, req.Password)
	if err != nil {
		h.logRejected("password-reset-confirm", err)
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r.Context(), acct.ID, shared.AuditPasswordReset, nil)
	httpx.JSON(w, http.StatusOK, toAccountResponse(acct))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.currentAccountID(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	acct, prof, err := h.service.Me(r.Context(), accountID)
	if err != nil {
		h.logger.Error("resolve current account", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	payload := map[string]any{"account": toAccountResponse(acct)}
	if prof != nil {
		payload["profile"] = map[string]any{"name": prof.Name}
	}
	httpx.JSON(w, http.StatusOK, payload)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if sess.ID != "" {
			if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
				h.logger.Warn("remove session", slog.Any("error", err))
			}
		}
		if id, err := strconv.ParseInt(sess.AccountID(), 10, 64); err == nil {
			h.recordAudit(r.Context(), id, shared.AuditSessionLogout, nil)
		}
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.currentAccountID(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	var req closeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if errs := h.validate(req); len(errs) > 0 {
		httpx.Unprocessable(w, errs)
		return
	}

	acct, err := h.service.Close(r.Context(), accountID, req.Password)
	if err != nil {
		h.logRejected("close", err)
		httpx.RespondError(w, err)
		return
	}

	if err := h.sessionManager.DestroyAllForAccount(r.Context(), strconv.FormatInt(accountID, 10)); err != nil {
		h.logger.Warn("revoke account sessions", slog.Any("error", err))
	}
	if err := h.service.RemoveAccountSessions(r.Context(), accountID); err != nil {
		h.logger.Warn("delete account session records", slog.Any("error", err))
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}

	h.metrics.RecordClosure()
	h.recordAudit(r.Context(), acct.ID, shared.AuditAccountClose, nil)
	httpx.JSON(w, http.StatusOK, toAccountResponse(acct))
}

func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

// establishSession binds the session to the account and records the login.
// Callers guarantee the account status is verified.
func (h *Handler) establishSession(w http.ResponseWriter, r *http.Request, acct *account.Account, method string) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sess.BindAccount(strconv.FormatInt(acct.ID, 10))

	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RecordSession(r.Context(), sess.ID, acct.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("record session", slog.Any("error", err))
	}

	h.metrics.RecordLogin(method)
	h.recordAudit(r.Context(), acct.ID, shared.AuditSessionLogin, map[string]any{"method": method})
	httpx.JSON(w, http.StatusOK, toAccountResponse(acct))
}

func (h *Handler) currentAccountID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.AccountID() == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(sess.AccountID(), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (h *Handler) validate(req any) httpx.FieldErrors {
	err := h.validator.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return httpx.FieldErrors{"general": "invalid request"}
	}
	errs := make(httpx.FieldErrors, len(verrs))
	for _, fieldErr := range verrs {
		errs[strings.ToLower(fieldErr.Field())] = validationMessage(fieldErr)
	}
	return errs
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must be present"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}

func (h *Handler) accepted(w http.ResponseWriter) {
	httpx.JSON(w, http.StatusAccepted, map[string]string{
		"message": "if the account exists, an email is on its way",
	})
}

func (h *Handler) logRejected(flow string, err error) {
	if shared.IsUserFacing(err) {
		h.logger.Debug("flow rejected", slog.String("flow", flow), slog.Any("reason", err))
		return
	}
	h.logger.Error("flow failed", slog.String("flow", flow), slog.Any("error", err))
}

func (h *Handler) recordAudit(ctx context.Context, accountID int64, action string, meta map[string]any) {
	if err := h.audit.Record(ctx, shared.AuditLog{AccountID: accountID, Action: action, Meta: meta}); err != nil {
		h.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
