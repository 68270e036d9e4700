package server

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/TobiSchelling/GuideNaturel/internal/chat"
	"github.com/TobiSchelling/GuideNaturel/internal/search"
)

// Error kinds reported in ErrorResponse.Error.
const (
	KindBadRequest    = "bad_request"
	KindNotFound      = "not_found"
	KindNotReady      = "results_not_ready"
	KindRateLimited   = "rate_limited"
	KindTimeout       = "timeout"
	KindUnavailable   = "unavailable"
	KindInternal      = "internal"
	KindMethodInvalid = "method_not_allowed"
)

// ErrorResponse is the JSON body of every error. Error is a stable kind,
// Message is meant for the user. Raw error text only goes to the log.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

func newErrorResponse(kind, message string, code int) *ErrorResponse {
	return &ErrorResponse{
		Error:         kind,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID returns 8 random alphanumeric characters.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// handleError logs err under a fresh correlation id and writes the envelope.
func (s *Server) handleError(c echo.Context, err error, kind, message string, code int) error {
	resp := newErrorResponse(kind, message, code)

	ev := s.log.Warn()
	if code >= http.StatusInternalServerError {
		ev = s.log.Error()
	}
	ev.Err(err).
		Str("correlation_id", resp.CorrelationID).
		Str("kind", kind).
		Int("status", code).
		Str("method", c.Request().Method).
		Str("route", c.Path()).
		Str("client_ip", c.RealIP()).
		Msg(message)

	return c.JSON(code, resp)
}

// handleDomainError maps chat and search failures to HTTP statuses.
func (s *Server) handleDomainError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, chat.ErrMissingInput):
		return s.handleError(c, err, KindBadRequest, "Message ou identifiant de conversation manquant.", http.StatusBadRequest)
	case errors.Is(err, chat.ErrConversationNotFound):
		return s.handleError(c, err, KindNotFound, "Conversation introuvable ou expirée. Recommencez une nouvelle discussion.", http.StatusNotFound)
	case errors.Is(err, chat.ErrResultsNotReady):
		return s.handleError(c, err, KindNotReady, "Les résultats ne sont pas encore disponibles pour cette conversation.", http.StatusNotFound)
	case errors.Is(err, search.ErrQueryTimeout), errors.Is(err, context.DeadlineExceeded):
		return s.handleError(c, err, KindTimeout, "La recherche a pris trop de temps. Essayez des critères plus précis.", http.StatusGatewayTimeout)
	case errors.Is(err, search.ErrStoreUnavailable):
		return s.handleError(c, err, KindUnavailable, "La base de données est momentanément indisponible.", http.StatusServiceUnavailable)
	default:
		return s.handleError(c, err, KindInternal, "Une erreur interne est survenue.", http.StatusInternalServerError)
	}
}

// httpErrorHandler renders errors that escape handlers, such as unknown
// routes, with the same envelope.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	kind := KindInternal
	message := "Une erreur interne est survenue."

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		switch code {
		case http.StatusNotFound:
			kind, message = KindNotFound, "Page introuvable."
		case http.StatusMethodNotAllowed:
			kind, message = KindMethodInvalid, "Méthode non autorisée."
		case http.StatusTooManyRequests:
			kind, message = KindRateLimited, "Trop de requêtes. Patientez un instant."
		default:
			if code < http.StatusInternalServerError {
				kind, message = KindBadRequest, "Requête invalide."
			}
		}
	}

	if c.Request().Method == http.MethodHead {
		if herr := c.NoContent(code); herr != nil {
			s.log.Error().Err(herr).Msg("writing error response")
		}
		return
	}
	if herr := s.handleError(c, err, kind, message, code); herr != nil {
		s.log.Error().Err(herr).Msg("writing error response")
	}
}
