package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/TobiSchelling/GuideNaturel/internal/chat"
)

func (s *Server) handleIndex(c echo.Context) error {
	return c.Redirect(http.StatusFound, "/guide_naturel")
}

func (s *Server) handleGuide(c echo.Context) error {
	info := c.QueryParam("info")
	if info == "" {
		info = "default"
	}
	return c.Render(http.StatusOK, "guide_naturel.html", map[string]any{
		"Active":      "guide",
		"InitialInfo": info,
	})
}

func (s *Server) handleSearchPage(c echo.Context) error {
	return c.Render(http.StatusOK, "recherche.html", map[string]any{
		"Active": "recherche",
	})
}

func (s *Server) handleAbout(c echo.Context) error {
	return c.Render(http.StatusOK, "apropos.html", map[string]any{
		"Active": "apropos",
		"About":  aboutHTML,
	})
}

func (s *Server) handleChartData(c echo.Context) error {
	payload, err := s.charts.Payload(c.Request().Context(), c.QueryParam("info"))
	if errors.Is(err, context.DeadlineExceeded) {
		return s.handleError(c, err, KindTimeout, "Le calcul des statistiques a pris trop de temps.", http.StatusGatewayTimeout)
	}
	if err != nil {
		return s.handleError(c, err, KindUnavailable, "Les statistiques sont momentanément indisponibles.", http.StatusServiceUnavailable)
	}
	return c.JSON(http.StatusOK, payload)
}

type sendRequest struct {
	Message        *string `json:"message"`
	ConversationID string  `json:"conversation_id"`
}

func (s *Server) handleChatStart(c echo.Context) error {
	return c.JSON(http.StatusOK, s.bot.Start())
}

func (s *Server) handleChatSend(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return s.handleError(c, err, KindBadRequest, "Corps de requête invalide.", http.StatusBadRequest)
	}
	if req.Message == nil || req.ConversationID == "" {
		return s.handleDomainError(c, chat.ErrMissingInput)
	}

	reply, err := s.bot.Send(c.Request().Context(), req.ConversationID, *req.Message)
	if err != nil {
		return s.handleDomainError(c, err)
	}
	return c.JSON(http.StatusOK, reply)
}

func (s *Server) handleChatResults(c echo.Context) error {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		return s.handleError(c, err, KindBadRequest, "Le numéro de page doit être un entier.", http.StatusBadRequest)
	}

	reply, err := s.bot.Results(c.Request().Context(), c.Param("conversation_id"), page)
	if err != nil {
		return s.handleDomainError(c, err)
	}
	return c.JSON(http.StatusOK, reply)
}
