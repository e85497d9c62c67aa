package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Patelhetu-177/SkillSphere/internal/auth"
	"github.com/Patelhetu-177/SkillSphere/internal/chat"
	"github.com/Patelhetu-177/SkillSphere/internal/documents"
	"github.com/Patelhetu-177/SkillSphere/internal/quiz"
)

type chatBody struct {
	Prompt string `json:"prompt"`
	Lang   string `json:"lang"`
}

type submitBody struct {
	Answers []string `json:"answers"`
}

type queryBody struct {
	Question   string `json:"question"`
	DocumentID string `json:"documentId"`
}

func identity(c *gin.Context) auth.Identity {
	id, _ := auth.FromContext(c.Request.Context())
	return id
}

// respondError writes the JSON error for err.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, documents.ErrValidation):
		err = fmt.Errorf("%w: %v", chat.ErrValidation, err)
	case errors.Is(err, documents.ErrNotFound):
		err = fmt.Errorf("%w: %v", chat.ErrNotFound, err)
	case errors.Is(err, quiz.ErrValidation):
		err = fmt.Errorf("%w: %v", chat.ErrValidation, err)
	case errors.Is(err, quiz.ErrNotFound):
		err = fmt.Errorf("%w: %v", chat.ErrNotFound, err)
	case errors.Is(err, quiz.ErrUnavailable):
		err = &chat.UpstreamError{Op: "generate quiz", Status: http.StatusServiceUnavailable, Err: err}
	}
	status, msg := chat.StatusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.Request.URL.Path, "status", status, "error", err.Error())
	} else {
		slog.Warn("request rejected", "path", c.Request.URL.Path, "status", status, "error", err.Error())
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, fmt.Errorf("%w: malformed body: %v", chat.ErrValidation, err))
		return false
	}
	return true
}

// streamWriter commits the 200 status and streaming headers on the first token only, so
// failures before any output can still be reported as JSON.
type streamWriter struct {
	c       *gin.Context
	started bool
}

func (w *streamWriter) Write(p []byte) (int, error) {
	if !w.started {
		h := w.c.Writer.Header()
		h.Set("Content-Type", "text/plain; charset=utf-8")
		h.Set("Cache-Control", "no-cache")
		h.Set("X-Accel-Buffering", "no")
		w.c.Status(http.StatusOK)
		w.started = true
	}
	return w.c.Writer.Write(p)
}

func (w *streamWriter) Flush() {
	w.c.Writer.Flush()
}

func (s *Server) handleChat(c *gin.Context) {
	var body chatBody
	if !bindJSON(c, &body) {
		return
	}
	id := identity(c)

	w := &streamWriter{c: c}
	err := s.deps.Chat.Chat(c.Request.Context(), chat.Request{
		ConversationID: c.Param("conversationId"),
		Prompt:         body.Prompt,
		Language:       body.Lang,
		UserID:         id.UserID,
		UserName:       id.UserName,
		Route:          c.Request.URL.Path,
	}, w)
	if err == nil {
		return
	}
	if !w.started {
		respondError(c, err)
		return
	}
	slog.Error("chat stream aborted", "conversation_id", c.Param("conversationId"), "error", err.Error())
	panic(http.ErrAbortHandler)
}

func (s *Server) handleMessages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	msgs, err := s.deps.Chat.Messages(c.Request.Context(), identity(c).UserID, c.Param("conversationId"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (s *Server) handleDeleteMessage(c *gin.Context) {
	if err := s.deps.Chat.DeleteMessage(c.Request.Context(), identity(c).UserID, c.Param("messageId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("messageId")})
}

func (s *Server) handleCreatePersona(c *gin.Context) {
	var in chat.PersonaInput
	if !bindJSON(c, &in) {
		return
	}
	p, err := s.deps.Personas.Create(c.Request.Context(), identity(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) handleListPersonas(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	personas, err := s.deps.Personas.List(c.Request.Context(), c.Query("name"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, personas)
}

func (s *Server) handleGetPersona(c *gin.Context) {
	p, err := s.deps.Personas.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleUpdatePersona(c *gin.Context) {
	var in chat.PersonaInput
	if !bindJSON(c, &in) {
		return
	}
	p, err := s.deps.Personas.Update(c.Request.Context(), identity(c), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleDeletePersona(c *gin.Context) {
	if err := s.deps.Personas.Delete(c.Request.Context(), identity(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleIngestDocument(c *gin.Context) {
	var in documents.IngestInput
	if !bindJSON(c, &in) {
		return
	}
	doc, err := s.deps.Documents.Ingest(c.Request.Context(), identity(c).UserID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(c *gin.Context) {
	docs, err := s.deps.Documents.List(c.Request.Context(), identity(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

func (s *Server) handleQueryDocument(c *gin.Context) {
	var body queryBody
	if !bindJSON(c, &body) {
		return
	}
	ans, err := s.deps.Documents.Query(c.Request.Context(), identity(c).UserID, body.DocumentID, body.Question)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ans)
}

func (s *Server) handleGetDocument(c *gin.Context) {
	doc, err := s.deps.Documents.Get(c.Request.Context(), identity(c).UserID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleUpdateDocument(c *gin.Context) {
	var in documents.UpdateInput
	if !bindJSON(c, &in) {
		return
	}
	doc, err := s.deps.Documents.Update(c.Request.Context(), identity(c).UserID, c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(c *gin.Context) {
	if err := s.deps.Documents.Delete(c.Request.Context(), identity(c).UserID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleGenerateQuiz(c *gin.Context) {
	var in quiz.GenerateInput
	if !bindJSON(c, &in) {
		return
	}
	id := identity(c)
	q, err := s.deps.Quiz.Generate(c.Request.Context(), id.UserID, id.UserName, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

func (s *Server) handleGetQuiz(c *gin.Context) {
	q, err := s.deps.Quiz.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (s *Server) handleSubmitQuiz(c *gin.Context) {
	var body submitBody
	if !bindJSON(c, &body) {
		return
	}
	res, err := s.deps.Quiz.Submit(c.Request.Context(), identity(c).UserID, c.Param("id"), body.Answers)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleQuizHistory(c *gin.Context) {
	list, err := s.deps.Quiz.History(c.Request.Context(), identity(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handlePopularQuizzes(c *gin.Context) {
	list, err := s.deps.Quiz.Popular(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleSimilarQuestions(c *gin.Context) {
	var in quiz.SimilarInput
	if !bindJSON(c, &in) {
		return
	}
	results, err := s.deps.Quiz.Similar(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": in.Text, "results": results})
}
