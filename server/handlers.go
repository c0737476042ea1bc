package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/agentflow/agent"
	"github.com/hupe1980/agentflow/core"
)

// ChatRequest is the body of POST /api/v1/chat. Omitted stage toggles keep
// the orchestrator defaults.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	UseRAG    *bool  `json:"use_rag,omitempty"`
	UseTools  *bool  `json:"use_tools,omitempty"`
	Evaluate  *bool  `json:"evaluate,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// DocumentInput is one document of POST /api/v1/documents.
type DocumentInput struct {
	Content  string         `json:"content"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DocumentsRequest is the body of POST /api/v1/documents.
type DocumentsRequest struct {
	Documents []DocumentInput `json:"documents"`
}

// DocumentsResponse reports an ingestion.
type DocumentsResponse struct {
	Success       bool   `json:"success"`
	DocumentCount int    `json:"document_count"`
	Message       string `json:"message"`
}

// HistoryResponse is returned by GET /api/v1/sessions/:id/history.
type HistoryResponse struct {
	SessionID string             `json:"session_id"`
	History   []core.Interaction `json:"history"`
}

func errorJSON(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"error": msg})
}

func (s *Server) chat(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxChatBytes)

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorJSON(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", s.opts.MaxChatBytes))
			return
		}
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		errorJSON(c, http.StatusBadRequest, "message must not be empty")
		return
	}

	resp, err := s.svc.ProcessQuery(c.Request.Context(), req.Message, func(q *agent.QueryOptions) {
		q.SessionID = req.SessionID
		if req.UseRAG != nil {
			q.UseRetrieval = *req.UseRAG
		}
		if req.UseTools != nil {
			q.UseTools = *req.UseTools
		}
		if req.Evaluate != nil {
			q.Evaluate = *req.Evaluate
		}
		q.MaxTokens = req.MaxTokens
	})
	if err != nil {
		if errors.Is(err, agent.ErrEmptyQuery) {
			errorJSON(c, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("http.chat.failed", "session_id", req.SessionID, "stage", agent.StageOf(err), "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "stage": agent.StageOf(err)})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) addDocuments(c *gin.Context) {
	var req DocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Documents) == 0 {
		errorJSON(c, http.StatusBadRequest, "documents must not be empty")
		return
	}

	docs := make([]core.Document, 0, len(req.Documents))
	for i, d := range req.Documents {
		if strings.TrimSpace(d.Content) == "" {
			errorJSON(c, http.StatusBadRequest, fmt.Sprintf("documents[%d]: content must not be empty", i))
			return
		}
		docs = append(docs, core.Document{Content: d.Content, Source: d.Source, Metadata: d.Metadata})
	}

	s.ingest(c, docs)
}

func (s *Server) uploadDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		errorJSON(c, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		errorJSON(c, http.StatusBadRequest, "no files uploaded")
		return
	}

	docs := make([]core.Document, 0, len(files))
	for _, fh := range files {
		if fh.Size > s.opts.MaxUploadBytes {
			errorJSON(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("%s exceeds %d bytes", fh.Filename, s.opts.MaxUploadBytes))
			return
		}
		f, err := fh.Open()
		if err != nil {
			errorJSON(c, http.StatusBadRequest, fmt.Sprintf("open %s: %v", fh.Filename, err))
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, s.opts.MaxUploadBytes))
		_ = f.Close()
		if err != nil {
			errorJSON(c, http.StatusBadRequest, fmt.Sprintf("read %s: %v", fh.Filename, err))
			return
		}
		if !utf8.Valid(data) {
			errorJSON(c, http.StatusBadRequest, fmt.Sprintf("%s is not valid UTF-8 text", fh.Filename))
			return
		}
		docs = append(docs, core.Document{
			Content: string(data),
			Source:  fh.Filename,
			Metadata: map[string]any{
				"content_type": fh.Header.Get("Content-Type"),
				"size":         fh.Size,
			},
		})
	}

	s.ingest(c, docs)
}

func (s *Server) ingest(c *gin.Context, docs []core.Document) {
	ok, err := s.svc.AddDocuments(c.Request.Context(), docs)
	if err != nil {
		s.logger.Error("http.documents.failed", "count", len(docs), "error", err.Error())
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, DocumentsResponse{
		Success:       ok,
		DocumentCount: len(docs),
		Message:       fmt.Sprintf("Added %d documents", len(docs)),
	})
}

func (s *Server) history(c *gin.Context) {
	id := c.Param("id")
	limit := s.opts.DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errorJSON(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	history, err := s.svc.GetHistory(c.Request.Context(), id, limit)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, HistoryResponse{SessionID: id, History: history})
}

func (s *Server) clearSession(c *gin.Context) {
	id := c.Param("id")
	cleared, err := s.svc.ClearHistory(c.Request.Context(), id)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "cleared": cleared})
}

func (s *Server) tools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": s.svc.ListTools()})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.HealthCheck(c.Request.Context()))
}
