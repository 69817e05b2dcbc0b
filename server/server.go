// Package server exposes search, chat and voice over HTTP and a websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xhad/subsearch/internal/models"
	"github.com/xhad/subsearch/internal/types"
	"github.com/xhad/subsearch/pkg/search"
	"github.com/xhad/subsearch/pkg/voice"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// Message is the websocket frame in both directions. Clients send
// {"type":"chat","content":"...","session":"..."}; the server answers with
// "matches", "response" or "error".
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Session string      `json:"session,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Chatter produces an answer from retrieved matches and earlier turns.
type Chatter interface {
	Chat(ctx context.Context, query string, matches []models.MovieMatch, history []models.ChatTurn) (string, error)
}

// Sessions resolves session names and stores their turns.
type Sessions interface {
	types.HistoryStore
	GetOrCreateSession(ctx context.Context, name string) (models.Session, bool, error)
}

type Config struct {
	Addr          string
	TopK          int
	HistoryTurns  int
	RecordingsDir string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

type Server struct {
	config      Config
	searcher    types.Searcher
	chat        Chatter
	sessions    Sessions
	transcriber types.Transcriber
	logger      *zap.Logger
	engine      *gin.Engine
}

// New wires the handlers. transcriber may be nil, in which case /api/voice
// answers 503.
func New(config Config, searcher types.Searcher, chat Chatter, sessions Sessions, transcriber types.Transcriber, logger *zap.Logger) *Server {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.HistoryTurns <= 0 {
		config.HistoryTurns = 10
	}
	if config.RecordingsDir == "" {
		config.RecordingsDir = "recordings"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		config:      config,
		searcher:    searcher,
		chat:        chat,
		sessions:    sessions,
		transcriber: transcriber,
		logger:      logger,
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/ws", s.handleWebSocket)

	api := r.Group("/api")
	api.POST("/search", s.handleSearch)
	api.POST("/chat", s.handleChat)
	api.POST("/voice", s.handleVoice)
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}

// Handler returns the HTTP handler for embedding in tests or another server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", s.config.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	}
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type chatRequest struct {
	Query   string `json:"query"`
	Session string `json:"session"`
}

type chatResponse struct {
	SessionID  string              `json:"session_id,omitempty"`
	Transcript string              `json:"transcript,omitempty"`
	Response   string              `json:"response"`
	Matches    []models.MovieMatch `json:"matches"`
}

func (s *Server) handleSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.config.TopK
	}
	matches, err := s.searcher.Search(c.Request.Context(), req.Query, topK)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	resp, err := s.answer(c.Request.Context(), req.Session, req.Query)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleVoice(c *gin.Context) {
	if s.transcriber == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "voice input not configured"})
		return
	}
	fh, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing audio file"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.handleError(c, err)
		return
	}
	defer f.Close()

	wav, err := voice.SaveRecording(s.config.RecordingsDir, f)
	if err != nil {
		s.handleError(c, err)
		return
	}
	ctx := c.Request.Context()
	transcript, err := s.transcriber.Transcribe(ctx, wav)
	if err != nil {
		s.handleError(c, err)
		return
	}

	resp, err := s.answer(ctx, c.PostForm("session"), transcript)
	if err != nil {
		s.handleError(c, err)
		return
	}
	resp.Transcript = transcript
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleError(c *gin.Context, err error) {
	s.logger.Warn("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))

	switch {
	case errors.Is(err, search.ErrEmptyQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, voice.ErrEmptyTranscript):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// answer runs one chat turn: retrieve, replay the session, generate, persist.
// An empty session name runs without history.
func (s *Server) answer(ctx context.Context, sessionName, query string) (chatResponse, error) {
	var resp chatResponse
	matches, err := s.searcher.Search(ctx, query, s.config.TopK)
	if err != nil {
		return resp, err
	}
	resp.Matches = matches

	var history []models.ChatTurn
	sessionName = strings.TrimSpace(sessionName)
	if sessionName != "" && s.sessions != nil {
		session, _, err := s.sessions.GetOrCreateSession(ctx, sessionName)
		if err != nil {
			return resp, err
		}
		resp.SessionID = session.ID
		history, err = s.sessions.Load(ctx, session.ID, s.config.HistoryTurns)
		if err != nil {
			return resp, err
		}
	}

	answer, err := s.chat.Chat(ctx, query, matches, history)
	if err != nil {
		return resp, err
	}
	resp.Response = answer

	if resp.SessionID != "" {
		turn := models.ChatTurn{
			SessionID: resp.SessionID,
			Query:     query,
			Response:  answer,
			CreatedAt: time.Now(),
		}
		if err := s.sessions.Save(ctx, turn); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	ctx := c.Request.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendMessage(conn, &writeMu, Message{Type: "error", Content: "invalid message"})
			continue
		}
		s.handleMessage(ctx, conn, &writeMu, msg)
	}
}

func (s *Server) handleMessage(ctx context.Context, conn *websocket.Conn, mu *sync.Mutex, msg Message) {
	switch msg.Type {
	case "", "chat":
	case "ping":
		s.sendMessage(conn, mu, Message{Type: "pong"})
		return
	default:
		s.sendMessage(conn, mu, Message{Type: "error", Content: fmt.Sprintf("unknown message type %q", msg.Type)})
		return
	}

	resp, err := s.answer(ctx, msg.Session, msg.Content)
	if err != nil {
		s.sendMessage(conn, mu, Message{Type: "error", Content: fmt.Sprintf("Error: %v", err)})
		return
	}
	s.sendMessage(conn, mu, Message{Type: "matches", Session: resp.SessionID, Data: resp.Matches})
	s.sendMessage(conn, mu, Message{Type: "response", Session: resp.SessionID, Content: resp.Response})
}

func (s *Server) sendMessage(conn *websocket.Conn, mu *sync.Mutex, msg Message) {
	mu.Lock()
	defer mu.Unlock()
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn("websocket write failed", zap.Error(err))
	}
}
