package eventstore

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nao1215/crmhub/pkg/config"
	"github.com/nao1215/crmhub/pkg/middleware"
)

// Server はイベントストアサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store はイベントテーブルへのアクセスを提供する。
	store *Store
	// db はSQLiteデータベース接続。
	db *sqlx.DB
}

// NewServer は新しいイベントストアサーバーを生成する。
func NewServer(cfg *config.EventStore) (*Server, error) {
	db, err := sqlx.Open("sqlite", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(db); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router: router,
		port:   cfg.Port,
		store:  NewStore(db),
		db:     db,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	{
		events := api.Group("/events")
		{
			// 全イベント取得（Read Model再構築用）
			events.GET("", s.handleListEvents())
			// イベントの追記
			events.POST("", s.handleAppendEvent())
			// AggregateIDによるイベント取得
			events.GET("/aggregate/:aggregate_id", s.handleGetEventsByAggregateID())
			// イベントタイプによるイベント取得
			events.GET("/type/:event_type", s.handleGetEventsByType())
			// 日時指定によるイベント取得（クエリパラメータ: since）
			events.GET("/since", s.handleGetEventsSince())
			// AggregateIDの最新バージョン取得
			events.GET("/aggregate/:aggregate_id/version", s.handleGetLatestVersion())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "eventstore"})
	})
}

// eventResponse はイベントのJSONレスポンス構造。
type eventResponse struct {
	// ID はイベントの一意識別子。
	ID string `json:"id"`
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType string `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType string `json:"event_type"`
	// Data はイベント固有のデータ（JSON文字列）。
	Data string `json:"data"`
	// Version はAggregate内でのイベントの順序番号。
	Version int64 `json:"version"`
	// CreatedAt はイベントが作成された日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// toEventResponse はDB行をJSONレスポンスに変換する。
func toEventResponse(ev StoredEvent) eventResponse {
	return eventResponse{
		ID:            ev.ID,
		AggregateID:   ev.AggregateID,
		AggregateType: ev.AggregateType,
		EventType:     ev.EventType,
		Data:          ev.Data,
		Version:       ev.Version,
		CreatedAt:     ev.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// toEventResponses はDB行のスライスをJSONレスポンスのスライスに変換する。
func toEventResponses(events []StoredEvent) []eventResponse {
	responses := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		responses = append(responses, toEventResponse(ev))
	}
	return responses
}

// appendRequest はイベント追記リクエストのJSON構造。
type appendRequest struct {
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregate_id" binding:"required"`
	// AggregateType は対象エンティティの種類。
	AggregateType string `json:"aggregate_type" binding:"required"`
	// EventType はイベントの種類。
	EventType string `json:"event_type" binding:"required"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data" binding:"required"`
}

// handleAppendEvent はイベントの追記を処理するハンドラを返す。
// バージョンはイベントストア側で採番する。
func (s *Server) handleAppendEvent() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req appendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		ev, err := s.store.Append(c.Request.Context(), StoredEvent{
			ID:            uuid.New().String(),
			AggregateID:   req.AggregateID,
			AggregateType: req.AggregateType,
			EventType:     req.EventType,
			Data:          string(req.Data),
			CreatedAt:     time.Now().UTC(),
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "イベントの追記に失敗しました"})
			log.Printf("イベント追記エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, toEventResponse(ev))
	}
}

// handleListEvents は全イベントの取得を処理するハンドラを返す。
func (s *Server) handleListEvents() gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := s.store.ListAll(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "イベントの取得に失敗しました"})
			log.Printf("全イベント取得エラー: %v", err)
			return
		}
		c.JSON(http.StatusOK, toEventResponses(events))
	}
}

// handleGetEventsByAggregateID はAggregateIDによるイベント取得を処理するハンドラを返す。
func (s *Server) handleGetEventsByAggregateID() gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := s.store.ListByAggregateID(c.Request.Context(), c.Param("aggregate_id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "イベントの取得に失敗しました"})
			log.Printf("Aggregateイベント取得エラー: %v", err)
			return
		}
		c.JSON(http.StatusOK, toEventResponses(events))
	}
}

// handleGetEventsByType はイベントタイプによるイベント取得を処理するハンドラを返す。
func (s *Server) handleGetEventsByType() gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := s.store.ListByType(c.Request.Context(), c.Param("event_type"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "イベントの取得に失敗しました"})
			log.Printf("タイプ別イベント取得エラー: %v", err)
			return
		}
		c.JSON(http.StatusOK, toEventResponses(events))
	}
}

// handleGetEventsSince は日時指定によるイベント取得を処理するハンドラを返す。
func (s *Server) handleGetEventsSince() gin.HandlerFunc {
	return func(c *gin.Context) {
		sinceStr := c.Query("since")
		if sinceStr == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sinceクエリパラメータが必要です"})
			return
		}

		since, err := time.Parse(time.RFC3339Nano, sinceStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sinceはRFC3339形式で指定してください"})
			return
		}

		events, err := s.store.ListSince(c.Request.Context(), since.UTC())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "イベントの取得に失敗しました"})
			log.Printf("日時指定イベント取得エラー: %v", err)
			return
		}
		c.JSON(http.StatusOK, toEventResponses(events))
	}
}

// handleGetLatestVersion はAggregateIDの最新バージョン取得を処理するハンドラを返す。
func (s *Server) handleGetLatestVersion() gin.HandlerFunc {
	return func(c *gin.Context) {
		aggregateID := c.Param("aggregate_id")
		version, err := s.store.LatestVersion(c.Request.Context(), aggregateID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "最新バージョンの取得に失敗しました"})
			log.Printf("最新バージョン取得エラー: %v", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"aggregate_id": aggregateID, "version": version})
	}
}
