package notification

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nao1215/crmhub/pkg/config"
	"github.com/nao1215/crmhub/pkg/event"
	"github.com/nao1215/crmhub/pkg/httpclient"
	"github.com/nao1215/crmhub/pkg/middleware"
)

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store は通知テーブルへのアクセスを提供する。
	store *Store
	// db はSQLiteデータベース接続。
	db *sqlx.DB
	// eventStoreClient はEvent Storeサービスへの通信クライアント。
	eventStoreClient *httpclient.Client
}

// NewServer は新しい通知サーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(cfg *config.Notification) (*Server, error) {
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
		router:           router,
		port:             cfg.Port,
		store:            NewStore(db),
		db:               db,
		eventStoreClient: httpclient.New(cfg.EventStoreURL),
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// Gatewayで認証済みのリクエストを受けるため、X-User-IDヘッダーで認可する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	api.Use(middleware.InternalAuth())
	{
		notifications := api.Group("/notifications")
		{
			// 通知一覧取得
			notifications.GET("", s.handleList())
			// 未読通知一覧取得
			notifications.GET("/unread", s.handleListUnread())
			// 通知を既読にする
			notifications.PUT("/:id/read", s.handleMarkAsRead())
			// 全通知を既読にする
			notifications.PUT("/read-all", s.handleMarkAllAsRead())
		}

		// 内部API - タスクサービスのファンアウト配信から呼び出される
		internal := api.Group("/internal")
		{
			// 重複チェック用の検索
			internal.GET("/notifications", s.handleInternalFind())
			// 通知レコードの作成
			internal.POST("/notifications", s.handleInternalCreate())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "notification"})
	})
}

// notificationResponse は通知のJSONレスポンス構造。
type notificationResponse struct {
	// ID は通知の一意識別子。
	ID string `json:"id"`
	// RecipientUID は通知先のユーザーID。
	RecipientUID string `json:"recipient_uid"`
	// Message は通知メッセージ本文。
	Message string `json:"message"`
	// RelatedTaskID は通知の発生元タスクID。
	RelatedTaskID string `json:"related_task_id"`
	// IsRead は通知の既読状態。
	IsRead bool `json:"is_read"`
	// CreatedAt は通知の作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// toNotificationResponse はDB行をJSONレスポンスに変換する。
func toNotificationResponse(n Notification) notificationResponse {
	return notificationResponse{
		ID:            n.ID,
		RecipientUID:  n.RecipientUID,
		Message:       n.Message,
		RelatedTaskID: n.RelatedTaskID,
		IsRead:        n.IsRead,
		CreatedAt:     n.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// toNotificationResponses はDB行のスライスをJSONレスポンスのスライスに変換する。
func toNotificationResponses(notifications []Notification) []notificationResponse {
	responses := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		responses = append(responses, toNotificationResponse(n))
	}
	return responses
}

// handleList は認証済みユーザーの通知一覧を返すハンドラ。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		notifications, err := s.store.ListByRecipient(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知一覧の取得に失敗しました"})
			log.Printf("通知一覧取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toNotificationResponses(notifications))
	}
}

// handleListUnread は認証済みユーザーの未読通知一覧を返すハンドラ。
func (s *Server) handleListUnread() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		notifications, err := s.store.ListUnread(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "未読通知一覧の取得に失敗しました"})
			log.Printf("未読通知一覧取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toNotificationResponses(notifications))
	}
}

// handleMarkAsRead は指定された通知を既読にするハンドラ。
func (s *Server) handleMarkAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		notificationID := c.Param("id")

		// 通知の存在確認と所有者チェック
		n, err := s.store.GetByID(c.Request.Context(), notificationID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "通知が見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の取得に失敗しました"})
			log.Printf("通知取得エラー: %v", err)
			return
		}

		if n.RecipientUID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "この通知を操作する権限がありません"})
			return
		}

		if err := s.store.MarkRead(c.Request.Context(), notificationID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の既読処理に失敗しました"})
			log.Printf("通知既読処理エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "通知を既読にしました"})
	}
}

// handleMarkAllAsRead は認証済みユーザーの全通知を既読にするハンドラ。
func (s *Server) handleMarkAllAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		if err := s.store.MarkAllRead(c.Request.Context(), userID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "全通知の既読処理に失敗しました"})
			log.Printf("全通知既読処理エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "全通知を既読にしました"})
	}
}

// handleInternalFind はタスクIDとメッセージ本文が一致する通知を検索するハンドラ。
// タスク作成通知の重複排除チェックに使用する。見つからない場合は404を返す。
func (s *Server) handleInternalFind() gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID := c.Query("task_id")
		message := c.Query("message")
		if taskID == "" || message == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "task_idとmessageクエリパラメータが必要です"})
			return
		}

		n, err := s.store.FindByTaskAndMessage(c.Request.Context(), taskID, message)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "通知が見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の検索に失敗しました"})
			log.Printf("通知検索エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toNotificationResponse(n))
	}
}

// createRequest は通知作成リクエストのJSON構造。
type createRequest struct {
	// RecipientUID は通知先のユーザーID。
	RecipientUID string `json:"recipient_uid" binding:"required"`
	// Message は通知メッセージ本文。
	Message string `json:"message" binding:"required"`
	// RelatedTaskID は通知の発生元タスクID。
	RelatedTaskID string `json:"related_task_id" binding:"required"`
}

// appendEventRequest はEvent Storeへのイベント追記リクエストのJSON構造。
type appendEventRequest struct {
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType string `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType string `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
}

// handleInternalCreate は通知レコードを作成しNotificationSentイベントを発行するハンドラ。
// 内部API（タスクサービスのファンアウト配信から呼び出される）。
func (s *Server) handleInternalCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		n := Notification{
			ID:            uuid.New().String(),
			RecipientUID:  req.RecipientUID,
			Message:       req.Message,
			RelatedTaskID: req.RelatedTaskID,
			IsRead:        false,
			CreatedAt:     time.Now().UTC(),
		}

		if err := s.store.Insert(c.Request.Context(), n); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の作成に失敗しました"})
			log.Printf("通知作成エラー: %v", err)
			return
		}

		// NotificationSentイベントをEvent Storeに送信
		eventData := event.NotificationSentData{
			RecipientUID:  req.RecipientUID,
			Message:       req.Message,
			RelatedTaskID: req.RelatedTaskID,
		}

		jsonData, err := json.Marshal(eventData)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "イベントデータのシリアライズに失敗しました"})
			log.Printf("イベントデータシリアライズエラー: %v", err)
			return
		}

		eventReq := appendEventRequest{
			AggregateID:   fmt.Sprintf("notification-%s", n.ID),
			AggregateType: string(event.AggregateTypeUser),
			EventType:     string(event.TypeNotificationSent),
			Data:          jsonData,
		}

		var eventResp map[string]any
		if err := s.eventStoreClient.PostJSON(c.Request.Context(), "/api/v1/events", eventReq, &eventResp); err != nil {
			// イベント送信に失敗してもログに記録し、通知自体は成功として扱う
			log.Printf("NotificationSentイベントの送信に失敗: %v", err)
		}

		c.JSON(http.StatusCreated, toNotificationResponse(n))
	}
}
