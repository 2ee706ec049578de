package task

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
	"golang.org/x/text/language"
	_ "modernc.org/sqlite"

	"github.com/nao1215/crmhub/internal/fanout"
	"github.com/nao1215/crmhub/pkg/config"
	"github.com/nao1215/crmhub/pkg/event"
	"github.com/nao1215/crmhub/pkg/httpclient"
	"github.com/nao1215/crmhub/pkg/middleware"
)

// Server はタスクサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store はタスクテーブルへのアクセスを提供する。
	store *Store
	// db はSQLiteデータベース接続。
	db *sqlx.DB
	// dispatcher は通知ファンアウトの実行器。
	dispatcher *fanout.Dispatcher
	// directory は表示名キャッシュ。担当者情報の変更時に無効化できるよう保持する。
	directory *fanout.CachedDirectory
	// eventClient はEvent StoreへのHTTPクライアント。
	eventClient *httpclient.Client
}

// NewServer は新しいタスクサーバーを生成する。
// SQLiteデータベースの初期化とファンアウト配線を行う。
func NewServer(cfg *config.Task) (*Server, error) {
	db, err := sqlx.Open("sqlite", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(db); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	// 通知文面の言語。不正なタグはComposer側で英語に縮退する。
	lang, err := language.Parse(cfg.NotifyLanguage)
	if err != nil {
		log.Printf("通知言語 %q の解析に失敗したため英語を使用します: %v", cfg.NotifyLanguage, err)
		lang = language.English
	}

	directory := fanout.NewCachedDirectory(
		&directoryClient{client: httpclient.New(cfg.GatewayURL)},
		cfg.DirectoryCacheTTL,
		cfg.DirectoryCacheSize,
	)
	dispatcher := fanout.NewDispatcher(
		&notificationClient{client: httpclient.New(cfg.NotificationServiceURL)},
		directory,
		&referenceClient{
			customer: httpclient.New(cfg.CustomerServiceURL),
			sales:    httpclient.New(cfg.SalesServiceURL),
		},
		fanout.NewComposer(lang),
	)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:      router,
		port:        cfg.Port,
		store:       NewStore(db),
		db:          db,
		dispatcher:  dispatcher,
		directory:   directory,
		eventClient: httpclient.New(cfg.EventStoreURL),
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
		tasks := api.Group("/tasks")
		{
			// タスクの作成
			tasks.POST("", s.handleCreate())
			// タスク一覧取得（クエリパラメータ: assigned_to）
			tasks.GET("", s.handleList())
			// タスクの取得
			tasks.GET("/:id", s.handleGet())
			// タスクの更新
			tasks.PUT("/:id", s.handleUpdate())
			// タスクの削除（削除したレコードを返す）
			tasks.DELETE("/:id", s.handleDelete())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "task"})
	})
}

// taskResponse はタスクのJSONレスポンス構造。
type taskResponse struct {
	// ID はタスクの一意識別子。
	ID string `json:"id"`
	// Title はタスクのタイトル。
	Title string `json:"title"`
	// Description はタスクの詳細説明。
	Description string `json:"description"`
	// Status はタスクの状態。
	Status string `json:"status"`
	// AssignedTo は担当者のユーザーID。
	AssignedTo string `json:"assigned_to"`
	// CreatedBy は作成者のユーザーID。
	CreatedBy string `json:"created_by"`
	// CustomerID は関連する顧客のID。
	CustomerID string `json:"customer_id"`
	// DealID は関連する商談のID。
	DealID string `json:"deal_id"`
	// CreatedAt は作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は更新日時（RFC3339形式）。
	UpdatedAt string `json:"updated_at"`
}

// toTaskResponse はDB行をJSONレスポンスに変換する。
func toTaskResponse(t Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		AssignedTo:  t.AssignedTo,
		CreatedBy:   t.CreatedBy,
		CustomerID:  t.CustomerID,
		DealID:      t.DealID,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// appendEventRequest はEvent Storeへのイベント追記リクエスト。
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

// emitEvent はEvent Storeにイベントをベストエフォートで送信する。
// 失敗はログに記録するのみで、呼び出し元のタスク操作は成功として扱う。
func (s *Server) emitEvent(c *gin.Context, aggregateID string, eventType event.Type, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("イベントデータのシリアライズに失敗: %v", err)
		return
	}

	req := appendEventRequest{
		AggregateID:   aggregateID,
		AggregateType: string(event.AggregateTypeTask),
		EventType:     string(eventType),
		Data:          jsonData,
	}

	var resp map[string]any
	if err := s.eventClient.PostJSON(c.Request.Context(), "/api/v1/events", req, &resp); err != nil {
		log.Printf("%sイベントの送信に失敗: %v", eventType, err)
	}
}

// createRequest はタスク作成リクエストのJSON構造。
type createRequest struct {
	// Title はタスクのタイトル。
	Title string `json:"title" binding:"required"`
	// Description はタスクの詳細説明。
	Description string `json:"description"`
	// Status はタスクの初期状態。省略時はtodo。
	Status string `json:"status"`
	// AssignedTo は担当者のユーザーID。
	AssignedTo string `json:"assigned_to" binding:"required"`
	// CustomerID は関連する顧客のID。
	CustomerID string `json:"customer_id"`
	// DealID は関連する商談のID。
	DealID string `json:"deal_id"`
}

// handleCreate はタスクを作成するハンドラ。
// 作成確定後、担当者（および作成者が別人の場合は作成者）への通知を同期的に実行する。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorUID := middleware.GetUserID(c)

		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		if req.Status == "" {
			req.Status = string(fanout.StatusTodo)
		}
		if !fanout.ValidStatus(fanout.Status(req.Status)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("不正なタスク状態です: %s", req.Status)})
			return
		}

		now := time.Now().UTC()
		t := Task{
			ID:          uuid.New().String(),
			Title:       req.Title,
			Description: req.Description,
			Status:      req.Status,
			AssignedTo:  req.AssignedTo,
			CreatedBy:   actorUID,
			CustomerID:  req.CustomerID,
			DealID:      req.DealID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := s.store.Insert(c.Request.Context(), t); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "タスクの作成に失敗しました"})
			log.Printf("タスク作成エラー: %v", err)
			return
		}

		// 通知のファンアウト。書き込み失敗は宛先ごとに隔離され、作成自体は成功として返す。
		ctx := httpclient.WithUserID(c.Request.Context(), actorUID)
		if err := s.dispatcher.OnTaskCreated(ctx, t.snapshot(), actorUID); err != nil {
			log.Printf("タスク作成通知のファンアウトに失敗: %v", err)
		}

		s.emitEvent(c, t.ID, event.TypeTaskCreated, event.TaskCreatedData{
			ActorUID:   actorUID,
			Title:      t.Title,
			Status:     t.Status,
			AssignedTo: t.AssignedTo,
			CreatedBy:  t.CreatedBy,
			CustomerID: t.CustomerID,
			DealID:     t.DealID,
		})

		c.JSON(http.StatusCreated, toTaskResponse(t))
	}
}

// handleList はタスク一覧を返すハンドラ。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		tasks, err := s.store.List(c.Request.Context(), c.Query("assigned_to"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "タスク一覧の取得に失敗しました"})
			log.Printf("タスク一覧取得エラー: %v", err)
			return
		}

		responses := make([]taskResponse, 0, len(tasks))
		for _, t := range tasks {
			responses = append(responses, toTaskResponse(t))
		}
		c.JSON(http.StatusOK, responses)
	}
}

// handleGet は指定IDのタスクを返すハンドラ。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := s.store.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, ErrTaskNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "タスクが見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "タスクの取得に失敗しました"})
			log.Printf("タスク取得エラー: %v", err)
			return
		}
		c.JSON(http.StatusOK, toTaskResponse(t))
	}
}

// updateRequest はタスク更新リクエストのJSON構造。
// nilのフィールドは変更なしとして扱う。
type updateRequest struct {
	// Title はタスクのタイトル。
	Title *string `json:"title"`
	// Description はタスクの詳細説明。
	Description *string `json:"description"`
	// Status はタスクの状態。
	Status *string `json:"status"`
	// AssignedTo は担当者のユーザーID。
	AssignedTo *string `json:"assigned_to"`
	// CustomerID は関連する顧客のID。
	CustomerID *string `json:"customer_id"`
	// DealID は関連する商談のID。
	DealID *string `json:"deal_id"`
}

// handleUpdate はタスクを更新するハンドラ。
// 更新確定後、変更前後のスナップショットに基づく通知を同期的に実行する。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorUID := middleware.GetUserID(c)

		var req updateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		prev, err := s.store.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, ErrTaskNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "タスクが見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "タスクの取得に失敗しました"})
			log.Printf("タスク取得エラー: %v", err)
			return
		}

		next := prev
		if req.Title != nil {
			next.Title = *req.Title
		}
		if req.Description != nil {
			next.Description = *req.Description
		}
		if req.Status != nil {
			if !fanout.ValidStatus(fanout.Status(*req.Status)) {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("不正なタスク状態です: %s", *req.Status)})
				return
			}
			next.Status = *req.Status
		}
		if req.AssignedTo != nil {
			if *req.AssignedTo == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "担当者を空にすることはできません"})
				return
			}
			next.AssignedTo = *req.AssignedTo
		}
		if req.CustomerID != nil {
			next.CustomerID = *req.CustomerID
		}
		if req.DealID != nil {
			next.DealID = *req.DealID
		}
		next.UpdatedAt = time.Now().UTC()

		if err := s.store.Update(c.Request.Context(), next); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "タスクの更新に失敗しました"})
			log.Printf("タスク更新エラー: %v", err)
			return
		}

		prevSnap, nextSnap := prev.snapshot(), next.snapshot()
		ctx := httpclient.WithUserID(c.Request.Context(), actorUID)
		if err := s.dispatcher.OnTaskUpdated(ctx, prevSnap, nextSnap, actorUID); err != nil {
			log.Printf("タスク更新通知のファンアウトに失敗: %v", err)
		}

		change := fanout.Classify(fanout.EventUpdated, prevSnap, nextSnap)
		s.emitEvent(c, next.ID, event.TypeTaskUpdated, event.TaskUpdatedData{
			ActorUID:     actorUID,
			ChangeKind:   string(change.Kind),
			FromStatus:   string(change.FromStatus),
			ToStatus:     string(change.ToStatus),
			FromAssignee: change.FromAssignee,
			ToAssignee:   change.ToAssignee,
		})

		c.JSON(http.StatusOK, toTaskResponse(next))
	}
}

// handleDelete はタスクを削除するハンドラ。削除したレコードを返す。
// 削除確定後、作成者と担当者への通知を同期的に実行する。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorUID := middleware.GetUserID(c)

		prev, err := s.store.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, ErrTaskNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "タスクが見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "タスクの取得に失敗しました"})
			log.Printf("タスク取得エラー: %v", err)
			return
		}

		if err := s.store.Delete(c.Request.Context(), prev.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "タスクの削除に失敗しました"})
			log.Printf("タスク削除エラー: %v", err)
			return
		}

		ctx := httpclient.WithUserID(c.Request.Context(), actorUID)
		if err := s.dispatcher.OnTaskDeleted(ctx, prev.snapshot(), actorUID); err != nil {
			log.Printf("タスク削除通知のファンアウトに失敗: %v", err)
		}

		s.emitEvent(c, prev.ID, event.TypeTaskDeleted, event.TaskDeletedData{
			ActorUID: actorUID,
			Title:    prev.Title,
			Status:   prev.Status,
		})

		c.JSON(http.StatusOK, toTaskResponse(prev))
	}
}
