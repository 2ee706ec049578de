package customer

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

// Server は顧客サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store は顧客テーブルへのアクセスを提供する。
	store *Store
	// db はSQLiteデータベース接続。
	db *sqlx.DB
	// eventClient はEvent StoreへのHTTPクライアント。
	eventClient *httpclient.Client
}

// NewServer は新しい顧客サーバーを生成する。
func NewServer(cfg *config.Customer) (*Server, error) {
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
		router:      router,
		port:        cfg.Port,
		store:       NewStore(db),
		db:          db,
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
func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	api.Use(middleware.InternalAuth())
	{
		customers := api.Group("/customers")
		{
			// 顧客の登録
			customers.POST("", s.handleCreate())
			// 顧客一覧取得
			customers.GET("", s.handleList())
			// 顧客の取得
			customers.GET("/:id", s.handleGet())
			// 顧客の更新
			customers.PUT("/:id", s.handleUpdate())
			// 顧客の削除
			customers.DELETE("/:id", s.handleDelete())
			// 連絡先の追加
			customers.POST("/:id/contacts", s.handleAddContact())
			// 連絡先一覧取得
			customers.GET("/:id/contacts", s.handleListContacts())
		}
	}

	// タスクサービスが通知文面の顧客名解決に使用する内部エンドポイント
	internal := s.router.Group("/api/v1/internal")
	internal.Use(middleware.InternalAuth())
	{
		internal.GET("/customers/:id/name", s.handleGetName())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "customer"})
	})
}

// customerResponse は顧客のJSONレスポンス構造。
type customerResponse struct {
	// ID は顧客の一意識別子。
	ID string `json:"id"`
	// Name は顧客名。
	Name string `json:"name"`
	// Email は代表メールアドレス。
	Email string `json:"email"`
	// Phone は代表電話番号。
	Phone string `json:"phone"`
	// Note は自由記述のメモ。
	Note string `json:"note"`
	// CreatedAt は登録日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は更新日時（RFC3339形式）。
	UpdatedAt string `json:"updated_at"`
}

// toCustomerResponse はDB行をJSONレスポンスに変換する。
func toCustomerResponse(c Customer) customerResponse {
	return customerResponse{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Note:      c.Note,
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// contactResponse は連絡先のJSONレスポンス構造。
type contactResponse struct {
	// ID は連絡先の一意識別子。
	ID string `json:"id"`
	// CustomerID は所属する顧客のID。
	CustomerID string `json:"customer_id"`
	// Name は連絡先の氏名。
	Name string `json:"name"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// Phone は電話番号。
	Phone string `json:"phone"`
	// Role は役職。
	Role string `json:"role"`
	// CreatedAt は登録日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

func toContactResponse(c Contact) contactResponse {
	return contactResponse{
		ID:         c.ID,
		CustomerID: c.CustomerID,
		Name:       c.Name,
		Email:      c.Email,
		Phone:      c.Phone,
		Role:       c.Role,
		CreatedAt:  c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// emitEvent はEvent Storeにイベントをベストエフォートで送信する。
// 失敗はログに記録するのみで、呼び出し元の顧客操作は成功として扱う。
func (s *Server) emitEvent(c *gin.Context, aggregateID string, eventType event.Type, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("イベントデータのシリアライズに失敗: %v", err)
		return
	}

	reqBody := map[string]any{
		"aggregate_id":   aggregateID,
		"aggregate_type": string(event.AggregateTypeCustomer),
		"event_type":     string(eventType),
		"data":           json.RawMessage(jsonData),
	}
	if err := s.eventClient.PostJSON(c.Request.Context(), "/api/v1/events", reqBody, nil); err != nil {
		log.Printf("%sイベントの送信に失敗: %v", eventType, err)
	}
}

// createCustomerRequest は顧客登録リクエストのJSON構造。
type createCustomerRequest struct {
	// Name は顧客名。
	Name string `json:"name" binding:"required"`
	// Email は代表メールアドレス。
	Email string `json:"email"`
	// Phone は代表電話番号。
	Phone string `json:"phone"`
	// Note は自由記述のメモ。
	Note string `json:"note"`
}

// handleCreate は顧客を登録するハンドラ。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createCustomerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		now := time.Now().UTC()
		customer := Customer{
			ID:        uuid.New().String(),
			Name:      req.Name,
			Email:     req.Email,
			Phone:     req.Phone,
			Note:      req.Note,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := s.store.Insert(c.Request.Context(), customer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "顧客の登録に失敗しました"})
			log.Printf("顧客登録エラー: %v", err)
			return
		}

		s.emitEvent(c, customer.ID, event.TypeCustomerCreated, event.CustomerCreatedData{
			ActorUID: middleware.GetUserID(c),
			Name:     customer.Name,
		})

		c.JSON(http.StatusCreated, toCustomerResponse(customer))
	}
}

// handleList は顧客一覧を返すハンドラ。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		customers, err := s.store.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "顧客一覧の取得に失敗しました"})
			log.Printf("顧客一覧取得エラー: %v", err)
			return
		}

		responses := make([]customerResponse, 0, len(customers))
		for _, customer := range customers {
			responses = append(responses, toCustomerResponse(customer))
		}
		c.JSON(http.StatusOK, responses)
	}
}

// handleGet は指定IDの顧客を返すハンドラ。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		customer, err := s.store.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, ErrCustomerNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "顧客が見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "顧客の取得に失敗しました"})
			log.Printf("顧客取得エラー: %v", err)
			return
		}
		c.JSON(http.StatusOK, toCustomerResponse(customer))
	}
}

// updateCustomerRequest は顧客更新リクエストのJSON構造。
// nilのフィールドは変更なしとして扱う。
type updateCustomerRequest struct {
	// Name は顧客名。
	Name *string `json:"name"`
	// Email は代表メールアドレス。
	Email *string `json:"email"`
	// Phone は代表電話番号。
	Phone *string `json:"phone"`
	// Note は自由記述のメモ。
	Note *string `json:"note"`
}

// handleUpdate は顧客を更新するハンドラ。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateCustomerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		customer, err := s.store.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, ErrCustomerNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "顧客が見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "顧客の取得に失敗しました"})
			log.Printf("顧客取得エラー: %v", err)
			return
		}

		if req.Name != nil {
			if *req.Name == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "顧客名を空にすることはできません"})
				return
			}
			customer.Name = *req.Name
		}
		if req.Email != nil {
			customer.Email = *req.Email
		}
		if req.Phone != nil {
			customer.Phone = *req.Phone
		}
		if req.Note != nil {
			customer.Note = *req.Note
		}
		customer.UpdatedAt = time.Now().UTC()

		if err := s.store.Update(c.Request.Context(), customer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "顧客の更新に失敗しました"})
			log.Printf("顧客更新エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toCustomerResponse(customer))
	}
}

// handleDelete は顧客を削除するハンドラ。紐づく連絡先も同時に削除される。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		customerID := c.Param("id")

		if err := s.store.Delete(c.Request.Context(), customerID); err != nil {
			if errors.Is(err, ErrCustomerNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "顧客が見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "顧客の削除に失敗しました"})
			log.Printf("顧客削除エラー: %v", err)
			return
		}

		s.emitEvent(c, customerID, event.TypeCustomerDeleted, event.CustomerDeletedData{
			ActorUID: middleware.GetUserID(c),
		})

		c.JSON(http.StatusOK, gin.H{"message": "顧客を削除しました"})
	}
}

// createContactRequest は連絡先追加リクエストのJSON構造。
type createContactRequest struct {
	// Name は連絡先の氏名。
	Name string `json:"name" binding:"required"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// Phone は電話番号。
	Phone string `json:"phone"`
	// Role は役職。
	Role string `json:"role"`
}

// handleAddContact は顧客に連絡先を追加するハンドラ。
func (s *Server) handleAddContact() gin.HandlerFunc {
	return func(c *gin.Context) {
		customerID := c.Param("id")

		// 顧客の存在確認
		if _, err := s.store.GetByID(c.Request.Context(), customerID); err != nil {
			if errors.Is(err, ErrCustomerNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "顧客が見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "顧客の取得に失敗しました"})
			log.Printf("顧客取得エラー: %v", err)
			return
		}

		var req createContactRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		contact := Contact{
			ID:         uuid.New().String(),
			CustomerID: customerID,
			Name:       req.Name,
			Email:      req.Email,
			Phone:      req.Phone,
			Role:       req.Role,
			CreatedAt:  time.Now().UTC(),
		}

		if err := s.store.InsertContact(c.Request.Context(), contact); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "連絡先の登録に失敗しました"})
			log.Printf("連絡先登録エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, toContactResponse(contact))
	}
}

// handleListContacts は顧客の連絡先一覧を返すハンドラ。
func (s *Server) handleListContacts() gin.HandlerFunc {
	return func(c *gin.Context) {
		customerID := c.Param("id")

		if _, err := s.store.GetByID(c.Request.Context(), customerID); err != nil {
			if errors.Is(err, ErrCustomerNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "顧客が見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "顧客の取得に失敗しました"})
			log.Printf("顧客取得エラー: %v", err)
			return
		}

		contacts, err := s.store.ListContacts(c.Request.Context(), customerID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "連絡先一覧の取得に失敗しました"})
			log.Printf("連絡先一覧取得エラー: %v", err)
			return
		}

		responses := make([]contactResponse, 0, len(contacts))
		for _, contact := range contacts {
			responses = append(responses, toContactResponse(contact))
		}
		c.JSON(http.StatusOK, responses)
	}
}

// handleGetName は顧客名を返す内部エンドポイントのハンドラ。
// 存在しない顧客の場合は404を返す。
func (s *Server) handleGetName() gin.HandlerFunc {
	return func(c *gin.Context) {
		customer, err := s.store.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, ErrCustomerNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "顧客が見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "顧客の取得に失敗しました"})
			log.Printf("顧客取得エラー: %v", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"name": customer.Name})
	}
}
