package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/nao1215/crmhub/pkg/config"
	"github.com/nao1215/crmhub/pkg/event"
	"github.com/nao1215/crmhub/pkg/httpclient"
	"github.com/nao1215/crmhub/pkg/middleware"
)

// Server はAPIゲートウェイのHTTPサーバーを表す。
type Server struct {
	router    *gin.Engine
	port      string
	jwtSecret string
	store     *userStore
	db        *sqlx.DB
	cfg       *config.Gateway
	proxy     *http.Client
	// eventClient はEvent StoreへのHTTPクライアント。
	eventClient *httpclient.Client
}

// NewServer はAPIゲートウェイサーバーを生成する。
func NewServer(cfg *config.Gateway) (*Server, error) {
	db, err := sqlx.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("データベースのオープンに失敗しました: %w", err)
	}
	if err := initSchema(db); err != nil {
		return nil, err
	}

	s := &Server{
		router:      gin.New(),
		port:        cfg.Port,
		jwtSecret:   cfg.JWTSecret,
		store:       newUserStore(db),
		db:          db,
		cfg:         cfg,
		proxy:       &http.Client{Timeout: 30 * time.Second},
		eventClient: httpclient.New(cfg.EventStoreURL),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.CORS(s.cfg.AllowedOrigins))
	s.router.Use(middleware.Recovery())

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})

	auth := s.router.Group("/auth")
	{
		auth.POST("/signup", s.handleSignup)
		auth.POST("/login", s.handleLogin)
	}

	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(s.jwtSecret))
	{
		api.GET("/me", s.handleGetCurrentUser)
		api.GET("/users", s.handleListUsers)

		// タスクサービス
		api.POST("/tasks", s.handleProxy(s.cfg.TaskServiceURL, "/api/v1/tasks"))
		api.GET("/tasks", s.handleProxy(s.cfg.TaskServiceURL, "/api/v1/tasks"))
		api.GET("/tasks/:id", s.handleProxyWithParam(s.cfg.TaskServiceURL, "/api/v1/tasks", "id"))
		api.PUT("/tasks/:id", s.handleProxyWithParam(s.cfg.TaskServiceURL, "/api/v1/tasks", "id"))
		api.DELETE("/tasks/:id", s.handleProxyWithParam(s.cfg.TaskServiceURL, "/api/v1/tasks", "id"))

		// 顧客サービス
		api.POST("/customers", s.handleProxy(s.cfg.CustomerServiceURL, "/api/v1/customers"))
		api.GET("/customers", s.handleProxy(s.cfg.CustomerServiceURL, "/api/v1/customers"))
		api.GET("/customers/:id", s.handleProxyWithParam(s.cfg.CustomerServiceURL, "/api/v1/customers", "id"))
		api.PUT("/customers/:id", s.handleProxyWithParam(s.cfg.CustomerServiceURL, "/api/v1/customers", "id"))
		api.DELETE("/customers/:id", s.handleProxyWithParam(s.cfg.CustomerServiceURL, "/api/v1/customers", "id"))
		api.POST("/customers/:id/contacts", s.handleProxyWithParam(s.cfg.CustomerServiceURL, "/api/v1/customers", "id", "/contacts"))
		api.GET("/customers/:id/contacts", s.handleProxyWithParam(s.cfg.CustomerServiceURL, "/api/v1/customers", "id", "/contacts"))

		// 商談サービス
		api.POST("/deals", s.handleProxy(s.cfg.SalesServiceURL, "/api/v1/deals"))
		api.GET("/deals", s.handleProxy(s.cfg.SalesServiceURL, "/api/v1/deals"))
		api.GET("/deals/:id", s.handleProxyWithParam(s.cfg.SalesServiceURL, "/api/v1/deals", "id"))
		api.PUT("/deals/:id", s.handleProxyWithParam(s.cfg.SalesServiceURL, "/api/v1/deals", "id"))
		api.DELETE("/deals/:id", s.handleProxyWithParam(s.cfg.SalesServiceURL, "/api/v1/deals", "id"))

		// 通知サービス
		api.GET("/notifications", s.handleProxy(s.cfg.NotificationServiceURL, "/api/v1/notifications"))
		api.GET("/notifications/unread", s.handleProxy(s.cfg.NotificationServiceURL, "/api/v1/notifications/unread"))
		api.PUT("/notifications/:id/read", s.handleProxyWithParam(s.cfg.NotificationServiceURL, "/api/v1/notifications", "id", "/read"))
		api.PUT("/notifications/read-all", s.handleProxy(s.cfg.NotificationServiceURL, "/api/v1/notifications/read-all"))

		// レポートサービス
		api.GET("/reports/tasks/summary", s.handleProxy(s.cfg.ReportServiceURL, "/api/v1/reports/tasks/summary"))
		api.GET("/reports/activity", s.handleProxy(s.cfg.ReportServiceURL, "/api/v1/reports/activity"))

		// Event Store（監査用の読み取り専用プロキシ）
		api.GET("/events", s.handleProxy(s.cfg.EventStoreURL, "/api/v1/events"))
	}

	internal := s.router.Group("/api/v1/internal")
	internal.Use(middleware.InternalAuth())
	{
		internal.GET("/users/:id/display-name", s.handleGetDisplayName)
	}
}

// signupRequest はサインアップリクエストのボディを表す。
type signupRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name" binding:"required"`
}

// handleSignup は新規ユーザーを登録し、JWTトークンを返す。
func (s *Server) handleSignup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディが不正です"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("パスワードハッシュの生成に失敗しました: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー登録に失敗しました"})
		return
	}

	user := User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(req.Email),
		PasswordHash: string(hash),
		DisplayName:  req.DisplayName,
		CreatedAt:    time.Now().UTC(),
	}
	created, err := s.store.Insert(c.Request.Context(), user)
	if err != nil {
		// UNIQUE制約違反はメールアドレスの重複
		if strings.Contains(err.Error(), "UNIQUE") {
			c.JSON(http.StatusConflict, gin.H{"error": "このメールアドレスは既に登録されています"})
			return
		}
		log.Printf("ユーザー登録に失敗しました: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー登録に失敗しました"})
		return
	}

	// UserRegisteredイベントをベストエフォートで送信する
	s.emitUserRegistered(c, created)

	token, err := middleware.GenerateJWT(s.jwtSecret, created.ID, created.Email)
	if err != nil {
		log.Printf("JWTトークンの生成に失敗しました: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの生成に失敗しました"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": token, "user": created})
}

// emitUserRegistered はUserRegisteredイベントをEvent Storeに送信する。
// 失敗はログに記録するのみでサインアップは成功として扱う。
func (s *Server) emitUserRegistered(c *gin.Context, u *User) {
	data, err := json.Marshal(event.UserRegisteredData{
		Email:       u.Email,
		DisplayName: u.DisplayName,
	})
	if err != nil {
		log.Printf("イベントデータのシリアライズに失敗しました: %v", err)
		return
	}

	reqBody := map[string]any{
		"aggregate_id":   u.ID,
		"aggregate_type": string(event.AggregateTypeUser),
		"event_type":     string(event.TypeUserRegistered),
		"data":           json.RawMessage(data),
	}
	if err := s.eventClient.PostJSON(c.Request.Context(), "/api/v1/events", reqBody, nil); err != nil {
		log.Printf("UserRegisteredイベントの送信に失敗しました: %v", err)
	}
}

// loginRequest はログインリクエストのボディを表す。
type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// handleLogin はメールアドレスとパスワードを検証し、JWTトークンを返す。
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディが不正です"})
		return
	}

	user, err := s.store.GetByEmail(c.Request.Context(), strings.ToLower(req.Email))
	if errors.Is(err, ErrUserNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "メールアドレスまたはパスワードが正しくありません"})
		return
	}
	if err != nil {
		log.Printf("ユーザーの取得に失敗しました: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ログインに失敗しました"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "メールアドレスまたはパスワードが正しくありません"})
		return
	}

	if err := s.store.UpdateLastLogin(c.Request.Context(), user.ID, time.Now().UTC()); err != nil {
		// ログイン自体は成功させる
		log.Printf("最終ログイン日時の更新に失敗しました: %v", err)
	}

	token, err := middleware.GenerateJWT(s.jwtSecret, user.ID, user.Email)
	if err != nil {
		log.Printf("JWTトークンの生成に失敗しました: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの生成に失敗しました"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// handleGetCurrentUser は認証済みユーザー自身の情報を返す。
func (s *Server) handleGetCurrentUser(c *gin.Context) {
	userID := middleware.GetUserID(c)
	user, err := s.store.GetByID(c.Request.Context(), userID)
	if errors.Is(err, ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
		return
	}
	if err != nil {
		log.Printf("ユーザーの取得に失敗しました: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの取得に失敗しました"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// handleListUsers は登録済みユーザーの一覧を返す。
// フロントエンドがタスクの担当者選択に使用する。
func (s *Server) handleListUsers(c *gin.Context) {
	users, err := s.store.List(c.Request.Context())
	if err != nil {
		log.Printf("ユーザー一覧の取得に失敗しました: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー一覧の取得に失敗しました"})
		return
	}
	c.JSON(http.StatusOK, users)
}

// handleGetDisplayName はユーザーの表示名を返す内部エンドポイント。
// タスクサービスが通知文面の作成時に呼び出す。
// 存在しないユーザーの場合は404を返す。
func (s *Server) handleGetDisplayName(c *gin.Context) {
	user, err := s.store.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
		return
	}
	if err != nil {
		log.Printf("ユーザーの取得に失敗しました: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの取得に失敗しました"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"display_name": user.DisplayName})
}

// handleProxy は固定パスへのプロキシハンドラーを返す。
func (s *Server) handleProxy(baseURL, path string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.doProxy(c, baseURL+path)
	}
}

// handleProxyWithParam はURLパラメータを含むパスへのプロキシハンドラーを返す。
// pathSuffixを指定するとパラメータの後ろに付加される（例: /customers/:id/contacts）。
func (s *Server) handleProxyWithParam(baseURL, pathPrefix, paramName string, pathSuffix ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		target := baseURL + pathPrefix + "/" + c.Param(paramName)
		for _, suffix := range pathSuffix {
			target += suffix
		}
		s.doProxy(c, target)
	}
}

// doProxy はリクエストをバックエンドサービスに転送し、レスポンスをそのまま返す。
// 認証済みユーザーIDはX-User-IDヘッダーで伝播する。
func (s *Server) doProxy(c *gin.Context, targetURL string) {
	if c.Request.URL.RawQuery != "" {
		targetURL += "?" + c.Request.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, targetURL, c.Request.Body)
	if err != nil {
		log.Printf("プロキシリクエストの作成に失敗しました: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "リクエストの転送に失敗しました"})
		return
	}
	if ct := c.GetHeader("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	req.Header.Set("X-User-ID", middleware.GetUserID(c))

	resp, err := s.proxy.Do(req)
	if err != nil {
		log.Printf("バックエンドサービスへの転送に失敗しました: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "バックエンドサービスに接続できません"})
		return
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("レスポンスボディのクローズに失敗しました: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("レスポンスボディの読み取りに失敗しました: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "レスポンスの読み取りに失敗しました"})
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, body)
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}
