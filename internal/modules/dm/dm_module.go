package dm

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	custommiddleware "anomali-dm/internal/middleware"
	"anomali-dm/internal/modules/dm/handler"
	"anomali-dm/internal/modules/dm/realtime"
	"anomali-dm/internal/modules/dm/service"
	"anomali-dm/internal/modules/dm/tasks"
	"anomali-dm/internal/pkg/config"
	"anomali-dm/internal/pkg/i18n"
	"anomali-dm/internal/pkg/llm"
	"anomali-dm/internal/pkg/log"
	"anomali-dm/internal/pkg/metrics"
	pkgnats "anomali-dm/internal/pkg/nats"
	"anomali-dm/internal/pkg/notify"
	redisClient "anomali-dm/internal/pkg/redis"
	"anomali-dm/internal/pkg/response"
	"anomali-dm/internal/pkg/security"
	"anomali-dm/internal/pkg/trace"
	"anomali-dm/internal/pkg/turncache"
	"anomali-dm/internal/pkg/validation"
	"anomali-dm/internal/pkg/validator"
	"anomali-dm/internal/repository/impl"
	"anomali-dm/internal/repository/interfaces"
	"anomali-dm/internal/repository/memory"
	"anomali-dm/migrations"

	_ "anomali-dm/docs/dm" // Swagger 生成的文档

	"github.com/labstack/echo/v4"
	"github.com/liangdas/mqant/conf"
	"github.com/liangdas/mqant/module"
	basemodule "github.com/liangdas/mqant/module/base"
	"github.com/liangdas/mqant/server"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	echoSwagger "github.com/swaggo/echo-swagger"
)

type DMModule struct {
	basemodule.BaseModule
	cfg              *config.DMConfig
	db               *sql.DB
	redis            *redisClient.Client
	nc               *nats.Conn
	natsSub          *nats.Subscription
	repo             interfaces.CampaignRepository
	replay           service.ReplayStore
	publisher        notify.Publisher
	completer        llm.Completer
	httpServer       *echo.Echo
	serviceContainer *service.ServiceContainer
	hub              *realtime.Hub
	dmHandler        *handler.DMHandler
	campaignHandler  *handler.CampaignHandler
	rpcHandler       *handler.DMRPCHandler
	wsHandler        *realtime.Handler
	poolStatsTask    *tasks.PoolStatsTask
	natsProbeTask    *tasks.NATSProbeTask
	replaySweepTask  *tasks.ReplaySweepTask
	respWriter       response.Writer
}

// GetType returns module type
func (m *DMModule) GetType() string {
	return "dm"
}

// Version returns module version
func (m *DMModule) Version() string {
	return "1.0.0"
}

// OnAppConfigurationLoaded 当App初始化时调用
func (m *DMModule) OnAppConfigurationLoaded(app module.App) {
	m.BaseModule.OnAppConfigurationLoaded(app)
}

// OnInit module initialization
func (m *DMModule) OnInit(app module.App, settings *conf.ModuleSettings) {
	metrics.SetServiceName("dm")
	// TTL 必须大于心跳间隔
	m.BaseModule.OnInit(m, app, settings,
		server.RegisterInterval(15*time.Second),
		server.RegisterTTL(30*time.Second),
	)

	// 0. 配置与日志
	if err := m.initConfig(settings); err != nil {
		panic(fmt.Sprintf("Failed to load DM config: %v", err))
	}

	// 1. 存储
	if err := m.initStore(); err != nil {
		panic(fmt.Sprintf("Failed to initialize store: %v", err))
	}

	// 2. Redis（可选，不可用时回放缓存退回进程内）
	m.initRedis()

	// 3. NATS 事件通道
	m.initMessaging()

	// 4. 语言模型
	if err := m.initCompleter(); err != nil {
		panic(fmt.Sprintf("Failed to initialize completer: %v", err))
	}

	m.initResponseWriter()

	m.initHTTPServer()

	m.initServicesAndHandlers()

	m.setupRoutes()

	m.setupRPCMethods()

	m.startCronTasks()

	go m.startHTTPServer()

	m.GetServer().Options()
}

func (m *DMModule) initConfig(settings *conf.ModuleSettings) error {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Printf("[DM Module] .env not loaded: %v\n", err)
	}

	var raw map[string]interface{}
	if settings != nil {
		raw = settings.Settings
	}
	cfg, err := config.LoadDMConfig(raw)
	if err != nil {
		return err
	}
	m.cfg = cfg

	log.Init(log.ParseLevel(cfg.LogLevel), cfg.Environment)
	log.GetLogger().Info("DM 配置已加载", log.Any("config", cfg.LogFields()))
	return nil
}

func (m *DMModule) initStore() error {
	if m.cfg.Store == config.StoreMemory {
		m.repo = memory.NewStore()
		fmt.Println("[DM Module] Using in-memory campaign store")
		return nil
	}

	db, err := sql.Open("postgres", m.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := migrations.Up(ctx, db); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	m.db = db
	m.repo = impl.NewCampaignRepository(db)
	fmt.Println("[DM Module] Database initialized successfully")
	return nil
}

func (m *DMModule) initRedis() {
	client, err := redisClient.NewClient(redisClient.Config{
		Host:     m.cfg.RedisHost,
		Port:     m.cfg.RedisPort,
		Password: m.cfg.RedisPassword,
		DB:       m.cfg.RedisDB,
	}, metrics.GetServiceName())
	if err != nil {
		fmt.Printf("[DM Module] Redis unavailable (%v), turn replay uses in-process cache\n", err)
		cache := turncache.New(m.cfg.TurnReplayTTL, log.GetLogger())
		m.replay = cache
		m.replaySweepTask = tasks.NewReplaySweepTask(cache, log.GetLogger())
		return
	}

	m.redis = client
	m.replay = redisClient.NewTurnReplayStore(client, m.cfg.TurnReplayTTL)
	fmt.Printf("[DM Module] Redis connected successfully (Host: %s:%s, DB: %d)\n", m.cfg.RedisHost, m.cfg.RedisPort, m.cfg.RedisDB)
}

func (m *DMModule) initMessaging() {
	logger := log.GetLogger()
	m.hub = realtime.NewHub(logger)

	nc, err := nats.Connect("nats://"+m.cfg.NATSAddress,
		nats.MaxReconnects(10),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		// 单实例部署：回合事件直接在本进程扇出
		fmt.Printf("[DM Module] NATS unavailable (%v), turn events fan out locally\n", err)
		m.publisher = m.hub
		return
	}

	m.nc = nc
	publisher := notify.NewNatsPublisher(nc)
	m.publisher = publisher

	sub, err := publisher.Subscribe(notify.SubjectAllTurns, m.hub.HandleEvent)
	if err != nil {
		fmt.Printf("[DM Module] Failed to subscribe %s: %v\n", notify.SubjectAllTurns, err)
	} else {
		m.natsSub = sub
	}
	fmt.Printf("[DM Module] NATS connected (%s), relaying %s\n", m.cfg.NATSAddress, notify.SubjectAllTurns)
}

func (m *DMModule) initCompleter() error {
	catalogue, err := llm.LoadCatalogue(m.cfg.LLMConfigPath)
	if err != nil {
		fmt.Printf("[DM Module] Model catalogue %s not loaded (%v), using built-in defaults\n", m.cfg.LLMConfigPath, err)
		catalogue = llm.DefaultCatalogue()
	}

	completer, err := catalogue.NewCompleter(context.Background(), llm.Options{
		Provider: m.cfg.LLMProvider,
		Model:    m.cfg.LLMModel,
		Timeout:  m.cfg.LLMTimeout,
	})
	if err != nil {
		return err
	}

	m.completer = completer
	fmt.Printf("[DM Module] Completer ready (provider: %s)\n", completer.Name())
	return nil
}

func (m *DMModule) initResponseWriter() {
	m.respWriter = response.NewResponseHandler(log.GetLogger(), m.cfg.Environment)
	fmt.Println("[DM Module] Response writer initialized")
}

func (m *DMModule) initHTTPServer() {
	m.httpServer = echo.New()

	m.httpServer.HideBanner = true
	m.httpServer.HidePort = true

	m.httpServer.Validator = validator.New()

	logger := log.GetLogger()
	environment := m.cfg.Environment

	m.httpServer.Use(trace.Middleware())

	m.httpServer.Use(metrics.Middleware())

	m.httpServer.Use(i18n.Middleware())

	loggingConfig := custommiddleware.DefaultLoggingConfig()
	if environment == "development" {
		loggingConfig.DetailedLog = true
		loggingConfig.LogRequestBody = true
	}
	m.httpServer.Use(custommiddleware.LoggingMiddlewareWithConfig(logger, loggingConfig))

	m.httpServer.Use(custommiddleware.RecoveryMiddleware(m.respWriter, logger))

	m.httpServer.Use(custommiddleware.ErrorMiddleware(m.respWriter, logger))

	m.httpServer.Use(security.CORSMiddleware(m.cfg.CORSAllowOrigins))
	m.httpServer.Use(security.SecurityHeadersMiddleware())

	if m.cfg.RateLimitPerSecond > 0 {
		m.httpServer.Use(custommiddleware.RateLimitMiddleware(m.respWriter, m.cfg.RateLimitPerSecond))
	}

	fmt.Println("[DM Module] HTTP middlewares configured:")
	fmt.Println("  ✓ TraceID (自动生成追踪ID)")
	fmt.Println("  ✓ Metrics (Prometheus 指标收集)")
	fmt.Println("  ✓ i18n (国际化支持)")
	fmt.Printf("  ✓ Logging (日志记录 - %s)\n", environment)
	fmt.Println("  ✓ Recovery (Panic 恢复)")
	fmt.Println("  ✓ Error (统一错误处理)")
	fmt.Printf("  ✓ CORS (%s)\n", m.cfg.CORSAllowOrigins)
	fmt.Printf("  ✓ RateLimit (%d req/s)\n", m.cfg.RateLimitPerSecond)
}

func (m *DMModule) initServicesAndHandlers() {
	logger := log.GetLogger()

	m.serviceContainer = service.NewServiceContainer(m.cfg, service.ContainerDeps{
		Repo:      m.repo,
		Completer: m.completer,
		Replay:    m.replay,
		Publisher: m.publisher,
		Logger:    logger,
		Metrics:   metrics.DefaultDMMetrics,
	})

	m.dmHandler = handler.NewDMHandler(m.serviceContainer, m.respWriter)
	m.campaignHandler = handler.NewCampaignHandler(m.serviceContainer, m.respWriter)
	m.rpcHandler = handler.NewDMRPCHandler(m.serviceContainer)
	m.wsHandler = realtime.NewHandler(m.hub, m.serviceContainer.Turns, logger, originChecker(m.cfg.CORSAllowOrigins))

	fmt.Println("[DM Module] Handlers initialized successfully")
}

// originChecker "*" 接受所有来源，否则按逗号分隔的白名单比对 Origin 头
func originChecker(allowOrigins string) func(r *http.Request) bool {
	allowed := map[string]bool{}
	for _, o := range strings.Split(allowOrigins, ",") {
		o = strings.TrimSpace(o)
		if o == "*" {
			return nil
		}
		if o != "" {
			allowed[o] = true
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

func (m *DMModule) setupRoutes() {
	v1 := m.httpServer.Group("/api/v1")

	dm := v1.Group("/dm")
	dm.Use(validation.IDValidationMiddleware(m.respWriter))
	{
		dm.POST("/respond", m.dmHandler.Respond)

		campaigns := dm.Group("/campaigns")
		{
			campaigns.POST("/generate", m.campaignHandler.Generate)
			campaigns.GET("/:campaign_id/context", m.dmHandler.GetContext)
			campaigns.GET("/:campaign_id/log", m.dmHandler.GetLog)
			campaigns.POST("/:campaign_id/characters", m.campaignHandler.AddCharacter)
			campaigns.GET("/:campaign_id/ws", m.wsHandler.Serve)
		}

		dm.GET("/characters/:character_id", m.campaignHandler.GetCharacter)
	}

	m.httpServer.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "ok",
			"module": "dm",
		})
	})

	m.httpServer.GET("/metrics", metrics.EchoHandler())

	m.httpServer.GET("/swagger/*", echoSwagger.WrapHandler)

	fmt.Println("[DM Module] Routes configured:")
	fmt.Println("  POST /api/v1/dm/respond")
	fmt.Println("  POST /api/v1/dm/campaigns/generate")
	fmt.Println("  GET  /api/v1/dm/campaigns/:campaign_id/context")
	fmt.Println("  GET  /api/v1/dm/campaigns/:campaign_id/log")
	fmt.Println("  POST /api/v1/dm/campaigns/:campaign_id/characters")
	fmt.Println("  GET  /api/v1/dm/campaigns/:campaign_id/ws")
	fmt.Println("  GET  /api/v1/dm/characters/:character_id")
}

func (m *DMModule) setupRPCMethods() {
	m.GetServer().RegisterGO("TakeTurn", m.rpcHandler.TakeTurn)
	fmt.Println("[DM Module] RPC methods registered:")
	fmt.Println("  ✓ TakeTurn")
}

func (m *DMModule) startCronTasks() {
	logger := log.GetLogger()

	// 避免把 nil 指针包装成非 nil 接口
	var db tasks.DBStatser
	if m.db != nil {
		db = m.db
	}
	var rdb tasks.RedisPoolStatser
	if m.redis != nil {
		rdb = m.redis.Client
	}
	m.poolStatsTask = tasks.NewPoolStatsTask(db, rdb, metrics.GetServiceName(), "dm", logger)
	m.poolStatsTask.Start()

	fmt.Println("[DM Module] Cron tasks started successfully:")
	fmt.Println("  ✓ Pool Stats Task (每30秒)")

	if m.nc != nil {
		m.natsProbeTask = tasks.NewNATSProbeTask(pkgnats.NewHealthChecker(m.nc, 10*time.Second), logger)
		m.natsProbeTask.Start()
		fmt.Println("  ✓ NATS Probe Task (每10秒)")
	}

	if m.replaySweepTask != nil {
		m.replaySweepTask.Start()
		fmt.Println("  ✓ Replay Sweep Task (每分钟)")
	}
}

func (m *DMModule) startHTTPServer() {
	addr := ":" + m.cfg.HTTPPort
	fmt.Printf("[DM Module] HTTP server starting on %s\n", addr)
	if err := m.httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
		fmt.Printf("[DM Module] HTTP server error: %v\n", err)
	}
}

// Run module run
func (m *DMModule) Run(closeSig chan bool) {
	fmt.Println("[DM Module] Running...")
	<-closeSig
	fmt.Println("[DM Module] Shutting down...")
}

// OnDestroy module cleanup
func (m *DMModule) OnDestroy() {
	if m.poolStatsTask != nil {
		m.poolStatsTask.Stop()
	}
	if m.natsProbeTask != nil {
		m.natsProbeTask.Stop()
	}
	if m.replaySweepTask != nil {
		m.replaySweepTask.Stop()
	}

	if m.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = m.httpServer.Shutdown(ctx)
		cancel()
	}

	if m.natsSub != nil {
		_ = m.natsSub.Unsubscribe()
	}
	if m.nc != nil {
		m.nc.Close()
	}

	if m.redis != nil {
		_ = m.redis.Close()
	}

	if m.db != nil {
		m.db.Close()
	}

	m.BaseModule.OnDestroy()
	fmt.Println("[DM Module] Destroyed")
}

// Module creates a new DM module instance
func Module() module.Module {
	return new(DMModule)
}
